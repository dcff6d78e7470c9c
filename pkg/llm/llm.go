// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm defines the LLM completion contract every workflow stage
// calls through, pure request serializers for the two providers the
// runtime targets (OpenAI-compatible and Anthropic-compatible), and
// AnthropicService/OpenAIService, which send those requests over
// pkg/httpclient. Any other transport can satisfy Service as well.
package llm

import (
	"context"

	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/tool"
)

// ToolChoice selects how an LLM may use the tools offered to it.
type ToolChoice struct {
	// Name, if non-empty, forces a specific tool call. Otherwise the
	// model decides freely whether to call a tool at all.
	Name string
	// None forces the model not to call any tool.
	None bool
}

// CompletionConfig configures a single completion call. Fields mirror
// the provider-agnostic surface every workflow stage's completionConfig
// carries.
type CompletionConfig struct {
	Model            string
	BaseURL          string
	APIKey           string
	Tools            []tool.Tool
	ToolChoice       ToolChoice
	ExcludeTools     []string
	TopP             float64
	MaxTokens        int
	FrequencyPenalty float64
	Temperature      float64
	FormatJSON       bool
	AllowThinking    bool
	Stream           bool
	StreamInterval   float64
	StopWords        []string
}

// Service is the LLM handle every workflow stage completes against.
type Service interface {
	// Complete runs one non-streaming completion and returns the
	// resulting assistant Message (which may carry ToolCalls and/or
	// Thinking).
	Complete(ctx context.Context, messages []message.Message, cfg CompletionConfig) (message.Message, error)
	// Stream runs a completion, pushing incremental text chunks to out
	// as they arrive, and returns the final assistant Message once the
	// stream completes.
	Stream(ctx context.Context, messages []message.Message, cfg CompletionConfig, out chan<- string) (message.Message, error)
}

func excluded(cfg CompletionConfig, name string) bool {
	for _, n := range cfg.ExcludeTools {
		if n == name {
			return true
		}
	}
	return false
}

func filteredTools(cfg CompletionConfig) []tool.Tool {
	if len(cfg.ExcludeTools) == 0 {
		return cfg.Tools
	}
	out := make([]tool.Tool, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		if !excluded(cfg, t.Name()) {
			out = append(out, t)
		}
	}
	return out
}
