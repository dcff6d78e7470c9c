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

package llm

import (
	"encoding/json"

	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/tool"
)

// OpenAIFunction is a single tool definition in OpenAI's function-calling
// shape.
type OpenAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// OpenAITool wraps OpenAIFunction the way the chat-completions API
// expects: {"type": "function", "function": {...}}.
type OpenAITool struct {
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

// OpenAIMessage is a single turn in OpenAI's message array.
type OpenAIMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content,omitempty"`
	ToolCalls  []OpenAIToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
}

// OpenAIToolCall is a tool call request inside an assistant message.
type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIFunctionCall `json:"function"`
}

// OpenAIFunctionCall carries the raw name/argument pair of a requested
// tool call.
type OpenAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAIResponseFormat requests JSON-mode output.
type OpenAIResponseFormat struct {
	Type string `json:"type"`
}

// OpenAIExtraBody carries provider extensions not part of the base
// chat-completions schema (e.g. thinking toggles on compatible
// endpoints).
type OpenAIExtraBody struct {
	EnableThinking bool `json:"enable_thinking,omitempty"`
}

// OpenAIRequest is the pure data shape BuildOpenAIRequest produces. It
// marshals directly to the OpenAI-compatible chat-completions request
// body; sending it is the caller's responsibility.
type OpenAIRequest struct {
	Model            string               `json:"model"`
	Messages         []OpenAIMessage      `json:"messages"`
	Tools            []OpenAITool         `json:"tools,omitempty"`
	ToolChoice       any                  `json:"tool_choice,omitempty"`
	TopP             float64              `json:"top_p,omitempty"`
	MaxTokens        int                  `json:"max_tokens,omitempty"`
	FrequencyPenalty float64              `json:"frequency_penalty,omitempty"`
	Temperature      float64              `json:"temperature,omitempty"`
	ResponseFormat   *OpenAIResponseFormat `json:"response_format,omitempty"`
	Stream           bool                 `json:"stream,omitempty"`
	Stop             []string             `json:"stop,omitempty"`
	ExtraBody        *OpenAIExtraBody     `json:"extra_body,omitempty"`
}

// BuildOpenAIRequest serializes messages and cfg into the OpenAI-compatible
// chat-completions request body. It is a pure data transform: no network
// call is made here.
func BuildOpenAIRequest(messages []message.Message, cfg CompletionConfig) OpenAIRequest {
	req := OpenAIRequest{
		Model:            cfg.Model,
		Messages:         toOpenAIMessages(messages),
		Tools:            toOpenAITools(filteredTools(cfg)),
		TopP:             cfg.TopP,
		MaxTokens:        cfg.MaxTokens,
		FrequencyPenalty: cfg.FrequencyPenalty,
		Temperature:      cfg.Temperature,
		Stream:           cfg.Stream,
		Stop:             cfg.StopWords,
	}

	if cfg.FormatJSON {
		req.ResponseFormat = &OpenAIResponseFormat{Type: "json_object"}
	}
	if cfg.AllowThinking {
		req.ExtraBody = &OpenAIExtraBody{EnableThinking: true}
	}

	switch {
	case cfg.ToolChoice.None:
		req.ToolChoice = "none"
	case cfg.ToolChoice.Name != "":
		req.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]any{"name": cfg.ToolChoice.Name},
		}
	}

	return req
}

func toOpenAITools(tools []tool.Tool) []OpenAITool {
	out := make([]OpenAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, OpenAITool{
			Type: "function",
			Function: OpenAIFunction{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return out
}

func toOpenAIMessages(messages []message.Message) []OpenAIMessage {
	out := make([]OpenAIMessage, 0, len(messages))
	for _, m := range messages {
		om := OpenAIMessage{Role: string(m.Role), Content: m.Text()}
		if m.Role == message.RoleTool {
			om.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, OpenAIToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: OpenAIFunctionCall{
					Name:      tc.Name,
					Arguments: marshalArguments(tc.Arguments),
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func marshalArguments(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalArguments(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}
