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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kadirpekel/orin/pkg/httpclient"
	"github.com/kadirpekel/orin/pkg/message"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

// OpenAIService calls an OpenAI-compatible chat-completions endpoint over
// httpclient.Client. BaseURL in CompletionConfig lets it target any
// OpenAI-compatible provider (local runners, Azure, OpenRouter, ...).
type OpenAIService struct {
	http *httpclient.Client
}

// NewOpenAIService builds an OpenAIService. A nil client gets httpclient
// defaults.
func NewOpenAIService(client *httpclient.Client) *OpenAIService {
	if client == nil {
		client = httpclient.New(httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders))
	}
	return &OpenAIService{http: client}
}

func (s *OpenAIService) baseURL(cfg CompletionConfig) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return defaultOpenAIBaseURL
}

func (s *OpenAIService) newRequest(ctx context.Context, cfg CompletionConfig, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL(cfg), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	return req, nil
}

// Complete implements Service.
func (s *OpenAIService) Complete(ctx context.Context, messages []message.Message, cfg CompletionConfig) (message.Message, error) {
	cfg.Stream = false
	body, err := json.Marshal(BuildOpenAIRequest(messages, cfg))
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: marshal openai request: %w", err)
	}

	httpReq, err := s.newRequest(ctx, cfg, body)
	if err != nil {
		return message.Message{}, err
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: openai request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: read openai response: %w", err)
	}

	var parsed OpenAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return message.Message{}, fmt.Errorf("llm: decode openai response: %w", err)
	}
	if parsed.Error != nil {
		return message.Message{}, fmt.Errorf("llm: openai error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	return parsed.toMessage(), nil
}

// Stream implements Service, following the chat-completions SSE protocol
// (a sequence of "data: {...}" lines ending in "data: [DONE]").
func (s *OpenAIService) Stream(ctx context.Context, messages []message.Message, cfg CompletionConfig, out chan<- string) (message.Message, error) {
	cfg.Stream = true
	body, err := json.Marshal(BuildOpenAIRequest(messages, cfg))
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: marshal openai request: %w", err)
	}

	httpReq, err := s.newRequest(ctx, cfg, body)
	if err != nil {
		return message.Message{}, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: openai stream request failed: %w", err)
	}
	defer resp.Body.Close()

	var (
		text       strings.Builder
		calls      = map[int]*message.ToolCall{}
		callArgs   = map[int]*strings.Builder{}
		callOrder  []int
		stopReason message.StopReason
		usage      message.Usage
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			usage.PromptTokens = chunk.Usage.PromptTokens
			usage.CompletionTokens = chunk.Usage.CompletionTokens
			usage.TotalTokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			stopReason = openAIStopReason(choice.FinishReason)
		}
		if choice.Delta.Content != "" {
			text.WriteString(choice.Delta.Content)
			select {
			case out <- choice.Delta.Content:
			case <-ctx.Done():
				return message.Message{}, ctx.Err()
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			if _, ok := calls[tc.Index]; !ok {
				calls[tc.Index] = &message.ToolCall{ID: tc.ID, Name: tc.Function.Name}
				callArgs[tc.Index] = &strings.Builder{}
				callOrder = append(callOrder, tc.Index)
			}
			if tc.ID != "" {
				calls[tc.Index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[tc.Index].Name = tc.Function.Name
			}
			callArgs[tc.Index].WriteString(tc.Function.Arguments)
		}
	}
	if err := scanner.Err(); err != nil {
		return message.Message{}, fmt.Errorf("llm: read openai stream: %w", err)
	}

	var toolCalls []message.ToolCall
	for _, idx := range callOrder {
		tc := calls[idx]
		tc.Arguments = unmarshalArguments(callArgs[idx].String())
		toolCalls = append(toolCalls, *tc)
	}

	result := message.Message{
		Role:       message.RoleAssistant,
		ToolCalls:  toolCalls,
		StopReason: stopReason,
		Usage:      &usage,
	}
	if text.Len() > 0 {
		result.Content = []message.Block{message.TextBlock{Text: text.String()}}
	}
	return result, nil
}

type openAIStreamChunk struct {
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *OpenAIResponseUsage `json:"usage,omitempty"`
}

type openAIStreamChoice struct {
	Delta        openAIStreamDelta `json:"delta"`
	FinishReason string            `json:"finish_reason"`
}

type openAIStreamDelta struct {
	Content   string                   `json:"content,omitempty"`
	ToolCalls []openAIStreamToolCall   `json:"tool_calls,omitempty"`
}

type openAIStreamToolCall struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Function OpenAIFunctionCall `json:"function"`
}

var _ Service = (*OpenAIService)(nil)
