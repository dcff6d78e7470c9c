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

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion     = "2023-06-01"
)

// AnthropicService calls the Anthropic messages API over httpclient.Client,
// which supplies retry/backoff around the raw HTTP round trip.
type AnthropicService struct {
	http *httpclient.Client
}

// NewAnthropicService builds an AnthropicService. A nil client gets
// httpclient defaults (up to 5 retries with exponential backoff on
// 429/503; at most 2 fixed-delay retries on 408/500/502/504).
func NewAnthropicService(client *httpclient.Client) *AnthropicService {
	if client == nil {
		client = httpclient.New(httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders))
	}
	return &AnthropicService{http: client}
}

func (s *AnthropicService) baseURL(cfg CompletionConfig) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return defaultAnthropicBaseURL
}

func (s *AnthropicService) newRequest(ctx context.Context, cfg CompletionConfig, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL(cfg), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	return req, nil
}

// Complete implements Service.
func (s *AnthropicService) Complete(ctx context.Context, messages []message.Message, cfg CompletionConfig) (message.Message, error) {
	cfg.Stream = false
	body, err := json.Marshal(BuildAnthropicRequest(messages, cfg))
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: marshal anthropic request: %w", err)
	}

	httpReq, err := s.newRequest(ctx, cfg, body)
	if err != nil {
		return message.Message{}, err
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: read anthropic response: %w", err)
	}

	var parsed AnthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return message.Message{}, fmt.Errorf("llm: decode anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return message.Message{}, fmt.Errorf("llm: anthropic error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	return parsed.toMessage(), nil
}

// Stream implements Service. It follows Anthropic's server-sent-events
// protocol, emitting each text delta to out as it arrives and assembling
// the final Message from the accumulated content blocks.
func (s *AnthropicService) Stream(ctx context.Context, messages []message.Message, cfg CompletionConfig, out chan<- string) (message.Message, error) {
	cfg.Stream = true
	body, err := json.Marshal(BuildAnthropicRequest(messages, cfg))
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: marshal anthropic request: %w", err)
	}

	httpReq, err := s.newRequest(ctx, cfg, body)
	if err != nil {
		return message.Message{}, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return message.Message{}, fmt.Errorf("llm: anthropic stream request failed: %w", err)
	}
	defer resp.Body.Close()

	var (
		text       strings.Builder
		toolCalls  []message.ToolCall
		curToolID  string
		curName    string
		curArgs    strings.Builder
		inToolUse  bool
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

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				inToolUse = true
				curToolID = event.ContentBlock.ID
				curName = event.ContentBlock.Name
				curArgs.Reset()
			}
		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				text.WriteString(event.Delta.Text)
				select {
				case out <- event.Delta.Text:
				case <-ctx.Done():
					return message.Message{}, ctx.Err()
				}
			case "input_json_delta":
				curArgs.WriteString(event.Delta.PartialJSON)
			}
		case "content_block_stop":
			if inToolUse {
				toolCalls = append(toolCalls, message.ToolCall{
					ID:        curToolID,
					Name:      curName,
					Arguments: unmarshalArguments(curArgs.String()),
				})
				inToolUse = false
			}
		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				stopReason = anthropicStopReason(event.Delta.StopReason)
			}
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}
		case "message_start":
			if event.Message != nil {
				usage.PromptTokens = event.Message.Usage.InputTokens
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return message.Message{}, fmt.Errorf("llm: read anthropic stream: %w", err)
	}

	usage.TotalTokens = usage.PromptTokens + usage.OutputTokens
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

// anthropicStreamEvent is the union of fields across the handful of SSE
// event types the messages API emits; only the fields relevant to each
// event.Type are populated.
type anthropicStreamEvent struct {
	Type         string                    `json:"type"`
	ContentBlock *AnthropicContent         `json:"content_block,omitempty"`
	Delta        *anthropicStreamDelta     `json:"delta,omitempty"`
	Usage        *AnthropicUsage           `json:"usage,omitempty"`
	Message      *anthropicStreamStartBody `json:"message,omitempty"`
}

type anthropicStreamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type anthropicStreamStartBody struct {
	Usage AnthropicUsage `json:"usage"`
}

var _ Service = (*AnthropicService)(nil)
