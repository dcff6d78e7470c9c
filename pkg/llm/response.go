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
	"github.com/kadirpekel/orin/pkg/message"
)

// AnthropicUsage reports the messages API's token accounting.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicResponse is the messages API's non-streaming response body.
type AnthropicResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    []AnthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      AnthropicUsage     `json:"usage"`
	Error      *AnthropicAPIError `json:"error,omitempty"`
}

// AnthropicAPIError is the body Anthropic sends on a non-2xx response.
type AnthropicAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// toMessage converts an AnthropicResponse into the provider-agnostic
// assistant Message every Service.Complete caller expects.
func (r AnthropicResponse) toMessage() message.Message {
	msg := message.Message{
		Role: message.RoleAssistant,
		Usage: &message.Usage{
			PromptTokens:     r.Usage.InputTokens,
			CompletionTokens: r.Usage.OutputTokens,
			TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
		},
		StopReason: anthropicStopReason(r.StopReason),
	}

	for _, block := range r.Content {
		switch block.Type {
		case "text":
			msg.Content = append(msg.Content, message.TextBlock{Text: block.Text})
		case "thinking":
			msg.Thinking += block.Text
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, message.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	return msg
}

func anthropicStopReason(reason string) message.StopReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return message.StopComplete
	case "max_tokens":
		return message.StopLength
	case "tool_use":
		return message.StopToolCall
	default:
		return message.StopUnknown
	}
}

// OpenAIResponse is the chat-completions API's non-streaming response
// body.
type OpenAIResponse struct {
	ID      string             `json:"id"`
	Choices []OpenAIChoice     `json:"choices"`
	Usage   OpenAIResponseUsage `json:"usage"`
	Error   *OpenAIAPIError    `json:"error,omitempty"`
}

// OpenAIChoice is one completion candidate; chat-completions requests
// ask for exactly one (n=1, the default), so Service only ever reads
// index 0.
type OpenAIChoice struct {
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// OpenAIResponseUsage reports the chat-completions API's token
// accounting.
type OpenAIResponseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAIAPIError is the body OpenAI sends on a non-2xx response.
type OpenAIAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (r OpenAIResponse) toMessage() message.Message {
	msg := message.Message{
		Role: message.RoleAssistant,
		Usage: &message.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		},
	}
	if len(r.Choices) == 0 {
		return msg
	}

	choice := r.Choices[0]
	msg.StopReason = openAIStopReason(choice.FinishReason)
	if choice.Message.Content != "" {
		msg.Content = append(msg.Content, message.TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, message.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: unmarshalArguments(tc.Function.Arguments),
		})
	}
	return msg
}

func openAIStopReason(reason string) message.StopReason {
	switch reason {
	case "stop":
		return message.StopComplete
	case "length":
		return message.StopLength
	case "tool_calls":
		return message.StopToolCall
	default:
		return message.StopUnknown
	}
}
