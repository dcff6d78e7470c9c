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
	"github.com/kadirpekel/orin/pkg/tool"
)

// AnthropicTool is a single tool definition in Anthropic's input_schema
// shape.
type AnthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// AnthropicContent is one content block of an Anthropic message: text,
// tool_use (an assistant's tool call), or tool_result (a tool's reply).
type AnthropicContent struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

// AnthropicMessage is a single turn in Anthropic's messages array.
type AnthropicMessage struct {
	Role    string             `json:"role"`
	Content []AnthropicContent `json:"content"`
}

// AnthropicToolChoice selects how Anthropic may use the offered tools.
type AnthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// AnthropicRequest is the pure data shape BuildAnthropicRequest produces.
type AnthropicRequest struct {
	Model         string                `json:"model"`
	System        string                `json:"system,omitempty"`
	Messages      []AnthropicMessage    `json:"messages"`
	MaxTokens     int                   `json:"max_tokens"`
	Temperature   float64               `json:"temperature,omitempty"`
	TopP          float64               `json:"top_p,omitempty"`
	Tools         []AnthropicTool       `json:"tools,omitempty"`
	ToolChoice    *AnthropicToolChoice  `json:"tool_choice,omitempty"`
	Stream        bool                  `json:"stream,omitempty"`
	StopSequences []string              `json:"stop_sequences,omitempty"`
}

// BuildAnthropicRequest serializes messages and cfg into the
// Anthropic-compatible messages-API request body. System-role messages
// are lifted out of Messages into the top-level System field, as the
// Anthropic API requires. Pure data transform: no network call here.
func BuildAnthropicRequest(messages []message.Message, cfg CompletionConfig) AnthropicRequest {
	var system string
	turns := make([]AnthropicMessage, 0, len(messages))

	for _, m := range messages {
		if m.Role == message.RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.Text()
			continue
		}
		turns = append(turns, toAnthropicMessage(m))
	}

	req := AnthropicRequest{
		Model:         cfg.Model,
		System:        system,
		Messages:      turns,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		Tools:         toAnthropicTools(filteredTools(cfg)),
		Stream:        cfg.Stream,
		StopSequences: cfg.StopWords,
	}

	switch {
	case cfg.ToolChoice.None:
		req.ToolChoice = &AnthropicToolChoice{Type: "none"}
	case cfg.ToolChoice.Name != "":
		req.ToolChoice = &AnthropicToolChoice{Type: "tool", Name: cfg.ToolChoice.Name}
	}

	return req
}

func toAnthropicTools(tools []tool.Tool) []AnthropicTool {
	out := make([]AnthropicTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, AnthropicTool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	return out
}

func toAnthropicMessage(m message.Message) AnthropicMessage {
	role := string(m.Role)
	if m.Role == message.RoleTool {
		// Anthropic has no distinct "tool" role: a tool result is a
		// user-turn message carrying a tool_result content block.
		role = string(message.RoleUser)
		return AnthropicMessage{
			Role: role,
			Content: []AnthropicContent{{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Text(),
			}},
		}
	}

	content := make([]AnthropicContent, 0, 1+len(m.ToolCalls))
	if text := m.Text(); text != "" {
		content = append(content, AnthropicContent{Type: "text", Text: text})
	}
	for _, tc := range m.ToolCalls {
		content = append(content, AnthropicContent{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: tc.Arguments,
		})
	}
	return AnthropicMessage{Role: role, Content: content}
}
