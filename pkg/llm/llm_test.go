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
	"testing"

	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/tool"
)

func sampleMessages() []message.Message {
	return []message.Message{
		message.NewText(message.RoleSystem, "be terse"),
		message.NewText(message.RoleUser, "what's the weather?"),
		{
			Role:      message.RoleAssistant,
			ToolCalls: []message.ToolCall{{ID: "call-1", Name: "get_weather", Arguments: map[string]any{"city": "nyc"}}},
		},
		message.NewToolResult("call-1", []message.Block{message.TextBlock{Text: "72F"}}, false, nil),
	}
}

func sampleTool(t *testing.T) tool.Tool {
	t.Helper()
	tl, err := tool.NewFunctionTool(tool.FunctionConfig{Name: "get_weather", Description: "gets the weather"},
		func(ctx tool.Context, args struct {
			City string `json:"city"`
		}) (tool.Result, error) {
			return tool.Result{}, nil
		})
	if err != nil {
		t.Fatalf("build tool: %v", err)
	}
	return tl
}

func TestBuildOpenAIRequestIncludesToolsAndMessages(t *testing.T) {
	cfg := CompletionConfig{Model: "gpt-4o", MaxTokens: 256, Tools: []tool.Tool{sampleTool(t)}}
	req := BuildOpenAIRequest(sampleMessages(), cfg)

	if req.Model != "gpt-4o" {
		t.Fatalf("unexpected model: %q", req.Model)
	}
	if len(req.Tools) != 1 || req.Tools[0].Function.Name != "get_weather" {
		t.Fatalf("expected get_weather tool, got %+v", req.Tools)
	}
	if len(req.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(req.Messages))
	}
	toolMsg := req.Messages[3]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call-1" {
		t.Fatalf("unexpected tool message: %+v", toolMsg)
	}
}

func TestBuildOpenAIRequestFormatJSONSetsResponseFormat(t *testing.T) {
	req := BuildOpenAIRequest(nil, CompletionConfig{FormatJSON: true})
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format, got %+v", req.ResponseFormat)
	}
}

func TestBuildOpenAIRequestAllowThinkingSetsExtraBody(t *testing.T) {
	req := BuildOpenAIRequest(nil, CompletionConfig{AllowThinking: true})
	if req.ExtraBody == nil || !req.ExtraBody.EnableThinking {
		t.Fatalf("expected enable_thinking in extra_body, got %+v", req.ExtraBody)
	}
}

func TestBuildOpenAIRequestToolChoiceName(t *testing.T) {
	req := BuildOpenAIRequest(nil, CompletionConfig{ToolChoice: ToolChoice{Name: "get_weather"}})
	choice, ok := req.ToolChoice.(map[string]any)
	if !ok {
		t.Fatalf("expected map tool_choice, got %T", req.ToolChoice)
	}
	fn, ok := choice["function"].(map[string]any)
	if !ok || fn["name"] != "get_weather" {
		t.Fatalf("unexpected tool_choice shape: %+v", choice)
	}
}

func TestBuildAnthropicRequestLiftsSystemMessage(t *testing.T) {
	req := BuildAnthropicRequest(sampleMessages(), CompletionConfig{Model: "claude-3-5-sonnet"})
	if req.System != "be terse" {
		t.Fatalf("expected system message lifted out, got %q", req.System)
	}
	for _, m := range req.Messages {
		if m.Role == "system" {
			t.Fatalf("system role message leaked into Messages: %+v", m)
		}
	}
}

func TestBuildAnthropicRequestToolResultBecomesUserTurn(t *testing.T) {
	req := BuildAnthropicRequest(sampleMessages(), CompletionConfig{})
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		t.Fatalf("expected tool result normalized to user role, got %q", last.Role)
	}
	if len(last.Content) != 1 || last.Content[0].Type != "tool_result" || last.Content[0].ToolUseID != "call-1" {
		t.Fatalf("unexpected tool_result content: %+v", last.Content)
	}
}

func TestBuildAnthropicRequestToolUseContent(t *testing.T) {
	req := BuildAnthropicRequest(sampleMessages(), CompletionConfig{})
	assistantMsg := req.Messages[1]
	found := false
	for _, c := range assistantMsg.Content {
		if c.Type == "tool_use" && c.Name == "get_weather" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tool_use content block, got %+v", assistantMsg.Content)
	}
}

func TestBuildAnthropicRequestToolChoiceNone(t *testing.T) {
	req := BuildAnthropicRequest(nil, CompletionConfig{ToolChoice: ToolChoice{None: true}})
	if req.ToolChoice == nil || req.ToolChoice.Type != "none" {
		t.Fatalf("expected tool_choice type none, got %+v", req.ToolChoice)
	}
}
