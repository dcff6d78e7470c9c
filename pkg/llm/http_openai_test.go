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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kadirpekel/orin/pkg/httpclient"
	"github.com/kadirpekel/orin/pkg/message"
)

func TestOpenAIServiceCompleteParsesTextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer auth header, got %q", r.Header.Get("Authorization"))
		}
		resp := OpenAIResponse{
			Choices: []OpenAIChoice{{
				Message:      OpenAIMessage{Role: "assistant", Content: "hi there"},
				FinishReason: "stop",
			}},
			Usage: OpenAIResponseUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewOpenAIService(httpclient.New(httpclient.WithMaxRetries(0)))
	msg, err := svc.Complete(context.Background(), []message.Message{message.NewText(message.RoleUser, "hi")}, CompletionConfig{
		Model:   "gpt-4o",
		BaseURL: server.URL,
		APIKey:  "test-key",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text() != "hi there" {
		t.Errorf("expected text %q, got %q", "hi there", msg.Text())
	}
	if msg.StopReason != message.StopComplete {
		t.Errorf("expected StopComplete, got %v", msg.StopReason)
	}
	if msg.Usage == nil || msg.Usage.TotalTokens != 5 {
		t.Errorf("expected total tokens 5, got %+v", msg.Usage)
	}
}

func TestOpenAIServiceCompleteParsesToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := OpenAIResponse{
			Choices: []OpenAIChoice{{
				Message: OpenAIMessage{
					Role: "assistant",
					ToolCalls: []OpenAIToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: OpenAIFunctionCall{
							Name:      "lookup",
							Arguments: `{"city":"paris"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewOpenAIService(httpclient.New(httpclient.WithMaxRetries(0)))
	msg, err := svc.Complete(context.Background(), nil, CompletionConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Name != "lookup" {
		t.Fatalf("expected one lookup tool call, got %+v", msg.ToolCalls)
	}
	if msg.ToolCalls[0].Arguments["city"] != "paris" {
		t.Errorf("expected city=paris argument, got %+v", msg.ToolCalls[0].Arguments)
	}
	if msg.StopReason != message.StopToolCall {
		t.Errorf("expected StopToolCall, got %v", msg.StopReason)
	}
}

func TestOpenAIServiceStreamEmitsTextDeltas(t *testing.T) {
	chunks := []string{
		`{"choices":[{"delta":{"content":"Sun"},"finish_reason":""}]}`,
		`{"choices":[{"delta":{"content":"ny"},"finish_reason":""}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		bw := bufio.NewWriter(w)
		for _, c := range chunks {
			fmt.Fprintf(bw, "data: %s\n\n", c)
		}
		fmt.Fprint(bw, "data: [DONE]\n\n")
		bw.Flush()
		flusher.Flush()
	}))
	defer server.Close()

	svc := NewOpenAIService(httpclient.New(httpclient.WithMaxRetries(0)))
	out := make(chan string, 16)
	msg, err := svc.Stream(context.Background(), nil, CompletionConfig{BaseURL: server.URL}, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(out)

	var got string
	for c := range out {
		got += c
	}
	if got != "Sunny" {
		t.Errorf("expected streamed chunks %q, got %q", "Sunny", got)
	}
	if msg.Text() != "Sunny" {
		t.Errorf("expected final text %q, got %q", "Sunny", msg.Text())
	}
	if msg.StopReason != message.StopComplete {
		t.Errorf("expected StopComplete, got %v", msg.StopReason)
	}
	if msg.Usage == nil || msg.Usage.TotalTokens != 5 {
		t.Errorf("expected total tokens 5, got %+v", msg.Usage)
	}
}
