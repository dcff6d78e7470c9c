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

package tool

import (
	"context"
	"errors"
	"testing"
)

type stubRegistry struct {
	entries map[string]WorkflowEntry
}

func (r *stubRegistry) GetTool(name string) (WorkflowEntry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

type stubExternal struct {
	result Result
	err    error
}

func (s *stubExternal) ListTools(ctx context.Context) ([]Tool, error) { return nil, nil }

func (s *stubExternal) CallTool(ctx context.Context, name string, args map[string]any) (Result, error) {
	return s.result, s.err
}

func echoTool(t *testing.T) CallableTool {
	t.Helper()
	tool, err := NewFunctionTool(FunctionConfig{Name: "echo", Description: "echoes back"},
		func(ctx Context, args struct {
			Text string `json:"text"`
		}) (Result, error) {
			return Result{Text: args.Text}, nil
		})
	if err != nil {
		t.Fatalf("build echo tool: %v", err)
	}
	return tool
}

func TestDispatchWorkflowToolWithValidTags(t *testing.T) {
	reg := &stubRegistry{entries: map[string]WorkflowEntry{
		"echo": {Tool: echoTool(t), RequiredTags: []string{"trusted"}},
	}}
	d := &Dispatcher{Workflow: reg}

	result, err := d.Dispatch(NewContext(context.Background(), "call-1"), "echo", []string{"trusted", "extra"}, map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Text != "hi" {
		t.Fatalf("expected echoed text, got %q", result.Text)
	}
}

func TestDispatchWorkflowToolWithMissingTagFails(t *testing.T) {
	reg := &stubRegistry{entries: map[string]WorkflowEntry{
		"echo": {Tool: echoTool(t), RequiredTags: []string{"trusted"}},
	}}
	d := &Dispatcher{Workflow: reg}

	_, err := d.Dispatch(NewContext(context.Background(), "call-1"), "echo", []string{"untrusted"}, nil)
	var tagErr *TagMismatchError
	if !errors.As(err, &tagErr) {
		t.Fatalf("expected TagMismatchError, got %v", err)
	}
}

func TestDispatchFallsThroughToExternalService(t *testing.T) {
	reg := &stubRegistry{entries: map[string]WorkflowEntry{}}
	ext := &stubExternal{result: Result{Text: "from mcp"}}
	d := &Dispatcher{Workflow: reg, External: ext}

	result, err := d.Dispatch(NewContext(context.Background(), "call-1"), "remote_tool", nil, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Text != "from mcp" {
		t.Fatalf("expected external result, got %q", result.Text)
	}
}

func TestDispatchExternalErrorWrapsAsTransportError(t *testing.T) {
	ext := &stubExternal{err: errors.New("boom")}
	d := &Dispatcher{External: ext}

	_, err := d.Dispatch(NewContext(context.Background(), "call-1"), "remote_tool", nil, nil)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, transportErr.Err) {
		t.Fatalf("expected Unwrap to expose underlying error")
	}
}

func TestDispatchNotFoundWhenNeitherSourceHasTool(t *testing.T) {
	d := &Dispatcher{}
	_, err := d.Dispatch(NewContext(context.Background(), "call-1"), "ghost", nil, nil)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
