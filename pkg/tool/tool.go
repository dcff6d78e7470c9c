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

// Package tool defines the tool-call contract an Agent dispatches
// against: workflow-local tools gated by task tags, and an external
// tool service (typically an MCP server) for everything else.
package tool

import (
	"context"
	"fmt"
)

// Context carries the request-scoped values a Tool's Call needs:
// cancellation, plus whatever the caller injects (trace IDs, task
// handles). It embeds context.Context so tools can use it directly for
// I/O deadlines.
type Context interface {
	context.Context
	// FunctionCallID identifies the specific tool-call request this
	// invocation is fulfilling, for correlating streamed results.
	FunctionCallID() string
}

// Tool is the base capability contract every tool implements.
type Tool interface {
	// Name is the unique identifier the LLM uses to request this tool.
	Name() string
	// Description is shown to the LLM to decide when to use the tool.
	Description() string
	// Schema returns the JSON schema of the tool's parameters, or nil
	// if it takes none.
	Schema() map[string]any
	// RequiresApproval reports whether a human must approve a call
	// before it executes (see pkg/human).
	RequiresApproval() bool
}

// CallableTool extends Tool with synchronous execution.
type CallableTool interface {
	Tool
	Call(ctx Context, args map[string]any) (Result, error)
}

// Result is a tool call's normalized outcome, ready to become a
// tool-role message.Message (see message.NewToolResult).
type Result struct {
	Text     string
	IsError  bool
	Metadata map[string]any
}

// NotFoundError reports a tool name absent from both the workflow's
// local registry and the external tool service.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool: %q not found in workflow or tool service", e.Name)
}

// TagMismatchError reports a workflow-local tool whose RequiredTags are
// not a subset of the calling task's tags.
type TagMismatchError struct {
	Tool     string
	Required []string
	Actual   []string
}

func (e *TagMismatchError) Error() string {
	return fmt.Sprintf("tool: %q requires tags %v, but task has tags %v", e.Tool, e.Required, e.Actual)
}

// TransportError wraps a failure from the external tool service (e.g. an
// MCP round trip) so callers can distinguish infrastructure failures
// from the tool's own reported error content.
type TransportError struct {
	Name string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tool: transport error calling %q: %v", e.Name, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ExternalService is the external tool transport contract — an MCP
// client is the primary implementation (see MCPService).
type ExternalService interface {
	ListTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (Result, error)
}

// WorkflowEntry is a workflow-local tool plus the task tags required to
// call it. Workflows register these by name; see pkg/workflow.
type WorkflowEntry struct {
	Tool         CallableTool
	RequiredTags []string
}

// WorkflowRegistry looks up a workflow-local tool by name. The zero
// value (nil return, found=false) means "not a workflow tool" and the
// Dispatcher falls through to the external service.
type WorkflowRegistry interface {
	GetTool(name string) (WorkflowEntry, bool)
}

func subsetOf(required, actual []string) bool {
	have := make(map[string]struct{}, len(actual))
	for _, t := range actual {
		have[t] = struct{}{}
	}
	for _, t := range required {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

// Dispatcher implements the agent's call-tool contract: workflow-local
// tools take priority (gated by task tags), falling through to the
// external service, falling through to NotFoundError.
type Dispatcher struct {
	Workflow WorkflowRegistry
	External ExternalService
}

// Dispatch resolves name against the workflow registry, then the
// external service, and executes it. taskTags is the calling task's tag
// set, checked against a workflow tool's RequiredTags.
func (d *Dispatcher) Dispatch(ctx Context, name string, taskTags []string, args map[string]any) (Result, error) {
	if d.Workflow != nil {
		if entry, ok := d.Workflow.GetTool(name); ok {
			if !subsetOf(entry.RequiredTags, taskTags) {
				return Result{}, &TagMismatchError{Tool: name, Required: entry.RequiredTags, Actual: taskTags}
			}
			return entry.Tool.Call(ctx, args)
		}
	}

	if d.External != nil {
		result, err := d.External.CallTool(ctx, name, args)
		if err != nil {
			return Result{}, &TransportError{Name: name, Err: err}
		}
		return result, nil
	}

	return Result{}, &NotFoundError{Name: name}
}
