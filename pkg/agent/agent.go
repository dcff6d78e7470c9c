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

// Package agent drives a Task through a forked Workflow's stage graph,
// wrapping the observe/think/act primitives an ActionFunc calls with
// caller-supplied hooks. RunTaskStream is the Go rendering of the
// reason/act/reflect round-trip every workflow in pkg/workflow compiles
// against: fork the workflow, feed its event chain's first event into
// the stage machine once per round, run the current stage's action,
// and repeat until the event chain's terminal event is reached.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kadirpekel/orin/pkg/budget"
	"github.com/kadirpekel/orin/pkg/fsm"
	"github.com/kadirpekel/orin/pkg/human"
	"github.com/kadirpekel/orin/pkg/llm"
	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/task"
	"github.com/kadirpekel/orin/pkg/tool"
	"github.com/kadirpekel/orin/pkg/workflow"
)

// reservedName matches the teacher's own agent package: an agent may
// never be named "user", since that name is reserved for the human
// turn in a conversation's message history.
const reservedName = "user"

// RunOnceHook wraps a full pass of RunTaskStream's outer loop (one trip
// around the workflow's event chain, start to finish).
type RunOnceHook[S fsm.State, E fsm.Event] func(ctx context.Context, q queue.Queue[message.Message], t *task.TreeTask[S, E]) error

// ObserveHook wraps a single Observe call. all is nil on the pre-hook
// call (the new observation has not been appended yet) and carries the
// task's full running context on the post-hook call.
type ObserveHook[S fsm.State, E fsm.Event] func(ctx context.Context, q queue.Queue[message.Message], t *task.TreeTask[S, E], all []message.Message) error

// ThinkHook wraps a single Think call. reply is the zero Message on the
// pre-hook call.
type ThinkHook func(ctx context.Context, q queue.Queue[message.Message], reply message.Message) error

// ActHook wraps a single Act call. result is the zero Message on the
// pre-hook call.
type ActHook func(ctx context.Context, q queue.Queue[message.Message], result message.Message) error

// Services bundles the dependencies an Agent's primitives reach for but
// do not own: the tool dispatcher, the step/token budget counter, and
// an optional human-in-the-loop client for approval gated tool calls.
type Services struct {
	Dispatcher *tool.Dispatcher
	Budget     budget.Counter
	Human      human.Client
}

// Config is the argument to New. Workflow is forked fresh on every
// RunTaskStream call, so a single Config/Agent pair can drive many
// concurrent tasks.
type Config[S fsm.State, E fsm.Event] struct {
	ID       string
	Name     string
	Type     string
	Workflow *workflow.Workflow[S, E]
	Services Services

	PreRunOnceHooks  []RunOnceHook[S, E]
	PostRunOnceHooks []RunOnceHook[S, E]
	PreObserveHooks  []ObserveHook[S, E]
	PostObserveHooks []ObserveHook[S, E]
	PreThinkHooks    []ThinkHook
	PostThinkHooks   []ThinkHook
	PreActHooks      []ActHook
	PostActHooks     []ActHook
}

// Agent owns a workflow template and the hook lists that wrap every
// observe/think/act call a round of RunTaskStream makes.
type Agent[S fsm.State, E fsm.Event] struct {
	id, name, typ string
	workflow      *workflow.Workflow[S, E]
	services      Services

	preRunOnceHooks, postRunOnceHooks []RunOnceHook[S, E]
	preObserveHooks, postObserveHooks []ObserveHook[S, E]
	preThinkHooks, postThinkHooks     []ThinkHook
	preActHooks, postActHooks         []ActHook
}

// New validates cfg and returns a ready-to-run Agent. Name must be
// non-empty and must not be the reserved name "user"; Workflow must be
// set.
func New[S fsm.State, E fsm.Event](cfg Config[S, E]) (*Agent[S, E], error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent: name must not be empty")
	}
	if cfg.Name == reservedName {
		return nil, fmt.Errorf("agent: name %q is reserved", reservedName)
	}
	if cfg.Workflow == nil {
		return nil, fmt.Errorf("agent: workflow must be set")
	}

	return &Agent[S, E]{
		id:       cfg.ID,
		name:     cfg.Name,
		typ:      cfg.Type,
		workflow: cfg.Workflow,
		services: cfg.Services,

		preRunOnceHooks:  append([]RunOnceHook[S, E](nil), cfg.PreRunOnceHooks...),
		postRunOnceHooks: append([]RunOnceHook[S, E](nil), cfg.PostRunOnceHooks...),
		preObserveHooks:  append([]ObserveHook[S, E](nil), cfg.PreObserveHooks...),
		postObserveHooks: append([]ObserveHook[S, E](nil), cfg.PostObserveHooks...),
		preThinkHooks:    append([]ThinkHook(nil), cfg.PreThinkHooks...),
		postThinkHooks:   append([]ThinkHook(nil), cfg.PostThinkHooks...),
		preActHooks:      append([]ActHook(nil), cfg.PreActHooks...),
		postActHooks:     append([]ActHook(nil), cfg.PostActHooks...),
	}, nil
}

// ID returns the agent's identifier.
func (a *Agent[S, E]) ID() string { return a.id }

// Name returns the agent's configured name.
func (a *Agent[S, E]) Name() string { return a.name }

// Type returns the agent's configured type tag (e.g. "react", "supervisor").
func (a *Agent[S, E]) Type() string { return a.typ }

// Services returns the dependency bundle the agent was constructed with.
func (a *Agent[S, E]) Services() Services { return a.services }

// Observe runs observeFn against t, appends the resulting message to
// t's running context, and returns the full context so far, wrapping
// the call with the configured pre/post observe hooks.
func (a *Agent[S, E]) Observe(ctx context.Context, q queue.Queue[message.Message], t *task.TreeTask[S, E], observeFn workflow.ObserveFunc[S, E], opts map[string]any) ([]message.Message, error) {
	for _, hook := range a.preObserveHooks {
		if err := hook(ctx, q, t, nil); err != nil {
			return nil, err
		}
	}

	obs := observeFn(t, opts)
	if err := t.AppendContext(obs); err != nil {
		return nil, err
	}
	all := t.Context().Messages()

	for _, hook := range a.postObserveHooks {
		if err := hook(ctx, q, t, all); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// Think completes observe against llmSvc under completionConfig,
// wrapping the call with the configured pre/post think hooks.
func (a *Agent[S, E]) Think(ctx context.Context, q queue.Queue[message.Message], llmSvc llm.Service, observe []message.Message, completionConfig llm.CompletionConfig) (message.Message, error) {
	for _, hook := range a.preThinkHooks {
		if err := hook(ctx, q, message.Message{}); err != nil {
			return message.Message{}, err
		}
	}

	reply, err := llmSvc.Complete(ctx, observe, completionConfig)
	if err != nil {
		return message.Message{}, err
	}

	for _, hook := range a.postThinkHooks {
		if err := hook(ctx, q, reply); err != nil {
			return message.Message{}, err
		}
	}
	return reply, nil
}

// Act dispatches call and wraps the dispatch with the configured
// pre/post act hooks. A call naming a tool registered with
// RequiresApproval true is routed through Services.Human.AskHuman first;
// a rejection (or an InterfereError from the human client) is reported
// back as an isError tool result rather than ever reaching the
// dispatcher, matching the HITL gate described in SPEC_FULL.md §10.
func (a *Agent[S, E]) Act(ctx context.Context, q queue.Queue[message.Message], call message.ToolCall, t *task.TreeTask[S, E], userID, traceID string) (message.Message, error) {
	for _, hook := range a.preActHooks {
		if err := hook(ctx, q, message.Message{}); err != nil {
			return message.Message{}, err
		}
	}

	var result message.Message
	if a.requiresApproval(call.Name) {
		granted, err := a.askApproval(ctx, q, call.Name, userID, traceID)
		if err != nil {
			return message.Message{}, err
		}
		if !granted {
			result = message.NewToolResult(call.ID, []message.Block{message.TextBlock{Text: fmt.Sprintf("tool call %q rejected by human reviewer", call.Name)}}, true, nil)
		} else {
			result = a.CallTool(ctx, call, t.Tags())
		}
	} else {
		result = a.CallTool(ctx, call, t.Tags())
	}

	for _, hook := range a.postActHooks {
		if err := hook(ctx, q, result); err != nil {
			return message.Message{}, err
		}
	}
	return result, nil
}

// requiresApproval reports whether name is registered in the agent's
// dispatcher-owned workflow tool registry with RequiresApproval true.
func (a *Agent[S, E]) requiresApproval(name string) bool {
	if a.services.Dispatcher == nil || a.services.Dispatcher.Workflow == nil {
		return false
	}
	entry, ok := a.services.Dispatcher.Workflow.GetTool(name)
	return ok && entry.Tool.RequiresApproval()
}

// askApproval consults Services.Human, if any, before a RequiresApproval
// tool call executes. With no human client wired in, approval is
// granted by default rather than deadlocking a headless run.
func (a *Agent[S, E]) askApproval(ctx context.Context, q queue.Queue[message.Message], toolName, userID, traceID string) (bool, error) {
	if a.services.Human == nil {
		return true, nil
	}
	prompt := message.NewText(message.RoleAssistant, fmt.Sprintf("approve tool call %q? reply yes/no", toolName))
	reply, err := a.services.Human.AskHuman(ctx, userID, traceID, q, prompt)
	if err != nil {
		var interfere *human.InterfereError
		if errors.As(err, &interfere) {
			return false, nil
		}
		return false, err
	}
	lower := strings.ToLower(strings.TrimSpace(reply.Text()))
	return strings.HasPrefix(lower, "y") || strings.Contains(lower, "approve"), nil
}

// CallTool dispatches a single tool call through the agent's
// Services.Dispatcher, normalizing a missing dispatcher or any dispatch
// error into an isError tool-result Message rather than a Go error:
// a failed tool call is something the model should see and react to,
// not a reason to abort the round.
func (a *Agent[S, E]) CallTool(ctx context.Context, call message.ToolCall, taskTags []string) message.Message {
	if a.services.Dispatcher == nil {
		return message.NewToolResult(call.ID, []message.Block{message.TextBlock{Text: "no tool dispatcher configured"}}, true, nil)
	}

	result, err := a.services.Dispatcher.Dispatch(toolContext{Context: ctx, id: call.ID}, call.Name, taskTags, call.Arguments)
	if err != nil {
		return message.NewToolResult(call.ID, []message.Block{message.TextBlock{Text: err.Error()}}, true, nil)
	}
	return message.NewToolResult(call.ID, []message.Block{message.TextBlock{Text: result.Text}}, result.IsError, result.Metadata)
}

// toolContext adapts a context.Context plus a tool-call ID into
// tool.Context.
type toolContext struct {
	context.Context
	id string
}

func (c toolContext) FunctionCallID() string { return c.id }

// RunTaskStream forks the agent's workflow template and drives t
// through it round by round until the workflow's event chain reaches
// its terminal event, wrapping every round with the configured
// pre/post run-once hooks.
//
// Each round repeats: feed the current event into the stage machine,
// stop if that event is the chain's terminal event, otherwise run the
// current stage's action to get the next event and loop — unless the
// action's event is the chain's first (loopback) event, in which case
// the round ends and a fresh round begins. See DESIGN.md's recorded
// decision on why the workflow's initial stage must carry a self-loop
// transition on the event chain's first element for this to ever reach
// its second iteration.
func (a *Agent[S, E]) RunTaskStream(ctx context.Context, q queue.Queue[message.Message], t *task.TreeTask[S, E]) (*task.TreeTask[S, E], error) {
	w, err := a.workflow.Fork()
	if err != nil {
		return nil, err
	}

	chain := w.EventChain()
	if len(chain) == 0 {
		return nil, fmt.Errorf("agent: workflow %q has an empty event chain", w.Name())
	}
	loopback := chain[0]
	terminal := chain[len(chain)-1]
	event := loopback

	rtctx := map[string]any{
		workflow.DispatcherKey: a.services.Dispatcher,
		workflow.HumanKey:      a.services.Human,
	}

	for {
		for _, hook := range a.preRunOnceHooks {
			if err := hook(ctx, q, t); err != nil {
				return t, err
			}
		}

		done := false
		for {
			if err := w.HandleEvent(event); err != nil {
				return t, err
			}
			if event == terminal {
				done = true
				break
			}

			action := w.Action()
			event, err = action(ctx, w, rtctx, q, t)
			if err != nil {
				return t, err
			}
			if event == loopback {
				break
			}
		}

		if err := a.chargeStep(t); err != nil {
			return t, err
		}

		for _, hook := range a.postRunOnceHooks {
			if err := hook(ctx, q, t); err != nil {
				return t, err
			}
		}
		if done {
			break
		}
	}

	return t, nil
}

// chargeStep charges Services.Budget, if configured, one step for the
// round that just completed, passing the last message appended to the
// task's current-state context (TokenStepCounter reads its Usage; other
// variants ignore it). A budget-exceeded error is not a tool-reported
// error recovered locally — it propagates to the caller exactly like any
// other non-tool error, so the scheduler's RUNNING handler can cancel or
// retry the task.
func (a *Agent[S, E]) chargeStep(t *task.TreeTask[S, E]) error {
	if a.services.Budget == nil {
		return nil
	}
	msgs := t.Context().Messages()
	var last message.Message
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1]
	}
	return a.services.Budget.Step(last)
}
