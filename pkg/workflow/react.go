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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kadirpekel/orin/pkg/fsm"
	"github.com/kadirpekel/orin/pkg/human"
	"github.com/kadirpekel/orin/pkg/llm"
	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/task"
	"github.com/kadirpekel/orin/pkg/tool"
)

// Runtime context keys an ActionFunc uses to reach dependencies the
// workflow itself does not own. The caller driving the workflow (see
// pkg/agent) populates rtctx with these before the first action runs.
const (
	DispatcherKey = "dispatcher"
	HumanKey      = "human"
	UserIDKey     = "user_id"
	TraceIDKey    = "trace_id"
)

// finishMarker is the substring a Reasoning turn's text carries once the
// model considers the task done. Checked case-insensitively.
const finishMarker = "<finish>true</finish>"

// ReActConfig bundles the per-stage knobs NewReAct needs beyond the
// fixed Reasoning/Reflecting/Finished stage graph.
type ReActConfig[S fsm.State, E fsm.Event] struct {
	Name              string
	ReasoningConfig   llm.CompletionConfig
	ReflectingConfig  llm.CompletionConfig
	ReasoningLLM      llm.Service
	ReflectingLLM     llm.Service
	ReasoningPrompt   string
	ReflectingPrompt  string
	Observe           ObserveFunc[S, E]
}

// NewReAct builds the canonical reason/reflect/finish workflow: the
// Reasoning stage observes, completes, and dispatches any requested tool
// calls; the Reflecting stage inspects the last turn for the finish
// marker and either ends the workflow or loops back to Reasoning.
func NewReAct[S fsm.State, E fsm.Event](cfg ReActConfig[S, E]) (*Workflow[S, E], error) {
	observe := cfg.Observe
	if observe == nil {
		observe = defaultObserve[S, E]
	}

	b := Builder[S, E]{
		ValidStages: []Stage{Reasoning, Reflecting, Clarifying, Finished},
		Initial:     Reasoning,
		Transitions: []Transition{
			// Self-loop on the initial stage's entry event: the first
			// thing RunTaskStream does each call is feed the workflow
			// its own event chain's first event, which must already be
			// a valid transition out of the stage the workflow starts
			// compiled into.
			{From: Reasoning, Event: Reason, To: Reasoning},
			{From: Reasoning, Event: Reflect, To: Reflecting},
			{From: Reflecting, Event: Reason, To: Reasoning},
			{From: Reflecting, Event: Finish, To: Finished},
			{From: Reasoning, Event: Clarify, To: Clarifying},
			{From: Clarifying, Event: Reason, To: Reasoning},
		},
		Name: cfg.Name,
		CompletionConfigs: map[Stage]llm.CompletionConfig{
			Reasoning:  cfg.ReasoningConfig,
			Reflecting: cfg.ReflectingConfig,
		},
		LLMs: map[Stage]llm.Service{
			Reasoning:  cfg.ReasoningLLM,
			Reflecting: cfg.ReflectingLLM,
		},
		Prompts: map[Stage]string{
			Reasoning:  cfg.ReasoningPrompt,
			Reflecting: cfg.ReflectingPrompt,
		},
		ObserveFuncs: map[Stage]ObserveFunc[S, E]{
			Reasoning:  observe,
			Reflecting: observe,
			Clarifying: observe,
		},
		EventChain: []Event{Reason, Reflect, Finish},
		Actions: map[Stage]ActionFunc[S, E]{
			Reasoning:  reasoningAction[S, E],
			Reflecting: reflectingAction[S, E],
			Clarifying: clarifyingAction[S, E],
		},
	}
	return New(b)
}

func defaultObserve[S fsm.State, E fsm.Event](t *task.TreeTask[S, E], _ map[string]any) message.Message {
	if input, ok := t.Input().(string); ok {
		return message.NewText(message.RoleUser, input)
	}
	return message.NewText(message.RoleUser, fmt.Sprintf("%v", t.Input()))
}

// reasoningAction observes, completes against the Reasoning stage's LLM,
// and dispatches any tool calls the model requested, appending every
// turn (observation, assistant reply, tool results) to the task's
// current-state context.
func reasoningAction[S fsm.State, E fsm.Event](ctx context.Context, w *Workflow[S, E], rtctx map[string]any, q queue.Queue[message.Message], t *task.TreeTask[S, E]) (Event, error) {
	obs := w.ObserveFn()(t, rtctx)
	if err := t.AppendContext(obs); err != nil {
		return "", err
	}
	if err := pushMessage(ctx, q, obs); err != nil {
		return "", err
	}

	history := buildHistory(w.Prompt(), t.Context().Messages())
	cfg := w.CompletionConfig()
	cfg.Tools = availableTools(cfg.Tools, w, t)

	reply, err := w.LLM().Complete(ctx, history, cfg)
	if err != nil {
		return "", err
	}
	if err := t.AppendContext(reply); err != nil {
		return "", err
	}
	if err := pushMessage(ctx, q, reply); err != nil {
		return "", err
	}

	if len(reply.ToolCalls) > 0 {
		dispatcher, _ := rtctx[DispatcherKey].(*tool.Dispatcher)
		if dispatcher == nil {
			return "", fmt.Errorf("workflow: reasoning stage requested %d tool call(s) but no dispatcher is set in runtime context", len(reply.ToolCalls))
		}
		blocked := false
		for _, call := range reply.ToolCalls {
			if blocked {
				toolMsg := message.NewToolResult(call.ID, []message.Block{message.TextBlock{Text: toolBlockedText}}, true, nil)
				if err := t.AppendContext(toolMsg); err != nil {
					return "", err
				}
				if err := pushMessage(ctx, q, toolMsg); err != nil {
					return "", err
				}
				continue
			}

			if entry, ok := w.GetTool(call.Name); ok && entry.Tool.RequiresApproval() {
				granted, err := askApproval(ctx, rtctx, q, call.Name)
				if err != nil {
					return "", err
				}
				if !granted {
					rejectMsg := message.NewText(message.RoleUser, fmt.Sprintf("tool call %q rejected by human reviewer", call.Name))
					if err := t.AppendContext(rejectMsg); err != nil {
						return "", err
					}
					return Clarify, nil
				}
			}

			result, dispatchErr := dispatcher.Dispatch(toolContext{Context: ctx, id: call.ID}, call.Name, t.Tags(), call.Arguments)
			isErr := result.IsError
			text := result.Text
			if dispatchErr != nil {
				isErr = true
				text = dispatchErr.Error()
			}
			toolMsg := message.NewToolResult(call.ID, []message.Block{message.TextBlock{Text: text}}, isErr, result.Metadata)
			if err := t.AppendContext(toolMsg); err != nil {
				return "", err
			}
			if err := pushMessage(ctx, q, toolMsg); err != nil {
				return "", err
			}
			if isErr {
				t.SetError(text)
				blocked = true
			}
		}
	}

	return Reflect, nil
}

// toolBlockedText is the fixed message materialised for every tool call
// after the first isError=true result in the same assistant turn: they
// are never dispatched.
const toolBlockedText = "since a previous tool call failed, subsequent tool calls are disallowed"

// askApproval consults the runtime's human.Client, if any, before a
// RequiresApproval tool call executes. With no human client wired in,
// approval is granted by default rather than deadlocking a headless run.
func askApproval(ctx context.Context, rtctx map[string]any, q queue.Queue[message.Message], toolName string) (bool, error) {
	client, _ := rtctx[HumanKey].(human.Client)
	if client == nil {
		return true, nil
	}
	userID, _ := rtctx[UserIDKey].(string)
	traceID, _ := rtctx[TraceIDKey].(string)

	prompt := message.NewText(message.RoleAssistant, fmt.Sprintf("approve tool call %q? reply yes/no", toolName))
	reply, err := client.AskHuman(ctx, userID, traceID, q, prompt)
	if err != nil {
		var interfere *human.InterfereError
		if errors.As(err, &interfere) {
			return false, nil
		}
		return false, err
	}
	return approvalGranted(reply.Text()), nil
}

func approvalGranted(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(lower, "y") || strings.Contains(lower, "approve")
}

// clarifyingAction always loops back to Reasoning: Clarifying exists
// only to give the task a stage boundary to land on after a human
// rejects a tool call, so the next round starts a fresh reasoning turn
// aware of the rejection recorded in context.
func clarifyingAction[S fsm.State, E fsm.Event](_ context.Context, _ *Workflow[S, E], _ map[string]any, _ queue.Queue[message.Message], _ *task.TreeTask[S, E]) (Event, error) {
	return Reason, nil
}

// reflectingAction inspects the Reasoning stage's last assistant turn for
// the finish marker: present, the workflow ends; absent, the round
// repeats, matching the decision that "no tool calls and finish-flag not
// TRUE" never silently completes a task. A tool-reported error is
// recovered locally here: it was recorded on the task only so this stage
// could observe it, and it is cleared before looping back to Reasoning
// rather than propagated to the scheduler as a task-level failure.
func reflectingAction[S fsm.State, E fsm.Event](ctx context.Context, w *Workflow[S, E], rtctx map[string]any, q queue.Queue[message.Message], t *task.TreeTask[S, E]) (Event, error) {
	if t.IsError() {
		t.ClearError()
		return Reason, nil
	}
	last := lastAssistantMessage(t.Context().Messages())
	if strings.Contains(strings.ToLower(last.Text()), finishMarker) {
		endWorkflow(t, last)
		return Finish, nil
	}
	return Reason, nil
}

// endWorkflow marks t completed with the finishing turn's <output>...
// </output> segment, falling back to the turn's full text with the
// finish marker stripped when no output tag is present.
func endWorkflow[S fsm.State, E fsm.Event](t *task.TreeTask[S, E], finishing message.Message) {
	t.SetCompleted(extractOutput(finishing.Text()))
}

func extractOutput(text string) string {
	lower := strings.ToLower(text)
	start := strings.Index(lower, "<output>")
	if start == -1 {
		if marker := strings.Index(lower, finishMarker); marker != -1 {
			text = text[:marker] + text[marker+len(finishMarker):]
		}
		return strings.TrimSpace(text)
	}
	start += len("<output>")
	end := strings.Index(lower[start:], "</output>")
	if end == -1 {
		return strings.TrimSpace(text[start:])
	}
	return strings.TrimSpace(text[start : start+end])
}

func lastAssistantMessage(msgs []message.Message) message.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleAssistant {
			return msgs[i]
		}
	}
	return message.Message{}
}

func buildHistory(prompt string, turns []message.Message) []message.Message {
	history := make([]message.Message, 0, len(turns)+1)
	if prompt != "" {
		history = append(history, message.NewText(message.RoleSystem, prompt))
	}
	return append(history, turns...)
}

func availableTools[S fsm.State, E fsm.Event](configured []tool.Tool, w *Workflow[S, E], t *task.TreeTask[S, E]) []tool.Tool {
	if len(configured) > 0 {
		return configured
	}
	tags := t.Tags()
	out := make([]tool.Tool, 0, len(w.Tools()))
	for _, entry := range w.Tools() {
		if toolTagsSatisfied(entry.RequiredTags, tags) {
			out = append(out, entry.Tool)
		}
	}
	return out
}

func toolTagsSatisfied(required, actual []string) bool {
	have := make(map[string]struct{}, len(actual))
	for _, a := range actual {
		have[a] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

func pushMessage(ctx context.Context, q queue.Queue[message.Message], m message.Message) error {
	if q == nil {
		return nil
	}
	return q.Put(ctx, m)
}

// toolContext adapts a context.Context plus a tool-call ID into
// tool.Context.
type toolContext struct {
	context.Context
	id string
}

func (c toolContext) FunctionCallID() string { return c.id }
