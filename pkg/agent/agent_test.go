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

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/kadirpekel/orin/pkg/budget"
	"github.com/kadirpekel/orin/pkg/llm"
	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/task"
	"github.com/kadirpekel/orin/pkg/tool"
	"github.com/kadirpekel/orin/pkg/workflow"
)

type testState string

func (s testState) Name() string { return string(s) }

type testEvent string

func (e testEvent) Name() string { return string(e) }

const testRunning testState = "RUNNING"
const testNoop testEvent = "NOOP"

func newTestTree(t *testing.T) *task.TreeTask[testState, testEvent] {
	t.Helper()
	tr := task.NewTree[testState, testEvent]([]testState{testRunning}, testRunning, "test", nil, nil, 4)
	tr.AddTransition(testRunning, testNoop, testRunning, nil)
	if err := tr.Compile(); err != nil {
		t.Fatalf("compile task: %v", err)
	}
	tr.SetMaxRevisitLimit(100)
	tr.SetInput("hello")
	return tr
}

func minimalWorkflow(t *testing.T) *workflow.Workflow[testState, testEvent] {
	t.Helper()
	b := workflow.Builder[testState, testEvent]{
		ValidStages: []workflow.Stage{workflow.Reasoning, workflow.Finished},
		Initial:     workflow.Reasoning,
		Transitions: []workflow.Transition{
			{From: workflow.Reasoning, Event: workflow.Finish, To: workflow.Finished},
		},
		Name: "minimal",
		Actions: map[workflow.Stage]workflow.ActionFunc[testState, testEvent]{
			workflow.Reasoning: func(context.Context, *workflow.Workflow[testState, testEvent], map[string]any, queue.Queue[message.Message], *task.TreeTask[testState, testEvent]) (workflow.Event, error) {
				return workflow.Finish, nil
			},
		},
		Prompts: map[workflow.Stage]string{workflow.Reasoning: "be terse"},
		ObserveFuncs: map[workflow.Stage]workflow.ObserveFunc[testState, testEvent]{
			workflow.Reasoning: func(t *task.TreeTask[testState, testEvent], _ map[string]any) message.Message {
				return message.NewText(message.RoleUser, "hi")
			},
		},
		EventChain: []workflow.Event{workflow.Finish},
	}
	w, err := workflow.New(b)
	if err != nil {
		t.Fatalf("new workflow: %v", err)
	}
	return w
}

func TestNewRejectsEmptyName(t *testing.T) {
	_, err := New(Config[testState, testEvent]{Workflow: minimalWorkflow(t)})
	if err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestNewRejectsReservedName(t *testing.T) {
	_, err := New(Config[testState, testEvent]{Name: "user", Workflow: minimalWorkflow(t)})
	if err == nil {
		t.Fatal("expected error for reserved name \"user\"")
	}
}

func TestNewRejectsNilWorkflow(t *testing.T) {
	_, err := New(Config[testState, testEvent]{Name: "assistant"})
	if err == nil {
		t.Fatal("expected error for nil workflow")
	}
}

func TestNewAccepts(t *testing.T) {
	a, err := New(Config[testState, testEvent]{Name: "assistant", Workflow: minimalWorkflow(t)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Name() != "assistant" {
		t.Fatalf("expected name %q, got %q", "assistant", a.Name())
	}
}

func TestObserveRunsHooksAndAppendsContext(t *testing.T) {
	var preCalled, postCalled bool
	var postAll []message.Message

	a, err := New(Config[testState, testEvent]{
		Name:     "assistant",
		Workflow: minimalWorkflow(t),
		PreObserveHooks: []ObserveHook[testState, testEvent]{
			func(context.Context, queue.Queue[message.Message], *task.TreeTask[testState, testEvent], []message.Message) error {
				preCalled = true
				return nil
			},
		},
		PostObserveHooks: []ObserveHook[testState, testEvent]{
			func(_ context.Context, _ queue.Queue[message.Message], _ *task.TreeTask[testState, testEvent], all []message.Message) error {
				postCalled = true
				postAll = all
				return nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tr := newTestTree(t)
	observeFn := func(t *task.TreeTask[testState, testEvent], _ map[string]any) message.Message {
		return message.NewText(message.RoleUser, "observed")
	}

	all, err := a.Observe(context.Background(), nil, tr, observeFn, nil)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if !preCalled || !postCalled {
		t.Fatal("expected both pre and post observe hooks to fire")
	}
	if len(all) != 1 || all[0].Text() != "observed" {
		t.Fatalf("expected context to carry the observed message, got %v", all)
	}
	if len(postAll) != 1 {
		t.Fatalf("expected post hook to see the appended message, got %v", postAll)
	}
}

func TestThinkRunsHooksAndCompletes(t *testing.T) {
	var preSeen, postSeen message.Message
	a, err := New(Config[testState, testEvent]{
		Name:     "assistant",
		Workflow: minimalWorkflow(t),
		PreThinkHooks: []ThinkHook{
			func(_ context.Context, _ queue.Queue[message.Message], reply message.Message) error {
				preSeen = reply
				return nil
			},
		},
		PostThinkHooks: []ThinkHook{
			func(_ context.Context, _ queue.Queue[message.Message], reply message.Message) error {
				postSeen = reply
				return nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	llmSvc := stubLLM{complete: func(context.Context, []message.Message, llm.CompletionConfig) (message.Message, error) {
		return message.NewText(message.RoleAssistant, "thought"), nil
	}}

	reply, err := a.Think(context.Background(), nil, llmSvc, nil, llm.CompletionConfig{})
	if err != nil {
		t.Fatalf("think: %v", err)
	}
	if reply.Text() != "thought" {
		t.Fatalf("expected reply %q, got %q", "thought", reply.Text())
	}
	if preSeen.Text() != "" {
		t.Fatalf("expected pre-think hook to see the zero message, got %q", preSeen.Text())
	}
	if postSeen.Text() != "thought" {
		t.Fatalf("expected post-think hook to see the completion, got %q", postSeen.Text())
	}
}

func TestCallToolWithNoDispatcherReturnsErrorResult(t *testing.T) {
	a, err := New(Config[testState, testEvent]{Name: "assistant", Workflow: minimalWorkflow(t)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result := a.CallTool(context.Background(), message.ToolCall{ID: "call-1", Name: "echo"}, nil)
	if !result.IsError {
		t.Fatal("expected isError result with no dispatcher configured")
	}
}

func TestActDispatchesThroughWorkflowTool(t *testing.T) {
	w := minimalWorkflow(t)
	echo, err := tool.NewFunctionTool(tool.FunctionConfig{Name: "echo", Description: "echoes text"},
		func(ctx tool.Context, args struct {
			Text string `json:"text"`
		}) (tool.Result, error) {
			return tool.Result{Text: args.Text}, nil
		})
	if err != nil {
		t.Fatalf("build tool: %v", err)
	}
	w.AddTool("echo", echo, nil)

	a, err := New(Config[testState, testEvent]{
		Name:     "assistant",
		Workflow: w,
		Services: Services{Dispatcher: &tool.Dispatcher{Workflow: w}},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tr := newTestTree(t)
	call := message.ToolCall{ID: "call-1", Name: "echo", Arguments: map[string]any{"text": "hi"}}
	result, err := a.Act(context.Background(), nil, call, tr, "user-1", "trace-1")
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if result.Text() != "hi" {
		t.Fatalf("expected echoed text, got %q", result.Text())
	}
}

type stubHuman struct {
	reply message.Message
	err   error
}

func (s stubHuman) AskHuman(context.Context, string, string, queue.Queue[message.Message], message.Message) (message.Message, error) {
	return s.reply, s.err
}

func (s stubHuman) HandleResponse(string, string, message.Message) error { return nil }

func TestActGatesApprovalRequiredToolThroughHumanClient(t *testing.T) {
	w := minimalWorkflow(t)
	dangerous, err := tool.NewFunctionTool(tool.FunctionConfig{Name: "delete", Description: "deletes things", RequiresApprovalF: true},
		func(ctx tool.Context, args struct{}) (tool.Result, error) {
			return tool.Result{Text: "deleted"}, nil
		})
	if err != nil {
		t.Fatalf("build tool: %v", err)
	}
	w.AddTool("delete", dangerous, nil)

	t.Run("approved", func(t *testing.T) {
		a, err := New(Config[testState, testEvent]{
			Name:     "assistant",
			Workflow: w,
			Services: Services{
				Dispatcher: &tool.Dispatcher{Workflow: w},
				Human:      stubHuman{reply: message.NewText(message.RoleUser, "yes")},
			},
		})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		tr := newTestTree(t)
		result, err := a.Act(context.Background(), nil, message.ToolCall{ID: "call-1", Name: "delete"}, tr, "user-1", "trace-1")
		if err != nil {
			t.Fatalf("act: %v", err)
		}
		if result.IsError || result.Text() != "deleted" {
			t.Fatalf("expected the tool to run once approved, got %+v", result)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		a, err := New(Config[testState, testEvent]{
			Name:     "assistant",
			Workflow: w,
			Services: Services{
				Dispatcher: &tool.Dispatcher{Workflow: w},
				Human:      stubHuman{reply: message.NewText(message.RoleUser, "no")},
			},
		})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		tr := newTestTree(t)
		result, err := a.Act(context.Background(), nil, message.ToolCall{ID: "call-1", Name: "delete"}, tr, "user-1", "trace-1")
		if err != nil {
			t.Fatalf("act: %v", err)
		}
		if !result.IsError {
			t.Fatal("expected a rejected approval to surface as an isError tool result")
		}
	})
}

func TestRunTaskStreamMinimalWorkflowReachesFinished(t *testing.T) {
	a, err := New(Config[testState, testEvent]{Name: "assistant", Workflow: minimalWorkflow(t)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tr := newTestTree(t)
	if _, err := a.RunTaskStream(context.Background(), nil, tr); err != nil {
		t.Fatalf("run task stream: %v", err)
	}
}

func TestRunTaskStreamReActReachesFinished(t *testing.T) {
	calls := 0
	llmSvc := stubLLM{complete: func(context.Context, []message.Message, llm.CompletionConfig) (message.Message, error) {
		calls++
		if calls < 2 {
			return message.NewText(message.RoleAssistant, "still thinking"), nil
		}
		return message.NewText(message.RoleAssistant, "done <finish>TRUE</finish> <output>hello</output>"), nil
	}}

	w, err := workflow.NewReAct(workflow.ReActConfig[testState, testEvent]{
		Name:            "react",
		ReasoningLLM:    llmSvc,
		ReflectingLLM:   llmSvc,
		ReasoningPrompt: "reason",
	})
	if err != nil {
		t.Fatalf("new react: %v", err)
	}

	var preRuns, postRuns int
	a, err := New(Config[testState, testEvent]{
		Name:     "assistant",
		Workflow: w,
		PreRunOnceHooks: []RunOnceHook[testState, testEvent]{
			func(context.Context, queue.Queue[message.Message], *task.TreeTask[testState, testEvent]) error {
				preRuns++
				return nil
			},
		},
		PostRunOnceHooks: []RunOnceHook[testState, testEvent]{
			func(context.Context, queue.Queue[message.Message], *task.TreeTask[testState, testEvent]) error {
				postRuns++
				return nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}

	tr := newTestTree(t)
	q := queue.NewUnbounded[message.Message]()
	result, err := a.RunTaskStream(context.Background(), q, tr)
	if err != nil {
		t.Fatalf("run task stream: %v", err)
	}
	if result != tr {
		t.Fatal("expected RunTaskStream to return the same task it was given")
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 completions across rounds, got %d", calls)
	}
	if preRuns != postRuns || preRuns == 0 {
		t.Fatalf("expected matching non-zero pre/post run-once hook counts, got pre=%d post=%d", preRuns, postRuns)
	}
	if !tr.IsCompleted() {
		t.Fatal("expected the task to be marked completed once the workflow reaches Finished")
	}
	if tr.Output() != "hello" {
		t.Fatalf("expected the task's output to be extracted from the finishing turn's <output> tag, got %q", tr.Output())
	}
}

func TestRunTaskStreamChargesStepBudgetPerRoundAndPropagatesExceeded(t *testing.T) {
	llmSvc := stubLLM{complete: func(context.Context, []message.Message, llm.CompletionConfig) (message.Message, error) {
		return message.NewText(message.RoleAssistant, "still thinking"), nil
	}}
	w, err := workflow.NewReAct(workflow.ReActConfig[testState, testEvent]{
		Name:            "react",
		ReasoningLLM:    llmSvc,
		ReflectingLLM:   llmSvc,
		ReasoningPrompt: "reason",
	})
	if err != nil {
		t.Fatalf("new react: %v", err)
	}

	a, err := New(Config[testState, testEvent]{
		Name:     "assistant",
		Workflow: w,
		Services: Services{Budget: budget.NewMaxStepCounter(2)},
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}

	tr := newTestTree(t)
	_, err = a.RunTaskStream(context.Background(), nil, tr)
	var exceeded *budget.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected a budget.ExceededError once the step limit was spent, got %v", err)
	}
}

func TestRunTaskStreamOrchestratingReachesFinishedThroughDelegatingAndCollecting(t *testing.T) {
	planCalls := 0
	w, err := workflow.NewOrchestrating(workflow.OrchestratingConfig[testState, testEvent]{
		Name: "orchestrating",
		Plan: func(context.Context, *task.TreeTask[testState, testEvent], message.Message) ([]workflow.Delegation, error) {
			planCalls++
			return nil, nil
		},
		Spawn: func(*task.TreeTask[testState, testEvent], workflow.Delegation) (*task.TreeTask[testState, testEvent], error) {
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("new orchestrating: %v", err)
	}

	a, err := New(Config[testState, testEvent]{Name: "orchestrator", Workflow: w})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}

	tr := newTestTree(t)
	result, err := a.RunTaskStream(context.Background(), nil, tr)
	if err != nil {
		t.Fatalf("run task stream: %v", err)
	}
	if planCalls != 1 {
		t.Fatalf("expected Orchestrating's plan to run exactly once, got %d", planCalls)
	}
	if len(result.Context().Messages()) == 0 {
		t.Fatal("expected Collecting's summary turn to have been appended to context")
	}
	if !result.IsCompleted() {
		t.Fatal("expected Collecting to mark the task completed once it reaches Finished")
	}
	if result.Output() == "" {
		t.Fatal("expected Collecting to record a non-empty output summary")
	}
}

type stubLLM struct {
	complete func(context.Context, []message.Message, llm.CompletionConfig) (message.Message, error)
}

func (s stubLLM) Complete(ctx context.Context, msgs []message.Message, cfg llm.CompletionConfig) (message.Message, error) {
	return s.complete(ctx, msgs, cfg)
}

func (s stubLLM) Stream(ctx context.Context, msgs []message.Message, cfg llm.CompletionConfig, out chan<- string) (message.Message, error) {
	return s.complete(ctx, msgs, cfg)
}
