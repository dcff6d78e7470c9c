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

package scheduler

import (
	"context"
	"testing"

	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/task"
)

type testState string

func (s testState) Name() string { return string(s) }

type testEvent string

func (e testEvent) Name() string { return string(e) }

const (
	stInited   testState = "INITED"
	stRunning  testState = "RUNNING"
	stFailed   testState = "FAILED"
	stFinished testState = "FINISHED"
	stCanceled testState = "CANCELED"
)

const (
	evCreate   testEvent = "CREATE"
	evError    testEvent = "ERROR"
	evRetry    testEvent = "RETRY"
	evCancel   testEvent = "CANCEL"
	evComplete testEvent = "COMPLETE"
	evInit     testEvent = "INIT"
)

func TestNewRejectsEmptyEndStates(t *testing.T) {
	_, err := New(Config[testState, testEvent]{
		OnStateChanged: map[TransitionKey[testState]]ChangeHandler[testState, testEvent]{
			{From: stRunning, To: stFailed}: func(context.Context, queue.Queue[message.Message], *task.TreeTask[testState, testEvent], testState, testState) (testEvent, bool, error) {
				return "", false, nil
			},
		},
	})
	if err == nil {
		t.Fatal("expected error for empty endStates")
	}
}

func TestNewRejectsEmptyOnStateChanged(t *testing.T) {
	_, err := New(Config[testState, testEvent]{
		EndStates: []testState{stCanceled},
	})
	if err == nil {
		t.Fatal("expected error for empty onStateChanged")
	}
}

// TestScheduleRetryThenCancel exercises the seed scenario: a Running
// handler that always errors, retried twice before the task is cancelled.
func TestScheduleRetryThenCancel(t *testing.T) {
	tr := task.NewTree[testState, testEvent]([]testState{stRunning, stFailed, stCanceled}, stRunning, "retry-cancel", nil, nil, 2)
	tr.AddTransition(stRunning, evError, stFailed, nil)
	tr.AddTransition(stFailed, evRetry, stRunning, nil)
	tr.AddTransition(stFailed, evCancel, stCanceled, nil)
	if err := tr.Compile(); err != nil {
		t.Fatalf("compile task: %v", err)
	}

	sched, err := New(Config[testState, testEvent]{
		EndStates: []testState{stCanceled},
		OnState: map[testState]Handler[testState, testEvent]{
			stRunning: func(context.Context, queue.Queue[message.Message], *task.TreeTask[testState, testEvent]) (testEvent, bool, error) {
				return evError, true, nil
			},
		},
		OnStateChanged: map[TransitionKey[testState]]ChangeHandler[testState, testEvent]{
			{From: stRunning, To: stFailed}: func(_ context.Context, _ queue.Queue[message.Message], t *task.TreeTask[testState, testEvent], _, _ testState) (testEvent, bool, error) {
				if t.StateVisitCount(stFailed) < 2 {
					return evRetry, true, nil
				}
				t.SetError("max retries exceeded")
				return evCancel, true, nil
			},
		},
		MaxRevisitCount: 2,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if err := sched.Schedule(context.Background(), nil, tr); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if tr.Current() != stCanceled {
		t.Fatalf("expected final state CANCELED, got %v", tr.Current())
	}
	if !tr.IsError() {
		t.Fatal("expected task to carry isError=true after final cancellation")
	}
	if got := tr.StateVisitCount(stFailed); got != 2 {
		t.Fatalf("expected FAILED visited twice, got %d", got)
	}
}

// TestScheduleOnMissingHandlerErrors covers the "missing onState handler
// for a reached state" scheduler-config error.
func TestScheduleOnMissingHandlerErrors(t *testing.T) {
	tr := task.NewTree[testState, testEvent]([]testState{stRunning, stCanceled}, stRunning, "missing-handler", nil, nil, 1)
	tr.AddTransition(stRunning, evCancel, stCanceled, nil)
	if err := tr.Compile(); err != nil {
		t.Fatalf("compile task: %v", err)
	}

	sched, err := New(Config[testState, testEvent]{
		EndStates: []testState{stCanceled},
		OnStateChanged: map[TransitionKey[testState]]ChangeHandler[testState, testEvent]{
			{From: stRunning, To: stCanceled}: func(context.Context, queue.Queue[message.Message], *task.TreeTask[testState, testEvent], testState, testState) (testEvent, bool, error) {
				return "", false, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if err := sched.Schedule(context.Background(), nil, tr); err == nil {
		t.Fatal("expected scheduler-config error for missing onState[RUNNING]")
	}
}

func newLeaf(t *testing.T, title string) *task.TreeTask[testState, testEvent] {
	t.Helper()
	leaf := task.NewTree[testState, testEvent]([]testState{stRunning, stFinished, stCanceled}, stRunning, "leaf", nil, nil, 1)
	leaf.AddTransition(stRunning, evComplete, stFinished, nil)
	leaf.AddTransition(stRunning, evCancel, stCanceled, nil)
	if err := leaf.Compile(); err != nil {
		t.Fatalf("compile leaf: %v", err)
	}
	leaf.SetMaxRevisitLimit(1)
	leaf.SetTitle(title)
	return leaf
}

// TestTreeSchedulerRestartsOnCancelledSubtask exercises the seed scenario: a
// root with two subtasks, one of which is cancelled; the root's RUNNING
// handler notices and fires INIT, replanning from scratch. A real planner
// would swap the failing subtask out on replan; this handler simulates
// that by only checking for a cancelled subtask on its first invocation,
// so the test observes exactly one restart rather than looping forever.
func TestTreeSchedulerRestartsOnCancelledSubtask(t *testing.T) {
	root := task.NewTree[testState, testEvent]([]testState{stInited, stRunning, stFinished, stCanceled}, stInited, "root", nil, nil, 2)
	root.AddTransition(stInited, evCreate, stRunning, nil)
	root.AddTransition(stRunning, evComplete, stFinished, nil)
	root.AddTransition(stRunning, evInit, stInited, nil)
	root.AddTransition(stRunning, evCancel, stCanceled, nil)
	if err := root.Compile(); err != nil {
		t.Fatalf("compile root: %v", err)
	}

	a := newLeaf(t, "succeeds")
	b := newLeaf(t, "cancel-me")
	if err := root.AddSubTask(a); err != nil {
		t.Fatalf("attach subtask a: %v", err)
	}
	if err := root.AddSubTask(b); err != nil {
		t.Fatalf("attach subtask b: %v", err)
	}

	planCount := 0
	runningCalls := 0
	runningHandler := func(_ context.Context, _ queue.Queue[message.Message], tr *task.TreeTask[testState, testEvent]) (testEvent, bool, error) {
		if subs := tr.SubTasks(); len(subs) > 0 {
			runningCalls++
			if runningCalls == 1 {
				for _, sub := range subs {
					if sub.Current() == stCanceled {
						return evInit, true, nil
					}
				}
			}
			return evComplete, true, nil
		}
		if tr.Title() == "cancel-me" {
			return evCancel, true, nil
		}
		return evComplete, true, nil
	}

	sched, err := NewTree(Config[testState, testEvent]{
		EndStates: []testState{stFinished, stCanceled},
		OnState: map[testState]Handler[testState, testEvent]{
			stInited: func(context.Context, queue.Queue[message.Message], *task.TreeTask[testState, testEvent]) (testEvent, bool, error) {
				planCount++
				return evCreate, true, nil
			},
			stRunning: runningHandler,
		},
		OnStateChanged: map[TransitionKey[testState]]ChangeHandler[testState, testEvent]{
			{From: stInited, To: stRunning}: func(context.Context, queue.Queue[message.Message], *task.TreeTask[testState, testEvent], testState, testState) (testEvent, bool, error) {
				return "", false, nil
			},
		},
		MaxRevisitCount: 2,
	})
	if err != nil {
		t.Fatalf("new tree scheduler: %v", err)
	}

	if err := sched.Schedule(context.Background(), nil, root); err != nil {
		t.Fatalf("schedule root: %v", err)
	}

	if root.Current() != stFinished {
		t.Fatalf("expected root to finish after replanning, got %v", root.Current())
	}
	if got := root.StateVisitCount(stInited); got != 2 {
		t.Fatalf("expected INITED visited twice, got %d", got)
	}
	if planCount != 2 {
		t.Fatalf("expected the supervisor's INITED handler to run twice, got %d", planCount)
	}
	if b.Current() != stCanceled {
		t.Fatalf("expected subtask b to have ended cancelled, got %v", b.Current())
	}
	if a.Current() != stFinished {
		t.Fatalf("expected subtask a to have ended finished, got %v", a.Current())
	}
}

func TestTreeSchedulerRunsSubtasksConcurrentlyBeforeParent(t *testing.T) {
	root := task.NewTree[testState, testEvent]([]testState{stRunning, stFinished}, stRunning, "root", nil, nil, 2)
	root.AddTransition(stRunning, evComplete, stFinished, nil)
	if err := root.Compile(); err != nil {
		t.Fatalf("compile root: %v", err)
	}

	a := newLeaf(t, "a")
	b := newLeaf(t, "b")
	if err := root.AddSubTask(a); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	if err := root.AddSubTask(b); err != nil {
		t.Fatalf("attach b: %v", err)
	}

	sched, err := NewTree(Config[testState, testEvent]{
		EndStates: []testState{stFinished, stCanceled},
		OnState: map[testState]Handler[testState, testEvent]{
			stRunning: func(_ context.Context, _ queue.Queue[message.Message], tr *task.TreeTask[testState, testEvent]) (testEvent, bool, error) {
				if len(tr.SubTasks()) == 0 {
					return evComplete, true, nil
				}
				for _, sub := range tr.SubTasks() {
					if sub.Current() != stFinished {
						t.Fatalf("expected subtask %q already finished before parent ran", sub.Title())
					}
				}
				return evComplete, true, nil
			},
		},
		OnStateChanged: map[TransitionKey[testState]]ChangeHandler[testState, testEvent]{
			{From: stRunning, To: stFinished}: func(context.Context, queue.Queue[message.Message], *task.TreeTask[testState, testEvent], testState, testState) (testEvent, bool, error) {
				return "", false, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("new tree scheduler: %v", err)
	}

	if err := sched.Schedule(context.Background(), nil, root); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if root.Current() != stFinished {
		t.Fatalf("expected root finished, got %v", root.Current())
	}
	if a.Current() != stFinished || b.Current() != stFinished {
		t.Fatalf("expected both subtasks finished, got a=%v b=%v", a.Current(), b.Current())
	}
}
