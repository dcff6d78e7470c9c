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

// Package task specializes pkg/fsm into the unit of work the scheduler
// drives: a state machine augmented with per-state context, a revisit
// budget, and the bookkeeping (title, tags, protocol, completion, error)
// every agent task carries. TreeTask layers parent/child links on top for
// the Orchestrating workflow's delegated subtasks.
package task

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kadirpekel/orin/pkg/fsm"
	"github.com/kadirpekel/orin/pkg/message"
)

// Task is a compiled fsm.Machine enriched with per-state Context, a
// revisit budget, and task-level bookkeeping. The zero value is not
// usable; construct with New.
type Task[S fsm.State, E fsm.Event] struct {
	mu sync.RWMutex

	machine *fsm.Machine[S, E]

	id       string
	tags     map[string]struct{}
	taskType string
	title    string
	protocol any

	input       any
	output      string
	isCompleted bool

	isError   bool
	errorInfo string

	contexts        map[S]*Context
	stateVisitCount map[S]int
	maxRevisitLimit int
}

// New constructs an uncompiled Task. Call Compile before use; the default
// MaxRevisitLimit is 1 (no revisits allowed) until SetMaxRevisitLimit is
// called, matching the reference implementation's conservative default.
func New[S fsm.State, E fsm.Event](validStates []S, initial S, taskType string, tags []string, protocol any) *Task[S, E] {
	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}
	return &Task[S, E]{
		machine:         fsm.New[S, E](validStates, initial),
		id:              uuid.NewString(),
		tags:            tagSet,
		taskType:        taskType,
		protocol:        protocol,
		maxRevisitLimit: 1,
	}
}

// AddTransition registers a (from, event) -> (to, action) rule. Must be
// called before Compile.
func (t *Task[S, E]) AddTransition(from S, event E, to S, action fsm.TransitionFunc[S, E]) {
	t.machine.AddTransition(from, event, to, action)
}

// SetMaxRevisitLimit sets how many times any one state may be entered
// (the initial entry counts as the first visit) before HandleEvent
// refuses further transitions into it with a RevisitExceededError.
func (t *Task[S, E]) SetMaxRevisitLimit(limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxRevisitLimit = limit
}

// MaxRevisitLimit returns the current revisit budget.
func (t *Task[S, E]) MaxRevisitLimit() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxRevisitLimit
}

// Compile validates the underlying machine and allocates a Context for
// every valid state. It must be called exactly once before HandleEvent,
// AppendContext, or Reset.
func (t *Task[S, E]) Compile() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.machine.Compile(); err != nil {
		return err
	}
	states := t.machine.ValidStates()
	t.stateVisitCount = make(map[S]int, len(states))
	t.contexts = make(map[S]*Context, len(states))
	for _, s := range states {
		t.stateVisitCount[s] = 0
		t.contexts[s] = &Context{}
	}
	t.stateVisitCount[t.machine.Initial()] = 1
	return nil
}

// Compiled reports whether Compile has succeeded.
func (t *Task[S, E]) Compiled() bool { return t.machine.Compiled() }

// Current returns the task's current state.
func (t *Task[S, E]) Current() S {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.machine.Current()
}

// HandleEvent charges the revisit budget for the destination state before
// running the underlying transition. The destination's visit count is
// incremented even if the transition's action subsequently errors and
// aborts the state change, matching the reference implementation: a
// failed action still "spends" a revisit.
func (t *Task[S, E]) HandleEvent(event E) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxRevisitLimit <= 0 {
		return &fsm.ConfigError{Reason: "max revisit limit must be greater than 0"}
	}
	next, ok := t.machine.PeekTransition(event)
	if !ok {
		return &fsm.NoTransitionError{State: t.machine.Current().Name(), Event: event.Name()}
	}
	t.stateVisitCount[next]++
	count := t.stateVisitCount[next]
	if count > t.maxRevisitLimit {
		return &fsm.RevisitExceededError{State: next.Name(), Limit: t.maxRevisitLimit, Count: count}
	}
	return t.machine.HandleEvent(event)
}

// Reset returns the task to its initial state, clears every state's
// Context, and resets visit counts (the initial state counts as visited
// once).
func (t *Task[S, E]) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.machine.Reset(); err != nil {
		return err
	}
	for s := range t.contexts {
		t.contexts[s] = &Context{}
		t.stateVisitCount[s] = 0
	}
	t.stateVisitCount[t.machine.Initial()] = 1
	return nil
}

// StateVisitCount returns how many times state has been entered,
// including the initial state's implicit first visit.
func (t *Task[S, E]) StateVisitCount(s S) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stateVisitCount[s]
}

// Context returns the Context of the task's current state.
func (t *Task[S, E]) Context() *Context {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.contexts[t.machine.Current()]
}

// AppendContext records m against the current state's Context. Forbidden
// before Compile.
func (t *Task[S, E]) AppendContext(m message.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.machine.Compiled() {
		return &fsm.ConfigError{Reason: "cannot append context before compile"}
	}
	t.contexts[t.machine.Current()].Append(m)
	return nil
}

// ID returns the task's generated identifier.
func (t *Task[S, E]) ID() string { return t.id }

// Tags returns a copy of the task's tag set.
func (t *Task[S, E]) Tags() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.tags))
	for tag := range t.tags {
		out = append(out, tag)
	}
	return out
}

// TaskType returns the task's type identifier.
func (t *Task[S, E]) TaskType() string { return t.taskType }

// Title returns the task's title.
func (t *Task[S, E]) Title() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

// SetTitle sets the task's title.
func (t *Task[S, E]) SetTitle(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.title = title
}

// Protocol returns the task's protocol definition (input/output format
// contract the task was created against).
func (t *Task[S, E]) Protocol() any { return t.protocol }

// Input returns the task's input payload.
func (t *Task[S, E]) Input() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.input
}

// SetInput sets the task's input payload.
func (t *Task[S, E]) SetInput(input any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = input
}

// Output returns the task's recorded output, if any.
func (t *Task[S, E]) Output() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.output
}

// IsCompleted reports whether SetCompleted has been called.
func (t *Task[S, E]) IsCompleted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isCompleted
}

// SetCompleted records output and marks the task completed.
func (t *Task[S, E]) SetCompleted(output string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.output = output
	t.isCompleted = true
}

// IsError reports whether the task carries an error.
func (t *Task[S, E]) IsError() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isError
}

// ErrorInfo returns the task's recorded error message, if any.
func (t *Task[S, E]) ErrorInfo() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errorInfo
}

// SetError records an error message and marks the task errored.
func (t *Task[S, E]) SetError(info string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorInfo = info
	t.isError = true
}

// ClearError clears the task's error state.
func (t *Task[S, E]) ClearError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorInfo = ""
	t.isError = false
}
