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

// Package fsm implements the generic finite state machine that underlies
// Task, Workflow, and the Scheduler's task-lifecycle graph: validated
// states, event-driven transitions, and a compile-time reachability check.
//
// A Machine is deliberately minimal — it knows nothing about revisit
// counting or per-state context. Those are layered on top by pkg/task.
package fsm

import "fmt"

// State is any type usable as a machine state. It must be comparable so it
// can key the transition table, and it must name itself for diagnostics.
type State interface {
	comparable
	Name() string
}

// Event is any type usable as a machine event; see State.
type Event interface {
	comparable
	Name() string
}

// TransitionFunc runs as a side effect when a transition fires, before the
// machine's current state is updated. It may return an error to abort the
// transition (the machine's state is left unchanged).
type TransitionFunc[S State, E Event] func(m *Machine[S, E]) error

type transitionKey[S State, E Event] struct {
	from  S
	event E
}

type transition[S State, E Event] struct {
	to     S
	action TransitionFunc[S, E]
}

// Machine is a generic finite state machine over states S and events E.
type Machine[S State, E Event] struct {
	validStates map[S]struct{}
	initial     S
	transitions map[transitionKey[S, E]]transition[S, E]
	current     S
	compiled    bool
}

// New constructs an uncompiled Machine. Call Compile before use.
func New[S State, E Event](validStates []S, initial S) *Machine[S, E] {
	vs := make(map[S]struct{}, len(validStates))
	for _, s := range validStates {
		vs[s] = struct{}{}
	}
	return &Machine[S, E]{
		validStates: vs,
		initial:     initial,
		transitions: make(map[transitionKey[S, E]]transition[S, E]),
		current:     initial,
	}
}

// AddTransition registers a (from, event) -> (to, action) rule. Must be
// called before Compile.
func (m *Machine[S, E]) AddTransition(from S, event E, to S, action TransitionFunc[S, E]) {
	m.transitions[transitionKey[S, E]{from, event}] = transition[S, E]{to: to, action: action}
}

// Compile validates the machine and is forbidden to call twice. It checks
// that the initial state is valid, that at least one transition exists, and
// that every valid state is reachable from the initial state via BFS over
// the transition table. On success the current state is reset to initial.
func (m *Machine[S, E]) Compile() error {
	if m.compiled {
		return &ConfigError{Reason: "state machine already compiled"}
	}
	if len(m.validStates) == 0 {
		return &ConfigError{Reason: "no valid states configured"}
	}
	if _, ok := m.validStates[m.initial]; !ok {
		return &ConfigError{Reason: fmt.Sprintf("initial state %q is not a valid state", m.initial.Name())}
	}
	if len(m.transitions) == 0 {
		return &ConfigError{Reason: "no transitions configured"}
	}

	reachable := map[S]struct{}{m.initial: {}}
	queue := []S{m.initial}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for key, t := range m.transitions {
			if key.from != cur {
				continue
			}
			if _, seen := reachable[t.to]; seen {
				continue
			}
			reachable[t.to] = struct{}{}
			queue = append(queue, t.to)
		}
	}

	var unreachable []string
	for s := range m.validStates {
		if _, ok := reachable[s]; !ok {
			unreachable = append(unreachable, s.Name())
		}
	}
	if len(unreachable) > 0 {
		return &ConfigError{Reason: fmt.Sprintf("unreachable states from %q: %v", m.initial.Name(), unreachable)}
	}

	m.compiled = true
	m.current = m.initial
	return nil
}

// Compiled reports whether Compile has succeeded.
func (m *Machine[S, E]) Compiled() bool {
	return m.compiled
}

// Current returns the current state.
func (m *Machine[S, E]) Current() S {
	return m.current
}

// Initial returns the configured initial state.
func (m *Machine[S, E]) Initial() S {
	return m.initial
}

// ValidStates returns a copy of the valid state set.
func (m *Machine[S, E]) ValidStates() []S {
	out := make([]S, 0, len(m.validStates))
	for s := range m.validStates {
		out = append(out, s)
	}
	return out
}

// PeekTransition reports the state event would lead to from the machine's
// current state, without running the transition's action or changing
// current. Used by pkg/task to charge a revisit count before committing
// to a transition.
func (m *Machine[S, E]) PeekTransition(event E) (S, bool) {
	t, ok := m.transitions[transitionKey[S, E]{m.current, event}]
	if !ok {
		var zero S
		return zero, false
	}
	return t.to, true
}

// HandleEvent looks up (current, event) in the transition table. A missing
// entry is a NoTransitionError. Otherwise the transition's action (if any)
// runs before the state changes; an action error aborts the transition.
func (m *Machine[S, E]) HandleEvent(event E) error {
	key := transitionKey[S, E]{m.current, event}
	t, ok := m.transitions[key]
	if !ok {
		return &NoTransitionError{State: m.current.Name(), Event: event.Name()}
	}
	if t.action != nil {
		if err := t.action(m); err != nil {
			return err
		}
	}
	m.current = t.to
	return nil
}

// Reset returns the machine to its initial state. Forbidden before Compile.
func (m *Machine[S, E]) Reset() error {
	if !m.compiled {
		return &ConfigError{Reason: "cannot reset before compilation"}
	}
	m.current = m.initial
	return nil
}
