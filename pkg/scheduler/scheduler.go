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

// Package scheduler drives a Task through its lifecycle states (typically
// Inited -> Created -> Running -> Finished/Failed/Canceled) by invoking a
// per-state handler, then an optional per-transition handler, until an end
// state is reached. TreeScheduler layers subtask recursion on top for
// Orchestrating workflows.
package scheduler

import (
	"context"
	"fmt"

	"github.com/kadirpekel/orin/pkg/fsm"
	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/task"
)

// Handler runs when the schedule loop enters state s. Returning ok=false
// means "no event": the state changed only via the handler's own side
// effects (appending context, calling an LLM, etc.), and the loop simply
// re-reads the task's current state on its next iteration.
type Handler[S fsm.State, E fsm.Event] func(ctx context.Context, q queue.Queue[message.Message], t *task.TreeTask[S, E]) (event E, ok bool, err error)

// ChangeHandler runs after a (from, to) transition has already committed.
// Like Handler, ok=false means no follow-up event is raised.
type ChangeHandler[S fsm.State, E fsm.Event] func(ctx context.Context, q queue.Queue[message.Message], t *task.TreeTask[S, E], from, to S) (event E, ok bool, err error)

type TransitionKey[S fsm.State] struct {
	From, To S
}

// Config bundles everything a Scheduler needs at construction time.
//
// Reachability is an optional adjacency list (state -> states directly
// reachable from it by some onState/onStateChanged-driven transition) used
// only to validate Compile invariants 3-5. A caller that does not supply it
// gets a Scheduler that skips those checks; see DESIGN.md's recorded
// decision on why this is not a required field.
type Config[S fsm.State, E fsm.Event] struct {
	ValidStates     []S
	EndStates       []S
	OnState         map[S]Handler[S, E]
	OnStateChanged  map[TransitionKey[S]]ChangeHandler[S, E]
	MaxRevisitCount int
	Reachability    map[S][]S
}

// Scheduler is the outer-loop driver described above.
type Scheduler[S fsm.State, E fsm.Event] struct {
	validStates     map[S]struct{}
	endStates       map[S]struct{}
	onState         map[S]Handler[S, E]
	onStateChanged  map[TransitionKey[S]]ChangeHandler[S, E]
	maxRevisitCount int
}

// New validates cfg (endStates non-empty, onStateChanged non-empty and,
// when cfg.Reachability is set, every end state reachable, every non-end
// state able to reach an end state, and no cycle unless MaxRevisitCount
// is positive) and returns a ready-to-run Scheduler. Without
// Reachability only the first two checks run.
func New[S fsm.State, E fsm.Event](cfg Config[S, E]) (*Scheduler[S, E], error) {
	if len(cfg.EndStates) == 0 {
		return nil, &fsm.ConfigError{Reason: "scheduler: endStates must be non-empty"}
	}
	if len(cfg.OnStateChanged) == 0 {
		return nil, &fsm.ConfigError{Reason: "scheduler: onStateChanged must be non-empty"}
	}

	validStates := make(map[S]struct{}, len(cfg.ValidStates))
	for _, s := range cfg.ValidStates {
		validStates[s] = struct{}{}
	}
	endStates := make(map[S]struct{}, len(cfg.EndStates))
	for _, s := range cfg.EndStates {
		endStates[s] = struct{}{}
	}

	if cfg.Reachability != nil {
		if err := checkEndStatesReachable(cfg.Reachability, endStates); err != nil {
			return nil, err
		}
		if err := checkNonEndStatesReachEnd(cfg.Reachability, validStates, endStates); err != nil {
			return nil, err
		}
		if cfg.MaxRevisitCount <= 0 {
			if err := checkAcyclic(cfg.Reachability, validStates); err != nil {
				return nil, err
			}
		}
	}

	onStateChanged := make(map[TransitionKey[S]]ChangeHandler[S, E], len(cfg.OnStateChanged))
	for k, v := range cfg.OnStateChanged {
		onStateChanged[k] = v
	}
	onState := make(map[S]Handler[S, E], len(cfg.OnState))
	for k, v := range cfg.OnState {
		onState[k] = v
	}

	return &Scheduler[S, E]{
		validStates:     validStates,
		endStates:       endStates,
		onState:         onState,
		onStateChanged:  onStateChanged,
		maxRevisitCount: cfg.MaxRevisitCount,
	}, nil
}

func checkEndStatesReachable[S fsm.State](adj map[S][]S, endStates map[S]struct{}) error {
	reached := make(map[S]struct{})
	for _, tos := range adj {
		for _, to := range tos {
			reached[to] = struct{}{}
		}
	}
	var unreachable []string
	for s := range endStates {
		if _, ok := reached[s]; !ok {
			unreachable = append(unreachable, s.Name())
		}
	}
	if len(unreachable) > 0 {
		return &fsm.ConfigError{Reason: fmt.Sprintf("scheduler: end state(s) never reached by any transition: %v", unreachable)}
	}
	return nil
}

func checkNonEndStatesReachEnd[S fsm.State](adj map[S][]S, validStates, endStates map[S]struct{}) error {
	var dead []string
	for s := range validStates {
		if _, isEnd := endStates[s]; isEnd {
			continue
		}
		if !canReachAny(adj, s, endStates) {
			dead = append(dead, s.Name())
		}
	}
	if len(dead) > 0 {
		return &fsm.ConfigError{Reason: fmt.Sprintf("scheduler: non-end state(s) cannot reach any end state: %v", dead)}
	}
	return nil
}

func canReachAny[S fsm.State](adj map[S][]S, from S, targets map[S]struct{}) bool {
	visited := map[S]struct{}{from: {}}
	queue := []S{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if _, ok := targets[next]; ok {
				return true
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return false
}

// checkAcyclic rejects a graph where any state can walk back to itself,
// required when maxRevisitCount <= 0 ("acyclic graph" mode).
func checkAcyclic[S fsm.State](adj map[S][]S, validStates map[S]struct{}) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[S]int, len(validStates))
	var cyclic []string
	var visit func(s S) bool
	visit = func(s S) bool {
		color[s] = gray
		for _, next := range adj[s] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[s] = black
		return false
	}
	for s := range validStates {
		if color[s] == white {
			if visit(s) {
				cyclic = append(cyclic, s.Name())
			}
		}
	}
	if len(cyclic) > 0 {
		return &fsm.ConfigError{Reason: fmt.Sprintf("scheduler: acyclic mode requires maxRevisitCount > 0, but cycle(s) reachable from: %v", cyclic)}
	}
	return nil
}

func (s *Scheduler[S, E]) isEnd(state S) bool {
	_, ok := s.endStates[state]
	return ok
}

// ValidStates returns the configured valid state set.
func (s *Scheduler[S, E]) ValidStates() []S {
	out := make([]S, 0, len(s.validStates))
	for state := range s.validStates {
		out = append(out, state)
	}
	return out
}

// EndStates returns the configured end state set.
func (s *Scheduler[S, E]) EndStates() []S {
	out := make([]S, 0, len(s.endStates))
	for state := range s.endStates {
		out = append(out, state)
	}
	return out
}

// Schedule drives t forward, calling onState for the current state, then
// onStateChanged for the transition that just committed (if a handler is
// registered for it), repeating until t reaches an end state.
//
// maxRevisitCount <= 0 ("acyclic mode") is implemented per the recorded
// decision in DESIGN.md: the task's own revisit limit is set to
// max(1, maxRevisitCount) rather than bypassed, so a genuinely acyclic
// Config (validated by checkAcyclic above, when Reachability is supplied)
// never revisits a state anyway and the limit is never exercised.
func (s *Scheduler[S, E]) Schedule(ctx context.Context, q queue.Queue[message.Message], t *task.TreeTask[S, E]) error {
	if s.isEnd(t.Current()) {
		return nil
	}
	limit := s.maxRevisitCount
	if limit < 1 {
		limit = 1
	}
	t.SetMaxRevisitLimit(limit)

	for {
		cur := t.Current()
		handler, ok := s.onState[cur]
		if !ok {
			return &fsm.ConfigError{Reason: fmt.Sprintf("scheduler: no onState handler registered for state %q", cur.Name())}
		}

		event, hasEvent, err := handler(ctx, q, t)
		if err != nil {
			return err
		}
		if hasEvent {
			if err := t.HandleEvent(event); err != nil {
				return err
			}
		}

		next := t.Current()
		if s.isEnd(next) {
			return nil
		}

		if changeHandler, ok := s.onStateChanged[TransitionKey[S]{From: cur, To: next}]; ok {
			event2, hasEvent2, err := changeHandler(ctx, q, t, cur, next)
			if err != nil {
				return err
			}
			if hasEvent2 {
				if err := t.HandleEvent(event2); err != nil {
					return err
				}
				if s.isEnd(t.Current()) {
					return nil
				}
			}
		}
	}
}
