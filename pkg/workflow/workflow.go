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

// Package workflow implements the stage-level FSM that encodes an
// Agent's inner loop (e.g. reason -> reflect -> finish): a fixed ordered
// event chain drives the workflow one round at a time, each stage
// carrying a prompt, an observation function, a completion config, and
// an action.
package workflow

import (
	"context"

	"github.com/kadirpekel/orin/pkg/fsm"
	"github.com/kadirpekel/orin/pkg/llm"
	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/task"
	"github.com/kadirpekel/orin/pkg/tool"
)

// Stage is a workflow stage name.
type Stage string

// Name satisfies fsm.State.
func (s Stage) Name() string { return string(s) }

// Event is a workflow event name.
type Event string

// Name satisfies fsm.Event.
func (e Event) Name() string { return string(e) }

// Stages and events shared by every workflow this package builds
// (ReAct and Orchestrating alike draw from the same enum rather than
// each declaring its own stage/event universe).
const (
	Reasoning     Stage = "REASONING"
	Reflecting    Stage = "REFLECTING"
	Orchestrating Stage = "ORCHESTRATING"
	Delegating    Stage = "DELEGATING"
	Collecting    Stage = "COLLECTING"
	Clarifying    Stage = "CLARIFYING"
	Finished      Stage = "FINISHED"
)

const (
	Reason   Event = "REASON"
	Reflect  Event = "REFLECT"
	Delegate Event = "DELEGATE"
	Collect  Event = "COLLECT"
	Clarify  Event = "CLARIFY"
	Finish   Event = "FINISH"
)

// ObserveFunc extracts the observation Message for a stage from the
// task's current state, given per-call options.
type ObserveFunc[S fsm.State, E fsm.Event] func(t *task.TreeTask[S, E], opts map[string]any) message.Message

// ActionFunc is a stage's business logic: given the workflow, a runtime
// context map, the agent's output queue, and the task, it runs one
// stage round and returns the next workflow event.
type ActionFunc[S fsm.State, E fsm.Event] func(ctx context.Context, w *Workflow[S, E], rtctx map[string]any, q queue.Queue[message.Message], t *task.TreeTask[S, E]) (Event, error)

// Transition registers one (stage, event) -> (stage, optional callback)
// rule in the underlying FSM's transition table.
type Transition struct {
	From   Stage
	Event  Event
	To     Stage
	Action fsm.TransitionFunc[Stage, Event]
}

// Builder captures everything needed to construct a Workflow. Workflow
// keeps its own Builder so Fork can reconstruct an independent instance
// from scratch rather than deep-copying mutable state.
type Builder[S fsm.State, E fsm.Event] struct {
	ValidStages []Stage
	Initial     Stage
	Transitions []Transition

	Name              string
	CompletionConfigs map[Stage]llm.CompletionConfig
	LLMs              map[Stage]llm.Service
	Actions           map[Stage]ActionFunc[S, E]
	Prompts           map[Stage]string
	ObserveFuncs      map[Stage]ObserveFunc[S, E]
	EventChain        []Event
}

// Workflow is a compiled FSM over workflow stages, plus the per-stage
// business data (prompt, observe function, completion config, LLM, and
// action) and a tool registry local to this workflow instance.
type Workflow[S fsm.State, E fsm.Event] struct {
	machine *fsm.Machine[Stage, Event]
	build   Builder[S, E]

	name              string
	completionConfigs map[Stage]llm.CompletionConfig
	llms              map[Stage]llm.Service
	actions           map[Stage]ActionFunc[S, E]
	prompts           map[Stage]string
	observeFuncs      map[Stage]ObserveFunc[S, E]
	eventChain        []Event
	tools             map[string]tool.WorkflowEntry
}

// New constructs and compiles a Workflow from b. Compile additionally
// requires non-empty Actions, Prompts, ObserveFuncs, and EventChain.
func New[S fsm.State, E fsm.Event](b Builder[S, E]) (*Workflow[S, E], error) {
	machine := fsm.New[Stage, Event](b.ValidStages, b.Initial)
	for _, tr := range b.Transitions {
		machine.AddTransition(tr.From, tr.Event, tr.To, tr.Action)
	}
	if err := machine.Compile(); err != nil {
		return nil, err
	}

	if len(b.EventChain) == 0 {
		return nil, &fsm.ConfigError{Reason: "event chain must be set before compilation"}
	}
	if len(b.Actions) == 0 {
		return nil, &fsm.ConfigError{Reason: "actions must be set before compilation"}
	}
	if len(b.Prompts) == 0 {
		return nil, &fsm.ConfigError{Reason: "prompts must be set before compilation"}
	}
	if len(b.ObserveFuncs) == 0 {
		return nil, &fsm.ConfigError{Reason: "observe functions must be set before compilation"}
	}

	w := &Workflow[S, E]{
		machine:           machine,
		build:             b,
		name:              b.Name,
		completionConfigs: cloneMap(b.CompletionConfigs),
		llms:              cloneMap(b.LLMs),
		actions:           cloneMap(b.Actions),
		prompts:           cloneMap(b.Prompts),
		observeFuncs:      cloneMap(b.ObserveFuncs),
		eventChain:        append([]Event(nil), b.EventChain...),
		tools:             make(map[string]tool.WorkflowEntry),
	}
	return w, nil
}

// Fork reconstructs an independent Workflow from the same Builder this
// instance was built from, carrying over the tools registered with
// AddTool. Used by the Agent to localise mutable stage state per run
// without a reflection-based deep copy.
func (w *Workflow[S, E]) Fork() (*Workflow[S, E], error) {
	forked, err := New(w.build)
	if err != nil {
		return nil, err
	}
	forked.tools = cloneMap(w.tools)
	return forked, nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Name returns the workflow's configured name.
func (w *Workflow[S, E]) Name() string { return w.name }

// CurrentStage returns the workflow's current stage.
func (w *Workflow[S, E]) CurrentStage() Stage { return w.machine.Current() }

// HasStage reports whether stage is one of this workflow's valid stages.
func (w *Workflow[S, E]) HasStage(stage Stage) bool {
	for _, s := range w.machine.ValidStates() {
		if s == stage {
			return true
		}
	}
	return false
}

// HandleEvent advances the underlying FSM.
func (w *Workflow[S, E]) HandleEvent(event Event) error {
	return w.machine.HandleEvent(event)
}

// EventChain returns a copy of the fixed ordered event sequence: the
// first element starts a round, the last ends the workflow.
func (w *Workflow[S, E]) EventChain() []Event {
	return append([]Event(nil), w.eventChain...)
}

// CompletionConfig returns the current stage's CompletionConfig.
func (w *Workflow[S, E]) CompletionConfig() llm.CompletionConfig {
	return w.completionConfigs[w.machine.Current()]
}

// LLM returns the current stage's LLM handle, or nil if none was
// configured for it.
func (w *Workflow[S, E]) LLM() llm.Service {
	return w.llms[w.machine.Current()]
}

// Action returns the current stage's action function.
func (w *Workflow[S, E]) Action() ActionFunc[S, E] {
	return w.actions[w.machine.Current()]
}

// Prompt returns the current stage's prompt template.
func (w *Workflow[S, E]) Prompt() string {
	return w.prompts[w.machine.Current()]
}

// ObserveFn returns the current stage's observation function.
func (w *Workflow[S, E]) ObserveFn() ObserveFunc[S, E] {
	return w.observeFuncs[w.machine.Current()]
}

// AddTool registers fn as a workflow-local tool named name, callable
// only by tasks whose tag set is a superset of tags.
func (w *Workflow[S, E]) AddTool(name string, fn tool.CallableTool, tags []string) {
	w.tools[name] = tool.WorkflowEntry{Tool: fn, RequiredTags: tags}
}

// GetTool implements tool.WorkflowRegistry.
func (w *Workflow[S, E]) GetTool(name string) (tool.WorkflowEntry, bool) {
	entry, ok := w.tools[name]
	return entry, ok
}

// Tools returns a copy of the workflow's registered tool entries.
func (w *Workflow[S, E]) Tools() map[string]tool.WorkflowEntry {
	return cloneMap(w.tools)
}

