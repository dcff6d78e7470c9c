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
	"fmt"

	"github.com/kadirpekel/orin/pkg/fsm"
	"github.com/kadirpekel/orin/pkg/llm"
	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/task"
)

// Delegation describes one subtask a supervisor's Orchestrating stage
// wants a delegate to run. DelegateFunc turns a batch of these into
// attached TreeTask children; the scheduler (see pkg/scheduler) is what
// actually runs them concurrently.
type Delegation struct {
	Goal string
	Tags []string
}

// PlanFunc decomposes the supervisor's observation into a delegation
// batch. Grounded on the "goal extraction" step a supervisor-style
// reasoning strategy runs before fanning work out to sub-agents.
type PlanFunc[S fsm.State, E fsm.Event] func(ctx context.Context, t *task.TreeTask[S, E], obs message.Message) ([]Delegation, error)

// SpawnFunc attaches one delegated subtask under the parent, returning
// the new TreeTask so Collecting can later read its output.
type SpawnFunc[S fsm.State, E fsm.Event] func(parent *task.TreeTask[S, E], d Delegation) (*task.TreeTask[S, E], error)

// OrchestratingConfig bundles the per-stage knobs NewOrchestrating needs.
type OrchestratingConfig[S fsm.State, E fsm.Event] struct {
	Name                 string
	OrchestratingConfig  llm.CompletionConfig
	OrchestratingLLM     llm.Service
	OrchestratingPrompt  string
	Observe              ObserveFunc[S, E]
	Plan                 PlanFunc[S, E]
	Spawn                SpawnFunc[S, E]
}

// NewOrchestrating builds the supervisor/delegate workflow: the
// Orchestrating stage plans a delegation batch and spawns subtasks, the
// Delegating stage waits for the scheduler to have run them (a no-op
// here — the TreeScheduler recurses into SubTasks before invoking this
// workflow's agent), and the Collecting stage folds the subtasks' output
// back into a final turn.
func NewOrchestrating[S fsm.State, E fsm.Event](cfg OrchestratingConfig[S, E]) (*Workflow[S, E], error) {
	observe := cfg.Observe
	if observe == nil {
		observe = defaultObserve[S, E]
	}

	b := Builder[S, E]{
		ValidStages: []Stage{Orchestrating, Delegating, Collecting, Clarifying, Finished},
		Initial:     Orchestrating,
		Transitions: []Transition{
			// Self-loop on the initial stage's entry event, matching
			// ReAct's Reasoning/Reason self-loop: RunTaskStream's first
			// act each run is workflow.handleEvent(chain[0]), and
			// chain[0] here is Reason, the same event the
			// Collecting -> Orchestrating transition below is keyed
			// on (collectingAction itself always returns Finish).
			{From: Orchestrating, Event: Reason, To: Orchestrating},
			{From: Orchestrating, Event: Delegate, To: Delegating},
			{From: Delegating, Event: Collect, To: Collecting},
			{From: Collecting, Event: Finish, To: Finished},
			{From: Collecting, Event: Reason, To: Orchestrating},
			{From: Orchestrating, Event: Clarify, To: Clarifying},
			{From: Clarifying, Event: Reason, To: Orchestrating},
		},
		Name: cfg.Name,
		CompletionConfigs: map[Stage]llm.CompletionConfig{
			Orchestrating: cfg.OrchestratingConfig,
		},
		LLMs: map[Stage]llm.Service{
			Orchestrating: cfg.OrchestratingLLM,
		},
		Prompts: map[Stage]string{
			Orchestrating: cfg.OrchestratingPrompt,
		},
		ObserveFuncs: map[Stage]ObserveFunc[S, E]{
			Orchestrating: observe,
			Collecting:    observe,
			Clarifying:    observe,
		},
		EventChain: []Event{Reason, Delegate, Collect, Finish},
		Actions: map[Stage]ActionFunc[S, E]{
			Orchestrating: orchestratingAction(cfg.Plan, cfg.Spawn),
			Delegating:    delegatingAction[S, E],
			Collecting:    collectingAction[S, E],
			Clarifying:    clarifyingAction[S, E],
		},
	}
	return New(b)
}

// orchestratingAction plans a delegation batch from the current
// observation and spawns one TreeTask child per delegation.
func orchestratingAction[S fsm.State, E fsm.Event](plan PlanFunc[S, E], spawn SpawnFunc[S, E]) ActionFunc[S, E] {
	return func(ctx context.Context, w *Workflow[S, E], rtctx map[string]any, q queue.Queue[message.Message], t *task.TreeTask[S, E]) (Event, error) {
		obs := w.ObserveFn()(t, rtctx)
		if err := t.AppendContext(obs); err != nil {
			return "", err
		}
		if err := pushMessage(ctx, q, obs); err != nil {
			return "", err
		}

		if plan == nil || spawn == nil {
			return "", fmt.Errorf("workflow: orchestrating stage requires both a PlanFunc and a SpawnFunc")
		}

		delegations, err := plan(ctx, t, obs)
		if err != nil {
			return "", err
		}
		for _, d := range delegations {
			if _, err := spawn(t, d); err != nil {
				return "", err
			}
		}

		announcement := message.NewText(message.RoleAssistant, fmt.Sprintf("delegated %d subtask(s)", len(delegations)))
		if err := t.AppendContext(announcement); err != nil {
			return "", err
		}
		if err := pushMessage(ctx, q, announcement); err != nil {
			return "", err
		}

		return Delegate, nil
	}
}

// delegatingAction is a pass-through: by the time the workflow reaches
// Delegating, the TreeScheduler has already run every SubTasks() entry
// to completion (see pkg/scheduler), so there is nothing left to wait on
// here beyond handing control to Collecting.
func delegatingAction[S fsm.State, E fsm.Event](_ context.Context, _ *Workflow[S, E], _ map[string]any, _ queue.Queue[message.Message], _ *task.TreeTask[S, E]) (Event, error) {
	return Collect, nil
}

// collectingAction folds every subtask's recorded output into one
// summary turn and ends the workflow. A subtask that errored is
// reported inline rather than silently dropped.
func collectingAction[S fsm.State, E fsm.Event](ctx context.Context, w *Workflow[S, E], rtctx map[string]any, q queue.Queue[message.Message], t *task.TreeTask[S, E]) (Event, error) {
	var summary string
	for _, sub := range t.SubTasks() {
		if sub.IsError() {
			summary += fmt.Sprintf("- %s: error: %s\n", sub.Title(), sub.ErrorInfo())
			continue
		}
		summary += fmt.Sprintf("- %s: %s\n", sub.Title(), sub.Output())
	}
	if summary == "" {
		summary = "no subtasks were delegated"
	}

	result := message.NewText(message.RoleAssistant, summary)
	if err := t.AppendContext(result); err != nil {
		return "", err
	}
	if err := pushMessage(ctx, q, result); err != nil {
		return "", err
	}

	t.SetCompleted(summary)
	return Finish, nil
}
