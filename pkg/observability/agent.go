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

package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/orin/pkg/fsm"
	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/task"
)

// AgentHooks adapts a Tracer/Metrics pair into the pre/post run-once
// hooks pkg/agent.Config accepts, so an Agent's RunTaskStream rounds
// carry the "every Agent primitive is a span" instrumentation from
// SPEC_FULL.md §2/§5 without pkg/agent itself importing this package.
// One round's PreRunOnce/PostRunOnce pair is correlated by the task's
// ID rather than by a struct field, since a single Agent (and the
// AgentHooks wrapping it) may be driving several sibling subtasks
// concurrently — see TreeScheduler's errgroup fan-out.
//
// Think/Act-level spans are deliberately not wired here: ThinkHook and
// ActHook only see the completion/tool-result Message, not the model
// name or tool name that StartLLMCall/StartToolExecution need as span
// attributes, and using a tool call's unique ID as a Prometheus label
// would blow up cardinality. Wiring those needs a signature change to
// pkg/agent's hook types, left as a follow-up.
type AgentHooks[S fsm.State, E fsm.Event] struct {
	tracer    *Tracer
	metrics   *Metrics
	agentName string
	agentType string

	mu      sync.Mutex
	started map[string]runStart
}

type runStart struct {
	ctx  context.Context
	span trace.Span
	at   time.Time
}

// NewAgentHooks builds an AgentHooks for the given agent identity.
// Either tracer or metrics may be nil; the returned hooks degrade to
// whichever of the two is configured.
func NewAgentHooks[S fsm.State, E fsm.Event](tracer *Tracer, metrics *Metrics, agentName, agentType string) *AgentHooks[S, E] {
	return &AgentHooks[S, E]{
		tracer:    tracer,
		metrics:   metrics,
		agentName: agentName,
		agentType: agentType,
		started:   make(map[string]runStart),
	}
}

// PreRunOnce opens the span and active-run gauge for one RunTaskStream
// round. Matches pkg/agent.RunOnceHook.
func (h *AgentHooks[S, E]) PreRunOnce(ctx context.Context, _ queue.Queue[message.Message], t *task.TreeTask[S, E]) error {
	if h.metrics != nil {
		h.metrics.IncAgentActiveRuns(h.agentName)
	}

	rs := runStart{ctx: ctx, at: time.Now()}
	if h.tracer != nil {
		input, _ := t.Input().(string)
		rs.ctx, rs.span = h.tracer.StartAgentRun(ctx, h.agentName, h.agentType, "", t.ID(), input)
	}

	h.mu.Lock()
	h.started[t.ID()] = rs
	h.mu.Unlock()
	return nil
}

// PostRunOnce closes the span and active-run gauge opened by
// PreRunOnce, and records the round's duration and any task-level
// error. Matches pkg/agent.RunOnceHook.
func (h *AgentHooks[S, E]) PostRunOnce(_ context.Context, _ queue.Queue[message.Message], t *task.TreeTask[S, E]) error {
	h.mu.Lock()
	rs, ok := h.started[t.ID()]
	delete(h.started, t.ID())
	h.mu.Unlock()
	if !ok {
		return nil
	}

	if h.metrics != nil {
		h.metrics.DecAgentActiveRuns(h.agentName)
		h.metrics.RecordAgentCall(h.agentName, h.agentType, time.Since(rs.at))
		if t.IsError() {
			h.metrics.RecordAgentError(h.agentName, h.agentType, "task_error")
		}
	}

	if rs.span != nil {
		if t.IsError() {
			h.tracer.RecordError(rs.span, taskError{info: t.ErrorInfo()})
		}
		rs.span.End()
	}
	return nil
}

// taskError adapts a Task's free-form ErrorInfo string into an error
// for Tracer.RecordError, which wants something satisfying the error
// interface rather than a bare string.
type taskError struct{ info string }

func (e taskError) Error() string { return e.info }
