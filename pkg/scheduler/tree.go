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

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/orin/pkg/fsm"
	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
	"github.com/kadirpekel/orin/pkg/task"
)

// TreeScheduler wraps a plain Scheduler, recursing into a TreeTask's direct
// SubTasks concurrently (via an errgroup, mirroring the sibling fan-out in
// the teacher's ParallelAgent) before running the parent itself. By the
// time the parent's own onState[Running] handler runs, every subtask has
// already reached an end state, so that handler can inspect
// t.SubTasks() and decide to return an INIT event if any subtask ended
// cancelled — the decision stays in the caller-authored handler, not in
// this wrapper, matching how onState[RUNNING] is wired for a plain
// Scheduler.
type TreeScheduler[S fsm.State, E fsm.Event] struct {
	*Scheduler[S, E]
}

// NewTree validates cfg exactly as New does, then wraps the result.
func NewTree[S fsm.State, E fsm.Event](cfg Config[S, E]) (*TreeScheduler[S, E], error) {
	sched, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &TreeScheduler[S, E]{Scheduler: sched}, nil
}

// Schedule runs every direct subtask of t to completion concurrently, then
// schedules t itself through the wrapped Scheduler. A subtask error aborts
// the whole call before the parent ever runs.
func (ts *TreeScheduler[S, E]) Schedule(ctx context.Context, q queue.Queue[message.Message], t *task.TreeTask[S, E]) error {
	subTasks := t.SubTasks()
	if len(subTasks) > 0 {
		group, groupCtx := errgroup.WithContext(ctx)
		for _, sub := range subTasks {
			sub := sub
			group.Go(func() error {
				return ts.Scheduler.Schedule(groupCtx, q, sub)
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
	}

	return ts.Scheduler.Schedule(ctx, q, t)
}
