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

package task

// LifecycleState is the concrete state enum a Scheduler drives a Task
// through: Inited -> Created -> Running -> {Finished, Failed, Canceled},
// with Running additionally able to loop back to itself (Retry) or to
// Inited (Init, for tree replanning), and Failed able to go back to
// Running (Retry) or on to Canceled (Cancel).
type LifecycleState string

// Name satisfies fsm.State.
func (s LifecycleState) Name() string { return string(s) }

const (
	Inited   LifecycleState = "INITED"
	Created  LifecycleState = "CREATED"
	Running  LifecycleState = "RUNNING"
	Finished LifecycleState = "FINISHED"
	Failed   LifecycleState = "FAILED"
	Canceled LifecycleState = "CANCELED"
)

// LifecycleEvent drives LifecycleState transitions.
type LifecycleEvent string

// Name satisfies fsm.Event.
func (e LifecycleEvent) Name() string { return string(e) }

const (
	Create   LifecycleEvent = "CREATE"
	Run      LifecycleEvent = "RUN"
	Complete LifecycleEvent = "COMPLETE"
	Fail     LifecycleEvent = "FAIL"
	Cancel   LifecycleEvent = "CANCEL"
	Retry    LifecycleEvent = "RETRY"
	Init     LifecycleEvent = "INIT"
)

// LifecycleValidStates is the full LifecycleState set, ready to pass to
// New/NewTree.
var LifecycleValidStates = []LifecycleState{Inited, Created, Running, Finished, Failed, Canceled}

// NewLifecycle constructs a TreeTask already wired with the standard
// lifecycle transition table: Create, Run, Complete/Fail/Cancel from
// Running, plus Running's Retry self-loop and Init loop back to Inited
// for tree replanning, and Retry (to Running) or Cancel (to Canceled)
// from Failed.
func NewLifecycle(taskType string, tags []string, protocol any, maxDepth int) *TreeTask[LifecycleState, LifecycleEvent] {
	t := NewTree[LifecycleState, LifecycleEvent](LifecycleValidStates, Inited, taskType, tags, protocol, maxDepth)
	t.AddTransition(Inited, Create, Created, nil)
	t.AddTransition(Created, Run, Running, nil)
	t.AddTransition(Running, Complete, Finished, nil)
	t.AddTransition(Running, Fail, Failed, nil)
	t.AddTransition(Running, Cancel, Canceled, nil)
	t.AddTransition(Running, Retry, Running, nil)
	t.AddTransition(Running, Init, Inited, nil)
	t.AddTransition(Failed, Retry, Running, nil)
	t.AddTransition(Failed, Cancel, Canceled, nil)
	return t
}
