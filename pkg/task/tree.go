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

import (
	"fmt"
	"sync"

	"github.com/kadirpekel/orin/pkg/fsm"
)

// TreeTask layers parent/child links onto a Task so an Orchestrating
// workflow can delegate work to subtasks and recurse the Scheduler over
// them. Depth is bounded by maxDepth to keep delegation from growing
// without limit.
type TreeTask[S fsm.State, E fsm.Event] struct {
	*Task[S, E]

	mu           sync.RWMutex
	parent       *TreeTask[S, E]
	subTasks     []*TreeTask[S, E]
	currentDepth int
	maxDepth     int
}

// NewTree constructs a root TreeTask wrapping a fresh Task. Attach it to
// a parent afterward with SetParent, or use AddSubTask from the parent's
// side.
func NewTree[S fsm.State, E fsm.Event](validStates []S, initial S, taskType string, tags []string, protocol any, maxDepth int) *TreeTask[S, E] {
	return &TreeTask[S, E]{
		Task:     New[S, E](validStates, initial, taskType, tags, protocol),
		maxDepth: maxDepth,
	}
}

// IsLeaf reports whether the node has no subtasks.
func (t *TreeTask[S, E]) IsLeaf() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subTasks) == 0
}

// IsRoot reports whether the node has no parent and sits at depth 0.
func (t *TreeTask[S, E]) IsRoot() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parent == nil && t.currentDepth == 0
}

// CurrentDepth returns the node's depth in its tree (root is 0).
func (t *TreeTask[S, E]) CurrentDepth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentDepth
}

// MaxDepth returns the maximum depth this node may sit at; SetParent
// refuses an attachment that would put the node deeper than this.
func (t *TreeTask[S, E]) MaxDepth() int {
	return t.maxDepth
}

// Parent returns the node's parent, or nil at the root.
func (t *TreeTask[S, E]) Parent() *TreeTask[S, E] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parent
}

// SubTasks returns a copy of the node's direct children.
func (t *TreeTask[S, E]) SubTasks() []*TreeTask[S, E] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TreeTask[S, E], len(t.subTasks))
	copy(out, t.subTasks)
	return out
}

// SubTaskNodes adapts SubTasks to task.TreeNode for Render.
func (t *TreeTask[S, E]) SubTaskNodes() []TreeNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TreeNode, len(t.subTasks))
	for i, s := range t.subTasks {
		out[i] = s
	}
	return out
}

func (t *TreeTask[S, E]) hasSubTaskLocked(node *TreeTask[S, E]) bool {
	for _, s := range t.subTasks {
		if s == node {
			return true
		}
	}
	return false
}

func (t *TreeTask[S, E]) removeSubTaskLocked(node *TreeTask[S, E]) {
	for i, s := range t.subTasks {
		if s == node {
			t.subTasks = append(t.subTasks[:i], t.subTasks[i+1:]...)
			return
		}
	}
}

// SetParent attaches the node under parent, recomputing depth and
// refusing the attachment if it would exceed the node's MaxDepth. A nil
// parent detaches the node like RemoveParent and also removes it from
// the former parent's subtask list. Reattaching to the node's current
// parent is a no-op.
func (t *TreeTask[S, E]) SetParent(parent *TreeTask[S, E]) error {
	t.mu.Lock()
	if t.parent == parent {
		t.mu.Unlock()
		return nil
	}

	newDepth := 0
	if parent != nil {
		newDepth = parent.CurrentDepth() + 1
	}
	if newDepth > t.maxDepth {
		t.mu.Unlock()
		return fmt.Errorf("task: depth %d exceeds max depth %d", newDepth, t.maxDepth)
	}

	oldParent := t.parent
	t.parent = parent
	t.currentDepth = newDepth
	t.mu.Unlock()

	if oldParent != nil {
		oldParent.mu.Lock()
		oldParent.removeSubTaskLocked(t)
		oldParent.mu.Unlock()
	}
	if parent != nil {
		parent.mu.Lock()
		if !parent.hasSubTaskLocked(t) {
			parent.subTasks = append(parent.subTasks, t)
		}
		parent.mu.Unlock()
	}
	return nil
}

// RemoveParent detaches the node from its parent and resets its depth to
// 0. It does not remove the node from the former parent's subtask list;
// callers detaching from the parent's side should use PopSubTask instead.
func (t *TreeTask[S, E]) RemoveParent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parent = nil
	t.currentDepth = 0
}

// AddSubTask attaches sub as a child, calling sub.SetParent(t) if it is
// not already attached here. A no-op if sub is already a child.
func (t *TreeTask[S, E]) AddSubTask(sub *TreeTask[S, E]) error {
	t.mu.RLock()
	already := t.hasSubTaskLocked(sub)
	t.mu.RUnlock()
	if already {
		return nil
	}
	// SetParent appends sub to t.subTasks once the depth check passes; it
	// must not be added here first, or a depth-exceeded rejection would
	// leave a dangling entry in t.subTasks.
	return sub.SetParent(t)
}

// PopSubTask removes and returns node from the subtask list, detaching
// its parent link. Returns an error if node is not a direct child.
func (t *TreeTask[S, E]) PopSubTask(node *TreeTask[S, E]) (*TreeTask[S, E], error) {
	t.mu.Lock()
	if !t.hasSubTaskLocked(node) {
		t.mu.Unlock()
		return nil, fmt.Errorf("task: sub task node not found")
	}
	t.removeSubTaskLocked(node)
	t.mu.Unlock()

	node.RemoveParent()
	return node, nil
}
