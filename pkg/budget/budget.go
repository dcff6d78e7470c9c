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

// Package budget implements the step/token counter middleware that
// enforces how much work an Agent may spend on a single task: a plain
// step cap, a resettable step cap, and a token-metered cap.
package budget

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kadirpekel/orin/pkg/message"
)

// Counter is the shared contract all three variants implement. Every
// implementation guards its mutable state with a mutex and is safe to
// share across concurrently scheduled agents.
type Counter interface {
	UID() string
	Limit() int
	Current() int
	CheckLimit() error
	Step(msg message.Message) error
	UpdateLimit(limit int) error
	Recharge(amount int) error
	Reset() error
}

// ExceededError reports a Step call that pushed current past limit.
type ExceededError struct {
	Current int
	Limit   int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("budget: step budget exceeded: current=%d limit=%d", e.Current, e.Limit)
}

// NotSupportedError reports an operation a variant declines to support
// (e.g. MaxStepCounter.Reset).
type NotSupportedError struct {
	Op string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("budget: %s not supported by this counter", e.Op)
}

// MaxStepCounter counts Step calls against a fixed limit. Reset,
// UpdateLimit, and Recharge are unsupported — once exhausted, a
// MaxStepCounter is permanently exhausted.
type MaxStepCounter struct {
	mu      sync.Mutex
	uid     string
	limit   int
	current int
}

// NewMaxStepCounter constructs a MaxStepCounter with the given limit
// (must be > 0).
func NewMaxStepCounter(limit int) *MaxStepCounter {
	return &MaxStepCounter{uid: uuid.NewString(), limit: limit}
}

func (c *MaxStepCounter) UID() string { return c.uid }

func (c *MaxStepCounter) Limit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit
}

func (c *MaxStepCounter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// CheckLimit returns an ExceededError if current has exceeded limit.
func (c *MaxStepCounter) CheckLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLimitLocked()
}

func (c *MaxStepCounter) checkLimitLocked() error {
	if c.current > c.limit {
		return &ExceededError{Current: c.current, Limit: c.limit}
	}
	return nil
}

// Step increments current by one (msg is ignored by this variant) and
// then enforces the limit.
func (c *MaxStepCounter) Step(_ message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current++
	return c.checkLimitLocked()
}

// Reset is unsupported on MaxStepCounter.
func (c *MaxStepCounter) Reset() error { return &NotSupportedError{Op: "reset"} }

// UpdateLimit is unsupported on MaxStepCounter.
func (c *MaxStepCounter) UpdateLimit(int) error { return &NotSupportedError{Op: "updateLimit"} }

// Recharge is unsupported on MaxStepCounter.
func (c *MaxStepCounter) Recharge(int) error { return &NotSupportedError{Op: "recharge"} }
