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

package budget

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kadirpekel/orin/pkg/message"
)

// BaseStepCounter is a MaxStepCounter that also supports Reset,
// UpdateLimit, and Recharge. Unlike an interactive terminal prompt, Step
// here logs a warning and returns ExceededError instead of blocking on
// input — appropriate for a long-running server process.
type BaseStepCounter struct {
	mu      sync.Mutex
	uid     string
	limit   int
	current int
}

// NewBaseStepCounter constructs a BaseStepCounter with the given limit
// (must be > 0).
func NewBaseStepCounter(limit int) *BaseStepCounter {
	return &BaseStepCounter{uid: uuid.NewString(), limit: limit}
}

func (c *BaseStepCounter) UID() string { return c.uid }

func (c *BaseStepCounter) Limit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit
}

func (c *BaseStepCounter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *BaseStepCounter) CheckLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLimitLocked()
}

func (c *BaseStepCounter) checkLimitLocked() error {
	if c.current > c.limit {
		return &ExceededError{Current: c.current, Limit: c.limit}
	}
	return nil
}

// Step increments current by one and enforces the limit. On the budget
// being hit it logs a warning rather than prompting for a reset; the
// refused step is not counted, so a later Recharge(k) lets k more steps
// through.
func (c *BaseStepCounter) Step(_ message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current++
	if err := c.checkLimitLocked(); err != nil {
		slog.Warn("budget: step limit reached", "uid", c.uid, "current", c.current, "limit", c.limit)
		c.current--
		return err
	}
	return nil
}

// Reset returns current to zero.
func (c *BaseStepCounter) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = 0
	return nil
}

// UpdateLimit replaces the counter's limit.
func (c *BaseStepCounter) UpdateLimit(limit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = limit
	return nil
}

// Recharge raises the limit by amount, letting that many more steps
// through without resetting current to zero.
func (c *BaseStepCounter) Recharge(amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit += amount
	return nil
}
