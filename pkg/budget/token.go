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
	"github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/orin/pkg/message"
)

var (
	tokenEncodingOnce sync.Once
	tokenEncoding     *tiktoken.Tiktoken
	tokenEncodingErr  error
)

func cl100kEncoding() (*tiktoken.Tiktoken, error) {
	tokenEncodingOnce.Do(func() {
		tokenEncoding, tokenEncodingErr = tiktoken.GetEncoding("cl100k_base")
	})
	return tokenEncoding, tokenEncodingErr
}

// estimateTokens counts msg's text with the cl100k_base encoding. Used
// whenever msg.Usage is absent, e.g. for tool-local synthetic messages
// that never went through an LLM completion.
func estimateTokens(msg message.Message) int {
	enc, err := cl100kEncoding()
	if err != nil {
		slog.Warn("budget: tiktoken encoding unavailable, falling back to rune estimate", "error", err)
		return len([]rune(msg.Text())) / 4
	}
	total := len(enc.Encode(msg.Text(), nil, nil))
	if msg.Thinking != "" {
		total += len(enc.Encode(msg.Thinking, nil, nil))
	}
	return total
}

// TokenStepCounter counts tokens instead of steps: Step adds
// msg.Usage.TotalTokens when present, or an estimate from msg's text
// otherwise. Reset is unsupported — recharge the limit instead, so a
// long-running budget is only ever raised, never silently zeroed.
type TokenStepCounter struct {
	mu      sync.Mutex
	uid     string
	limit   int
	current int
}

// DefaultTokenLimit is the limit new TokenStepCounters use when none is
// given explicitly, matching the reference implementation's default.
const DefaultTokenLimit = 10000

// NewTokenStepCounter constructs a TokenStepCounter with the given token
// limit (must be > 0).
func NewTokenStepCounter(limit int) *TokenStepCounter {
	return &TokenStepCounter{uid: uuid.NewString(), limit: limit}
}

func (c *TokenStepCounter) UID() string { return c.uid }

func (c *TokenStepCounter) Limit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit
}

func (c *TokenStepCounter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *TokenStepCounter) CheckLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLimitLocked()
}

func (c *TokenStepCounter) checkLimitLocked() error {
	if c.current > c.limit {
		return &ExceededError{Current: c.current, Limit: c.limit}
	}
	return nil
}

// Step adds msg's token cost to current and enforces the limit.
func (c *TokenStepCounter) Step(msg message.Message) error {
	tokens := 0
	if msg.Usage != nil && msg.Usage.TotalTokens > 0 {
		tokens = msg.Usage.TotalTokens
	} else {
		tokens = estimateTokens(msg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current += tokens
	if err := c.checkLimitLocked(); err != nil {
		slog.Warn("budget: token limit reached", "uid", c.uid, "current", c.current, "limit", c.limit)
		return err
	}
	return nil
}

// Reset always fails: use Recharge to raise the limit instead.
func (c *TokenStepCounter) Reset() error {
	return &NotSupportedError{Op: "reset (use Recharge instead)"}
}

// UpdateLimit replaces the counter's token limit.
func (c *TokenStepCounter) UpdateLimit(limit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = limit
	return nil
}

// Recharge raises the token limit by amount.
func (c *TokenStepCounter) Recharge(amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit += amount
	return nil
}
