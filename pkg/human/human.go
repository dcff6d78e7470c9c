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

// Package human implements the human-in-the-loop middleware: an Agent
// suspends on AskHuman, publishes a prompt onto the caller's output
// queue, and blocks until a correlated reply arrives through
// HandleResponse.
package human

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
)

// InterfereError reports that a human rejected or interrupted a
// request. Callers typically surface it as the task's error and cancel.
type InterfereError struct {
	Reason string
}

func (e *InterfereError) Error() string {
	if e.Reason == "" {
		return "human: request rejected by human user"
	}
	return fmt.Sprintf("human: request rejected by human user: %s", e.Reason)
}

// Client is the human-in-the-loop contract: AskHuman publishes prompt
// onto out and blocks for the correlated reply; HandleResponse delivers
// that reply from whatever transport received it (webhook, CLI, chat
// command).
type Client interface {
	AskHuman(ctx context.Context, userID, traceID string, out queue.Queue[message.Message], prompt message.Message) (message.Message, error)
	HandleResponse(userID, traceID string, reply message.Message) error
}

// BaseClient rendezvous-matches AskHuman and HandleResponse calls by the
// key "userID:traceID". Each key gets a fresh one-shot channel that is
// deleted the moment its reply is delivered, so AskHuman never waits on
// a response meant for a different call.
//
// A second HandleResponse for a key already consumed (or never asked)
// finds no pending channel and is logged and discarded rather than
// erroring, so a duplicate or late webhook delivery cannot crash the
// runtime or get delivered to the wrong caller.
type BaseClient struct {
	mu      sync.Mutex
	pending map[string]chan message.Message
}

// NewBaseClient constructs an empty BaseClient.
func NewBaseClient() *BaseClient {
	return &BaseClient{pending: make(map[string]chan message.Message)}
}

func rendezvousKey(userID, traceID string) string {
	return userID + ":" + traceID
}

// AskHuman publishes prompt onto out, then blocks until a reply arrives
// via HandleResponse for the same (userID, traceID), or ctx is done.
func (c *BaseClient) AskHuman(ctx context.Context, userID, traceID string, out queue.Queue[message.Message], prompt message.Message) (message.Message, error) {
	key := rendezvousKey(userID, traceID)

	reply := make(chan message.Message, 1)
	c.mu.Lock()
	c.pending[key] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	if err := out.Put(ctx, prompt); err != nil {
		var zero message.Message
		return zero, fmt.Errorf("human: publish prompt: %w", err)
	}

	select {
	case m := <-reply:
		return m, nil
	case <-ctx.Done():
		var zero message.Message
		return zero, ctx.Err()
	}
}

// HandleResponse delivers reply to the pending AskHuman call for
// (userID, traceID), if any. A reply with no matching pending call is
// logged and discarded.
func (c *BaseClient) HandleResponse(userID, traceID string, reply message.Message) error {
	key := rendezvousKey(userID, traceID)

	c.mu.Lock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		slog.Warn("human: reply with no pending ask, discarding", "user_id", userID, "trace_id", traceID)
		return nil
	}
	ch <- reply
	return nil
}

var _ Client = (*BaseClient)(nil)
