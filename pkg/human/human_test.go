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

package human

import (
	"context"
	"testing"
	"time"

	"github.com/kadirpekel/orin/pkg/message"
	"github.com/kadirpekel/orin/pkg/queue"
)

func TestAskHumanPublishesAndReceivesReply(t *testing.T) {
	c := NewBaseClient()
	out := queue.NewUnbounded[message.Message]()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan message.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		m, err := c.AskHuman(ctx, "user-1", "trace-1", out, message.NewText(message.RoleAssistant, "approve?"))
		if err != nil {
			errCh <- err
			return
		}
		done <- m
	}()

	published, err := out.Get(ctx)
	if err != nil {
		t.Fatalf("get published prompt: %v", err)
	}
	if published.Text() != "approve?" {
		t.Fatalf("unexpected published prompt: %q", published.Text())
	}

	if err := c.HandleResponse("user-1", "trace-1", message.NewText(message.RoleUser, "yes")); err != nil {
		t.Fatalf("handle response: %v", err)
	}

	select {
	case m := <-done:
		if m.Text() != "yes" {
			t.Fatalf("expected reply 'yes', got %q", m.Text())
		}
	case err := <-errCh:
		t.Fatalf("ask human errored: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ask human to resolve")
	}
}

func TestHandleResponseWithNoPendingAskIsDiscarded(t *testing.T) {
	c := NewBaseClient()
	if err := c.HandleResponse("nobody", "asked", message.NewText(message.RoleUser, "too late")); err != nil {
		t.Fatalf("expected discard, not error, got %v", err)
	}
}

func TestSecondReplyAfterResumeIsDropped(t *testing.T) {
	c := NewBaseClient()
	out := queue.NewUnbounded[message.Message]()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		_, _ = c.AskHuman(ctx, "u", "t", out, message.NewText(message.RoleAssistant, "?"))
	}()
	_, _ = out.Get(ctx)

	if err := c.HandleResponse("u", "t", message.NewText(message.RoleUser, "first")); err != nil {
		t.Fatalf("first reply: %v", err)
	}
	// The rendezvous channel for "u:t" has already been drained and
	// deleted; a second reply for the same key must be dropped, not
	// error and not be delivered to a new caller.
	if err := c.HandleResponse("u", "t", message.NewText(message.RoleUser, "second")); err != nil {
		t.Fatalf("second reply should be discarded silently, got error: %v", err)
	}
}

func TestAskHumanCtxCancellation(t *testing.T) {
	c := NewBaseClient()
	out := queue.NewUnbounded[message.Message]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.AskHuman(ctx, "u", "t", out, message.NewText(message.RoleAssistant, "?"))
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}
