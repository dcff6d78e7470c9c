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

package memory

import (
	"context"
	"sync"

	"github.com/kadirpekel/orin/pkg/message"
)

// WorkingMemoryStrategy decides which messages from a task's transcript
// go on the next completion call. AddMessage appends a turn as it is
// produced; Messages returns the view a stage should send.
type WorkingMemoryStrategy interface {
	AddMessage(ctx context.Context, sessionID string, msg message.Message) error
	Messages(ctx context.Context, sessionID string) ([]message.Message, error)
	Clear(ctx context.Context, sessionID string) error
}

// NilWorkingMemory is a WorkingMemoryStrategy that keeps nothing: every
// AddMessage is dropped and Messages always returns empty. Useful for
// stateless single-turn stages that build their own prompt.
type NilWorkingMemory struct{}

func (NilWorkingMemory) AddMessage(context.Context, string, message.Message) error { return nil }
func (NilWorkingMemory) Messages(context.Context, string) ([]message.Message, error) {
	return nil, nil
}
func (NilWorkingMemory) Clear(context.Context, string) error { return nil }

var _ WorkingMemoryStrategy = NilWorkingMemory{}

// DefaultWindowSize is the message count BufferWindowStrategy keeps per
// session when none is configured.
const DefaultWindowSize = 20

// BufferWindowStrategy keeps the last WindowSize messages per session,
// dropping the oldest once the window fills. It never drops a leading
// system message: if message zero is RoleSystem it stays pinned while
// the remaining window slides.
type BufferWindowStrategy struct {
	mu         sync.Mutex
	windowSize int
	sessions   map[string][]message.Message
}

// NewBufferWindowStrategy builds a BufferWindowStrategy with the given
// window size, defaulting to DefaultWindowSize when size <= 0.
func NewBufferWindowStrategy(size int) *BufferWindowStrategy {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &BufferWindowStrategy{
		windowSize: size,
		sessions:   make(map[string][]message.Message),
	}
}

func (s *BufferWindowStrategy) AddMessage(_ context.Context, sessionID string, msg message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID], msg)
	s.sessions[sessionID] = s.trim(history)
	return nil
}

func (s *BufferWindowStrategy) trim(history []message.Message) []message.Message {
	if len(history) <= s.windowSize {
		return history
	}

	pinned := 0
	if len(history) > 0 && history[0].Role == message.RoleSystem {
		pinned = 1
	}

	overflow := len(history) - s.windowSize
	if overflow >= len(history)-pinned {
		return history[:pinned]
	}

	trimmed := make([]message.Message, 0, s.windowSize)
	trimmed = append(trimmed, history[:pinned]...)
	trimmed = append(trimmed, history[pinned+overflow:]...)
	return trimmed
}

func (s *BufferWindowStrategy) Messages(_ context.Context, sessionID string) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.sessions[sessionID]
	out := make([]message.Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *BufferWindowStrategy) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

var _ WorkingMemoryStrategy = (*BufferWindowStrategy)(nil)
