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
	"time"

	"github.com/kadirpekel/orin/pkg/message"
)

// SessionMetadata tracks a session's bookkeeping independent of its
// message transcript.
type SessionMetadata struct {
	SessionID    string
	CreatedAt    time.Time
	LastActiveAt time.Time
	MessageCount int
}

// SessionStore persists a session's transcript so it survives process
// restarts. Agents call it directly for replay/audit; a
// WorkingMemoryStrategy is the in-process view a stage completes
// against and is not required to be backed by the same store.
type SessionStore interface {
	AppendMessage(ctx context.Context, sessionID string, msg message.Message) error
	Messages(ctx context.Context, sessionID string, limit int) ([]message.Message, error)
	Metadata(ctx context.Context, sessionID string) (SessionMetadata, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}

// InMemorySessionStore keeps every session's transcript in a map. Data
// does not survive process restart; use SQLSessionStore when it must.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]message.Message
	meta     map[string]SessionMetadata
}

// NewInMemorySessionStore builds an empty InMemorySessionStore.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string][]message.Message),
		meta:     make(map[string]SessionMetadata),
	}
}

func (s *InMemorySessionStore) AppendMessage(_ context.Context, sessionID string, msg message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = append(s.sessions[sessionID], msg)

	now := time.Now()
	m, ok := s.meta[sessionID]
	if !ok {
		m = SessionMetadata{SessionID: sessionID, CreatedAt: now}
	}
	m.LastActiveAt = now
	m.MessageCount = len(s.sessions[sessionID])
	s.meta[sessionID] = m
	return nil
}

func (s *InMemorySessionStore) Messages(_ context.Context, sessionID string, limit int) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[sessionID]
	if limit > 0 && limit < len(history) {
		history = history[len(history)-limit:]
	}
	out := make([]message.Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *InMemorySessionStore) Metadata(_ context.Context, sessionID string) (SessionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta[sessionID], nil
}

func (s *InMemorySessionStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.meta, sessionID)
	return nil
}

func (s *InMemorySessionStore) Close() error { return nil }

var _ SessionStore = (*InMemorySessionStore)(nil)
