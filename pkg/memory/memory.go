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
	"fmt"

	"github.com/kadirpekel/orin/pkg/message"
)

// Service is the single handle an Agent holds for everything memory
// related: it fans a new message out to working memory (for the next
// completion call), the session store (for durable replay), and,
// when configured, long-term memory (for cross-session recall).
type Service struct {
	working  WorkingMemoryStrategy
	store    SessionStore
	longTerm LongTermMemoryStrategy
	cfg      LongTermConfig
}

// NewService builds a Service. store may be nil, in which case messages
// are kept only in working memory and are lost on restart. longTerm may
// be nil, in which case AutoRecall/Store are no-ops regardless of cfg.
func NewService(working WorkingMemoryStrategy, store SessionStore, longTerm LongTermMemoryStrategy, cfg LongTermConfig) *Service {
	if working == nil {
		working = NilWorkingMemory{}
	}
	cfg.SetDefaults()
	return &Service{working: working, store: store, longTerm: longTerm, cfg: cfg}
}

// Remember records msg against sessionID: always into working memory,
// into the session store if one is configured, and into long-term
// memory if enabled and msg passes the configured StorageScope.
func (s *Service) Remember(ctx context.Context, sessionID string, msg message.Message) error {
	if err := s.working.AddMessage(ctx, sessionID, msg); err != nil {
		return fmt.Errorf("memory: working memory append failed: %w", err)
	}

	if s.store != nil {
		if err := s.store.AppendMessage(ctx, sessionID, msg); err != nil {
			return fmt.Errorf("memory: session store append failed: %w", err)
		}
	}

	if s.longTerm != nil && s.cfg.Enabled && s.inScope(msg) {
		if err := s.longTerm.Store(ctx, sessionID, msg); err != nil {
			return fmt.Errorf("memory: long-term store failed: %w", err)
		}
	}

	return nil
}

func (s *Service) inScope(msg message.Message) bool {
	switch s.cfg.StorageScope {
	case StorageScopeConversational:
		return msg.Role == message.RoleUser || msg.Role == message.RoleAssistant
	case StorageScopeSummariesOnly:
		return msg.Role == message.RoleSystem
	default:
		return true
	}
}

// Context returns the messages a stage should complete against: the
// current working-memory window, optionally prefixed with long-term
// recalls relevant to query when AutoRecall is enabled.
func (s *Service) Context(ctx context.Context, sessionID string, query string) ([]message.Message, error) {
	working, err := s.working.Messages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("memory: working memory read failed: %w", err)
	}

	if s.longTerm == nil || !s.cfg.Enabled || !s.cfg.AutoRecall || query == "" {
		return working, nil
	}

	recalled, err := s.longTerm.Recall(ctx, sessionID, query, s.cfg.RecallLimit)
	if err != nil {
		return nil, fmt.Errorf("memory: long-term recall failed: %w", err)
	}
	if len(recalled) == 0 {
		return working, nil
	}

	out := make([]message.Message, 0, len(recalled)+len(working))
	for _, r := range recalled {
		out = append(out, message.NewText(message.RoleSystem, "Recalled from an earlier session: "+r.Message.Text()))
	}
	out = append(out, working...)
	return out, nil
}

// Forget clears sessionID from working memory, the session store, and
// long-term memory.
func (s *Service) Forget(ctx context.Context, sessionID string) error {
	if err := s.working.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("memory: working memory clear failed: %w", err)
	}
	if s.store != nil {
		if err := s.store.DeleteSession(ctx, sessionID); err != nil {
			return fmt.Errorf("memory: session store delete failed: %w", err)
		}
	}
	if s.longTerm != nil {
		if err := s.longTerm.Forget(ctx, sessionID); err != nil {
			return fmt.Errorf("memory: long-term forget failed: %w", err)
		}
	}
	return nil
}

// History replays sessionID's durable transcript from the session
// store. Returns nil, nil when no store is configured.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]message.Message, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Messages(ctx, sessionID, limit)
}
