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
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/kadirpekel/orin/pkg/message"
)

// Recalled is one long-term memory hit returned by Recall.
type Recalled struct {
	SessionID string
	Message   message.Message
	Score     float32
}

// LongTermMemoryStrategy stores a session's messages and recalls the
// ones most similar to a query.
type LongTermMemoryStrategy interface {
	Store(ctx context.Context, sessionID string, msg message.Message) error
	Recall(ctx context.Context, sessionID string, query string, limit int) ([]Recalled, error)
	Forget(ctx context.Context, sessionID string) error
}

// VectorMemoryStrategy implements LongTermMemoryStrategy over a single
// chromem-go collection, one document per stored message. embeddingFunc
// is supplied by the caller (e.g. chromem.NewEmbeddingFuncOpenAI, or any
// other chromem-go embedding function) so this package never has to pick
// an embedding provider itself.
type VectorMemoryStrategy struct {
	mu            sync.Mutex
	db            *chromem.DB
	collection    string
	embeddingFunc chromem.EmbeddingFunc
	persistPath   string
	compress      bool
	col           *chromem.Collection
}

// VectorMemoryConfig configures a VectorMemoryStrategy's backing store.
type VectorMemoryConfig struct {
	// Collection names the chromem-go collection all sessions share;
	// session isolation comes from a "session_id" metadata filter, not
	// a separate collection per session.
	Collection string
	// PersistPath, if non-empty, makes the store durable across
	// restarts via chromem-go's gob export/import.
	PersistPath string
	Compress    bool
	// EmbeddingFunc turns stored text and recall queries into vectors.
	EmbeddingFunc chromem.EmbeddingFunc
}

// NewVectorMemoryStrategy opens (or creates) cfg.PersistPath's database,
// or an in-memory one when PersistPath is empty.
func NewVectorMemoryStrategy(cfg VectorMemoryConfig) (*VectorMemoryStrategy, error) {
	if cfg.EmbeddingFunc == nil {
		return nil, fmt.Errorf("memory: VectorMemoryConfig.EmbeddingFunc is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "orin_session_memory"
	}

	var db *chromem.DB
	if cfg.PersistPath != "" {
		loaded, err := chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("memory: failed to open persistent vector store: %w", err)
		}
		db = loaded
	} else {
		db = chromem.NewDB()
	}

	return &VectorMemoryStrategy{
		db:            db,
		collection:    cfg.Collection,
		embeddingFunc: cfg.EmbeddingFunc,
		persistPath:   cfg.PersistPath,
		compress:      cfg.Compress,
	}, nil
}

func (v *VectorMemoryStrategy) getCollection() (*chromem.Collection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.col != nil {
		return v.col, nil
	}
	col, err := v.db.GetOrCreateCollection(v.collection, nil, v.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("memory: failed to open collection %q: %w", v.collection, err)
	}
	v.col = col
	return col, nil
}

func (v *VectorMemoryStrategy) Store(ctx context.Context, sessionID string, msg message.Message) error {
	col, err := v.getCollection()
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:      sessionID + "-" + uuid.NewString(),
		Content: msg.Text(),
		Metadata: map[string]string{
			"session_id": sessionID,
			"role":       string(msg.Role),
		},
	}
	if doc.Content == "" {
		return nil
	}

	if err := col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("memory: failed to store message: %w", err)
	}
	return v.persist()
}

func (v *VectorMemoryStrategy) Recall(ctx context.Context, sessionID string, query string, limit int) ([]Recalled, error) {
	if limit <= 0 {
		limit = 5
	}

	col, err := v.getCollection()
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.Query(ctx, query, limit, map[string]string{"session_id": sessionID}, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: recall query failed: %w", err)
	}

	out := make([]Recalled, 0, len(results))
	for _, r := range results {
		role := message.Role(r.Metadata["role"])
		out = append(out, Recalled{
			SessionID: sessionID,
			Message:   message.NewText(role, r.Content),
			Score:     r.Similarity,
		})
	}
	return out, nil
}

func (v *VectorMemoryStrategy) Forget(ctx context.Context, sessionID string) error {
	col, err := v.getCollection()
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, map[string]string{"session_id": sessionID}, nil); err != nil {
		return fmt.Errorf("memory: failed to forget session %s: %w", sessionID, err)
	}
	return v.persist()
}

func (v *VectorMemoryStrategy) persist() error {
	if v.persistPath == "" {
		return nil
	}
	if err := v.db.Export(v.persistPath, v.compress, ""); err != nil {
		return fmt.Errorf("memory: failed to persist vector store: %w", err)
	}
	return nil
}

var _ LongTermMemoryStrategy = (*VectorMemoryStrategy)(nil)
