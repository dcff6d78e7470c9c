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
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orin/pkg/message"
)

// hashEmbeddingFunc is a deterministic, dependency-free stand-in for a
// real embedding model: each of a small fixed vocabulary gets its own
// axis, so texts sharing words score more similar than texts that
// don't. Good enough to exercise VectorMemoryStrategy's wiring without
// a network call.
func hashEmbeddingFunc() chromem.EmbeddingFunc {
	vocab := []string{"paris", "capital", "france", "go", "concurrency", "channel", "unrelated"}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, len(vocab))
		lower := strings.ToLower(text)
		for i, word := range vocab {
			if strings.Contains(lower, word) {
				vec[i] = 1
			}
		}
		return vec, nil
	}
}

func TestVectorMemoryStrategyStoreAndRecall(t *testing.T) {
	ctx := context.Background()
	strategy, err := NewVectorMemoryStrategy(VectorMemoryConfig{
		Collection:    "test",
		EmbeddingFunc: hashEmbeddingFunc(),
	})
	require.NoError(t, err)

	require.NoError(t, strategy.Store(ctx, "s1", message.NewText(message.RoleUser, "the capital of france is paris")))
	require.NoError(t, strategy.Store(ctx, "s1", message.NewText(message.RoleAssistant, "go channels coordinate concurrency")))

	results, err := strategy.Recall(ctx, "s1", "what is the capital of france", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Message.Text(), "paris")
}

func TestVectorMemoryStrategyRecallIsolatesBySession(t *testing.T) {
	ctx := context.Background()
	strategy, err := NewVectorMemoryStrategy(VectorMemoryConfig{
		Collection:    "test",
		EmbeddingFunc: hashEmbeddingFunc(),
	})
	require.NoError(t, err)

	require.NoError(t, strategy.Store(ctx, "s1", message.NewText(message.RoleUser, "paris is the capital of france")))
	require.NoError(t, strategy.Store(ctx, "s2", message.NewText(message.RoleUser, "paris is the capital of france")))

	require.NoError(t, strategy.Forget(ctx, "s2"))

	results, err := strategy.Recall(ctx, "s2", "capital of france", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = strategy.Recall(ctx, "s1", "capital of france", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestNewVectorMemoryStrategyRequiresEmbeddingFunc(t *testing.T) {
	_, err := NewVectorMemoryStrategy(VectorMemoryConfig{Collection: "test"})
	require.Error(t, err)
}
