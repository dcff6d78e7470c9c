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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orin/pkg/message"
)

func TestServiceRememberFansOutToWorkingAndStore(t *testing.T) {
	ctx := context.Background()
	working := NewBufferWindowStrategy(10)
	store := NewInMemorySessionStore()
	svc := NewService(working, store, nil, LongTermConfig{})

	require.NoError(t, svc.Remember(ctx, "s1", message.NewText(message.RoleUser, "hello")))

	ctxMsgs, err := svc.Context(ctx, "s1", "")
	require.NoError(t, err)
	require.Len(t, ctxMsgs, 1)

	history, err := svc.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestServiceContextPrependsLongTermRecallWhenAutoRecallEnabled(t *testing.T) {
	ctx := context.Background()
	working := NewBufferWindowStrategy(10)
	longTerm, err := NewVectorMemoryStrategy(VectorMemoryConfig{
		Collection:    "service-test",
		EmbeddingFunc: hashEmbeddingFunc(),
	})
	require.NoError(t, err)

	svc := NewService(working, nil, longTerm, LongTermConfig{
		Enabled:     true,
		AutoRecall:  true,
		RecallLimit: 3,
	})

	require.NoError(t, svc.Remember(ctx, "s1", message.NewText(message.RoleUser, "paris is the capital of france")))
	require.NoError(t, svc.Forget(ctx, "s1"))
	require.NoError(t, svc.Remember(ctx, "s1", message.NewText(message.RoleUser, "paris is the capital of france")))

	out, err := svc.Context(ctx, "s1", "what is the capital of france")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Contains(t, out[0].Text(), "Recalled from an earlier session")
}

func TestServiceForgetClearsEverything(t *testing.T) {
	ctx := context.Background()
	working := NewBufferWindowStrategy(10)
	store := NewInMemorySessionStore()
	svc := NewService(working, store, nil, LongTermConfig{})

	require.NoError(t, svc.Remember(ctx, "s1", message.NewText(message.RoleUser, "hello")))
	require.NoError(t, svc.Forget(ctx, "s1"))

	ctxMsgs, err := svc.Context(ctx, "s1", "")
	require.NoError(t, err)
	assert.Empty(t, ctxMsgs)

	history, err := svc.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestServiceRespectsConversationalScope(t *testing.T) {
	ctx := context.Background()
	working := NewBufferWindowStrategy(10)
	longTerm, err := NewVectorMemoryStrategy(VectorMemoryConfig{
		Collection:    "scope-test",
		EmbeddingFunc: hashEmbeddingFunc(),
	})
	require.NoError(t, err)

	svc := NewService(working, nil, longTerm, LongTermConfig{
		Enabled:      true,
		StorageScope: StorageScopeConversational,
	})

	require.NoError(t, svc.Remember(ctx, "s1", message.NewText(message.RoleUser, "paris is the capital of france")))
	require.NoError(t, svc.Remember(ctx, "s1", message.NewText(message.RoleSystem, "internal scratch note about paris")))

	recalled, err := longTerm.Recall(ctx, "s1", "capital of france", 5)
	require.NoError(t, err)
	for _, r := range recalled {
		assert.NotEqual(t, message.RoleSystem, r.Message.Role)
	}
}
