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

func TestInMemorySessionStoreAppendAndMessages(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore()

	require.NoError(t, store.AppendMessage(ctx, "s1", message.NewText(message.RoleUser, "hello")))
	require.NoError(t, store.AppendMessage(ctx, "s1", message.NewText(message.RoleAssistant, "hi there")))

	msgs, err := store.Messages(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text())

	meta, err := store.Metadata(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, meta.MessageCount)
	assert.False(t, meta.CreatedAt.IsZero())
}

func TestInMemorySessionStoreMessagesRespectsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendMessage(ctx, "s1", message.NewText(message.RoleUser, "m")))
	}

	msgs, err := store.Messages(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestInMemorySessionStoreDeleteSession(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore()
	require.NoError(t, store.AppendMessage(ctx, "s1", message.NewText(message.RoleUser, "hello")))

	require.NoError(t, store.DeleteSession(ctx, "s1"))

	msgs, err := store.Messages(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
