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

func TestBufferWindowStrategyKeepsLatestMessages(t *testing.T) {
	ctx := context.Background()
	s := NewBufferWindowStrategy(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddMessage(ctx, "s1", message.NewText(message.RoleUser, string(rune('a'+i)))))
	}

	msgs, err := s.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "c", msgs[0].Text())
	assert.Equal(t, "e", msgs[2].Text())
}

func TestBufferWindowStrategyPinsLeadingSystemMessage(t *testing.T) {
	ctx := context.Background()
	s := NewBufferWindowStrategy(2)

	require.NoError(t, s.AddMessage(ctx, "s1", message.NewText(message.RoleSystem, "system prompt")))
	for i := 0; i < 4; i++ {
		require.NoError(t, s.AddMessage(ctx, "s1", message.NewText(message.RoleUser, string(rune('a'+i)))))
	}

	msgs, err := s.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, message.RoleSystem, msgs[0].Role)
	assert.Equal(t, "system prompt", msgs[0].Text())
	assert.Equal(t, "d", msgs[1].Text())
}

func TestBufferWindowStrategyClear(t *testing.T) {
	ctx := context.Background()
	s := NewBufferWindowStrategy(5)
	require.NoError(t, s.AddMessage(ctx, "s1", message.NewText(message.RoleUser, "hi")))

	require.NoError(t, s.Clear(ctx, "s1"))

	msgs, err := s.Messages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBufferWindowStrategyIsolatesSessions(t *testing.T) {
	ctx := context.Background()
	s := NewBufferWindowStrategy(5)
	require.NoError(t, s.AddMessage(ctx, "s1", message.NewText(message.RoleUser, "one")))
	require.NoError(t, s.AddMessage(ctx, "s2", message.NewText(message.RoleUser, "two")))

	m1, err := s.Messages(ctx, "s1")
	require.NoError(t, err)
	m2, err := s.Messages(ctx, "s2")
	require.NoError(t, err)

	require.Len(t, m1, 1)
	require.Len(t, m2, 1)
	assert.Equal(t, "one", m1[0].Text())
	assert.Equal(t, "two", m2[0].Text())
}

func TestNilWorkingMemoryDropsEverything(t *testing.T) {
	ctx := context.Background()
	var s NilWorkingMemory
	require.NoError(t, s.AddMessage(ctx, "s1", message.NewText(message.RoleUser, "hi")))

	msgs, err := s.Messages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
