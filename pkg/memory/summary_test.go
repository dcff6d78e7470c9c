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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/orin/pkg/message"
)

type stubSummarizer struct {
	calls int
}

func (s *stubSummarizer) Summarize(_ context.Context, history []message.Message) (string, error) {
	s.calls++
	return fmt.Sprintf("condensed %d messages", len(history)), nil
}

func TestSummaryBufferStrategyKeepsRecentWithoutSummarizing(t *testing.T) {
	ctx := context.Background()
	stub := &stubSummarizer{}
	s := NewSummaryBufferStrategy(stub)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AddMessage(ctx, "s1", message.NewText(message.RoleUser, "hi")))
	}

	assert.Equal(t, 0, stub.calls)
	msgs, err := s.Messages(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestSummaryBufferStrategyFoldsOlderMessagesPastThreshold(t *testing.T) {
	ctx := context.Background()
	stub := &stubSummarizer{}
	s := NewSummaryBufferStrategy(
		stub,
		WithSummaryBudget(50),
		WithSummaryThresholds(0.5, 0.3),
	)
	s.minBefore = 5
	s.minKeep = 2

	longText := strings.Repeat("word ", 20)
	for i := 0; i < 6; i++ {
		require.NoError(t, s.AddMessage(ctx, "s1", message.NewText(message.RoleUser, longText)))
	}

	assert.Greater(t, stub.calls, 0)

	msgs, err := s.Messages(ctx, "s1")
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0].Text(), SummaryPrefix)
}

func TestSummaryBufferStrategyClear(t *testing.T) {
	ctx := context.Background()
	s := NewSummaryBufferStrategy(&stubSummarizer{})
	require.NoError(t, s.AddMessage(ctx, "s1", message.NewText(message.RoleUser, "hi")))

	require.NoError(t, s.Clear(ctx, "s1"))

	msgs, err := s.Messages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
