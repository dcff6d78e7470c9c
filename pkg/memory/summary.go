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
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/orin/pkg/llm"
	"github.com/kadirpekel/orin/pkg/message"
)

const (
	// DefaultSummaryBudget is the token budget SummaryBufferStrategy
	// keeps the window under before it folds older turns into a
	// summary.
	DefaultSummaryBudget = 8000
	// DefaultSummaryThreshold is the fraction of budget that triggers
	// summarization.
	DefaultSummaryThreshold = 0.85
	// DefaultSummaryTarget is the default target fraction of budget. It
	// is stored on the strategy but not read when deciding how much to
	// fold: summarization always keeps the most recent minKeep messages.
	DefaultSummaryTarget = 0.7
	// DefaultMinMessagesBeforeSummary withholds summarization until a
	// session has accumulated at least this many messages, so a short
	// conversation is never prematurely condensed.
	DefaultMinMessagesBeforeSummary = 20
	// DefaultMinMessagesToKeep is the minimum number of the most
	// recent messages summarization always leaves untouched.
	DefaultMinMessagesToKeep = 10
	// SummaryPrefix marks a message produced by folding older turns,
	// so a later pass can tell a summary turn from a real one.
	SummaryPrefix = "Previous conversation summary: "
)

// Summarizer condenses a run of messages into a short summary message.
// LLMSummarizer is the production implementation; tests supply a stub.
type Summarizer interface {
	Summarize(ctx context.Context, history []message.Message) (string, error)
}

// LLMSummarizer asks an llm.Service to condense history into a short
// paragraph using cfg. Callers normally give it a cheap, fast model
// distinct from the one driving the task's own reasoning.
type LLMSummarizer struct {
	service llm.Service
	cfg     llm.CompletionConfig
}

// NewLLMSummarizer builds an LLMSummarizer against service, completing
// with cfg (Tools is ignored: summarization never calls tools).
func NewLLMSummarizer(service llm.Service, cfg llm.CompletionConfig) *LLMSummarizer {
	cfg.Tools = nil
	cfg.ToolChoice = llm.ToolChoice{None: true}
	return &LLMSummarizer{service: service, cfg: cfg}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, history []message.Message) (string, error) {
	var transcript strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Text())
	}

	prompt := []message.Message{
		message.NewText(message.RoleSystem, "Summarize the following conversation concisely, preserving decisions, facts, and open questions a later turn would need."),
		message.NewText(message.RoleUser, transcript.String()),
	}

	result, err := s.service.Complete(ctx, prompt, s.cfg)
	if err != nil {
		return "", fmt.Errorf("memory: summarize completion failed: %w", err)
	}
	return result.Text(), nil
}

var _ Summarizer = (*LLMSummarizer)(nil)

var (
	summaryEncodingOnce sync.Once
	summaryEncoding     *tiktoken.Tiktoken
	summaryEncodingErr  error
)

func summaryTokenEncoding() (*tiktoken.Tiktoken, error) {
	summaryEncodingOnce.Do(func() {
		summaryEncoding, summaryEncodingErr = tiktoken.GetEncoding("cl100k_base")
	})
	return summaryEncoding, summaryEncodingErr
}

func estimateMessageTokens(msg message.Message) int {
	enc, err := summaryTokenEncoding()
	if err != nil {
		return len([]rune(msg.Text())) / 4
	}
	return len(enc.Encode(msg.Text(), nil, nil))
}

// SummaryBufferStrategy is a WorkingMemoryStrategy that keeps the most
// recent messages verbatim and folds everything older into a single
// running summary once the session's estimated token count crosses
// Threshold*Budget. A fold keeps exactly the most recent minKeep
// messages; how far the token count drops is not measured against
// Target.
type SummaryBufferStrategy struct {
	mu sync.Mutex

	summarizer Summarizer
	budget     int
	threshold  float64
	target     float64
	minBefore  int
	minKeep    int

	sessions map[string]*summaryBufferState
}

type summaryBufferState struct {
	summary  string
	messages []message.Message
}

// SummaryBufferOption configures a SummaryBufferStrategy's thresholds.
type SummaryBufferOption func(*SummaryBufferStrategy)

// WithSummaryBudget overrides DefaultSummaryBudget.
func WithSummaryBudget(tokens int) SummaryBufferOption {
	return func(s *SummaryBufferStrategy) { s.budget = tokens }
}

// WithSummaryThresholds overrides the trigger/target fractions; only
// the trigger fraction affects when and how much is folded.
func WithSummaryThresholds(threshold, target float64) SummaryBufferOption {
	return func(s *SummaryBufferStrategy) {
		s.threshold = threshold
		s.target = target
	}
}

// NewSummaryBufferStrategy builds a SummaryBufferStrategy around
// summarizer, applying any given options over the package defaults.
func NewSummaryBufferStrategy(summarizer Summarizer, opts ...SummaryBufferOption) *SummaryBufferStrategy {
	s := &SummaryBufferStrategy{
		summarizer: summarizer,
		budget:     DefaultSummaryBudget,
		threshold:  DefaultSummaryThreshold,
		target:     DefaultSummaryTarget,
		minBefore:  DefaultMinMessagesBeforeSummary,
		minKeep:    DefaultMinMessagesToKeep,
		sessions:   make(map[string]*summaryBufferState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SummaryBufferStrategy) AddMessage(ctx context.Context, sessionID string, msg message.Message) error {
	s.mu.Lock()
	state, ok := s.sessions[sessionID]
	if !ok {
		state = &summaryBufferState{}
		s.sessions[sessionID] = state
	}
	state.messages = append(state.messages, msg)
	needsSummary := len(state.messages) >= s.minBefore && s.estimatedTokens(state) >= int(s.threshold*float64(s.budget))
	s.mu.Unlock()

	if needsSummary {
		return s.foldOldest(ctx, sessionID)
	}
	return nil
}

func (s *SummaryBufferStrategy) estimatedTokens(state *summaryBufferState) int {
	total := 0
	if state.summary != "" {
		total += len([]rune(state.summary)) / 4
	}
	for _, msg := range state.messages {
		total += estimateMessageTokens(msg)
	}
	return total
}

// foldOldest summarizes messages beyond the most recent minKeep, folding
// them (and any prior summary) into state.summary.
func (s *SummaryBufferStrategy) foldOldest(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	state, ok := s.sessions[sessionID]
	if !ok || len(state.messages) <= s.minKeep {
		s.mu.Unlock()
		return nil
	}

	cut := len(state.messages) - s.minKeep
	toFold := make([]message.Message, 0, cut+1)
	if state.summary != "" {
		toFold = append(toFold, message.NewText(message.RoleSystem, SummaryPrefix+state.summary))
	}
	toFold = append(toFold, state.messages[:cut]...)
	kept := append([]message.Message(nil), state.messages[cut:]...)
	s.mu.Unlock()

	summary, err := s.summarizer.Summarize(ctx, toFold)
	if err != nil {
		slog.Warn("memory: summarization failed, keeping full window", "session", sessionID, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok = s.sessions[sessionID]
	if !ok {
		return nil
	}
	state.summary = summary
	state.messages = kept
	return nil
}

func (s *SummaryBufferStrategy) Messages(_ context.Context, sessionID string) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	out := make([]message.Message, 0, len(state.messages)+1)
	if state.summary != "" {
		out = append(out, message.NewText(message.RoleSystem, SummaryPrefix+state.summary))
	}
	out = append(out, state.messages...)
	return out, nil
}

func (s *SummaryBufferStrategy) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

var _ WorkingMemoryStrategy = (*SummaryBufferStrategy)(nil)
