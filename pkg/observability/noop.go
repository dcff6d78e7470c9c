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

package telemetry

import (
	"net/http"
	"time"
)

// NoopManager returns a Manager with tracing and metrics both disabled.
// Use this when telemetry is completely turned off; every Manager method
// already nil-checks its tracer/metrics fields, so callers don't need
// their own no-op implementations of Tracer or Metrics.
func NoopManager() *Manager {
	return &Manager{}
}

// NoopMetrics is a Recorder implementation that discards everything,
// for callers that want a non-nil Recorder without a live Manager.
type NoopMetrics struct{}

func (NoopMetrics) RecordAgentCall(_, _ string, _ time.Duration) {}
func (NoopMetrics) RecordAgentError(_, _, _ string)               {}
func (NoopMetrics) IncAgentActiveRuns(_ string)                   {}
func (NoopMetrics) DecAgentActiveRuns(_ string)                   {}

func (NoopMetrics) RecordLLMCall(_, _ string, _ time.Duration) {}
func (NoopMetrics) RecordLLMTokens(_, _ string, _, _ int)      {}
func (NoopMetrics) RecordLLMError(_, _, _ string)              {}

func (NoopMetrics) RecordToolCall(_ string, _ time.Duration) {}
func (NoopMetrics) RecordToolError(_, _ string)              {}

func (NoopMetrics) RecordMemorySearch(_ string, _ time.Duration) {}
func (NoopMetrics) RecordMemoryIndexed(_ string, _ int)          {}

func (NoopMetrics) RecordSessionCreated(_ string)     {}
func (NoopMetrics) SetSessionsActive(_ string, _ int) {}
func (NoopMetrics) RecordSessionEvent(_, _ string)    {}

func (NoopMetrics) RecordHTTPRequest(_, _ string, _ int, _ time.Duration, _, _ int64) {}

func (NoopMetrics) RecordRAGDocIndexed(_ string, _ time.Duration)    {}
func (NoopMetrics) RecordRAGDocSkipped(_ string)                     {}
func (NoopMetrics) RecordRAGDocError(_ string)                       {}
func (NoopMetrics) RecordRAGSearch(_ string, _ time.Duration, _ int) {}

// Handler returns a handler that reports 503, matching a live Metrics
// instance's Handler() shape when no registry backs it.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

// Recorder is the metrics surface Manager.Metrics() and NoopMetrics both
// satisfy, letting callers depend on an interface instead of *Metrics
// directly when they want a testable seam.
type Recorder interface {
	RecordAgentCall(agentName, agentType string, duration time.Duration)
	RecordAgentError(agentName, agentType, errorType string)
	IncAgentActiveRuns(agentName string)
	DecAgentActiveRuns(agentName string)

	RecordLLMCall(model, provider string, duration time.Duration)
	RecordLLMTokens(model, provider string, inputTokens, outputTokens int)
	RecordLLMError(model, provider, errorType string)

	RecordToolCall(toolName string, duration time.Duration)
	RecordToolError(toolName, errorType string)

	RecordMemorySearch(indexType string, duration time.Duration)
	RecordMemoryIndexed(indexType string, count int)

	RecordSessionCreated(appName string)
	SetSessionsActive(appName string, count int)
	RecordSessionEvent(appName, eventType string)

	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64)

	RecordRAGDocIndexed(storeName string, duration time.Duration)
	RecordRAGDocSkipped(storeName string)
	RecordRAGDocError(storeName string)
	RecordRAGSearch(storeName string, duration time.Duration, resultCount int)
}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
