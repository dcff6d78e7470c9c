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

package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	if c.maxRetries != 5 {
		t.Errorf("expected maxRetries=5, got %d", c.maxRetries)
	}
	if c.baseDelay != 2*time.Second {
		t.Errorf("expected baseDelay=2s, got %v", c.baseDelay)
	}
	if c.strategyFunc == nil {
		t.Error("expected strategyFunc to be set")
	}
}

func TestNewAppliesOptions(t *testing.T) {
	c := New(WithMaxRetries(1), WithBaseDelay(10*time.Millisecond))
	if c.maxRetries != 1 {
		t.Errorf("expected maxRetries=1, got %d", c.maxRetries)
	}
	if c.baseDelay != 10*time.Millisecond {
		t.Errorf("expected baseDelay=10ms, got %v", c.baseDelay)
	}
}

func TestDoRetriesOnServerErrorThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(WithMaxRetries(5), WithBaseDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("expected eventual success, got error: %v", err)
	}
	resp.Body.Close()
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoDoesNotRetryOnClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Do(req)
	if err == nil {
		t.Fatal("expected an error for a 400 response")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected the 400 response to be returned, got %v", resp)
	}
	resp.Body.Close()
	if attempts != 1 {
		t.Errorf("expected no retries for a 400, got %d attempts", attempts)
	}
}

func TestParseOpenAIHeadersReadsRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	info := ParseOpenAIHeaders(h)
	if info.RetryAfter != 7*time.Second {
		t.Errorf("expected 7s retry-after, got %v", info.RetryAfter)
	}
}

func TestParseAnthropicHeadersReadsRemaining(t *testing.T) {
	h := http.Header{}
	h.Set("anthropic-ratelimit-requests-remaining", "42")
	info := ParseAnthropicHeaders(h)
	if info.RequestsRemaining != 42 {
		t.Errorf("expected 42 remaining requests, got %d", info.RequestsRemaining)
	}
}
