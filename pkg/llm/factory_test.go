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

package llm

import "testing"

func TestNewServiceDispatchesByProvider(t *testing.T) {
	if svc, err := NewService("anthropic", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if _, ok := svc.(*AnthropicService); !ok {
		t.Errorf("expected *AnthropicService, got %T", svc)
	}

	if svc, err := NewService("openai", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if _, ok := svc.(*OpenAIService); !ok {
		t.Errorf("expected *OpenAIService, got %T", svc)
	}

	if _, err := NewService("gemini", nil); err == nil {
		t.Error("expected an error for an unknown provider")
	}
}
