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

import (
	"fmt"

	"github.com/kadirpekel/orin/pkg/httpclient"
)

// NewService builds the concrete Service for a named provider. provider
// matches the lowercase string a stage's config.Provider carries
// ("anthropic" or "openai"); client may be nil to take httpclient
// defaults tuned for that provider's rate-limit headers.
func NewService(provider string, client *httpclient.Client) (Service, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicService(client), nil
	case "openai":
		return NewOpenAIService(client), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
