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

package config

import (
	"fmt"
	"os"

	"github.com/kadirpekel/orin/pkg/llm"
)

// Provider identifies which completion serializer a stage talks through.
// orin only ships the two the workflow LLM clients know how to build a
// request for; ToCompletionConfig doesn't need a provider field itself
// since llm.CompletionConfig is already provider-agnostic, but the
// loader needs to know which of llm.BuildOpenAIRequest /
// llm.BuildAnthropicRequest to route a stage's Service through.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// StageConfig configures one workflow stage's LLM call (Reasoning,
// Reflecting, Orchestrating, ...). One Config.Agents[name].Stages entry
// per stage the agent's workflow actually uses.
type StageConfig struct {
	// Provider selects which request serializer builds this stage's
	// completion call.
	Provider Provider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=LLM provider,enum=anthropic,enum=openai,default=anthropic"`

	// Model name (e.g., "claude-sonnet-4-20250514", "gpt-4o").
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for API endpoint"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=Sampling temperature,minimum=0,maximum=2,default=0.7"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate,minimum=1,default=4096"`

	// AllowThinking enables the stage's assistant turns to carry a
	// Thinking block (Claude extended thinking).
	AllowThinking bool `yaml:"allow_thinking,omitempty" json:"allow_thinking,omitempty" jsonschema:"title=Allow Thinking,description=Allow extended thinking on this stage"`
}

// SetDefaults applies default values.
func (c *StageConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectProviderFromEnv()
	}

	if c.Model == "" {
		switch c.Provider {
		case ProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case ProviderOpenAI:
			c.Model = "gpt-4o"
		}
	}

	if c.APIKey == "" {
		c.APIKey = getAPIKeyFromEnv(c.Provider)
	}

	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}

	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
}

// Validate checks the stage configuration.
func (c *StageConfig) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid provider %q (valid: anthropic, openai)", c.Provider)
	}

	if c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %q", c.Provider)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	return nil
}

// ToCompletionConfig projects a StageConfig into the provider-agnostic
// shape pkg/workflow's ActionFuncs complete against. Tools are left for
// the caller to fill in (availableTools in pkg/workflow derives them
// from the workflow's registered tool set and the task's tags).
func (c *StageConfig) ToCompletionConfig() llm.CompletionConfig {
	temp := 0.7
	if c.Temperature != nil {
		temp = *c.Temperature
	}
	return llm.CompletionConfig{
		Model:         c.Model,
		BaseURL:       c.BaseURL,
		APIKey:        c.APIKey,
		MaxTokens:     c.MaxTokens,
		Temperature:   temp,
		AllowThinking: c.AllowThinking,
	}
}

// detectProviderFromEnv detects provider based on available API keys.
func detectProviderFromEnv() Provider {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return ProviderAnthropic
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	return ProviderAnthropic
}

// getAPIKeyFromEnv gets the API key for a provider from environment.
func getAPIKeyFromEnv(provider Provider) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}
