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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageConfigSetDefaultsDetectsProviderFromEnv(t *testing.T) {
	os.Unsetenv("ANTHROPIC_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")

	cfg := &StageConfig{}
	cfg.SetDefaults()

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "sk-test-key", cfg.APIKey)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, 0.7, *cfg.Temperature)
	assert.Equal(t, 4096, cfg.MaxTokens)
}

func TestStageConfigSetDefaultsLeavesExplicitValues(t *testing.T) {
	temp := 0.2
	cfg := &StageConfig{
		Provider:    ProviderAnthropic,
		Model:       "claude-opus-4",
		APIKey:      "explicit-key",
		Temperature: &temp,
		MaxTokens:   100,
	}
	cfg.SetDefaults()

	assert.Equal(t, "claude-opus-4", cfg.Model)
	assert.Equal(t, "explicit-key", cfg.APIKey)
	assert.Equal(t, 0.2, *cfg.Temperature)
	assert.Equal(t, 100, cfg.MaxTokens)
}

func TestStageConfigValidateRejectsUnknownProvider(t *testing.T) {
	cfg := &StageConfig{Provider: "gemini", APIKey: "x"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid provider")
}

func TestStageConfigValidateRequiresAPIKey(t *testing.T) {
	cfg := &StageConfig{Provider: ProviderAnthropic}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}

func TestStageConfigValidateRejectsOutOfRangeTemperature(t *testing.T) {
	temp := 3.5
	cfg := &StageConfig{Provider: ProviderAnthropic, APIKey: "x", Temperature: &temp}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature")
}

func TestStageConfigToCompletionConfig(t *testing.T) {
	temp := 0.4
	cfg := &StageConfig{
		Model:         "claude-sonnet-4-20250514",
		BaseURL:       "https://api.example.com",
		APIKey:        "key",
		MaxTokens:     2048,
		Temperature:   &temp,
		AllowThinking: true,
	}
	out := cfg.ToCompletionConfig()

	assert.Equal(t, "claude-sonnet-4-20250514", out.Model)
	assert.Equal(t, "https://api.example.com", out.BaseURL)
	assert.Equal(t, "key", out.APIKey)
	assert.Equal(t, 2048, out.MaxTokens)
	assert.Equal(t, 0.4, out.Temperature)
	assert.True(t, out.AllowThinking)
}
