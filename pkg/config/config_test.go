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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSetDefaultsCreatesAssistantWhenEmpty(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "key")

	cfg := &Config{}
	cfg.SetDefaults()

	require.Contains(t, cfg.Agents, "assistant")
	assert.Equal(t, "react", cfg.Agents["assistant"].Type)
	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestConfigSetDefaultsAppliesToStages(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "key")

	cfg := &Config{
		Agents: map[string]*AgentConfig{
			"researcher": {
				Type: "orchestrating",
				Stages: map[string]*StageConfig{
					"orchestrating": {Provider: ProviderAnthropic},
				},
			},
		},
	}
	cfg.SetDefaults()

	stage := cfg.Agents["researcher"].Stages["orchestrating"]
	require.NotNil(t, stage)
	assert.Equal(t, "claude-sonnet-4-20250514", stage.Model)
	assert.Equal(t, "key", stage.APIKey)
}

func TestConfigValidateRejectsBadStage(t *testing.T) {
	cfg := &Config{
		Agents: map[string]*AgentConfig{
			"assistant": {
				Type: "react",
				Stages: map[string]*StageConfig{
					"reasoning": {Provider: "bogus"},
				},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistant")
}

func TestAgentConfigStageIsCaseInsensitive(t *testing.T) {
	agent := &AgentConfig{
		Stages: map[string]*StageConfig{
			"reasoning": {Model: "m"},
		},
	}

	stage, ok := agent.Stage("REASONING")
	require.True(t, ok)
	assert.Equal(t, "m", stage.Model)
}

func TestConfigGetAgentAndListAgents(t *testing.T) {
	cfg := &Config{
		Agents: map[string]*AgentConfig{
			"assistant": {Type: "react"},
			"planner":   {Type: "orchestrating"},
		},
	}

	agent, ok := cfg.GetAgent("planner")
	require.True(t, ok)
	assert.Equal(t, "orchestrating", agent.Type)

	_, ok = cfg.GetAgent("missing")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"assistant", "planner"}, cfg.ListAgents())
}
