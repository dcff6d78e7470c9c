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

// Package config loads and hot-reloads orin's runtime configuration:
// per-agent type and per-stage LLM settings, plus logging. Agents,
// their workflow wiring, and tool registration are assembled in code;
// config only supplies the knobs that vary per deployment.
//
// Example config:
//
//	version: "1"
//	name: my-assistant
//
//	agents:
//	  assistant:
//	    type: react
//	    stages:
//	      reasoning:
//	        provider: anthropic
//	        model: claude-sonnet-4-20250514
//	        api_key: ${ANTHROPIC_API_KEY}
//	      reflecting:
//	        provider: anthropic
//	        model: claude-sonnet-4-20250514
//	        api_key: ${ANTHROPIC_API_KEY}
//
//	logger:
//	  level: info
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure.
type Config struct {
	// Version of the config schema.
	Version string `yaml:"version,omitempty"`

	// Name of this configuration (for logging/display).
	Name string `yaml:"name,omitempty"`

	// Description of this configuration.
	Description string `yaml:"description,omitempty"`

	// Agents defines available agents by name.
	Agents map[string]*AgentConfig `yaml:"agents,omitempty"`

	// Logger configures logging behavior.
	Logger *LoggerConfig `yaml:"logger,omitempty"`
}

// AgentConfig configures one agent: which workflow template it forks
// (react, orchestrating, ...) and the per-stage LLM settings that
// template's stages complete against.
type AgentConfig struct {
	// Type names the workflow template this agent forks, e.g. "react"
	// or "orchestrating". Interpreted by whatever builds Agent[S,E]
	// values from a loaded Config; pkg/config itself doesn't know the
	// set of valid types.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Stages maps a workflow stage name (pkg/workflow.Reasoning,
	// Reflecting, Orchestrating, ...) to that stage's LLM settings.
	// Keys are matched case-insensitively against pkg/workflow's Stage
	// constants by whoever wires a loaded Config into an Agent.
	Stages map[string]*StageConfig `yaml:"stages,omitempty" json:"stages,omitempty"`
}

// SetDefaults applies default values to the agent config.
func (c *AgentConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "react"
	}
	if c.Stages == nil {
		c.Stages = make(map[string]*StageConfig)
	}
	for name, stage := range c.Stages {
		if stage == nil {
			stage = &StageConfig{}
			c.Stages[name] = stage
		}
		stage.SetDefaults()
	}
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	var errs []string
	for name, stage := range c.Stages {
		if stage == nil {
			continue
		}
		if err := stage.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("stage %q: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Stage returns the named stage's config, matching case-insensitively
// (config keys are typically lowercase, pkg/workflow.Stage constants
// are uppercase).
func (c *AgentConfig) Stage(name string) (*StageConfig, bool) {
	if stage, ok := c.Stages[name]; ok {
		return stage, true
	}
	for key, stage := range c.Stages {
		if strings.EqualFold(key, name) {
			return stage, true
		}
	}
	return nil, false
}

// SetDefaults applies default values to the config.
func (c *Config) SetDefaults() {
	if c.Agents == nil {
		c.Agents = make(map[string]*AgentConfig)
	}

	if len(c.Agents) == 0 {
		c.Agents["assistant"] = &AgentConfig{}
	}

	for name, agent := range c.Agents {
		if agent == nil {
			agent = &AgentConfig{}
			c.Agents[name] = agent
		}
		agent.SetDefaults()
	}

	if c.Logger == nil {
		c.Logger = &LoggerConfig{}
	}
	c.Logger.SetDefaults()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	for name, agent := range c.Agents {
		if agent == nil {
			continue
		}
		if err := agent.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("agent %q: %v", name, err))
		}
	}

	if c.Logger != nil {
		if err := c.Logger.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("logger: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// GetAgent returns the agent config by name.
func (c *Config) GetAgent(name string) (*AgentConfig, bool) {
	agent, ok := c.Agents[name]
	return agent, ok
}

// ListAgents returns the names of all configured agents.
func (c *Config) ListAgents() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	return names
}
