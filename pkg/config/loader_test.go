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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kadirpekel/orin/pkg/config/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
name: test-assistant
agents:
  assistant:
    type: react
    stages:
      reasoning:
        provider: anthropic
        model: claude-sonnet-4-20250514
        api_key: ${TEST_ANTHROPIC_KEY}
`

func TestLoaderLoadFromFile(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "test-key-value")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))

	cfg, loader, err := LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, "test-assistant", cfg.Name)
	stage, ok := cfg.Agents["assistant"].Stage("reasoning")
	require.True(t, ok)
	assert.Equal(t, "test-key-value", stage.APIKey)
}

func TestLoaderWatchReloadsOnChange(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "test-key-value")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))

	p, err := provider.NewFileProvider(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 1)
	loader := NewLoader(p, WithOnChange(func(c *Config) {
		reloaded <- c
	}))
	defer loader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loader.Watch(ctx)

	time.Sleep(50 * time.Millisecond)
	updated := testConfigYAML + "\n  # touched\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "test-assistant", cfg.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
