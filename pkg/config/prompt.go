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
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PromptLoader reads a workflow stage's system prompt from
// prompt/workflow/<name>/<topic>.md under a root directory and reloads
// it whenever the file changes on disk, the same fsnotify-driven
// pattern provider.FileProvider uses for config files.
type PromptLoader struct {
	root string

	mu      sync.RWMutex
	cache   map[string]string
	watcher *fsnotify.Watcher
	closed  bool
}

// NewPromptLoader creates a loader rooted at dir (typically "prompt").
func NewPromptLoader(dir string) *PromptLoader {
	return &PromptLoader{
		root:  dir,
		cache: make(map[string]string),
	}
}

// path builds the on-disk path for a workflow name and topic, e.g.
// NewPromptLoader("prompt").path("react", "reasoning") ->
// "prompt/workflow/react/reasoning.md".
func (l *PromptLoader) path(workflow, topic string) string {
	return filepath.Join(l.root, "workflow", workflow, topic+".md")
}

// Load reads a prompt, serving the cached copy if one was already loaded
// and no change has been observed since (Watch invalidates the cache
// entry on write).
func (l *PromptLoader) Load(workflowName, topic string) (string, error) {
	key := workflowName + "/" + topic

	l.mu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	path := l.path(workflowName, topic)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt %s: %w", path, err)
	}

	text := string(data)
	l.mu.Lock()
	l.cache[key] = text
	l.mu.Unlock()

	return text, nil
}

// Watch starts an fsnotify watch on the prompt root directory tree,
// invalidating cached entries whenever their backing file is written.
// Blocks until Close stops the watcher; safe to run in its own goroutine.
func (l *PromptLoader) Watch(onChange func(workflowName, topic string)) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return fmt.Errorf("prompt loader is closed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to create prompt watcher: %w", err)
	}
	l.watcher = watcher
	l.mu.Unlock()

	if err := filepath.Walk(l.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return watcher.Add(p)
		}
		return nil
	}); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to walk prompt root %s: %w", l.root, err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			workflowName, topic, ok := l.parseChangedPath(event.Name)
			if !ok {
				continue
			}

			l.mu.Lock()
			delete(l.cache, workflowName+"/"+topic)
			l.mu.Unlock()

			slog.Info("prompt changed", "workflow", workflowName, "topic", topic)
			if onChange != nil {
				onChange(workflowName, topic)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("prompt watcher error", "error", err)
		}
	}
}

// parseChangedPath recovers (workflowName, topic) from a changed file's
// path under root/workflow/<name>/<topic>.md.
func (l *PromptLoader) parseChangedPath(changed string) (string, string, bool) {
	rel, err := filepath.Rel(filepath.Join(l.root, "workflow"), changed)
	if err != nil {
		return "", "", false
	}
	dir, file := filepath.Split(rel)
	workflowName := filepath.Clean(dir)
	if workflowName == "." || workflowName == "" {
		return "", "", false
	}
	ext := filepath.Ext(file)
	if ext != ".md" {
		return "", "", false
	}
	return workflowName, file[:len(file)-len(ext)], true
}

// Close stops the watcher, if one was started.
func (l *PromptLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.watcher != nil {
		err := l.watcher.Close()
		l.watcher = nil
		return err
	}
	return nil
}
