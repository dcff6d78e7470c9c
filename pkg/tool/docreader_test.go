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

package tool

import (
	"context"
	"path/filepath"
	"testing"
)

func TestDocReaderRejectsEmptyPath(t *testing.T) {
	_, err := readDocument(NewContext(context.Background(), "call-1"), DocReaderArgs{})
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDocReaderRejectsUnsupportedExtension(t *testing.T) {
	_, err := readDocument(NewContext(context.Background(), "call-1"), DocReaderArgs{Path: "notes.txt"})
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestDocReaderReportsMissingFileAsToolError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.pdf")
	result, err := readDocument(NewContext(context.Background(), "call-1"), DocReaderArgs{Path: path})
	if err != nil {
		t.Fatalf("expected a tool-level error result, not a Go error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected IsError true for missing file, got %+v", result)
	}
}

func TestNewDocReaderBuildsCallableTool(t *testing.T) {
	tl, err := NewDocReader()
	if err != nil {
		t.Fatalf("build doc reader: %v", err)
	}
	if tl.Name() != "doc_reader" {
		t.Fatalf("unexpected tool name: %q", tl.Name())
	}
	schema := tl.Schema()
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
}
