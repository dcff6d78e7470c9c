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
	"testing"
)

type greetArgs struct {
	Name  string `json:"name" jsonschema:"required,description=Who to greet"`
	Loud  bool   `json:"loud,omitempty" jsonschema:"description=Shout the greeting"`
	Times int    `json:"times,omitempty" jsonschema:"description=Repeat count"`
}

func TestNewFunctionToolRequiresName(t *testing.T) {
	_, err := NewFunctionTool[greetArgs](FunctionConfig{}, func(ctx Context, args greetArgs) (Result, error) {
		return Result{}, nil
	})
	if err == nil {
		t.Fatal("expected error for empty tool name")
	}
}

func TestFunctionToolSchemaReflectsRequiredAndProperties(t *testing.T) {
	tl, err := NewFunctionTool[greetArgs](FunctionConfig{Name: "greet", Description: "greets someone"},
		func(ctx Context, args greetArgs) (Result, error) { return Result{}, nil })
	if err != nil {
		t.Fatalf("build tool: %v", err)
	}

	schema := tl.Schema()
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", schema["properties"])
	}
	if _, ok := props["name"]; !ok {
		t.Fatalf("expected 'name' property, got %v", props)
	}

	required, ok := schema["required"].([]any)
	if !ok {
		t.Fatalf("expected required list, got %T", schema["required"])
	}
	found := false
	for _, r := range required {
		if r == "name" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 'name' to be required, got %v", required)
	}
}

func TestFunctionToolCallDecodesArguments(t *testing.T) {
	var captured greetArgs
	tl, err := NewFunctionTool[greetArgs](FunctionConfig{Name: "greet"},
		func(ctx Context, args greetArgs) (Result, error) {
			captured = args
			return Result{Text: "ok"}, nil
		})
	if err != nil {
		t.Fatalf("build tool: %v", err)
	}

	result, err := tl.Call(NewContext(context.Background(), "call-1"), map[string]any{
		"name":  "ada",
		"loud":  true,
		"times": 3,
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result.Text != "ok" {
		t.Fatalf("unexpected result: %v", result)
	}
	if captured.Name != "ada" || !captured.Loud || captured.Times != 3 {
		t.Fatalf("arguments not decoded correctly: %+v", captured)
	}
}

func TestFunctionToolCallWithNilArguments(t *testing.T) {
	tl, err := NewFunctionTool[greetArgs](FunctionConfig{Name: "greet"},
		func(ctx Context, args greetArgs) (Result, error) {
			return Result{Text: args.Name}, nil
		})
	if err != nil {
		t.Fatalf("build tool: %v", err)
	}

	result, err := tl.Call(NewContext(context.Background(), "call-1"), nil)
	if err != nil {
		t.Fatalf("call with nil args: %v", err)
	}
	if result.Text != "" {
		t.Fatalf("expected zero-value args, got %q", result.Text)
	}
}
