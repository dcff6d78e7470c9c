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
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// FunctionConfig configures a FunctionTool.
type FunctionConfig struct {
	Name              string
	Description       string
	RequiresApprovalF bool
}

// FunctionTool adapts a typed Go function into a CallableTool: its
// parameter schema is reflected from Args via struct tags, and incoming
// map[string]any arguments are decoded into Args with mapstructure
// before fn runs.
//
// Args fields should carry `json` (for the field name) and `jsonschema`
// tags (`required`, `description=...`, `enum=a|b`, etc.) the way
// invopop/jsonschema expects.
func NewFunctionTool[Args any](cfg FunctionConfig, fn func(ctx Context, args Args) (Result, error)) (CallableTool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("tool: function tool name is required")
	}
	schema, err := reflectSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("tool: generate schema for %s: %w", cfg.Name, err)
	}
	return &functionTool[Args]{cfg: cfg, fn: fn, schema: schema}, nil
}

type functionTool[Args any] struct {
	cfg    FunctionConfig
	fn     func(ctx Context, args Args) (Result, error)
	schema map[string]any
}

func (t *functionTool[Args]) Name() string           { return t.cfg.Name }
func (t *functionTool[Args]) Description() string    { return t.cfg.Description }
func (t *functionTool[Args]) RequiresApproval() bool { return t.cfg.RequiresApprovalF }
func (t *functionTool[Args]) Schema() map[string]any { return t.schema }

func (t *functionTool[Args]) Call(ctx Context, args map[string]any) (Result, error) {
	var typed Args
	if args != nil {
		if err := mapstructure.Decode(args, &typed); err != nil {
			return Result{}, fmt.Errorf("tool: decode arguments for %s: %w", t.cfg.Name, err)
		}
	}
	return t.fn(ctx, typed)
}

// reflectSchema reflects Args into a flat {type, properties, required}
// JSON schema map suitable for an LLM tool definition.
func reflectSchema[Args any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Args))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	if raw["type"] != "object" {
		return raw, nil
	}
	out := map[string]any{"type": "object", "properties": raw["properties"]}
	if required, ok := raw["required"]; ok {
		out["required"] = required
	}
	return out, nil
}

var _ CallableTool = (*functionTool[struct{}])(nil)
