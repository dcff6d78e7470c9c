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

import "context"

type callContext struct {
	context.Context
	functionCallID string
}

// NewContext wraps ctx with the tool-call correlation ID a CallableTool
// sees as its Context argument.
func NewContext(ctx context.Context, functionCallID string) Context {
	return &callContext{Context: ctx, functionCallID: functionCallID}
}

func (c *callContext) FunctionCallID() string { return c.functionCallID }
