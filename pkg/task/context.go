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

package task

import "github.com/kadirpekel/orin/pkg/message"

// Context accumulates the conversation produced while a Task occupies a
// single state. Each valid state of a Task gets its own Context, so an
// agent revisiting a state picks up exactly what happened there before.
type Context struct {
	messages []message.Message
}

// Append records a message against this Context.
func (c *Context) Append(m message.Message) {
	c.messages = append(c.messages, m)
}

// Messages returns the accumulated messages in append order.
func (c *Context) Messages() []message.Message {
	out := make([]message.Message, len(c.messages))
	copy(out, c.messages)
	return out
}
