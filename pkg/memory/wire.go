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

package memory

import (
	"encoding/json"
	"fmt"

	"github.com/kadirpekel/orin/pkg/message"
)

// wireMessage is the JSON-safe shape SQLSessionStore persists a
// message.Message as. message.Message.Content holds a message.Block
// interface, which plain encoding/json cannot unmarshal back to its
// concrete type, so each block is tagged with a kind before encoding.
type wireMessage struct {
	Role       message.Role        `json:"role"`
	Content    []wireBlock         `json:"content,omitempty"`
	ToolCalls  []message.ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	IsError    bool                `json:"is_error,omitempty"`
	StopReason message.StopReason  `json:"stop_reason,omitempty"`
	Thinking   string              `json:"thinking,omitempty"`
	Metadata   map[string]any      `json:"metadata,omitempty"`
	Usage      *message.Usage      `json:"usage,omitempty"`
}

type wireBlock struct {
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

func encodeMessage(msg message.Message) ([]byte, error) {
	wire := wireMessage{
		Role:       msg.Role,
		ToolCalls:  msg.ToolCalls,
		ToolCallID: msg.ToolCallID,
		IsError:    msg.IsError,
		StopReason: msg.StopReason,
		Thinking:   msg.Thinking,
		Metadata:   msg.Metadata,
		Usage:      msg.Usage,
	}
	for _, b := range msg.Content {
		switch block := b.(type) {
		case message.TextBlock:
			wire.Content = append(wire.Content, wireBlock{Kind: "text", Text: block.Text})
		case message.ImageBlock:
			wire.Content = append(wire.Content, wireBlock{Kind: "image", URL: block.URL, MIMEType: block.MIMEType, Data: block.Data})
		case message.VideoBlock:
			wire.Content = append(wire.Content, wireBlock{Kind: "video", URL: block.URL, MIMEType: block.MIMEType, Data: block.Data})
		default:
			return nil, fmt.Errorf("memory: unknown message block type %T", b)
		}
	}
	return json.Marshal(wire)
}

func decodeMessage(data []byte) (message.Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return message.Message{}, err
	}

	msg := message.Message{
		Role:       wire.Role,
		ToolCalls:  wire.ToolCalls,
		ToolCallID: wire.ToolCallID,
		IsError:    wire.IsError,
		StopReason: wire.StopReason,
		Thinking:   wire.Thinking,
		Metadata:   wire.Metadata,
		Usage:      wire.Usage,
	}
	for _, b := range wire.Content {
		switch b.Kind {
		case "text":
			msg.Content = append(msg.Content, message.TextBlock{Text: b.Text})
		case "image":
			msg.Content = append(msg.Content, message.ImageBlock{URL: b.URL, MIMEType: b.MIMEType, Data: b.Data})
		case "video":
			msg.Content = append(msg.Content, message.VideoBlock{URL: b.URL, MIMEType: b.MIMEType, Data: b.Data})
		default:
			return message.Message{}, fmt.Errorf("memory: unknown wire block kind %q", b.Kind)
		}
	}
	return msg, nil
}
