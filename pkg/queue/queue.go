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

// Package queue provides the FIFO message queue the Scheduler uses to
// stream an agent's stage/message output to its caller, and the human
// client uses for its ask/resume rendezvous.
package queue

import (
	"context"
	"errors"
)

// ErrFull is returned by PutNoWait against a full bounded Queue.
var ErrFull = errors.New("queue: full")

// ErrEmpty is returned by GetNoWait against an empty Queue.
var ErrEmpty = errors.New("queue: empty")

// Queue is a generic FIFO. Put/Get block on ctx; PutNoWait/GetNoWait
// never block, failing immediately with ErrFull/ErrEmpty instead.
type Queue[T any] interface {
	Put(ctx context.Context, item T) error
	PutNoWait(item T) error
	Get(ctx context.Context) (T, error)
	GetNoWait() (T, error)
	IsEmpty() bool
	IsFull() bool
}
