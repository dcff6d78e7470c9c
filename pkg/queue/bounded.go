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

package queue

import "context"

// Bounded is a buffered-channel-backed Queue with a fixed capacity: Put
// blocks (or PutNoWait fails with ErrFull) once that capacity is
// reached.
type Bounded[T any] struct {
	ch chan T
}

// NewBounded constructs a Bounded queue holding at most size items. size
// must be greater than zero; use Unbounded for unlimited capacity.
func NewBounded[T any](size int) *Bounded[T] {
	if size <= 0 {
		panic("queue: bounded size must be greater than zero")
	}
	return &Bounded[T]{ch: make(chan T, size)}
}

// Put sends item, blocking until space is available or ctx is done.
func (q *Bounded[T]) Put(ctx context.Context, item T) error {
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PutNoWait sends item if capacity is immediately available, else
// returns ErrFull.
func (q *Bounded[T]) PutNoWait(item T) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrFull
	}
}

// Get receives the head item, blocking until one is available or ctx is
// done.
func (q *Bounded[T]) Get(ctx context.Context) (T, error) {
	select {
	case item := <-q.ch:
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// GetNoWait receives the head item if immediately available, else
// returns ErrEmpty.
func (q *Bounded[T]) GetNoWait() (T, error) {
	select {
	case item := <-q.ch:
		return item, nil
	default:
		var zero T
		return zero, ErrEmpty
	}
}

// IsEmpty reports whether the queue currently has no items.
func (q *Bounded[T]) IsEmpty() bool { return len(q.ch) == 0 }

// IsFull reports whether the queue is at capacity.
func (q *Bounded[T]) IsFull() bool { return len(q.ch) == cap(q.ch) }
