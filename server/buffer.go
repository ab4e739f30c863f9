// Copyright 2020 The NATS Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import "github.com/pkg/errors"

// ErrBufferFull is returned by Commit when committing would push a
// ByteBuffer past its fixed capacity.
var ErrBufferFull = errors.New("byte buffer exceeds maximum capacity")

// ByteBuffer is a worker-local, fixed-capacity byte region reused across
// successive read cycles on the same worker. It never grows past the
// capacity it was created with; callers must Reset it between cycles.
type ByteBuffer struct {
	buf []byte
	n   int
}

// NewByteBuffer allocates a ByteBuffer with the given maximum capacity.
// This is the only allocation for the buffer's entire worker lifetime.
func NewByteBuffer(capacity int) *ByteBuffer {
	return &ByteBuffer{buf: make([]byte, capacity)}
}

// Reset brings the buffer back to an empty state without releasing the
// underlying array, so the next read cycle reuses it allocation-free.
func (b *ByteBuffer) Reset() {
	b.n = 0
}

// Len returns the number of valid bytes currently held.
func (b *ByteBuffer) Len() int { return b.n }

// Cap returns the fixed maximum capacity of the buffer.
func (b *ByteBuffer) Cap() int { return len(b.buf) }

// Bytes returns a view over the valid bytes. The slice is only valid
// until the next Reset or Commit call.
func (b *ByteBuffer) Bytes() []byte { return b.buf[:b.n] }

// Free returns the unused tail of the buffer, suitable as a destination
// for a single recv call.
func (b *ByteBuffer) Free() []byte { return b.buf[b.n:] }

// Commit advances the fill length by n, as returned by a recv into the
// slice obtained from Free. It fails if n would push the buffer past
// its capacity.
func (b *ByteBuffer) Commit(n int) error {
	if b.n+n > len(b.buf) {
		return ErrBufferFull
	}
	b.n += n
	return nil
}

// Append copies p into the buffer, growing the fill length. It is used
// by call sites that already have the bytes in hand (e.g. re-assembling
// a websocket payload read in smaller pieces than Free offered).
func (b *ByteBuffer) Append(p []byte) error {
	if b.n+len(p) > len(b.buf) {
		return ErrBufferFull
	}
	copy(b.buf[b.n:], p)
	b.n += len(p)
	return nil
}
