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

import (
	"encoding/binary"
	"sync"

	"github.com/minio/highwayhash"
)

// dispatchHashKey is a fixed, arbitrary 32-byte key for the keyed
// HighwayHash used to turn a (port, tag) pair into a map key. It does
// not need to be secret — it only needs to be stable for the process's
// lifetime — so it is a compile-time constant rather than generated.
var dispatchHashKey = []byte("wscore-handler-dispatch-key-v001")

// HandlerFunc is invoked by the event loop (via HandlerDispatch, or
// directly once a ConnectionSlot's HandlerKind has been set) to process
// one readable event on a socket.
type HandlerFunc func(slot *ConnectionSlot) error

// HandlerDispatch is the port-to-handler-kind table from §4.8: a static
// map populated at server startup, consulted by the external event loop
// to learn which of {HTTP read, WS-upgrade read, WS-message read} a
// newly readable socket on a given port should run. It is distinct from
// ConnectionSlot.HandlerKind, which tracks the per-connection state
// after a successful upgrade.
type HandlerDispatch struct {
	mu       sync.RWMutex
	handlers map[uint64]HandlerFunc
}

// NewHandlerDispatch creates an empty dispatch table.
func NewHandlerDispatch() *HandlerDispatch {
	return &HandlerDispatch{handlers: make(map[uint64]HandlerFunc)}
}

// Register binds a (port, kind) pair to fn.
func (d *HandlerDispatch) Register(port int, kind HandlerKind, fn HandlerFunc) {
	key := dispatchKey(port, kind)
	d.mu.Lock()
	d.handlers[key] = fn
	d.mu.Unlock()
}

// Lookup returns the handler registered for (port, kind), if any.
func (d *HandlerDispatch) Lookup(port int, kind HandlerKind) (HandlerFunc, bool) {
	key := dispatchKey(port, kind)
	d.mu.RLock()
	fn, ok := d.handlers[key]
	d.mu.RUnlock()
	return fn, ok
}

// dispatchKey hashes (port, kind) with a keyed HighwayHash into a
// uint64 map key, avoiding a per-event string allocation for what is,
// on a hot accept path, a lookup performed on every readable event.
func dispatchKey(port int, kind HandlerKind) uint64 {
	h, err := highwayhash.New64(dispatchHashKey)
	if err != nil {
		// Only fails for a key of the wrong length, which is a
		// programmer error in the constant above, not a runtime
		// condition callers can recover from.
		panic(err)
	}
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(port))
	binary.LittleEndian.PutUint32(buf[8:], uint32(kind))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
