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
	"sync/atomic"

	"github.com/nats-io/nuid"
)

// HandlerKind tells HandlerDispatch (and, per-connection, the worker
// read cycle) which of the three read entry points a socket should be
// routed to.
type HandlerKind int32

const (
	HandlerHTTP HandlerKind = iota
	HandlerWsUpgrade
	HandlerWsMessage
)

// ConnectionSlot is owned by the external event loop (out of scope, see
// spec §1/§6); the core's only mutation is the atomic HandlerKind swap
// on a successful handshake, per §3.
type ConnectionSlot struct {
	// ID is an opaque nuid-generated correlation id used only for log
	// lines; it carries no parsing semantics.
	ID     string
	Socket Socket
	Port   int

	handlerKind int32
}

// NewConnectionSlot creates a slot for a freshly accepted socket on the
// given port, starting in the given handler kind.
func NewConnectionSlot(sock Socket, port int, kind HandlerKind) *ConnectionSlot {
	s := &ConnectionSlot{ID: nuid.Next(), Socket: sock, Port: port}
	atomic.StoreInt32(&s.handlerKind, int32(kind))
	return s
}

// HandlerKind returns the slot's current routing tag.
func (s *ConnectionSlot) HandlerKind() HandlerKind {
	return HandlerKind(atomic.LoadInt32(&s.handlerKind))
}

// promoteToWsMessage re-tags the slot so that subsequent reads route to
// WsFrameReader; called once, by HandshakeBridge, on a successful
// upgrade (§4.7 point 7).
func (s *ConnectionSlot) promoteToWsMessage() {
	atomic.StoreInt32(&s.handlerKind, int32(HandlerWsMessage))
}
