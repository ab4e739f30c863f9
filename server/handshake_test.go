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
	"strings"
	"testing"
	"time"
)

func handshakeOptions() *Options {
	o := DefaultOptions()
	o.HandshakeRejectSleep = time.Millisecond
	o.HandshakeRateLimit = 1000
	o.HandshakeBurst = 1000
	return o
}

func TestHandshakeBridgeAccepts(t *testing.T) {
	req := "GET /ws HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\n" +
		"Connection: Upgrade\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n"
	sock := newTestSocket([]byte(req))
	bridge := NewHandshakeBridge(handshakeOptions(), nil, nil)

	slot := NewConnectionSlot(sock, 8080, HandlerWsUpgrade)
	buf := NewByteBuffer(4096)
	var view RequestView

	require_NoError(t, bridge.Run(slot, buf, &view, nil))
	require_True(t, slot.HandlerKind() == HandlerWsMessage)

	out := sock.out.String()
	require_True(t, strings.HasPrefix(out, "HTTP/1.1 101 Switching Protocols\r\n"))
	require_True(t, strings.Contains(out, "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n"))
}

func TestHandshakeBridgeRejectsMissingKey(t *testing.T) {
	req := "GET /ws HTTP/1.1\r\nHost: x\r\n\r\n"
	sock := newTestSocket([]byte(req))
	bridge := NewHandshakeBridge(handshakeOptions(), nil, nil)

	slot := NewConnectionSlot(sock, 8080, HandlerWsUpgrade)
	buf := NewByteBuffer(4096)
	var view RequestView

	require_Error(t, bridge.Run(slot, buf, &view, nil), errWsHandshakeMissingKey)
	require_True(t, sock.closed)
	require_True(t, strings.HasPrefix(sock.out.String(), "HTTP/1.1 204 No Content\r\n"))
}

func TestHandshakeBridgeRejectsByPredicate(t *testing.T) {
	req := "GET /forbidden HTTP/1.1\r\nHost: x\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n"
	sock := newTestSocket([]byte(req))
	reject := func(view *RequestView, buf *ByteBuffer) bool { return false }
	bridge := NewHandshakeBridge(handshakeOptions(), reject, nil)

	slot := NewConnectionSlot(sock, 8080, HandlerWsUpgrade)
	buf := NewByteBuffer(4096)
	var view RequestView

	require_Error(t, bridge.Run(slot, buf, &view, nil), errWsHandshakeRejected)
	require_True(t, sock.closed)
}

func TestComputeAcceptKeyKnownVector(t *testing.T) {
	// The canonical example from RFC 6455 section 1.3.
	got := computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	require_Equal(t, got, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
}
