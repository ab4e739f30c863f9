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
	"crypto/sha1"
	"encoding/base64"
	"time"

	"golang.org/x/time/rate"
)

// wsGUID is the fixed GUID from RFC 6455 §1.3, concatenated onto the
// client's Sec-WebSocket-Key before hashing.
var wsGUID = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

// UpgradePredicate decides whether to accept a websocket upgrade for
// the given request, e.g. checking the URI or an application-level
// token. Invoked synchronously on the worker handling the handshake.
type UpgradePredicate func(view *RequestView, buf *ByteBuffer) bool

// HandshakeBridge runs the upgrade exchange described in §4.7: parse
// the request, look up Sec-WebSocket-Key, ask the application whether
// to accept, and either reply 101 and re-tag the slot for WsFrameReader,
// or reply 204 and close (rate-limited per §9).
type HandshakeBridge struct {
	maxRequestLen int
	limiter       *rate.Limiter
	rejectSleep   time.Duration
	predicate     UpgradePredicate
	log           Logger
}

// NewHandshakeBridge builds a bridge using the given options and
// application upgrade predicate.
func NewHandshakeBridge(o *Options, predicate UpgradePredicate, log Logger) *HandshakeBridge {
	return &HandshakeBridge{
		maxRequestLen: o.MaxRequestLength,
		limiter:       newHandshakeLimiter(o),
		rejectSleep:   o.HandshakeRejectSleep,
		predicate:     predicate,
		log:           log,
	}
}

// Run executes one handshake attempt on slot's socket, using buf and
// view as scratch space (the worker's reusable ByteBuffer/RequestView).
// On success it promotes slot to HandlerWsMessage and returns nil; on
// any rejection it has already replied and closed the socket, and
// returns a non-nil error purely for the caller's diagnostics/metrics —
// the caller must not reply or close again.
func (h *HandshakeBridge) Run(slot *ConnectionSlot, buf *ByteBuffer, view *RequestView, shutdown *ShutdownFlag) error {
	sock := slot.Socket
	resp := NewResponseFormatter(sock, shutdown)

	if err := readHTTPRequest(sock, shutdown, buf, view, h.maxRequestLen); err != nil {
		return err
	}

	var fields [1][]byte
	ExtractFixed(buf, view.BodyStart-2, []string{"sec-websocket-key"}, fields[:])
	key := fields[0]

	if len(key) == 0 {
		h.rejectHandshake(resp, sock, shutdown)
		return errWsHandshakeMissingKey
	}
	if h.predicate != nil && !h.predicate(view, buf) {
		h.rejectHandshake(resp, sock, shutdown)
		return errWsHandshakeRejected
	}

	accept := computeAcceptKey(string(key))
	headers := []HeaderLine{
		// §4.7 point 6 specifies this exact casing.
		{Name: "Upgrade", Value: "webSocket"},
		{Name: "Connection", Value: "Upgrade"},
		{Name: "Sec-WebSocket-Accept", Value: accept},
	}
	if err := replyUpgrade(resp, headers); err != nil {
		return err
	}

	slot.promoteToWsMessage()
	return nil
}

// replyUpgrade writes the 101 response. It deliberately does not reuse
// ResponseFormatter.Reply, since a 101 has no Content-Length line.
func replyUpgrade(resp *ResponseFormatter, headers []HeaderLine) error {
	buf := appendStatusLine(nil, 101)
	for _, hLine := range headers {
		buf = append(buf, hLine.Name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, hLine.Value...)
		buf = append(buf, '\r', '\n')
	}
	buf = append(buf, '\r', '\n')
	return sendAll(resp.sock, resp.shutdown, buf)
}

// rejectHandshake implements the 204-then-sleep-then-close path from
// §4.7 point 3/§9, rate limited so a burst of rejections cannot each
// hold a worker for the full sleep duration.
func (h *HandshakeBridge) rejectHandshake(resp *ResponseFormatter, sock Socket, shutdown *ShutdownFlag) {
	_ = resp.ReplyCode(204)
	if h.limiter.Allow() {
		time.Sleep(jitterSleep(h.rejectSleep))
	}
	_ = sock.Close()
}

// computeAcceptKey concatenates key with the RFC 6455 GUID, SHA1-hashes
// it, and base64-encodes the raw 20-byte digest. Go's crypto/sha1
// already yields raw bytes, so the hex-decode step the source describes
// for a hex-returning SHA1 primitive does not apply here.
func computeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write(wsGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
