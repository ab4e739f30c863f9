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
)

func TestEngineHandlesHTTPReadCycle(t *testing.T) {
	req := "GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"
	sock := newTestSocket([]byte(req))
	slot := NewConnectionSlot(sock, 8080, HandlerHTTP)

	var gotURI string
	onRequest := func(view *RequestView, buf *ByteBuffer, reply *ResponseFormatter) {
		gotURI = string(view.URI(buf))
		_ = reply.Reply(200, []byte("ok"), nil)
	}

	e := NewEngine(DefaultOptions(), nil, nil, nil, onRequest, nil)
	buf := NewByteBuffer(4096)
	var view RequestView

	e.handleHTTPReadCycle(slot, buf, &view, nil)

	require_Equal(t, gotURI, "/hello")
	require_True(t, strings.HasPrefix(sock.out.String(), "HTTP/1.1 200 OK\r\n"))
}

func TestEngineHandlesPostWithBody(t *testing.T) {
	req := "POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	sock := newTestSocket([]byte(req))
	slot := NewConnectionSlot(sock, 8080, HandlerHTTP)

	var gotBody string
	onRequest := func(view *RequestView, buf *ByteBuffer, reply *ResponseFormatter) {
		gotBody = string(view.Body(buf))
	}

	e := NewEngine(DefaultOptions(), nil, nil, nil, onRequest, nil)
	buf := NewByteBuffer(4096)
	var view RequestView

	e.handleHTTPReadCycle(slot, buf, &view, nil)
	require_Equal(t, gotBody, "hello")
}

func TestEngineNotifiesOnProtocolError(t *testing.T) {
	sock := newTestSocket([]byte("BADREQUESTLINE\r\n\r\n"))
	slot := NewConnectionSlot(sock, 8080, HandlerHTTP)

	var notified string
	e := NewEngine(DefaultOptions(), func(msg string) { notified = msg }, nil, nil, nil, nil)
	buf := NewByteBuffer(4096)
	var view RequestView

	e.handleHTTPReadCycle(slot, buf, &view, nil)
	require_True(t, len(notified) > 0)
	require_True(t, sock.closed)
}

func TestEnginePanicInHandlerIsRecovered(t *testing.T) {
	req := "GET /boom HTTP/1.1\r\nHost: x\r\n\r\n"
	sock := newTestSocket([]byte(req))
	slot := NewConnectionSlot(sock, 8080, HandlerHTTP)

	var notified string
	onRequest := func(view *RequestView, buf *ByteBuffer, reply *ResponseFormatter) {
		panic("boom")
	}
	e := NewEngine(DefaultOptions(), func(msg string) { notified = msg }, nil, nil, onRequest, nil)
	buf := NewByteBuffer(4096)
	var view RequestView

	e.handleHTTPReadCycle(slot, buf, &view, nil)
	require_True(t, strings.Contains(notified, "panic"))
}

// TestEngineStopIsIdempotent exercises shutdown idempotence: Stop may be
// called any number of times without panicking or double-closing jobs.
func TestEngineStopIsIdempotent(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil, nil, nil, nil, nil)
	e.Start(2)
	e.Stop()
	e.Stop()
	e.Stop()
}

func TestEngineSubmitAfterStopIsNoop(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil, nil, nil, nil, nil)
	e.Start(1)
	e.Stop()

	sock := newTestSocket(nil)
	slot := NewConnectionSlot(sock, 8080, HandlerHTTP)
	e.Submit(slot)
}
