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
	"errors"
	"io"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/pion/logging"
)

// NotifyErrorFunc is the diagnostic sink named in §6; invoked
// synchronously from the worker that hit the error.
type NotifyErrorFunc func(message string)

// ConnectionLostFunc is invoked after a websocket socket is closed,
// named handleConnectionLost in §6.
type ConnectionLostFunc func(slot *ConnectionSlot)

// RequestHandler is the HTTP request callback from §6: a read-only
// RequestView plus the ByteBuffer it indexes into, and a formatter
// bound to the socket for sending the response. The view and buffer
// are only valid for the duration of the call.
type RequestHandler func(view *RequestView, buf *ByteBuffer, reply *ResponseFormatter)

// MessageHandler is the websocket message callback from §6: the
// message's opcode and a read-only view of its unmasked payload, valid
// only for the duration of the call.
type MessageHandler func(opcode WsOpCode, payload []byte, slot *ConnectionSlot)

// Engine owns the fixed worker pool and the callbacks/options that
// parameterize every read cycle. One Engine typically backs an entire
// server; ConnectionSlots are submitted to it as sockets become
// readable.
type Engine struct {
	opts     *Options
	dispatch *HandlerDispatch

	notifyError    NotifyErrorFunc
	connectionLost ConnectionLostFunc
	upgrade        UpgradePredicate
	onRequest      RequestHandler
	onMessage      MessageHandler

	logFactory logging.LoggerFactory
	shutdown   *ShutdownFlag

	jobs     chan *ConnectionSlot
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewEngine builds an Engine. Any of the callback parameters may be nil
// except onRequest/onMessage, which are required to do anything useful
// with a parsed request or message.
func NewEngine(opts *Options, notifyError NotifyErrorFunc, connectionLost ConnectionLostFunc,
	upgrade UpgradePredicate, onRequest RequestHandler, onMessage MessageHandler) *Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Engine{
		opts:           opts,
		dispatch:       NewHandlerDispatch(),
		notifyError:    notifyError,
		connectionLost: connectionLost,
		upgrade:        upgrade,
		onRequest:      onRequest,
		onMessage:      onMessage,
		logFactory:     NewLoggerFactory(),
		shutdown:       &ShutdownFlag{},
	}
}

// Dispatch exposes the engine's HandlerDispatch table for startup-time
// registration by the (out of scope) external event loop.
func (e *Engine) Dispatch() *HandlerDispatch { return e.dispatch }

// Start launches the fixed pool of n worker goroutines (§5). Each
// worker owns its ByteBuffer, RequestView and WsFrameState for the
// engine's lifetime.
func (e *Engine) Start(n int) {
	e.jobs = make(chan *ConnectionSlot, n*4)
	for i := 0; i < n; i++ {
		e.wg.Add(1)
		go e.workerLoop()
	}
}

// Submit hands a readable socket to the pool for one read cycle. It is
// the entry point the external event loop calls.
func (e *Engine) Submit(slot *ConnectionSlot) {
	if e.shutdown.IsSet() {
		return
	}
	select {
	case e.jobs <- slot:
	default:
		// Pool saturated; the event loop owns retry/backpressure policy,
		// out of scope here (§1), so the slot is simply dropped from
		// this submission attempt.
	}
}

// Stop raises the cooperative shutdown flag and waits for every worker
// to finish its current read cycle. Safe to call more than once (§8
// property 5).
func (e *Engine) Stop() {
	e.shutdown.Set()
	e.stopOnce.Do(func() {
		if e.jobs != nil {
			close(e.jobs)
		}
	})
	e.wg.Wait()
}

func (e *Engine) workerLoop() {
	defer e.wg.Done()

	maxBuf := e.opts.MaxRequestLength
	if e.opts.MaxWsRequestLength > maxBuf {
		maxBuf = e.opts.MaxWsRequestLength
	}
	buf := NewByteBuffer(maxBuf)
	view := &RequestView{}
	wsState := &WsFrameState{}
	bridge := NewHandshakeBridge(e.opts, e.upgrade, e.logFactory.NewLogger("handshake"))

	reqLog := e.logFactory.NewLogger("request")
	wsLog := e.logFactory.NewLogger("wsframe")

	for slot := range e.jobs {
		e.runReadCycle(slot, buf, view, wsState, bridge, reqLog, wsLog)
	}
}

func (e *Engine) runReadCycle(slot *ConnectionSlot, buf *ByteBuffer, view *RequestView,
	wsState *WsFrameState, bridge *HandshakeBridge, reqLog, wsLog Logger) {

	switch slot.HandlerKind() {
	case HandlerWsMessage:
		e.handleWsReadCycle(slot, buf, wsState, wsLog)
	case HandlerWsUpgrade:
		e.handleHandshake(slot, buf, view, bridge)
	default:
		e.handleHTTPReadCycle(slot, buf, view, reqLog)
	}
}

func (e *Engine) handleHTTPReadCycle(slot *ConnectionSlot, buf *ByteBuffer, view *RequestView, log Logger) {
	sock := slot.Socket
	if err := readHTTPRequest(sock, e.shutdown, buf, view, e.opts.MaxRequestLength); err != nil {
		e.handleReadError(slot, err, log, false)
		return
	}
	if cl := ContentLength(buf); cl > 0 {
		if err := readRequestBody(sock, e.shutdown, buf, view, cl, e.opts.MaxRequestLength); err != nil {
			e.handleReadError(slot, err, log, false)
			return
		}
	}
	if e.onRequest == nil {
		return
	}
	resp := NewResponseFormatter(sock, e.shutdown)
	e.invokeRequestHandler(view, buf, resp, log)
}

func (e *Engine) invokeRequestHandler(view *RequestView, buf *ByteBuffer, resp *ResponseFormatter, log Logger) {
	defer func() {
		if r := recover(); r != nil {
			e.notify(log, pkgerrors.Errorf("request handler panic: %v", r))
		}
	}()
	e.onRequest(view, buf, resp)
}

func (e *Engine) handleHandshake(slot *ConnectionSlot, buf *ByteBuffer, view *RequestView, bridge *HandshakeBridge) {
	if err := bridge.Run(slot, buf, view, e.shutdown); err != nil {
		if errors.Is(err, errWsHandshakeMissingKey) || errors.Is(err, errWsHandshakeRejected) {
			// Already replied 204 and closed; nothing further to do.
			return
		}
		e.handleReadError(slot, err, e.logFactory.NewLogger("handshake"), true)
	}
}

func (e *Engine) handleWsReadCycle(slot *ConnectionSlot, buf *ByteBuffer, wsState *WsFrameState, log Logger) {
	reader := NewWsFrameReader(slot.Socket, e.shutdown, e.opts.MaxWsRequestLength)
	if err := reader.ReadMessage(wsState, buf); err != nil {
		e.handleReadError(slot, err, log, true)
		return
	}
	if wsState.Opcode == OpClose {
		_ = slot.Socket.Close()
		if e.connectionLost != nil {
			e.connectionLost(slot)
		}
		return
	}
	if e.onMessage == nil {
		return
	}
	e.invokeMessageHandler(wsState.Opcode, buf.Bytes(), slot, log)
}

func (e *Engine) invokeMessageHandler(opcode WsOpCode, payload []byte, slot *ConnectionSlot, log Logger) {
	defer func() {
		if r := recover(); r != nil {
			e.notify(log, pkgerrors.Errorf("message handler panic: %v", r))
		}
	}()
	e.onMessage(opcode, payload, slot)
}

// handleReadError implements the §7 policy table for whichever error a
// read cycle surfaced. wsOrHandshake selects whether a peer-close also
// fires the connection-lost callback (only meaningful once a socket has
// become a websocket connection).
func (e *Engine) handleReadError(slot *ConnectionSlot, err error, log Logger, wsOrHandshake bool) {
	switch classify(err) {
	case classShutdown:
		// Abandon silently; no notify (§5, §7).
	case classPeerClose:
		_ = slot.Socket.Close()
		if wsOrHandshake && e.connectionLost != nil {
			e.connectionLost(slot)
		}
	case classTransportBenign:
		_ = slot.Socket.Close()
	case classTransportFatal, classProtocol:
		e.notify(log, err)
		_ = slot.Socket.Close()
	}
}

func (e *Engine) notify(log Logger, err error) {
	wrapped := pkgerrors.Wrap(err, "read cycle failed")
	if log != nil {
		log.Errorf("%v", wrapped)
	}
	if e.notifyError != nil {
		e.notifyError(wrapped.Error())
	}
}

// readHTTPRequest reads from sock until ScanHeaderTerminator finds the
// header block, then runs ParseRequest over the buffered bytes. It is
// shared by the plain HTTP read cycle and HandshakeBridge, since both
// start by parsing an HTTP/1.1 request (§4.7 point 1).
func readHTTPRequest(sock Socket, shutdown *ShutdownFlag, buf *ByteBuffer, view *RequestView, maxLen int) error {
	buf.Reset()
	prevLen := 0
	for {
		if shutdown != nil && shutdown.IsSet() {
			return ErrShutdown
		}
		free := buf.Free()
		if len(free) == 0 {
			return ErrRequestTooLong
		}
		n, err := sock.Recv(free)
		if n > 0 {
			if cerr := buf.Commit(n); cerr != nil {
				return cerr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrPeerClosed
			}
			return err
		}
		if n == 0 {
			return ErrPeerClosed
		}

		found, bodyStart := ScanHeaderTerminator(buf, prevLen)
		prevLen = buf.Len()
		if found {
			if perr := ParseRequest(buf, view); perr != nil {
				return perr
			}
			view.BodyStart = bodyStart
			if view.BodyStart > maxLen {
				return ErrRequestTooLong
			}
			return nil
		}
	}
}

// readRequestBody reads additional bytes until buf holds
// view.BodyStart+contentLength bytes, bounded by maxLen (§3 invariant 1).
func readRequestBody(sock Socket, shutdown *ShutdownFlag, buf *ByteBuffer, view *RequestView, contentLength, maxLen int) error {
	want := view.BodyStart + contentLength
	if want > maxLen {
		return ErrRequestTooLong
	}
	for buf.Len() < want {
		if shutdown != nil && shutdown.IsSet() {
			return ErrShutdown
		}
		free := buf.Free()
		if len(free) == 0 {
			return ErrRequestTooLong
		}
		n, err := sock.Recv(free)
		if n > 0 {
			if cerr := buf.Commit(n); cerr != nil {
				return cerr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrPeerClosed
			}
			return err
		}
		if n == 0 {
			return ErrPeerClosed
		}
	}
	return nil
}
