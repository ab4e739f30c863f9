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
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrShutdown is observed by a read cycle that noticed the cooperative
// shutdown flag between a recv/send pair. Per §5, this abandons the
// operation without notifying.
var ErrShutdown = errors.New("shutdown observed")

// ErrPeerClosed is the orderly-close case (recv returning 0 in POSIX
// terms); Go's io.Reader convention reports this as io.EOF, so it is
// reused directly rather than wrapped in a new sentinel.
var ErrPeerClosed = io.EOF

// Handshake rejection reasons (§4.7 point 3/4); both take the same
// 204-then-sleep-then-close path, they are only distinguished for the
// caller's diagnostics.
var (
	errWsHandshakeMissingKey = errors.New("websocket handshake: missing Sec-WebSocket-Key")
	errWsHandshakeRejected   = errors.New("websocket handshake: rejected by application predicate")
)

// benignErrno is the set from §4.4/§7 that is silently absorbed rather
// than reported: the socket is already being torn down elsewhere.
var benignErrno = map[syscall.Errno]bool{
	unix.ENOENT:     true,
	unix.EBADF:      true,
	unix.EPIPE:      true,
	unix.ECONNRESET: true,
}

// isBenignTransportError reports whether err unwraps to one of the
// benign errno values.
func isBenignTransportError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return benignErrno[errno]
	}
	return false
}

// errClass is the taxonomy from §7: every error surfaced by a component
// is mapped to exactly one of these by the worker's read cycle, which
// is the single place that implements the close/notify policy table.
type errClass int

const (
	classNone errClass = iota
	classProtocol
	classTransportBenign
	classTransportFatal
	classPeerClose
	classShutdown
)

// classify assigns a errClass to an error surfaced from a component
// (RequestParser, HeaderExtractor, WsFrameReader, HandshakeBridge, or a
// raw recv/send). Protocol errors are anything not otherwise recognized,
// since every sentinel the core defines for malformed input already
// belongs to that bucket.
func classify(err error) errClass {
	switch {
	case err == nil:
		return classNone
	case errors.Is(err, ErrShutdown):
		return classShutdown
	case errors.Is(err, ErrPeerClosed):
		return classPeerClose
	case isBenignTransportError(err):
		return classTransportBenign
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return classTransportFatal
	}
	return classProtocol
}
