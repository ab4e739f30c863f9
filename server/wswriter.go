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

import "encoding/binary"

// WsFrameWriter encodes and writes single-frame, unmasked, FIN=1
// server-to-client websocket messages.
type WsFrameWriter struct {
	sock     Socket
	shutdown *ShutdownFlag
}

// NewWsFrameWriter binds a writer to the socket it writes to.
func NewWsFrameWriter(sock Socket, shutdown *ShutdownFlag) *WsFrameWriter {
	return &WsFrameWriter{sock: sock, shutdown: shutdown}
}

// WriteMessage encodes payload as a single Text or Binary frame
// (depending on binary) and writes header then payload to the socket,
// retrying on short writes until fully drained.
func (w *WsFrameWriter) WriteMessage(payload []byte, binaryFrame bool) error {
	header := EncodeFrameHeader(payload, binaryFrame)
	if err := sendAll(w.sock, w.shutdown, header); err != nil {
		return err
	}
	return sendAll(w.sock, w.shutdown, payload)
}

// WriteControl writes a control frame (Close, Ping or Pong) carrying
// payload, which per RFC 6455 must be 125 bytes or fewer; the core does
// not enforce that here since control traffic is out of this file's
// scope (frame construction only).
func (w *WsFrameWriter) WriteControl(opcode WsOpCode, payload []byte) error {
	header := make([]byte, 2)
	header[0] = wsFinalBit | byte(opcode)
	header[1] = byte(len(payload))
	if err := sendAll(w.sock, w.shutdown, header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return sendAll(w.sock, w.shutdown, payload)
}

// EncodeFrameHeader builds the 2, 4, or 10 byte header for an outbound
// FIN=1, unmasked, Text or Binary frame carrying len(payload) bytes.
func EncodeFrameHeader(payload []byte, binaryFrame bool) []byte {
	first := byte(OpText)
	if binaryFrame {
		first = byte(OpBinary)
	}
	first |= wsFinalBit

	n := len(payload)
	switch {
	case n <= 125:
		return []byte{first, byte(n)}
	case n <= 0xFFFF:
		h := make([]byte, 4)
		h[0] = first
		h[1] = 126
		binary.BigEndian.PutUint16(h[2:], uint16(n))
		return h
	default:
		h := make([]byte, wsMaxFrameHeaderSize)
		h[0] = first
		h[1] = 127
		binary.BigEndian.PutUint64(h[2:], uint64(n))
		return h
	}
}
