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

	"github.com/pkg/errors"
)

// WsOpCode identifies a websocket frame/message type, per RFC 6455
// §5.2. OpFail is not a wire value; it marks a WsFrameState that could
// not complete a message.
type WsOpCode byte

const (
	OpContinuation WsOpCode = 0x0
	OpText         WsOpCode = 0x1
	OpBinary       WsOpCode = 0x2
	OpClose        WsOpCode = 0x8
	OpPing         WsOpCode = 0x9
	OpPong         WsOpCode = 0xA
	OpFail         WsOpCode = 0xFF
)

const (
	wsFinalBit = 1 << 7
	wsRsvMask  = 0x70
	wsMaxFrameHeaderSize = 10
)

// ErrWsReservedBits is returned when RSV1/RSV2/RSV3 are non-zero.
var ErrWsReservedBits = errors.New("reserved bits set in websocket frame header")

// ErrWsTooLarge is returned when the cumulative payload across
// continuation frames would exceed MaxWsRequestLength.
var ErrWsTooLarge = errors.New("websocket message exceeds maximum length")

// WsFrameState carries per-message decode state across the frames of a
// fragmented message. It is worker-local and reset at the start of
// every ReadMessage call.
type WsFrameState struct {
	Opcode      WsOpCode
	firstOpcode WsOpCode
	maskKey     [4]byte
}

func (s *WsFrameState) reset() {
	s.Opcode = 0
	s.firstOpcode = 0
	s.maskKey = [4]byte{}
}

// WsFrameReader reads one logical websocket message — one frame, or an
// initial frame plus however many continuation frames follow — into a
// ByteBuffer, unmasking it in place once fully received.
type WsFrameReader struct {
	sock     Socket
	shutdown *ShutdownFlag
	maxLen   int
}

// NewWsFrameReader binds a reader to a socket and the maximum message
// length it will accept (MaxWsRequestLength).
func NewWsFrameReader(sock Socket, shutdown *ShutdownFlag, maxLen int) *WsFrameReader {
	return &WsFrameReader{sock: sock, shutdown: shutdown, maxLen: maxLen}
}

// ReadMessage implements §4.5: it reads frame headers and payloads,
// following continuation frames until one carrying FIN=1 completes the
// message. Each frame's payload is unmasked in place as soon as it has
// arrived, with that frame's own mask key and with the key offset
// restarting at the frame's first byte. Fragmentation is driven by the
// FIN bit, not by opcode: the
// first frame of a fragmented message is Text/Binary with FIN=0, every
// following frame is Continuation, and the last one sets FIN=1 (the
// teacher's wsRead/r.ff handling in websocket.go). buf is reset at
// entry and, on success, holds exactly the unmasked message payload.
func (r *WsFrameReader) ReadMessage(state *WsFrameState, buf *ByteBuffer) error {
	state.reset()
	buf.Reset()

	first := true
	for {
		opcode, fin, payloadLen, maskKey, err := r.readHeader()
		if err != nil {
			state.Opcode = OpFail
			return err
		}
		if first {
			state.firstOpcode = opcode
			first = false
		}
		state.maskKey = maskKey

		if buf.Len()+payloadLen > r.maxLen {
			state.Opcode = OpFail
			return ErrWsTooLarge
		}
		// Peek is attempted at most once per frame's payload, not once
		// per message (§6): it is a latency hint only.
		frameStart := buf.Len()
		if err := r.readPayload(buf, payloadLen, true); err != nil {
			state.Opcode = OpFail
			return err
		}
		unmaskMessage(buf.Bytes()[frameStart:], maskKey)

		if opcode == OpClose {
			state.Opcode = OpClose
			return nil
		}
		if fin {
			break
		}
	}

	state.Opcode = state.firstOpcode
	return nil
}

// readHeader implements §4.5 phase 1: 2 header bytes, an optional 2 or
// 8 byte extended length, then the 4-byte mask key. The returned bool
// is the FIN bit, which ReadMessage uses to decide whether another
// continuation frame follows.
func (r *WsFrameReader) readHeader() (WsOpCode, bool, int, [4]byte, error) {
	var maskKey [4]byte

	var hdr [2]byte
	if err := recvInto(r.sock, r.shutdown, hdr[:]); err != nil {
		return 0, false, 0, maskKey, err
	}
	if hdr[0]&wsRsvMask != 0 {
		return 0, false, 0, maskKey, ErrWsReservedBits
	}
	fin := hdr[0]&wsFinalBit != 0
	opcode := WsOpCode(hdr[0] & 0x0F)
	len7 := int(hdr[1] & 0x7F)

	var payloadLen int
	switch len7 {
	case 126:
		var ext [2]byte
		if err := recvInto(r.sock, r.shutdown, ext[:]); err != nil {
			return 0, false, 0, maskKey, err
		}
		payloadLen = int(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if err := recvInto(r.sock, r.shutdown, ext[:]); err != nil {
			return 0, false, 0, maskKey, err
		}
		payloadLen = int(binary.BigEndian.Uint64(ext[:]))
	default:
		payloadLen = len7
	}

	if err := recvInto(r.sock, r.shutdown, maskKey[:]); err != nil {
		return 0, false, 0, maskKey, err
	}
	return opcode, fin, payloadLen, maskKey, nil
}

// readPayload appends exactly n bytes to buf. When tryPeek is set (once
// per frame) it opportunistically Peeks if the socket supports it:
// a pure latency optimization (per §4.5 phase 2) that never changes the
// bytes actually appended.
func (r *WsFrameReader) readPayload(buf *ByteBuffer, n int, tryPeek bool) error {
	if n == 0 {
		return nil
	}
	if tryPeek {
		if pk, ok := r.sock.(Peeker); ok {
			_, _ = pk.Peek(n)
		}
	}
	remaining := n
	for remaining > 0 {
		if r.shutdown != nil && r.shutdown.IsSet() {
			return ErrShutdown
		}
		free := buf.Free()
		want := remaining
		if want > len(free) {
			want = len(free)
		}
		if want == 0 {
			return ErrWsTooLarge
		}
		got, err := r.sock.Recv(free[:want])
		if got > 0 {
			if cerr := buf.Commit(got); cerr != nil {
				return cerr
			}
			remaining -= got
		}
		if err != nil {
			if errors.Is(err, ErrPeerClosed) {
				return ErrPeerClosed
			}
			return err
		}
		if got == 0 {
			return ErrPeerClosed
		}
	}
	return nil
}

// unmaskMessage XORs every byte with maskKey[i mod 4], using an 8-byte
// wide pass once enough bytes remain to amortize the key replication.
func unmaskMessage(data []byte, maskKey [4]byte) {
	if len(data) < 16 {
		for i := range data {
			data[i] ^= maskKey[i&3]
		}
		return
	}
	var k [8]byte
	for i := 0; i < 8; i++ {
		k[i] = maskKey[i&3]
	}
	km := binary.BigEndian.Uint64(k[:])
	n := (len(data) / 8) * 8
	for i := 0; i < n; i += 8 {
		v := binary.BigEndian.Uint64(data[i : i+8])
		v ^= km
		binary.BigEndian.PutUint64(data[i:], v)
	}
	for i := n; i < len(data); i++ {
		data[i] ^= maskKey[i&3]
	}
}
