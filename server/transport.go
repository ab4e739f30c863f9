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
	"bufio"
	"net"
)

// Socket is the per-connection handle the core reads from and writes
// to. It is the Go-idiomatic stand-in for the raw recv/send/closeSocket
// primitives named in §6: Recv/Send report io.EOF for an orderly close
// and any other error as a transport failure, rather than the POSIX
// 0/-1/errno triple, since that is how every reader/writer in this
// codebase already reports it.
type Socket interface {
	Recv(buf []byte) (int, error)
	Send(buf []byte) (int, error)
	Close() error
}

// Peeker is an optional capability a Socket may implement to support
// the "first payload read may peek" latency optimization in §4.5 phase
// 2. It is never required for correctness; WsFrameReader falls back to
// a plain Recv when a Socket does not implement it.
type Peeker interface {
	Peek(n int) ([]byte, error)
}

// netSocket adapts a net.Conn (as handed to the core once the external
// event loop and socket registry have decided a read is possible) to
// Socket, buffering reads so Peek can be supported without consuming.
type netSocket struct {
	conn net.Conn
	br   *bufio.Reader
}

// NewSocket wraps a net.Conn for use by the core.
func NewSocket(conn net.Conn) Socket {
	return &netSocket{conn: conn, br: bufio.NewReader(conn)}
}

func (s *netSocket) Recv(buf []byte) (int, error) { return s.br.Read(buf) }
func (s *netSocket) Send(buf []byte) (int, error) { return s.conn.Write(buf) }
func (s *netSocket) Close() error                 { return s.conn.Close() }
func (s *netSocket) Peek(n int) ([]byte, error)    { return s.br.Peek(n) }
