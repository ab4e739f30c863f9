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
	"net/http"
	"strconv"
)

// HeaderLine is a single "Name: Value" line appended after the status
// line and before the mandatory Content-Length.
type HeaderLine struct {
	Name  string
	Value string
}

// ResponseFormatter builds and writes HTTP/1.1 responses to a Socket. It
// holds no per-request state beyond the socket and shutdown flag, so one
// instance can be reused for every request a worker handles.
type ResponseFormatter struct {
	sock     Socket
	shutdown *ShutdownFlag
}

// NewResponseFormatter binds a formatter to the socket it writes to.
func NewResponseFormatter(sock Socket, shutdown *ShutdownFlag) *ResponseFormatter {
	return &ResponseFormatter{sock: sock, shutdown: shutdown}
}

// Reply formats "HTTP/1.1 <code> <reason>\r\n", any extra header lines,
// a Content-Length line sized to body (0 if body is empty), the blank
// line, and then body itself, writing the whole thing to the socket.
func (f *ResponseFormatter) Reply(code int, body []byte, headers []HeaderLine) error {
	buf := make([]byte, 0, 256+len(body))
	buf = appendStatusLine(buf, code)
	for _, h := range headers {
		buf = append(buf, h.Name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, h.Value...)
		buf = append(buf, '\r', '\n')
	}
	buf = append(buf, "Content-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(body)), 10)
	buf = append(buf, '\r', '\n', '\r', '\n')
	buf = append(buf, body...)
	return sendAll(f.sock, f.shutdown, buf)
}

// ReplyCode writes just the status line plus a blank line, with no
// headers and no body.
func (f *ResponseFormatter) ReplyCode(code int) error {
	buf := appendStatusLine(nil, code)
	buf = append(buf, '\r', '\n')
	return sendAll(f.sock, f.shutdown, buf)
}

func appendStatusLine(buf []byte, code int) []byte {
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(code), 10)
	buf = append(buf, ' ')
	buf = append(buf, http.StatusText(code)...)
	buf = append(buf, '\r', '\n')
	return buf
}
