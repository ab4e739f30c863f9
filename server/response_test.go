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

func TestResponseFormatterReply(t *testing.T) {
	sock := newTestSocket(nil)
	f := NewResponseFormatter(sock, nil)
	require_NoError(t, f.Reply(200, []byte("hi"), []HeaderLine{{Name: "X-Test", Value: "v"}}))

	out := sock.out.String()
	require_True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	require_True(t, strings.Contains(out, "X-Test: v\r\n"))
	require_True(t, strings.Contains(out, "Content-Length: 2\r\n\r\nhi"))
}

func TestResponseFormatterReplyCode(t *testing.T) {
	sock := newTestSocket(nil)
	f := NewResponseFormatter(sock, nil)
	require_NoError(t, f.ReplyCode(204))

	out := sock.out.String()
	require_Equal(t, out, "HTTP/1.1 204 No Content\r\n\r\n")
}
