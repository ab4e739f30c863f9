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

import "testing"

func loadInto(t *testing.T, buf *ByteBuffer, data string) {
	t.Helper()
	require_NoError(t, buf.Append([]byte(data)))
}

func TestParseRequestSimpleGet(t *testing.T) {
	buf := NewByteBuffer(256)
	loadInto(t, buf, "GET /index.html HTTP/1.1\r\n\r\n")

	var view RequestView
	require_NoError(t, ParseRequest(buf, &view))
	require_Equal(t, string(view.Method(buf)), "GET")
	require_Equal(t, string(view.URI(buf)), "/index.html")
}

func TestParseRequestTooShort(t *testing.T) {
	buf := NewByteBuffer(256)
	loadInto(t, buf, "GET / X")

	var view RequestView
	require_Error(t, ParseRequest(buf, &view), ErrRequestTooShort)
}

func TestParseRequestMalformedNoSecondSpace(t *testing.T) {
	buf := NewByteBuffer(256)
	loadInto(t, buf, "GET /index.htmlHTTP/1.1xx")

	var view RequestView
	require_Error(t, ParseRequest(buf, &view), ErrMalformedRequestLine)
}

func TestParseRequestUnsupportedVersion(t *testing.T) {
	buf := NewByteBuffer(256)
	loadInto(t, buf, "GET / HTTP/1.0\r\n\r\n")

	var view RequestView
	require_Error(t, ParseRequest(buf, &view), ErrUnsupportedVersion)
}

func TestParseRequestPostWithBody(t *testing.T) {
	buf := NewByteBuffer(256)
	loadInto(t, buf, "POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")

	var view RequestView
	require_NoError(t, ParseRequest(buf, &view))
	require_Equal(t, string(view.Method(buf)), "POST")
	require_Equal(t, string(view.URI(buf)), "/submit")

	found, bodyStart := ScanHeaderTerminator(buf, 0)
	require_True(t, found)
	view.BodyStart = bodyStart
	require_True(t, view.HasBody())
	require_BytesEqual(t, view.Body(buf), []byte("hello"))
}

// TestScanHeaderTerminatorAcrossRecvBoundary exercises the 4-byte
// overlap window: the request is fed in two appends at every possible
// split point, including the three that cut the CRLFCRLF terminator so
// that neither append holds all four bytes.
func TestScanHeaderTerminatorAcrossRecvBoundary(t *testing.T) {
	full := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	for split := 1; split < len(full); split++ {
		buf := NewByteBuffer(256)
		prevLen := 0
		found := false
		bodyStart := -1

		first := full[:split]
		second := full[split:]
		require_NoError(t, buf.Append([]byte(first)))
		found, bodyStart = ScanHeaderTerminator(buf, prevLen)
		prevLen = buf.Len()
		if !found {
			require_NoError(t, buf.Append([]byte(second)))
			found, bodyStart = ScanHeaderTerminator(buf, prevLen)
		}
		require_True(t, found)
		require_Len(t, bodyStart, len(full))
	}
}

func TestScanHeaderTerminatorNotYetComplete(t *testing.T) {
	buf := NewByteBuffer(256)
	loadInto(t, buf, "GET / HTTP/1.1\r\nHost: x\r\n\r")
	found, _ := ScanHeaderTerminator(buf, 0)
	require_False(t, found)
}
