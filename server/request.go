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
	"bytes"

	"github.com/pkg/errors"
)

// minRequestLen is the smallest request-line that can possibly carry a
// method, a URI and an HTTP/1.1 version: "GET / HTTP/1.1" is 14 bytes,
// but the parser only needs 13 to locate the two spaces and the version
// marker byte before it requires the rest to already be buffered.
const minRequestLen = 13

var (
	// ErrRequestTooShort is returned when fewer than minRequestLen bytes
	// are available; the caller should close the socket.
	ErrRequestTooShort = errors.New("request shorter than minimum request-line")
	// ErrMalformedRequestLine is returned when the method/URI separators
	// cannot be located.
	ErrMalformedRequestLine = errors.New("malformed request-line")
	// ErrUnsupportedVersion is returned when the two bytes at the version
	// marker position do not read as HTTP/1.1.
	ErrUnsupportedVersion = errors.New("unsupported http version")
	// ErrRequestTooLong is returned when a request (headers or body)
	// would exceed MaxRequestLength (§3 invariant 1).
	ErrRequestTooLong = errors.New("request exceeds maximum length")
)

// RequestView is a set of zero-copy offsets over a ByteBuffer describing
// the most recently parsed request. It never owns bytes; Method, URI and
// Body all return sub-slices of the ByteBuffer that produced them.
type RequestView struct {
	MethodLen int
	URIStart  int
	URILen    int
	BodyStart int // -1 until the header block has been located
}

func (v *RequestView) reset() {
	v.MethodLen = 0
	v.URIStart = 0
	v.URILen = 0
	v.BodyStart = -1
}

// Method returns the method token, e.g. "GET".
func (v *RequestView) Method(buf *ByteBuffer) []byte {
	return buf.Bytes()[:v.MethodLen]
}

// URI returns the request-target, e.g. "/index.html".
func (v *RequestView) URI(buf *ByteBuffer) []byte {
	return buf.Bytes()[v.URIStart : v.URIStart+v.URILen]
}

// HasBody reports whether the header block has been located (bodyStart
// is known), which is a prerequisite for reading Body.
func (v *RequestView) HasBody() bool {
	return v.BodyStart >= 0
}

// Body returns everything from bodyStart to the current fill length.
// Callers still need ContentLength to know how much of this is theirs.
func (v *RequestView) Body(buf *ByteBuffer) []byte {
	if v.BodyStart < 0 {
		return nil
	}
	return buf.Bytes()[v.BodyStart:]
}

// ParseRequest decodes the request-line (method, URI, and the minimal
// HTTP/1.1 version check) out of buf into view. It does not touch
// headers or bodyStart; those are the job of ScanHeaderTerminator and
// HeaderExtractor. buf must already contain the full header block (or
// at least the full request line) by the time this is called — in the
// worker read cycle, ScanHeaderTerminator gates that.
func ParseRequest(buf *ByteBuffer, view *RequestView) error {
	view.reset()

	n := buf.Len()
	if n < minRequestLen {
		return ErrRequestTooShort
	}
	data := buf.Bytes()

	sp1 := bytes.IndexByte(data, ' ')
	if sp1 <= 0 {
		return ErrMalformedRequestLine
	}
	rest := data[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 < 0 {
		return ErrMalformedRequestLine
	}

	uriStart := sp1 + 1
	uriLen := sp2
	verMarker := uriStart + uriLen + 1
	verEnd := uriStart + uriLen + 8
	if verEnd >= n {
		return ErrMalformedRequestLine
	}

	// Sole HTTP/1.1 check, intentionally just these two bytes: the core
	// rejects everything else (HTTP/1.0, HTTP/2 prefaces, garbage) by
	// closing the socket rather than spelling out every rejection.
	if data[verMarker] != 'H' || data[verEnd] != '1' {
		return ErrUnsupportedVersion
	}

	view.MethodLen = sp1
	view.URIStart = uriStart
	view.URILen = uriLen
	return nil
}

// ScanHeaderTerminator looks for the first "\r\n\r\n" in buf, searching
// only the region that could not have been fully scanned already: from
// max(prevLen-4, 0) to the current length minus 4. The four-byte overlap
// with the previous scan guarantees a terminator split across two recv
// calls is never missed. It reports the match position (the index right
// after the terminator, i.e. bodyStart) when found.
func ScanHeaderTerminator(buf *ByteBuffer, prevLen int) (found bool, bodyStart int) {
	data := buf.Bytes()
	c := len(data)

	start := prevLen - 4
	if start < 0 {
		start = 0
	}
	end := c - 4
	if end < start {
		return false, -1
	}
	for i := start; i <= end; i++ {
		if data[i] == '\r' && data[i+1] == '\n' && data[i+2] == '\r' && data[i+3] == '\n' {
			return true, i + 4
		}
	}
	return false, -1
}
