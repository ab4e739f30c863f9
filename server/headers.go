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
	"strconv"
)

// maxHeaderNameBuf bounds the scratch buffer used while lowercasing a
// field name during the walk; field names longer than this still parse
// correctly, they just never match anything (and are never inserted
// under a truncated key in Mode B, since the walker flags the overflow).
const maxHeaderNameBuf = 128

type headerWalkState int

const (
	hwName headerWalkState = iota
	hwValue
)

// walkHeaders runs the per-byte state machine described for
// HeaderExtractor: state Name accumulates lowercase bytes until ':',
// state Value drops a single leading space and otherwise passes bytes
// through untouched (a stray ':' inside a value is preserved), and each
// '\n' commits the (name, value) pair and resets to Name. end is the
// exclusive end of the header block to scan (normally bodyStart-2, to
// stop before the trailing blank line).
func walkHeaders(data []byte, end int, onLine func(name, value []byte)) {
	var nameBuf [maxHeaderNameBuf]byte
	nameLen := 0
	overflowed := false
	state := hwName
	valueStart := 0

	// Skip the request line itself: an absolute-form URI or a CONNECT
	// host:port target can contain a ':' that would otherwise look like
	// a header separator to the state machine below.
	start := 0
	if nl := bytes.IndexByte(data[:end], '\n'); nl >= 0 {
		start = nl + 1
	}

	for i := start; i < end; i++ {
		b := data[i]
		switch state {
		case hwName:
			switch b {
			case ':':
				valueStart = i + 1
				if valueStart < end && data[valueStart] == ' ' {
					valueStart++
				}
				state = hwValue
			case '\n':
				// Blank or malformed line; ignore and keep scanning.
				nameLen, overflowed = 0, false
			default:
				c := b
				if c >= 'A' && c <= 'Z' {
					c += 'a' - 'A'
				}
				if nameLen < len(nameBuf) {
					nameBuf[nameLen] = c
					nameLen++
				} else {
					overflowed = true
				}
			}
		case hwValue:
			if b == '\n' {
				end := i
				if end > 0 && data[end-1] == '\r' {
					end--
				}
				if !overflowed {
					onLine(nameBuf[:nameLen], data[valueStart:end])
				}
				nameLen, overflowed = 0, false
				state = hwName
			}
			// A stray ':' inside the value, or anything else, is left
			// as-is: the value slice is taken verbatim at '\n'.
		}
	}
}

// ExtractFixed implements HeaderExtractor Mode A: fields are lowercase
// field names, out is a parallel slice of value slices. A later
// occurrence of a field overwrites an earlier one (last wins), so the
// whole header block is always walked.
func ExtractFixed(buf *ByteBuffer, headerEnd int, fields []string, out [][]byte) {
	walkHeaders(buf.Bytes(), headerEnd, func(name, value []byte) {
		for i, f := range fields {
			if bytes.Equal(name, []byte(f)) {
				out[i] = value
				return
			}
		}
	})
}

// ExtractMap implements HeaderExtractor Mode B: every parsed line is
// inserted into dst keyed by its lowercased field name. Later
// occurrences overwrite earlier ones.
func ExtractMap(buf *ByteBuffer, headerEnd int, dst map[string][]byte) {
	walkHeaders(buf.Bytes(), headerEnd, func(name, value []byte) {
		dst[string(name)] = append([]byte(nil), value...)
	})
}

// contentLengthNeedles are the two literal prefixes the fast path looks
// for, deliberately not a full case-fold: this mirrors the source's
// choice to special-case the two spellings that overwhelmingly dominate
// real traffic rather than pay for a generic case-insensitive scan on
// every request.
var contentLengthNeedles = [][]byte{
	[]byte("content-length: "),
	[]byte("Content-Length: "),
}

// ContentLength scans buf for a Content-Length header and returns its
// value, or 0 if absent or unparseable. Per the source this scans the
// whole buffer rather than stopping at the end of the header block;
// that is safe only because no request body legitimately contains the
// literal needle before the header terminator has been seen. See
// DESIGN.md for the flagged, deliberately-preserved safety tradeoff.
func ContentLength(buf *ByteBuffer) int {
	data := buf.Bytes()
	idx := -1
	var needleLen int
	for _, needle := range contentLengthNeedles {
		if i := bytes.Index(data, needle); i >= 0 {
			idx = i
			needleLen = len(needle)
			break
		}
	}
	if idx < 0 {
		return 0
	}
	start := idx + needleLen
	end := start
	for end < len(data) && data[end] != '\r' {
		end++
	}
	n, err := strconv.Atoi(string(data[start:end]))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
