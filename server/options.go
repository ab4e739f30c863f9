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
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Default compile-time configuration from §6.
const (
	DefaultMaxHeaderLength    = 10000
	DefaultMaxRequestLength   = 100000
	DefaultMaxWsRequestLength = 100000
)

// Options configures an Engine. It mirrors the source's
// Options/WebsocketOpts idiom: a plain struct populated with defaults,
// then validated once at startup.
type Options struct {
	// MaxHeaderLength is exposed to header-reading helpers; the core
	// itself does not enforce it (§6), callers that want the limit
	// enforced should check it against bodyStart-methodLen themselves.
	MaxHeaderLength int
	// MaxRequestLength caps a single HTTP request ByteBuffer (§3
	// invariant 1); exceeding it closes the socket.
	MaxRequestLength int
	// MaxWsRequestLength caps a single websocket message ByteBuffer
	// (§3 invariant 4); exceeding it fails the message.
	MaxWsRequestLength int

	// Workers is the fixed worker pool size (§5).
	Workers int

	// HandshakeRejectSleep is the base sleep duration before closing a
	// socket whose upgrade was rejected (§4.7 point 3, §9). It is
	// jittered per-rejection; see jitterSleep.
	HandshakeRejectSleep time.Duration
	// HandshakeRateLimit and HandshakeBurst configure the token bucket
	// that decides whether a rejected handshake gets the sleep-then-close
	// treatment or an immediate close, bounding how many workers a burst
	// of rejected handshakes can tie up at once (§9, the "crude rate
	// limiting" note).
	HandshakeRateLimit rate.Limit
	HandshakeBurst     int
}

// DefaultOptions returns an Options populated with the defaults named
// in §6 and reasonable ambient defaults for the rest.
func DefaultOptions() *Options {
	return &Options{
		MaxHeaderLength:      DefaultMaxHeaderLength,
		MaxRequestLength:     DefaultMaxRequestLength,
		MaxWsRequestLength:   DefaultMaxWsRequestLength,
		Workers:              8,
		HandshakeRejectSleep: 3 * time.Second,
		HandshakeRateLimit:   rate.Limit(5),
		HandshakeBurst:       10,
	}
}

// Validate checks that the configured limits make sense, following the
// source's validateWebsocketOptions idiom of surfacing every
// configuration mistake before a single socket is accepted.
func (o *Options) Validate() error {
	if o.MaxRequestLength < minRequestLen {
		return errors.Errorf("MaxRequestLength must be at least %d bytes", minRequestLen)
	}
	if o.MaxWsRequestLength <= 0 {
		return errors.New("MaxWsRequestLength must be positive")
	}
	if o.Workers <= 0 {
		return errors.New("Workers must be positive")
	}
	if o.HandshakeRejectSleep < 0 {
		return errors.New("HandshakeRejectSleep must not be negative")
	}
	return nil
}
