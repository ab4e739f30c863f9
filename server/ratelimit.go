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
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// newHandshakeLimiter builds the token bucket guarding the
// sleep-then-close rejection path (§9): once exhausted, a burst of
// rejected handshakes gets an immediate close instead of each holding a
// worker for HandshakeRejectSleep.
func newHandshakeLimiter(o *Options) *rate.Limiter {
	return rate.NewLimiter(o.HandshakeRateLimit, o.HandshakeBurst)
}

// jitterSleep spreads a fixed backoff by +/-20%, so that many clients
// rejected at the same instant do not all retry in lockstep. This is a
// small, ambient, numeric-only concern with no third-party surface in
// the dependency pack that fits it without guessing at an unverified
// API (see DESIGN.md); math/rand is used directly.
func jitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	factor := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(base) * factor)
}
