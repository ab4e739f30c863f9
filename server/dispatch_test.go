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

func TestHandlerDispatchRegisterAndLookup(t *testing.T) {
	d := NewHandlerDispatch()
	called := false
	d.Register(8080, HandlerHTTP, func(slot *ConnectionSlot) error {
		called = true
		return nil
	})

	fn, ok := d.Lookup(8080, HandlerHTTP)
	require_True(t, ok)
	require_NoError(t, fn(nil))
	require_True(t, called)
}

func TestHandlerDispatchMissReturnsFalse(t *testing.T) {
	d := NewHandlerDispatch()
	_, ok := d.Lookup(9999, HandlerWsUpgrade)
	require_False(t, ok)
}

func TestHandlerDispatchDistinguishesKindOnSamePort(t *testing.T) {
	d := NewHandlerDispatch()
	d.Register(8080, HandlerHTTP, func(slot *ConnectionSlot) error { return nil })
	d.Register(8080, HandlerWsUpgrade, func(slot *ConnectionSlot) error { return nil })

	_, ok1 := d.Lookup(8080, HandlerHTTP)
	_, ok2 := d.Lookup(8080, HandlerWsUpgrade)
	_, ok3 := d.Lookup(8080, HandlerWsMessage)
	require_True(t, ok1)
	require_True(t, ok2)
	require_False(t, ok3)
}

func TestDispatchKeyStableAcrossCalls(t *testing.T) {
	a := dispatchKey(443, HandlerWsMessage)
	b := dispatchKey(443, HandlerWsMessage)
	require_True(t, a == b)

	c := dispatchKey(443, HandlerHTTP)
	require_True(t, a != c)
}
