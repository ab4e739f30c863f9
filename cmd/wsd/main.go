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

// Command wsd is a minimal demonstration of wiring the wscore parsing
// engine to a real net.Listener. It is not the external event loop the
// package assumes in production (that owns epoll/kqueue-level readiness
// and connection registries); it stands in for one with the simplest
// thing that can drive Engine.Submit: one goroutine per connection.
package main

import (
	"flag"
	"log"
	"net"

	"github.com/kestrel-io/wscore/server"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	workers := flag.Int("workers", 8, "worker pool size")
	flag.Parse()

	opts := server.DefaultOptions()
	opts.Workers = *workers
	if err := opts.Validate(); err != nil {
		log.Fatalf("invalid options: %v", err)
	}

	notifyError := func(msg string) { log.Printf("error: %s", msg) }
	connectionLost := func(slot *server.ConnectionSlot) { log.Printf("connection lost: %s", slot.ID) }
	upgrade := func(view *server.RequestView, buf *server.ByteBuffer) bool { return true }
	onRequest := func(view *server.RequestView, buf *server.ByteBuffer, reply *server.ResponseFormatter) {
		body := []byte("ok")
		_ = reply.Reply(200, body, nil)
	}
	onMessage := func(opcode server.WsOpCode, payload []byte, slot *server.ConnectionSlot) {
		writer := server.NewWsFrameWriter(slot.Socket, nil)
		_ = writer.WriteMessage(payload, opcode == server.OpBinary)
	}

	engine := server.NewEngine(opts, notifyError, connectionLost, upgrade, onRequest, onMessage)
	engine.Start(*workers)
	defer engine.Stop()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	log.Printf("wsd listening on %s with %d workers", *addr, *workers)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("accept: %v", err)
			continue
		}
		go serveConn(engine, conn)
	}
}

// serveConn repeatedly hands slot to the engine. A real deployment would
// instead hand the socket back to an event loop and call Submit again
// only when the socket becomes readable; this demo has no event loop,
// so it resubmits in a tight loop and relies on each cycle's blocking
// Recv calls to pace it. That means at most one of these goroutines'
// submissions is ever actually in flight in the pool at a time, which
// is fine for a demo and wrong for anything handling real concurrency.
func serveConn(engine *server.Engine, conn net.Conn) {
	slot := server.NewConnectionSlot(server.NewSocket(conn), 0, server.HandlerHTTP)
	for {
		engine.Submit(slot)
	}
}
