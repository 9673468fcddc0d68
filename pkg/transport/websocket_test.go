// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dtn7/etha/pkg/wire"
)

type chanEvents struct {
	batches chan []*wire.Envelope
	closed  chan error
}

func newChanEvents() *chanEvents {
	return &chanEvents{
		batches: make(chan []*wire.Envelope, 10),
		closed:  make(chan error, 10),
	}
}

func (ce *chanEvents) Messages(batch []*wire.Envelope) {
	ce.batches <- batch
}

func (ce *chanEvents) Closed(err error) {
	ce.closed <- err
}

// helloServer answers a client's hello by a ready message and closes the connection afterwards.
func helloServer(t *testing.T, hellos chan<- *wire.Hello) *httptest.Server {
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()

		_, reader, err := conn.NextReader()
		if err != nil {
			t.Error(err)
			return
		}
		batch, err := wire.ReadBatch(reader)
		if err != nil || len(batch) != 1 {
			t.Errorf("reading hello failed: %v, %v", batch, err)
			return
		}
		hellos <- batch[0].Data.(*wire.Hello)

		wc, err := conn.NextWriter(websocket.BinaryMessage)
		if err != nil {
			t.Error(err)
			return
		}
		if err := wire.WriteBatch([]*wire.Envelope{wire.NewEnvelope(1, &wire.Ready{Origin: "test"})}, wc); err != nil {
			t.Error(err)
		}
		_ = wc.Close()

		// Wait for the client to hang up.
		_, _, _ = conn.NextReader()
	}))
}

func TestWebSocketDialer(t *testing.T) {
	hellos := make(chan *wire.Hello, 1)
	server := helloServer(t, hellos)
	defer server.Close()

	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")
	events := newChanEvents()

	ch, err := (&WebSocketDialer{}).Dial(endpoint, events)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case hello := <-hellos:
		if hello.Protocol != wire.ProtocolVersion || hello.Network != endpoint {
			t.Fatalf("unexpected hello %v", hello)
		}
	case <-time.After(time.Second):
		t.Fatal("server received no hello")
	}

	select {
	case batch := <-events.batches:
		if len(batch) != 1 || batch[0].Type() != wire.KindReady || batch[0].Received.IsZero() {
			t.Fatalf("unexpected batch %v", batch)
		}
	case <-time.After(time.Second):
		t.Fatal("client received nothing")
	}

	if err := ch.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ch.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ch.Send(wire.NewEnvelope(2, &wire.Die{})); err != ErrClosed {
		t.Fatalf("sending on a closed channel: %v", err)
	}

	select {
	case err := <-events.closed:
		t.Fatalf("local close was reported: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebSocketDialerUnreachable(t *testing.T) {
	events := newChanEvents()

	if _, err := (&WebSocketDialer{}).Dial("http://localhost/", events); err == nil {
		t.Fatal("non WebSocket scheme was accepted")
	}

	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	if _, err := (&WebSocketDialer{}).Dial(endpoint, events); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-events.closed:
		if err == nil {
			t.Fatal("closed without error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("failed dial was not reported")
	}
}
