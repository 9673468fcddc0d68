// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import (
	"errors"
	"testing"
	"time"

	"github.com/dtn7/etha/pkg/ordered"
	"github.com/dtn7/etha/pkg/transport"
	"github.com/dtn7/etha/pkg/wire"
)

// mockLoop is a manually driven Loop. Posted functions run on flush, timers on advance.
type mockLoop struct {
	queue  []func()
	timers []*mockTimer
	now    time.Duration
}

type mockTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
}

func (t *mockTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (l *mockLoop) Post(fn func()) {
	l.queue = append(l.queue, fn)
}

func (l *mockLoop) Do(fn func()) {
	fn()
	l.flush()
}

func (l *mockLoop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &mockTimer{at: l.now + d, fn: fn}
	l.timers = append(l.timers, t)
	return t
}

func (l *mockLoop) flush() {
	for len(l.queue) > 0 {
		fn := l.queue[0]
		l.queue = l.queue[1:]
		fn()
	}
}

// advance the clock and fire all due timers in order.
func (l *mockLoop) advance(d time.Duration) {
	l.now += d
	for {
		var next *mockTimer
		for _, t := range l.timers {
			if !t.stopped && t.at <= l.now && (next == nil || t.at < next.at) {
				next = t
			}
		}
		if next == nil {
			return
		}

		next.stopped = true
		next.fn()
		l.flush()
	}
}

// mockChannel records sent Envelopes.
type mockChannel struct {
	address string
	events  transport.Events
	sent    []*wire.Envelope
	closed  bool
	sendErr error
}

func (ch *mockChannel) Send(batch ...*wire.Envelope) error {
	if ch.closed {
		return transport.ErrClosed
	} else if ch.sendErr != nil {
		return ch.sendErr
	}
	ch.sent = append(ch.sent, batch...)
	return nil
}

func (ch *mockChannel) Close() error {
	ch.closed = true
	return nil
}

// ofKind returns all sent Envelopes of some kind.
func (ch *mockChannel) ofKind(kind string) (envs []*wire.Envelope) {
	for _, env := range ch.sent {
		if env.Type() == kind {
			envs = append(envs, env)
		}
	}
	return
}

type mockDialer struct {
	channels []*mockChannel
	err      error
}

func (d *mockDialer) Dial(address string, events transport.Events) (transport.Channel, error) {
	if d.err != nil {
		return nil, d.err
	}
	ch := &mockChannel{address: address, events: events}
	d.channels = append(d.channels, ch)
	return ch, nil
}

// harness bundles a Network with its mocks.
type harness struct {
	t       *testing.T
	loop    *mockLoop
	dialer  *mockDialer
	network *Network
	nextID  uint64
}

func newHarness(t *testing.T) *harness {
	loop := &mockLoop{}
	dialer := &mockDialer{}
	return &harness{
		t:       t,
		loop:    loop,
		dialer:  dialer,
		network: NewNetwork(loop, dialer),
	}
}

// channel returns the most recently dialed channel.
func (h *harness) channel() *mockChannel {
	if len(h.dialer.channels) == 0 {
		h.t.Fatal("nothing was dialed")
	}
	return h.dialer.channels[len(h.dialer.channels)-1]
}

// deliver payloads as one batch from the relay.
func (h *harness) deliver(ch *mockChannel, payloads ...wire.Payload) {
	now := time.Now()
	batch := make([]*wire.Envelope, 0, len(payloads))
	for _, p := range payloads {
		h.nextID++
		batch = append(batch, &wire.Envelope{ID: 1000 + h.nextID, Sent: now, Received: now, Data: p})
	}
	ch.events.Messages(batch)
	h.loop.flush()
}

// authRequest returns the entries of the n-th sent auth request.
func (h *harness) authRequest(ch *mockChannel, n int) []wire.AuthEntry {
	rqs := ch.ofKind(wire.KindAuthRq)
	if len(rqs) <= n {
		h.t.Fatalf("only %d auth requests were sent, wanted #%d", len(rqs), n)
	}
	return rqs[n].Data.(*wire.AuthRequest).Entries
}

// connect opens clients on "room@local", makes the relay ready and authenticates them with consecutive ids,
// starting at 1. Each client sees the others as initial peers.
func (h *harness) connect(targets ...string) []*Client {
	clients := make([]*Client, len(targets))
	for i, target := range targets {
		clients[i] = h.network.NewClient().Open(target)
	}
	h.loop.flush()

	ch := h.channel()
	h.deliver(ch, &wire.Ready{Origin: "ws://relay"})

	entries := h.authRequest(ch, 0)
	if len(entries) != len(targets) {
		h.t.Fatalf("auth request has %d entries instead of %d", len(entries), len(targets))
	}

	var replies []wire.Payload
	for i, entry := range entries {
		var peers []wire.PeerInfo
		for j, other := range entries {
			if j != i && other.Channel == entry.Channel {
				peers = append(peers, wire.PeerInfo{ID: wire.NetID(j + 1), Channel: other.Channel, Origin: "test"})
			}
		}
		replies = append(replies, &wire.AuthReply{Slot: entry.Slot, NetworkID: wire.NetID(i + 1), OK: true, Peers: peers})
	}
	h.deliver(ch, replies...)

	for i, c := range clients {
		if c.State() != StateReady {
			h.t.Fatalf("client %d is %v", i, c.State())
		}
	}
	return clients
}

// checkInvariants of a Bridge's registries.
func checkInvariants(t *testing.T, b *Bridge) {
	t.Helper()

	b.agents.Each(func(slot uint64, a *Agent) bool {
		if b.queued.Has(slot) && b.pending.Has(slot) {
			t.Fatalf("%v is both queued and pending", a)
		}
		return true
	})
	for _, reg := range []interface{ Keys() []uint64 }{b.queued, b.pending} {
		for _, slot := range reg.Keys() {
			if !b.agents.Has(slot) {
				t.Fatalf("slot %d is registered without being an agent", slot)
			}
		}
	}

	b.channels.Each(func(name string, members *orderedAgents) bool {
		if members.Len() == 0 {
			t.Fatalf("channel %s is empty", name)
		}
		members.Each(func(id wire.NetID, a *Agent) bool {
			if a.channel != name || a.id != id || !b.agents.Has(a.slot) {
				t.Fatalf("%v is misplaced in channel %s", a, name)
			}
			return true
		})
		return true
	})

	b.agents.Each(func(_ uint64, a *Agent) bool {
		if a.state != StateReady {
			return true
		}
		if members, ok := b.channels.Get(a.channel); !ok || !members.Has(a.id) {
			t.Fatalf("ready %v is missing in its channel", a)
		}
		return true
	})
}

type orderedAgents = ordered.Map[wire.NetID, *Agent]

var errMock = errors.New("mock failure")
