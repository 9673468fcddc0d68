// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import "time"

// JoinEvent announces a Peer. Initial is set for Peers which were already present when the Client connected.
type JoinEvent struct {
	Peer    *Peer
	Initial bool
}

// DropEvent announces a Peer's departure.
type DropEvent struct {
	Peer *Peer
}

// ConnectEvent is fired after a Client was authenticated.
type ConnectEvent struct{}

// DisconnectEvent is fired when a connected Client is closing. Address is the former "channel@endpoint".
type DisconnectEvent struct {
	Address string
	Joined  time.Time
}

// StateChangeEvent is fired on each Client state transition.
type StateChangeEvent struct {
	New State
	Old State
}

// listeners is a list of callbacks for one kind of event.
type listeners[E any] struct {
	next int
	fns  []listener[E]
}

type listener[E any] struct {
	id int
	fn func(E)
}

// add a callback and return a function to remove it again.
func (l *listeners[E]) add(fn func(E)) (cancel func()) {
	l.next++
	id := l.next
	l.fns = append(l.fns, listener[E]{id: id, fn: fn})

	return func() {
		for i, entry := range l.fns {
			if entry.id == id {
				l.fns = append(l.fns[:i:i], l.fns[i+1:]...)
				return
			}
		}
	}
}

// fire calls every callback registered at the time of the call.
func (l *listeners[E]) fire(event E) {
	fns := l.fns
	for _, entry := range fns {
		entry.fn(event)
	}
}
