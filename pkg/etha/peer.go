// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import (
	"fmt"
	"time"

	"github.com/dtn7/etha/pkg/wire"
)

// Recipient of a transmission, either a *Peer or a wire.NetID.
type Recipient interface {
	NetworkID() wire.NetID
}

// Peer is a remote participant, visible to exactly one Client. A Peer never changes, except for dying.
type Peer struct {
	id      wire.NetID
	origin  string
	channel string
	start   time.Time

	client *Client
	dead   bool
}

func newPeer(info wire.PeerInfo, client *Client) *Peer {
	return &Peer{
		id:      info.ID,
		origin:  info.Origin,
		channel: info.Channel,
		start:   info.Start,
		client:  client,
	}
}

// ID is the network id assigned by the relay.
func (p *Peer) ID() wire.NetID {
	return p.id
}

// NetworkID of this Peer.
func (p *Peer) NetworkID() wire.NetID {
	return p.id
}

// Origin of the Peer's bridge, as reported by the relay.
func (p *Peer) Origin() string {
	return p.origin
}

// Channel shared with this Peer.
func (p *Peer) Channel() string {
	return p.channel
}

// Start is the time this Peer joined.
func (p *Peer) Start() time.Time {
	return p.start
}

// Alive reports if this Peer is still present. A dropped Peer stays dead.
func (p *Peer) Alive() bool {
	return !p.dead
}

// Client to which this Peer is visible.
func (p *Peer) Client() *Client {
	return p.client
}

// Send a message of some registered kind to this Peer only.
func (p *Peer) Send(kind string, payload []byte) *Deferred {
	return p.client.Transmit(kind, payload, p)
}

func (p *Peer) String() string {
	return fmt.Sprintf("Peer(%d@%s)", p.id, p.channel)
}
