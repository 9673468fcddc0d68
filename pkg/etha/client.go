// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import (
	"github.com/dtn7/etha/pkg/wire"
)

// Client is an application's identity within a channel of some relay. A Client survives being closed and
// might be opened again, possibly targeting another channel or endpoint.
type Client struct {
	// Channel to join on the next Open.
	Channel string
	// Endpoint to connect to on the next Open, either an alias or an address.
	Endpoint string
	// Credentials to be presented to the relay on the next Open.
	Credentials []string

	// Peers currently visible to this Client. It must not be modified.
	Peers map[wire.NetID]*Peer

	network *Network
	id      wire.NetID
	state   State
	agent   *Agent

	onJoin        listeners[JoinEvent]
	onDrop        listeners[DropEvent]
	onConnect     listeners[ConnectEvent]
	onDisconnect  listeners[DisconnectEvent]
	onStateChange listeners[StateChangeEvent]
}

// ID is the network id assigned by the relay, or zero.
func (c *Client) ID() wire.NetID {
	return c.id
}

// State of this Client.
func (c *Client) State() State {
	return c.state
}

// Network of this Client.
func (c *Client) Network() *Network {
	return c.network
}

// Open connects this Client. The target is "channel@endpoint" or just a channel name; the credentials are
// passed on to the relay. An empty target reuses the previous channel and endpoint, and the previous
// credentials unless new ones are given.
//
// An already open Client is closed first. If a listener opened the Client again during this closing, Open
// does not interfere.
func (c *Client) Open(target string, credentials ...string) *Client {
	if target != "" {
		channel, endpoint := parseTarget(target)
		if channel != "" {
			c.Channel = channel
		}
		if endpoint != "" {
			c.Endpoint = endpoint
		}
	}
	if target != "" || len(credentials) > 0 {
		c.Credentials = credentials
	}

	if old := c.agent; old != nil {
		old.kill()

		if c.agent != nil && c.agent != old {
			return c
		}
	}

	bridge := c.network.bridgeFor(c.Endpoint)

	c.Peers = make(map[wire.NetID]*Peer)
	c.id = 0

	agent := newAgent(c.network.nextSlot(), c, bridge)
	c.agent = agent
	bridge.join(agent)

	if bridge.state == StateInitial {
		bridge.open()
	}

	return c
}

// Close this Client. Closing a closed Client has no effect.
func (c *Client) Close() *Client {
	if c.agent != nil {
		c.agent.kill()
	}
	return c
}

// Transmit a message of some registered type to the listed Recipients or to the whole channel, if none are
// given. The resulting Deferred is resolved by the relay's acknowledgement; invalid requests are rejected
// immediately.
func (c *Client) Transmit(kind string, payload []byte, to ...Recipient) *Deferred {
	agent := c.agent
	request := newRequest(c.network, agent)

	var bridge *Bridge
	if agent != nil {
		bridge = agent.bridge
	}

	_, registered := c.network.handler(kind)
	broadcast := len(to) == 0

	valid := bridge != nil && bridge.state == StateReady && agent.state == StateReady && kind != "" && registered

	var recipients []wire.NetID
	if valid && !broadcast {
		recipients, valid = agent.vetPeers(to)
	}

	if !valid {
		request.no(StatusInvalid)
		return request.deferred
	}

	msg := &wire.ClientMessage{
		Subtype:   kind,
		RequestID: request.id,
		From:      agent.id,
		To:        recipients,
		Broadcast: broadcast,
		Payload:   payload,
	}
	if bridge.send(msg) != 0 {
		request.log()
	} else {
		request.no(StatusFailed)
	}

	return request.deferred
}

// OnJoin registers a listener for appearing Peers. The returned function removes the listener.
func (c *Client) OnJoin(fn func(JoinEvent)) (cancel func()) {
	return c.onJoin.add(fn)
}

// OnDrop registers a listener for vanishing Peers.
func (c *Client) OnDrop(fn func(DropEvent)) (cancel func()) {
	return c.onDrop.add(fn)
}

// OnConnect registers a listener for successful authentications.
func (c *Client) OnConnect(fn func(ConnectEvent)) (cancel func()) {
	return c.onConnect.add(fn)
}

// OnDisconnect registers a listener for the closing of a connected Client.
func (c *Client) OnDisconnect(fn func(DisconnectEvent)) (cancel func()) {
	return c.onDisconnect.add(fn)
}

// OnStateChange registers a listener for state transitions.
func (c *Client) OnStateChange(fn func(StateChangeEvent)) (cancel func()) {
	return c.onStateChange.add(fn)
}
