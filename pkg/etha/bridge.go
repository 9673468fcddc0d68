// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/etha/pkg/ordered"
	"github.com/dtn7/etha/pkg/transport"
	"github.com/dtn7/etha/pkg/wire"
)

// Bridge is the connection to one relay endpoint, shared by all Clients targeting this endpoint.
//
// Each Agent is registered in agents. Until its authentication succeeded, it is also either queued or
// pending. A channel entry exists as long as at least one authenticated Agent is in it.
type Bridge struct {
	network  *Network
	endpoint string
	state    State
	origin   string

	channel transport.Channel

	agents   *ordered.Map[uint64, *Agent]
	queued   *ordered.Map[uint64, *Agent]
	pending  *ordered.Map[uint64, *Agent]
	authed   *ordered.Map[wire.NetID, *Agent]
	channels *ordered.Map[string, *ordered.Map[wire.NetID, *Agent]]
	requests *ordered.Map[uint64, *Request]

	// nids knows each network id seen on this bridge, both local Agents and remote Peers.
	nids map[wire.NetID]wire.PeerInfo

	abortTimer Timer
	authTimer  Timer
}

func newBridge(network *Network, endpoint string) *Bridge {
	return &Bridge{
		network:  network,
		endpoint: endpoint,

		agents:   ordered.New[uint64, *Agent](),
		queued:   ordered.New[uint64, *Agent](),
		pending:  ordered.New[uint64, *Agent](),
		authed:   ordered.New[wire.NetID, *Agent](),
		channels: ordered.New[string, *ordered.Map[wire.NetID, *Agent]](),
		requests: ordered.New[uint64, *Request](),

		nids: make(map[wire.NetID]wire.PeerInfo),
	}
}

func (b *Bridge) String() string {
	return fmt.Sprintf("Bridge(%s, %v)", b.endpoint, b.state)
}

func (b *Bridge) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"bridge": b.endpoint,
		"state":  b.state,
	})
}

// Endpoint identifies this Bridge.
func (b *Bridge) Endpoint() string {
	return b.endpoint
}

// State of this Bridge.
func (b *Bridge) State() State {
	return b.state
}

// Origin as announced by the relay.
func (b *Bridge) Origin() string {
	return b.origin
}

// open starts connecting to the relay. The Bridge is destroyed if the relay does not become ready in time.
func (b *Bridge) open() {
	if b.state != StateInitial {
		return
	}
	b.state = StateQueued

	b.delayAbort(b.network.BridgeTimeout)

	address := b.network.Resolve(b.endpoint)
	ch, err := b.network.Dialer.Dial(address, bridgeEvents{b})
	if err != nil {
		b.logger().WithError(err).WithField("address", address).Warn("Dialing relay errored")
		b.destroy()
		return
	} else if b.state == StateClosing {
		_ = ch.Close()
		return
	}

	b.channel = ch
	if b.state == StateQueued {
		b.state = StatePending
	}

	b.logger().WithField("address", address).Debug("Bridge waits for relay")
}

// bridgeEvents moves a Channel's events onto the Loop.
type bridgeEvents struct {
	bridge *Bridge
}

func (be bridgeEvents) Messages(batch []*wire.Envelope) {
	be.bridge.network.Loop.Post(func() { be.bridge.route(batch) })
}

func (be bridgeEvents) Closed(err error) {
	be.bridge.network.Loop.Post(func() {
		if be.bridge.state == StateClosing {
			return
		}
		be.bridge.logger().WithError(err).Info("Relay channel was closed")
		be.bridge.destroy()
	})
}

// route dispatches a batch of Envelopes. Routing stops as soon as the Bridge is closing.
func (b *Bridge) route(batch []*wire.Envelope) {
	for _, env := range batch {
		if b.state == StateClosing {
			return
		}

		if err := env.CheckValid(); err != nil {
			b.logger().WithError(err).WithField("envelope", env).Debug("Ignoring invalid envelope")
			continue
		}

		switch data := env.Data.(type) {
		case *wire.Ready:
			b.onReady(data)
		case *wire.AuthReply:
			b.onAuth(env, data)
		case *wire.Net:
			b.onNet(data)
		case *wire.Die:
			b.onDie(data)
		case *wire.ClientMessage:
			b.onClient(env, data)
		case *wire.Sent:
			b.onSent(data)
		default:
			b.logger().WithField("envelope", env).Debug("Ignoring unsupported envelope")
		}
	}
}

func (b *Bridge) onReady(msg *wire.Ready) {
	if b.state >= StateReady {
		return
	}

	b.delayAbort(0)
	b.origin = msg.Origin
	b.state = StateReady

	b.logger().WithField("origin", msg.Origin).Info("Relay is ready")

	if b.queued.Len() > 0 {
		b.authAgents()
	} else {
		b.destroy()
	}
}

func (b *Bridge) onAuth(env *wire.Envelope, msg *wire.AuthReply) {
	if b.state != StateReady {
		return
	}

	agent, ok := b.pending.Get(msg.Slot)
	if !ok || !msg.OK {
		b.logger().WithFields(log.Fields{
			"slot":   msg.Slot,
			"reason": msg.Reason,
		}).Info("Authentication was denied or refers to an unknown agent")

		if known, exists := b.agents.Get(msg.Slot); exists {
			b.drop(known)
		} else if msg.OK && msg.NetworkID != 0 {
			// The Agent left while pending; release its admission.
			b.send(&wire.Drop{Slot: msg.Slot, NetworkID: msg.NetworkID})
		}
		return
	}

	client := agent.client
	agent.id = msg.NetworkID
	if agent.current() {
		client.id = msg.NetworkID
	}
	agent.joined = env.Sent

	b.pending.Delete(agent.slot)
	b.nids[agent.id] = wire.PeerInfo{ID: agent.id, Channel: agent.channel, Origin: b.origin, Start: env.Sent}
	b.authed.Set(agent.id, agent)
	b.channels.GetOrSet(agent.channel, ordered.New[wire.NetID, *Agent]).Set(agent.id, agent)

	agent.peers.Clear()
	if agent.current() {
		client.Peers = make(map[wire.NetID]*Peer)
	}
	for _, info := range msg.Peers {
		agent.addPeer(info, true)
	}

	if !agent.change(StateReady) {
		return
	}

	for _, peer := range agent.peers.Values() {
		agent.announcePeer(peer, true)
		if agent.state != StateReady {
			return
		}
	}
}

// onNet applies all joins of a batch before its drops.
func (b *Bridge) onNet(msg *wire.Net) {
	for _, info := range msg.Joins {
		if b.state != StateReady {
			return
		}

		members, ok := b.channels.Get(info.Channel)
		if !ok {
			continue
		}

		members.Each(func(_ wire.NetID, agent *Agent) bool {
			if b.state != StateReady {
				return false
			}
			if agent.state == StateReady {
				agent.addPeer(info, false)
			}
			return true
		})
	}

	for _, dropSet := range msg.Drops {
		if b.state != StateReady {
			return
		}

		members, ok := b.channels.Get(dropSet.Channel)
		if !ok {
			continue
		}

		for _, id := range dropSet.IDs {
			if _, local := b.authed.Get(id); !local {
				delete(b.nids, id)
			}
		}

		members.Each(func(_ wire.NetID, agent *Agent) bool {
			if b.state != StateReady {
				return false
			}
			if agent.state == StateReady {
				for _, id := range dropSet.IDs {
					agent.removePeer(id)
				}
			}
			return true
		})
	}
}

func (b *Bridge) onDie(msg *wire.Die) {
	b.logger().WithField("code", msg.Code).Info("Relay requested shutdown")
	b.destroy()
}

func (b *Bridge) onClient(env *wire.Envelope, msg *wire.ClientMessage) {
	if b.state != StateReady {
		return
	}

	handler, ok := b.network.handler(msg.Subtype)
	if !ok {
		return
	}
	sender, ok := b.nids[msg.From]
	if !ok {
		return
	}
	members, ok := b.channels.Get(sender.Channel)
	if !ok {
		return
	}

	recipients := msg.To
	if msg.Broadcast {
		recipients = members.Keys()
	}

	meta := Meta{
		MessageID:  env.ID,
		Sent:       env.Sent,
		Received:   env.Received,
		Broadcast:  msg.Broadcast,
		Recipients: len(recipients),
	}

	for _, id := range recipients {
		if b.state != StateReady {
			return
		}

		agent, ok := members.Get(id)
		if !ok || agent.state != StateReady {
			continue
		}

		client := agent.client
		if client.Peers == nil {
			continue
		}
		from, ok := client.Peers[msg.From]
		if !ok || from == nil || !agent.peers.Has(msg.From) {
			continue
		}

		handler(client, from, msg.Payload, meta)
	}
}

func (b *Bridge) onSent(msg *wire.Sent) {
	request, ok := b.requests.Delete(msg.RequestID)
	if !ok || request.agent.state != StateReady {
		return
	}

	if msg.OK {
		request.yes(msg.Status)
	} else {
		request.no(msg.Status)
	}
}

// join queues an Agent for authentication.
func (b *Bridge) join(agent *Agent) {
	if !agent.change(StateQueued) {
		return
	}

	b.queued.Set(agent.slot, agent)
	b.agents.Set(agent.slot, agent)

	if b.state == StateReady {
		b.delayAuths(true)
	}
}

// drop removes an Agent. The Bridge is destroyed when its last Agent left.
func (b *Bridge) drop(agent *Agent) {
	state := agent.state
	if state == StateClosing {
		return
	}

	switch state {
	case StateQueued:
		b.queued.Delete(agent.slot)
	case StatePending:
		b.pending.Delete(agent.slot)
	}
	b.agents.Delete(agent.slot)

	if agent.id != 0 {
		b.authed.Delete(agent.id)
		delete(b.nids, agent.id)

		if members, ok := b.channels.Get(agent.channel); ok {
			members.Delete(agent.id)
			if members.Len() == 0 {
				b.channels.Delete(agent.channel)
			}
		}
	}

	agent.change(StateClosing)
	if agent.current() {
		agent.client.agent = nil
	}

	if b.agents.Len() == 0 {
		b.destroy()
	} else if state > StateQueued {
		b.send(&wire.Drop{Slot: agent.slot, NetworkID: agent.id})
	}
}

// delayAuths (re)schedules authAgents. Without schedule, a pending authentication is canceled.
func (b *Bridge) delayAuths(schedule bool) {
	if b.authTimer != nil {
		b.authTimer.Stop()
		b.authTimer = nil
	}

	if schedule {
		b.authTimer = b.network.Loop.AfterFunc(b.network.AuthDelay, b.authAgents)
	}
}

// authAgents requests the authentication of all queued Agents in one batch. Agents closed by a listener
// while becoming pending are left out.
func (b *Bridge) authAgents() {
	if b.state != StateReady || b.queued.Len() == 0 {
		return
	}

	b.delayAuths(false)

	queued := b.queued.Copy()
	b.queued.Clear()

	entries := ordered.FilterMap(queued, func(slot uint64, agent *Agent) (wire.AuthEntry, bool) {
		if agent.state != StateQueued {
			return wire.AuthEntry{}, false
		}

		b.pending.Set(slot, agent)
		if !agent.change(StatePending) {
			return wire.AuthEntry{}, false
		}

		credentials := make([]string, len(agent.client.Credentials))
		copy(credentials, agent.client.Credentials)

		return wire.AuthEntry{
			Slot:        slot,
			Channel:     agent.channel,
			Credentials: credentials,
		}, true
	})

	if len(entries) > 0 {
		b.send(&wire.AuthRequest{Entries: entries})
	}
}

// destroy closes this Bridge and drops all of its Agents.
func (b *Bridge) destroy() {
	if b.state == StateClosing {
		return
	}
	b.state = StateClosing

	b.logger().Info("Destroying bridge")

	b.delayAbort(0)
	b.delayAuths(false)

	if live, ok := b.network.bridges.Get(b.endpoint); ok && live == b {
		b.network.bridges.Delete(b.endpoint)
	}

	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			b.logger().WithError(err).Debug("Closing relay channel errored")
		}
	}

	b.agents.Each(func(_ uint64, agent *Agent) bool {
		b.drop(agent)
		return true
	})
}

// delayAbort (re)arms the abort timer. A zero duration stops it.
func (b *Bridge) delayAbort(d time.Duration) {
	if b.abortTimer != nil {
		b.abortTimer.Stop()
		b.abortTimer = nil
	}

	if d > 0 {
		b.abortTimer = b.network.Loop.AfterFunc(d, func() {
			b.logger().Warn("Relay did not become ready in time")
			b.destroy()
		})
	}
}

// send a message to the relay. The message id is returned, or zero if the Bridge is not ready or the
// Channel refused the message.
func (b *Bridge) send(data wire.Payload) uint64 {
	id := b.network.nextID()

	if b.state != StateReady || b.channel == nil {
		return 0
	}

	if err := b.channel.Send(wire.NewEnvelope(id, data)); err != nil {
		b.logger().WithError(err).WithField("type", data.Kind()).Warn("Sending to relay errored")
		return 0
	}
	return id
}
