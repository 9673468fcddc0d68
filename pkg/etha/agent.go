// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/etha/pkg/ordered"
	"github.com/dtn7/etha/pkg/wire"
)

// Agent binds a Client to a Bridge for one session.
type Agent struct {
	slot   uint64
	id     wire.NetID
	client *Client
	bridge *Bridge

	// channel is captured when joining and remains, even if the Client's Channel changes.
	channel string
	state   State
	joined  time.Time

	peers *ordered.Map[wire.NetID, *Peer]
}

func newAgent(slot uint64, client *Client, bridge *Bridge) *Agent {
	return &Agent{
		slot:    slot,
		client:  client,
		bridge:  bridge,
		channel: client.Channel,
		peers:   ordered.New[wire.NetID, *Peer](),
	}
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent(%d, %d, %s@%s)", a.slot, a.id, a.channel, a.bridge.endpoint)
}

// current reports if this Agent is its Client's live Agent.
func (a *Agent) current() bool {
	return a.client.agent == a
}

// change the state and notify the Client. A false result indicates that a listener changed the state again,
// which must be respected by the caller.
func (a *Agent) change(state State) bool {
	old := a.state
	if old == state {
		return true
	}

	a.state = state
	if a.current() {
		a.client.state = state
	}

	log.WithFields(log.Fields{
		"agent": a,
		"old":   old,
		"new":   state,
	}).Debug("Agent changes state")

	a.client.onStateChange.fire(StateChangeEvent{New: state, Old: old})
	if a.state != state {
		return false
	}

	switch state {
	case StateClosing:
		for _, p := range a.peers.Values() {
			p.dead = true
		}
		a.peers.Clear()
		if a.current() {
			a.client.Peers = make(map[wire.NetID]*Peer)
		}

		if old == StateReady {
			a.client.onDisconnect.fire(DisconnectEvent{
				Address: a.channel + "@" + a.bridge.endpoint,
				Joined:  a.joined,
			})
		}

	case StateReady:
		a.client.onConnect.fire(ConnectEvent{})
		if a.state != state {
			return false
		}
	}

	return true
}

// addPeer creates and indexes a Peer. The join notification is suppressed for silent additions.
// Peers for this Agent itself or already known ones are ignored.
func (a *Agent) addPeer(info wire.PeerInfo, silent bool) *Peer {
	if info.ID == a.id || a.peers.Has(info.ID) {
		return nil
	}

	peer := newPeer(info, a.client)
	a.bridge.nids[info.ID] = info
	a.peers.Set(info.ID, peer)
	if a.current() && a.client.Peers != nil {
		a.client.Peers[info.ID] = peer
	}

	if !silent {
		a.announcePeer(peer, false)
	}
	return peer
}

func (a *Agent) announcePeer(peer *Peer, initial bool) {
	a.client.onJoin.fire(JoinEvent{Peer: peer, Initial: initial})
}

// removePeer drops a known Peer and notifies the Client.
func (a *Agent) removePeer(id wire.NetID) {
	peer, ok := a.peers.Delete(id)
	if !ok {
		return
	}

	peer.dead = true
	if a.current() && a.client.Peers != nil {
		delete(a.client.Peers, id)
	}

	a.client.onDrop.fire(DropEvent{Peer: peer})
}

// vetPeers resolves Recipients to network ids. It fails if the Client's peer view was replaced by nil or if
// any Recipient is not a known Peer.
func (a *Agent) vetPeers(candidates []Recipient) (ids []wire.NetID, ok bool) {
	clientPeers := a.client.Peers
	if clientPeers == nil {
		return nil, false
	}

	ids = make([]wire.NetID, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == nil {
			return nil, false
		} else if p, isPeer := candidate.(*Peer); isPeer && p == nil {
			return nil, false
		}

		id := candidate.NetworkID()
		if _, known := clientPeers[id]; !known || !a.peers.Has(id) {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// kill asks the Bridge to drop this Agent.
func (a *Agent) kill() {
	a.bridge.drop(a)
}
