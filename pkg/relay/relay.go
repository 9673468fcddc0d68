// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/etha/pkg/ordered"
	"github.com/dtn7/etha/pkg/wire"
)

// Relay brokers between attached bridges.
type Relay struct {
	mutex sync.Mutex

	origin     string
	authorizer Authorizer

	nextNetID uint64
	nextMsgID uint64

	sessions map[*session]struct{}
	members  map[wire.NetID]*member
	channels *ordered.Map[string, *ordered.Map[wire.NetID, *member]]

	upgrader websocket.Upgrader
}

// NewRelay announcing itself by origin. A nil Authorizer is replaced by AllowAll.
func NewRelay(origin string, authorizer Authorizer) *Relay {
	if authorizer == nil {
		authorizer = AllowAll
	}

	return &Relay{
		origin:     origin,
		authorizer: authorizer,

		sessions: make(map[*session]struct{}),
		members:  make(map[wire.NetID]*member),
		channels: ordered.New[string, *ordered.Map[wire.NetID, *member]](),

		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// outbox collects the outgoing messages of one processing step per session, in order.
type outbox struct {
	relay   *Relay
	batches *ordered.Map[*session, []*wire.Envelope]
}

func (r *Relay) newOutbox() *outbox {
	return &outbox{
		relay:   r,
		batches: ordered.New[*session, []*wire.Envelope](),
	}
}

func (ob *outbox) add(s *session, data wire.Payload) {
	ob.relay.nextMsgID++
	ob.forward(s, wire.NewEnvelope(ob.relay.nextMsgID, data))
}

func (ob *outbox) forward(s *session, env *wire.Envelope) {
	batch, _ := ob.batches.Get(s)
	ob.batches.Set(s, append(batch, env))
}

// flush enqueues all collected batches. It must be called without holding the Relay's mutex.
func (ob *outbox) flush() {
	ob.batches.Each(func(s *session, batch []*wire.Envelope) bool {
		if !s.enqueue(batch) {
			s.logger().Warn("Session's queue overflows, detaching")
			go ob.relay.detach(s)
		}
		return true
	})
}

// attach a new session and start its writer.
func (r *Relay) attach(name, origin string, conn sessionConn) *session {
	s := newSession(name, origin, conn)

	r.mutex.Lock()
	r.sessions[s] = struct{}{}
	r.mutex.Unlock()

	go s.writer(r.detach)

	s.logger().Info("Session attached")
	return s
}

// detach a session, drop its members and close its connection.
func (r *Relay) detach(s *session) {
	ob := r.newOutbox()

	r.mutex.Lock()
	if _, ok := r.sessions[s]; !ok {
		r.mutex.Unlock()
		return
	}
	delete(r.sessions, s)

	for _, m := range s.members.Values() {
		r.removeMember(m, ob)
	}
	r.mutex.Unlock()

	ob.flush()

	if err := s.shutdown(); err != nil {
		s.logger().WithError(err).Debug("Closing session errored")
	}
	s.logger().Info("Session detached")
}

// receive processes an incoming batch of a session.
func (r *Relay) receive(s *session, batch []*wire.Envelope) {
	ob := r.newOutbox()

	r.mutex.Lock()
	if _, ok := r.sessions[s]; !ok {
		r.mutex.Unlock()
		return
	}

	for _, env := range batch {
		if err := env.CheckValid(); err != nil {
			s.logger().WithError(err).WithField("envelope", env).Debug("Ignoring invalid envelope")
			continue
		}

		if hello, ok := env.Data.(*wire.Hello); ok {
			r.onHello(s, hello, ob)
			continue
		} else if !s.greeted {
			s.logger().WithField("envelope", env).Debug("Ignoring envelope before hello")
			continue
		}

		switch data := env.Data.(type) {
		case *wire.AuthRequest:
			r.onAuth(s, data, ob)
		case *wire.ClientMessage:
			r.onClient(s, env, data, ob)
		case *wire.Drop:
			r.onDrop(s, data, ob)
		default:
			s.logger().WithField("envelope", env).Debug("Ignoring unsupported envelope")
		}
	}
	r.mutex.Unlock()

	ob.flush()
}

func (r *Relay) onHello(s *session, hello *wire.Hello, ob *outbox) {
	if hello.Protocol != wire.ProtocolVersion {
		s.logger().WithField("protocol", hello.Protocol).Warn("Session speaks an unsupported protocol")
		ob.add(s, &wire.Die{Code: exitProtocol})
		return
	}

	s.greeted = true
	ob.add(s, &wire.Ready{Origin: r.origin})
}

func (r *Relay) onAuth(s *session, rq *wire.AuthRequest, ob *outbox) {
	for _, entry := range rq.Entries {
		logger := s.logger().WithFields(log.Fields{
			"slot":    entry.Slot,
			"channel": entry.Channel,
		})

		if _, gone := s.dropped[entry.Slot]; gone {
			delete(s.dropped, entry.Slot)
			logger.Debug("Skipping authentication of a dropped client")
			ob.add(s, &wire.AuthReply{Slot: entry.Slot, OK: false, Reason: "dropped"})
			continue
		}

		if ok, reason := r.authorizer.Authorize(entry.Channel, entry.Credentials); !ok {
			logger.WithField("reason", reason).Info("Denied client")
			ob.add(s, &wire.AuthReply{Slot: entry.Slot, OK: false, Reason: reason})
			continue
		}

		members := r.channels.GetOrSet(entry.Channel, ordered.New[wire.NetID, *member])

		var peers []wire.PeerInfo
		for _, other := range members.Values() {
			peers = append(peers, other.info)
		}

		r.nextNetID++
		m := &member{
			info: wire.PeerInfo{
				ID:      wire.NetID(r.nextNetID),
				Channel: entry.Channel,
				Origin:  s.origin,
				Start:   time.Now(),
			},
			slot:    entry.Slot,
			session: s,
		}
		members.Set(m.info.ID, m)
		s.members.Set(m.info.ID, m)
		r.members[m.info.ID] = m

		logger.WithField("id", m.info.ID).Info("Admitted client")

		ob.add(s, &wire.AuthReply{Slot: entry.Slot, NetworkID: m.info.ID, OK: true, Peers: peers})
		for _, target := range r.channelSessions(entry.Channel) {
			ob.add(target, &wire.Net{Joins: []wire.PeerInfo{m.info}})
		}
	}
}

func (r *Relay) onClient(s *session, env *wire.Envelope, msg *wire.ClientMessage, ob *outbox) {
	sender, ok := r.members[msg.From]
	if !ok || sender.session != s {
		ob.add(s, &wire.Sent{RequestID: msg.RequestID, OK: false, Status: "unknown sender"})
		return
	}

	members, _ := r.channels.Get(sender.info.Channel)

	var delivered bool
	if msg.Broadcast {
		for _, target := range r.channelSessions(sender.info.Channel) {
			ob.forward(target, env)
		}
		delivered = members.Len() > 1
	} else {
		targets := ordered.New[*session, struct{}]()
		for _, id := range msg.To {
			if m, ok := members.Get(id); ok && id != sender.info.ID {
				targets.Set(m.session, struct{}{})
			}
		}

		// Each session receives the full recipient list and picks its own members.
		for _, target := range targets.Keys() {
			ob.forward(target, env)
			delivered = true
		}
	}

	if delivered {
		ob.add(s, &wire.Sent{RequestID: msg.RequestID, OK: true, Status: "sent"})
	} else {
		ob.add(s, &wire.Sent{RequestID: msg.RequestID, OK: false, Status: "no recipients"})
	}
}

// onDrop removes a member of the session. Without a network id, the member is looked up by its slot; an
// unknown slot is remembered to refuse its pending authentication.
func (r *Relay) onDrop(s *session, drop *wire.Drop, ob *outbox) {
	if drop.NetworkID != 0 {
		if m, ok := r.members[drop.NetworkID]; ok && m.session == s {
			r.removeMember(m, ob)
		}
		return
	}

	var found *member
	s.members.Each(func(_ wire.NetID, m *member) bool {
		if m.slot == drop.Slot {
			found = m
			return false
		}
		return true
	})

	if found != nil {
		r.removeMember(found, ob)
	} else {
		s.dropped[drop.Slot] = struct{}{}
	}
}

// removeMember and announce its departure to the remaining sessions of its channel.
func (r *Relay) removeMember(m *member, ob *outbox) {
	delete(r.members, m.info.ID)
	m.session.members.Delete(m.info.ID)

	channel := m.info.Channel
	if members, ok := r.channels.Get(channel); ok {
		members.Delete(m.info.ID)
		if members.Len() == 0 {
			r.channels.Delete(channel)
		}
	}

	for _, target := range r.channelSessions(channel) {
		ob.add(target, &wire.Net{Drops: []wire.DropSet{{Channel: channel, IDs: []wire.NetID{m.info.ID}}}})
	}
}

// channelSessions returns every session with at least one member in a channel.
func (r *Relay) channelSessions(channel string) (sessions []*session) {
	members, ok := r.channels.Get(channel)
	if !ok {
		return
	}

	seen := make(map[*session]struct{})
	members.Each(func(_ wire.NetID, m *member) bool {
		if _, ok := seen[m.session]; !ok {
			seen[m.session] = struct{}{}
			sessions = append(sessions, m.session)
		}
		return true
	})
	return
}

// Channels returns the members of each channel.
func (r *Relay) Channels() map[string][]wire.PeerInfo {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	channels := make(map[string][]wire.PeerInfo, r.channels.Len())
	r.channels.Each(func(name string, members *ordered.Map[wire.NetID, *member]) bool {
		for _, m := range members.Values() {
			channels[name] = append(channels[name], m.info)
		}
		return true
	})
	return channels
}

// Close tells all sessions to die and detaches them.
func (r *Relay) Close() (errs error) {
	r.mutex.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[*session]struct{})
	r.members = make(map[wire.NetID]*member)
	r.channels.Clear()
	r.nextMsgID++
	die := wire.NewEnvelope(r.nextMsgID, &wire.Die{Code: exitShutdown})
	r.mutex.Unlock()

	for _, s := range sessions {
		s.closeOnce.Do(func() {
			close(s.closeSyn)
			if err := s.conn.write([]*wire.Envelope{die}); err != nil {
				errs = multierror.Append(errs, err)
			}
			if err := s.conn.close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		})
	}

	log.WithField("sessions", len(sessions)).Info("Relay closed")
	return
}
