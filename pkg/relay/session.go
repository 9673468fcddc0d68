// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/etha/pkg/ordered"
	"github.com/dtn7/etha/pkg/wire"
)

// sessionConn is the relay side of a session's connection.
type sessionConn interface {
	write(batch []*wire.Envelope) error
	close() error
}

// session is one attached bridge.
type session struct {
	name   string
	origin string
	conn   sessionConn

	// The following fields are guarded by the Relay's mutex.
	greeted bool
	members *ordered.Map[wire.NetID, *member]
	dropped map[uint64]struct{}

	out       chan []*wire.Envelope
	closeSyn  chan struct{}
	closeOnce sync.Once
}

// member is an authenticated client of a session.
type member struct {
	info    wire.PeerInfo
	slot    uint64
	session *session
}

func newSession(name, origin string, conn sessionConn) *session {
	return &session{
		name:    name,
		origin:  origin,
		conn:    conn,
		members: ordered.New[wire.NetID, *member](),
		dropped: make(map[uint64]struct{}),

		out:      make(chan []*wire.Envelope, sessionQueueSize),
		closeSyn: make(chan struct{}),
	}
}

func (s *session) logger() *log.Entry {
	return log.WithField("relay session", s.name)
}

// enqueue a batch for the writer. A false result indicates an overflowing queue.
func (s *session) enqueue(batch []*wire.Envelope) bool {
	select {
	case <-s.closeSyn:
		return true
	case s.out <- batch:
		return true
	default:
		return false
	}
}

// writer sends queued batches until the session is closed or a write fails.
func (s *session) writer(onError func(*session)) {
	for {
		select {
		case <-s.closeSyn:
			return

		case batch := <-s.out:
			if err := s.conn.write(batch); err != nil {
				s.logger().WithError(err).Info("Writing to session errored")
				onError(s)
				return
			}
		}
	}
}

// shutdown stops the writer and closes the connection.
func (s *session) shutdown() (err error) {
	s.closeOnce.Do(func() {
		close(s.closeSyn)
		err = s.conn.close()
	})
	return
}
