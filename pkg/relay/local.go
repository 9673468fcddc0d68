// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/dtn7/etha/pkg/transport"
	"github.com/dtn7/etha/pkg/wire"
)

// ErrDetached is reported to a local channel's Events when the Relay detached its session.
var ErrDetached = errors.New("detached by relay")

// LocalDialer attaches bridges in-process. All traffic passes the wire codec, as if sent over a network.
func (r *Relay) LocalDialer() transport.Dialer {
	return localDialer{r}
}

type localDialer struct {
	relay *Relay
}

func (ld localDialer) Dial(endpoint string, events transport.Events) (transport.Channel, error) {
	lc := &localConn{
		relay:  ld.relay,
		events: events,
	}
	lc.session = ld.relay.attach("local:"+endpoint, "local", lc)

	hello := wire.NewEnvelope(0, &wire.Hello{Protocol: wire.ProtocolVersion, Network: endpoint})
	if err := lc.Send(hello); err != nil {
		return nil, err
	}
	return lc, nil
}

// localConn is both the relay's sessionConn and the bridge's transport.Channel.
type localConn struct {
	mutex  sync.Mutex
	closed bool

	relay   *Relay
	session *session
	events  transport.Events
}

// copyBatch through the wire codec.
func copyBatch(batch []*wire.Envelope) ([]*wire.Envelope, error) {
	data, err := wire.MarshalBatch(batch)
	if err != nil {
		return nil, err
	}
	return wire.UnmarshalBatch(data)
}

// write is called by the relay.
func (lc *localConn) write(batch []*wire.Envelope) error {
	lc.mutex.Lock()
	closed := lc.closed
	lc.mutex.Unlock()
	if closed {
		return transport.ErrClosed
	}

	received, err := copyBatch(batch)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, env := range received {
		env.Received = now
	}
	lc.events.Messages(received)
	return nil
}

// close is called by the relay.
func (lc *localConn) close() error {
	lc.mutex.Lock()
	if lc.closed {
		lc.mutex.Unlock()
		return nil
	}
	lc.closed = true
	lc.mutex.Unlock()

	lc.events.Closed(ErrDetached)
	return nil
}

// Send is called by the bridge.
func (lc *localConn) Send(batch ...*wire.Envelope) error {
	lc.mutex.Lock()
	closed := lc.closed
	lc.mutex.Unlock()
	if closed {
		return transport.ErrClosed
	}

	sent, err := copyBatch(batch)
	if err != nil {
		return err
	}

	lc.relay.receive(lc.session, sent)
	return nil
}

// Close is called by the bridge.
func (lc *localConn) Close() error {
	lc.mutex.Lock()
	if lc.closed {
		lc.mutex.Unlock()
		return nil
	}
	lc.closed = true
	lc.mutex.Unlock()

	go lc.relay.detach(lc.session)
	return nil
}
