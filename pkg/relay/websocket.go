// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"net"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/dtn7/etha/pkg/wire"
)

type webSocketConn struct {
	sync.Mutex

	conn *websocket.Conn
}

func (wc *webSocketConn) write(batch []*wire.Envelope) error {
	wc.Lock()
	defer wc.Unlock()

	w, err := wc.conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return err
	}

	if err := wire.WriteBatch(batch, w); err != nil {
		return err
	}

	return w.Close()
}

func (wc *webSocketConn) close() error {
	return wc.conn.Close()
}

// ServeHTTP must be bound to a HTTP endpoint, e.g., to /relay by RegisterRoutes.
func (r *Relay) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		log.WithError(err).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	origin := req.Header.Get("Origin")
	if origin == "" {
		origin = conn.RemoteAddr().String()
	}

	s := r.attach(conn.RemoteAddr().String(), origin, &webSocketConn{conn: conn})
	defer r.detach(s)

	for {
		if messageType, reader, err := conn.NextReader(); err != nil {
			if netErr, ok := err.(*net.OpError); ok && netErr.Err.Error() == "use of closed network connection" {
				s.logger().WithError(err).Debug("Reader errored due to closed network connection")
			} else {
				s.logger().WithError(err).Info("Opening next WebSocket reader errored")
			}
			return
		} else if messageType != websocket.BinaryMessage {
			s.logger().WithField("message type", messageType).Warn("WebSocket reader's type is not binary")
			return
		} else if batch, err := wire.ReadBatch(reader); err != nil {
			s.logger().WithError(err).Warn("Unmarshal CBOR errored")
			return
		} else {
			r.receive(s, batch)
		}
	}
}
