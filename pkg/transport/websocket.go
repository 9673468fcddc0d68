// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/dtn7/etha/pkg/wire"
)

// WebSocketDialer opens Channels to relays speaking WebSocket, e.g., the relay package's server.
type WebSocketDialer struct {
	// Dialer to be used; websocket.DefaultDialer if nil.
	Dialer *websocket.Dialer
}

// Dial an endpoint with a ws or wss scheme. The connection is established in the background.
func (d *WebSocketDialer) Dial(endpoint string, events Events) (Channel, error) {
	if u, err := url.Parse(endpoint); err != nil {
		return nil, err
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("endpoint %s has no WebSocket scheme", endpoint)
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	wsc := &webSocketChannel{
		endpoint: endpoint,
		events:   events,
	}
	go wsc.connect(dialer)

	return wsc, nil
}

type webSocketChannel struct {
	sync.Mutex

	endpoint string
	events   Events

	conn   *websocket.Conn
	closed bool
}

func (wsc *webSocketChannel) logger() *log.Entry {
	return log.WithField("websocket channel", wsc.endpoint)
}

func (wsc *webSocketChannel) connect(dialer *websocket.Dialer) {
	conn, _, err := dialer.Dial(wsc.endpoint, nil)
	if err != nil {
		wsc.logger().WithError(err).Warn("Dialing relay errored")
		wsc.fail(err)
		return
	}

	wsc.Lock()
	if wsc.closed {
		wsc.Unlock()
		_ = conn.Close()
		return
	}
	wsc.conn = conn
	wsc.Unlock()

	wsc.logger().Debug("WebSocket connection established")

	hello := wire.NewEnvelope(0, &wire.Hello{Protocol: wire.ProtocolVersion, Network: wsc.endpoint})
	if err := wsc.Send(hello); err != nil {
		wsc.logger().WithError(err).Warn("Sending hello errored")
		wsc.fail(err)
		return
	}

	wsc.handleConn(conn)
}

func (wsc *webSocketChannel) handleConn(conn *websocket.Conn) {
	for {
		if messageType, reader, err := conn.NextReader(); err != nil {
			if netErr, ok := err.(*net.OpError); ok && netErr.Err.Error() == "use of closed network connection" {
				wsc.logger().WithError(err).Debug("Reader errored due to closed network connection")
			} else {
				wsc.logger().WithError(err).Info("Opening next WebSocket reader errored")
			}
			wsc.fail(err)
			return
		} else if messageType != websocket.BinaryMessage {
			wsc.logger().WithField("message type", messageType).Warn("WebSocket reader's type is not binary")
			wsc.fail(fmt.Errorf("expected binary message, got %d", messageType))
			return
		} else if batch, err := wire.ReadBatch(reader); err != nil {
			wsc.logger().WithError(err).Warn("Unmarshal CBOR errored")
			wsc.fail(err)
			return
		} else {
			now := time.Now()
			for _, env := range batch {
				env.Received = now
			}
			wsc.events.Messages(batch)
		}
	}
}

// fail closes the connection and informs Events, unless Close was called before.
func (wsc *webSocketChannel) fail(err error) {
	wsc.Lock()
	if wsc.closed {
		wsc.Unlock()
		return
	}
	wsc.closed = true
	if wsc.conn != nil {
		_ = wsc.conn.Close()
	}
	wsc.Unlock()

	wsc.events.Closed(err)
}

func (wsc *webSocketChannel) Send(batch ...*wire.Envelope) error {
	wsc.Lock()
	defer wsc.Unlock()

	if wsc.closed {
		return ErrClosed
	} else if wsc.conn == nil {
		return ErrNotConnected
	}

	wc, wcErr := wsc.conn.NextWriter(websocket.BinaryMessage)
	if wcErr != nil {
		return wcErr
	}

	if cborErr := wire.WriteBatch(batch, wc); cborErr != nil {
		return cborErr
	}

	return wc.Close()
}

func (wsc *webSocketChannel) Close() error {
	wsc.Lock()
	defer wsc.Unlock()

	if wsc.closed {
		return nil
	}
	wsc.closed = true

	if wsc.conn == nil {
		return nil
	}

	_ = wsc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return wsc.conn.Close()
}
