// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"errors"

	"github.com/dtn7/etha/pkg/wire"
)

var (
	// ErrClosed is returned when sending on a closed Channel.
	ErrClosed = errors.New("channel is closed")

	// ErrNotConnected is returned when sending on a Channel which is not established yet.
	ErrNotConnected = errors.New("channel is not connected yet")
)

// Events receives a Channel's incoming traffic.
type Events interface {
	// Messages is called for each received batch.
	Messages(batch []*wire.Envelope)

	// Closed is called at most once, when the Channel was terminated by its remote end or by an error.
	// A locally initiated Close does not result in a call.
	Closed(err error)
}

// Channel is one duplex channel to a relay session.
type Channel interface {
	// Send a batch of Envelopes. An error indicates the batch was not handed off.
	Send(batch ...*wire.Envelope) error

	// Close this Channel. Close is idempotent.
	Close() error
}

// Dialer opens Channels.
type Dialer interface {
	// Dial starts establishing a Channel to endpoint. Establishing might continue in the background; failures
	// are then reported through Events.Closed.
	Dial(endpoint string, events Events) (Channel, error)
}
