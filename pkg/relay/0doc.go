// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package relay implements a relay which brokers authentication, peer discovery and message exchange between
// the bridges of the etha package.
//
// Bridges attach as sessions, either through WebSocket connections by the Relay's ServeHTTP or in-process by
// its LocalDialer. Each session might host multiple members, one for each authenticated client.
package relay

const (
	// exitShutdown is the die code sent when the Relay shuts down.
	exitShutdown = 0

	// exitProtocol is the die code sent on an unsupported protocol version.
	exitProtocol = 1

	// sessionQueueSize is the amount of outgoing batches buffered per session.
	sessionQueueSize = 64
)
