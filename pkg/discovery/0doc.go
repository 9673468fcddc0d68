// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package discovery announces relays and finds them through UDP multicast packages.
//
// A relay daemon publishes an Announcement of its WebSocket endpoint; clients listening on the same link
// learn about it as a Relay, which might be registered as an alias of an etha Network.
package discovery

const (
	// address4 is the default multicast IPv4 address used for discovery.
	address4 = "224.23.23.23"

	// address6 is the default multicast IPv6 address used for discovery.
	address6 = "ff02::23"

	// port is the default multicast UDP port used for discovery.
	port = 35039
)
