// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport establishes duplex channels to relays.
//
// A Dialer opens a Channel for an endpoint and reports incoming message batches and the Channel's termination
// to the supplied Events. Events might be called from arbitrary goroutines; it is up to the receiver to
// serialize them. A relay signals its readiness in-band by a wire.Ready message.
package transport
