// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package wire describes the messages exchanged between a bridge and a relay and their CBOR encoding.
//
// Each transport frame carries a batch, a CBOR array of Envelopes. An Envelope is encoded as
//
//	[id, kind, sent, received, payload]
//
// where sent and received are milliseconds since the Unix epoch, zero if unknown. The payload's layout depends
// on the kind and is implemented by the Payload types of this package.
package wire

// ProtocolVersion is announced by clients within their Hello.
const ProtocolVersion = "etha-1"
