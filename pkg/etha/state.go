// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import "fmt"

// State of a Bridge, an Agent or a Client. States only advance, except for a Client which starts over when
// being opened again.
type State int

const (
	StateInitial State = iota
	StateQueued
	StatePending
	StateReady
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateQueued:
		return "queued"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}
