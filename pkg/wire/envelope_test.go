// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/dtn7/cboring"
)

func TestBatchCbor(t *testing.T) {
	start := time.UnixMilli(1600000000000)
	peer := PeerInfo{ID: 7, Channel: "lobby", Origin: "ws://relay", Start: start}

	batch := []*Envelope{
		{ID: 1, Sent: start, Data: &Hello{Protocol: ProtocolVersion, Network: "local"}},
		{ID: 2, Sent: start, Received: start.Add(time.Second), Data: &Ready{Origin: "ws://relay"}},
		{ID: 3, Data: &AuthRequest{Entries: []AuthEntry{
			{Slot: 1, Channel: "lobby", Credentials: []string{"token"}},
			{Slot: 2, Channel: "room", Credentials: []string{"a", "b"}},
		}}},
		{ID: 4, Data: &AuthReply{Slot: 1, NetworkID: 8, OK: true, Peers: []PeerInfo{peer}, Reason: "ok"}},
		{ID: 5, Data: &Net{Joins: []PeerInfo{peer}, Drops: []DropSet{{Channel: "lobby", IDs: []NetID{3, 4}}}}},
		{ID: 6, Data: &Die{Code: 23}},
		{ID: 7, Data: &ClientMessage{Subtype: "chat", RequestID: 3, From: 8, To: []NetID{7}, Payload: []byte("hello")}},
		{ID: 8, Data: &Sent{RequestID: 3, OK: false, Status: "no recipients"}},
		{ID: 9, Data: &Drop{Slot: 1, NetworkID: 8}},
	}

	data, err := MarshalBatch(batch)
	if err != nil {
		t.Fatal(err)
	}

	batchOut, err := UnmarshalBatch(data)
	if err != nil {
		t.Fatal(err)
	}

	if len(batchOut) != len(batch) {
		t.Fatalf("decoded %d envelopes instead of %d", len(batchOut), len(batch))
	}
	for i := range batch {
		if !reflect.DeepEqual(batch[i], batchOut[i]) {
			t.Fatalf("envelope %d differs: %v became %v", i, batch[i].Data, batchOut[i].Data)
		}
	}
}

func TestEnvelopeUnknownKind(t *testing.T) {
	buff := new(bytes.Buffer)
	_ = cboring.WriteArrayLength(5, buff)
	_ = cboring.WriteUInt(1, buff)
	_ = cboring.WriteTextString("nope", buff)

	var env Envelope
	if err := cboring.Unmarshal(&env, buff); err == nil {
		t.Fatal("unknown kind was accepted")
	}
}

func TestEnvelopeCheckValid(t *testing.T) {
	tests := []struct {
		env   *Envelope
		valid bool
	}{
		{&Envelope{ID: 1}, false},
		{&Envelope{ID: 1, Data: &Ready{}}, true},
		{&Envelope{ID: 1, Data: &Hello{}}, false},
		{&Envelope{ID: 1, Data: &AuthRequest{}}, false},
		{&Envelope{ID: 1, Data: &AuthRequest{Entries: []AuthEntry{{Slot: 1, Channel: "c"}}}}, true},
		{&Envelope{ID: 1, Data: &AuthReply{Slot: 1, OK: true}}, false},
		{&Envelope{ID: 1, Data: &AuthReply{Slot: 1, OK: false}}, true},
		{&Envelope{ID: 1, Data: &Net{Joins: []PeerInfo{{ID: 0, Channel: "c"}}}}, false},
		{&Envelope{ID: 1, Data: &Net{Drops: []DropSet{{Channel: "c"}}}}, true},
		{&Envelope{ID: 1, Data: &ClientMessage{Subtype: "chat", From: 1}}, false},
		{&Envelope{ID: 1, Data: &ClientMessage{Subtype: "chat", From: 1, Broadcast: true}}, true},
		{&Envelope{ID: 1, Data: &ClientMessage{From: 1, To: []NetID{2}}}, false},
	}

	for i, test := range tests {
		if err := test.env.CheckValid(); (err == nil) != test.valid {
			t.Fatalf("test %d: expected validity %t, got %v", i, test.valid, err)
		}
	}
}

func TestEnvelopeTimestamps(t *testing.T) {
	env := NewEnvelope(42, &Die{})
	if env.Sent.IsZero() {
		t.Fatal("NewEnvelope has no sent timestamp")
	}
	if env.Type() != KindDie {
		t.Fatalf("unexpected type %q", env.Type())
	}

	data, err := MarshalBatch([]*Envelope{env})
	if err != nil {
		t.Fatal(err)
	}
	out, err := UnmarshalBatch(data)
	if err != nil {
		t.Fatal(err)
	}

	if d := env.Sent.Sub(out[0].Sent); d < 0 || d >= time.Millisecond {
		t.Fatalf("sent timestamp drifted by %v", d)
	}
	if !out[0].Received.IsZero() {
		t.Fatalf("received timestamp is set: %v", out[0].Received)
	}
}
