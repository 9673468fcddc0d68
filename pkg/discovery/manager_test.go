// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"reflect"
	"testing"

	"github.com/schollz/peerdiscovery"
)

func TestManagerNotify(t *testing.T) {
	var relays []Relay
	manager := &Manager{NotifyFunc: func(relay Relay) { relays = append(relays, relay) }}

	payload, err := MarshalAnnouncements([]Announcement{
		{Name: "a", Port: 35037, Path: "/relay"},
		{Name: "b", Port: 8000, Path: "/other"},
	})
	if err != nil {
		t.Fatal(err)
	}

	manager.notify(peerdiscovery.Discovered{Address: "192.0.2.1", Payload: payload})
	manager.notify(peerdiscovery.Discovered{Address: "fe80::1", Payload: payload[:3]})

	expected := []Relay{
		{Name: "a", URL: "ws://192.0.2.1:35037/relay"},
		{Name: "b", URL: "ws://192.0.2.1:8000/other"},
	}
	if !reflect.DeepEqual(relays, expected) {
		t.Fatalf("expected %v, got %v", expected, relays)
	}
}

func TestManagerWithoutNotify(t *testing.T) {
	manager := &Manager{}
	manager.notify(peerdiscovery.Discovered{Address: "192.0.2.1", Payload: []byte{0xff}})
	manager.Close()
}
