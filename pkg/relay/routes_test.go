// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/dtn7/etha/pkg/etha"
	"github.com/dtn7/etha/pkg/transport"
)

func TestRelayWebSocket(t *testing.T) {
	relay := NewRelay("ws-relay", nil)
	defer relay.Close()

	router := mux.NewRouter()
	relay.RegisterRoutes(router)

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/relay"

	loop := etha.NewEventLoop()
	defer loop.Close()

	network := etha.NewNetwork(loop, &transport.WebSocketDialer{})
	network.SetAlias("test", wsURL)

	var a, b *etha.Client
	loop.Do(func() {
		a = network.NewClient().Open("room@test")
		b = network.NewClient().Open("room@test")
	})
	eventually(t, loop, "connecting", func() bool {
		return a.State() == etha.StateReady && b.State() == etha.StateReady && len(a.Peers) == 1 && len(b.Peers) == 1
	})

	loop.Do(func() {
		if bridge, ok := network.Bridge("test"); !ok || bridge.Origin() != "ws-relay" {
			t.Errorf("unexpected bridge %v", bridge)
		}
	})

	resp, err := http.Get(server.URL + "/channels/room")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var info ChannelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Name != "room" || len(info.Members) != 2 {
		t.Fatalf("unexpected channel info %v", info)
	}

	var ids []uint64
	loop.Do(func() { ids = []uint64{uint64(a.ID()), uint64(b.ID())} })
	for i, member := range info.Members {
		if member.ID != ids[i] {
			t.Fatalf("member %d has id %d, expected %d", i, member.ID, ids[i])
		}
	}
}

func TestRelayRoutes(t *testing.T) {
	relay := NewRelay("routes", nil)
	defer relay.Close()

	router := mux.NewRouter()
	relay.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/channels", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("listing channels resulted in %d", rec.Code)
	}

	var infos []ChannelInfo
	if err := json.NewDecoder(rec.Body).Decode(&infos); err != nil {
		t.Fatal(err)
	} else if len(infos) != 0 {
		t.Fatalf("fresh relay lists channels %v", infos)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/channels/nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown channel resulted in %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/channels", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("posting channels resulted in %d", rec.Code)
	}
}
