// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"

	"github.com/dtn7/etha/pkg/wire"
)

// MemberInfo describes a channel member as JSON.
type MemberInfo struct {
	ID     uint64    `json:"id"`
	Origin string    `json:"origin"`
	Start  time.Time `json:"start"`
}

// ChannelInfo describes a channel as JSON.
type ChannelInfo struct {
	Name    string       `json:"name"`
	Members []MemberInfo `json:"members"`
}

func newChannelInfo(name string, peers []wire.PeerInfo) ChannelInfo {
	info := ChannelInfo{Name: name, Members: make([]MemberInfo, 0, len(peers))}
	for _, p := range peers {
		info.Members = append(info.Members, MemberInfo{ID: uint64(p.ID), Origin: p.Origin, Start: p.Start})
	}
	return info
}

// RegisterRoutes binds the Relay's WebSocket endpoint to /relay and its JSON status to /channels.
func (r *Relay) RegisterRoutes(router *mux.Router) {
	router.Handle("/relay", r)
	router.HandleFunc("/channels", r.handleChannels).Methods(http.MethodGet)
	router.HandleFunc("/channels/{channel}", r.handleChannel).Methods(http.MethodGet)
}

func (r *Relay) handleChannels(w http.ResponseWriter, _ *http.Request) {
	channels := r.Channels()

	infos := make([]ChannelInfo, 0, len(channels))
	for name, peers := range channels {
		infos = append(infos, newChannelInfo(name, peers))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		log.WithError(err).Warn("Failed to write channel list")
	}
}

func (r *Relay) handleChannel(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["channel"]

	peers, ok := r.Channels()[name]
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newChannelInfo(name, peers)); err != nil {
		log.WithError(err).Warn("Failed to write channel")
	}
}
