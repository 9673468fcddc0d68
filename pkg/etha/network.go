// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/etha/pkg/ordered"
	"github.com/dtn7/etha/pkg/transport"
	"github.com/dtn7/etha/pkg/wire"
)

const (
	// DefaultBridgeTimeout is the time a Bridge waits for its relay's readiness.
	DefaultBridgeTimeout = 10 * time.Second

	// DefaultAuthDelay coalesces joins into one authentication request.
	DefaultAuthDelay = 50 * time.Millisecond

	// DefaultChannel is joined by Clients not naming one.
	DefaultChannel = "lobby"

	// DefaultEndpoint is used by Clients not naming one.
	DefaultEndpoint = "local"

	// DefaultLocalRelay is the address behind the DefaultEndpoint alias.
	DefaultLocalRelay = "ws://localhost:35037/relay"
)

var (
	// ErrEmptyType is returned when registering a Handler without a name.
	ErrEmptyType = errors.New("message type must not be empty")

	// ErrReservedType is returned when registering a Handler for a notification name.
	ErrReservedType = errors.New("message type is reserved")
)

// reservedTypes are the names of Client notifications.
var reservedTypes = map[string]struct{}{
	"join":         {},
	"drop":         {},
	"connect":      {},
	"disconnect":   {},
	"state-change": {},
}

var domainish = regexp.MustCompile(`^([\w\-]+\.)+[conmi]\w{1,2}\b`)

// Meta describes a received application message.
type Meta struct {
	MessageID  uint64
	Sent       time.Time
	Received   time.Time
	Broadcast  bool
	Recipients int
}

// Handler processes application messages of one type, sent by a Peer to a Client.
type Handler func(to *Client, from *Peer, payload []byte, meta Meta)

// Network holds the process-wide state shared by all Clients: the live Bridges, the id counters, the
// registered application message types and the endpoint aliases.
//
// A Network and everything created from it is confined to its Loop.
type Network struct {
	Loop   Loop
	Dialer transport.Dialer

	// BridgeTimeout is the time a new Bridge waits for its relay to become ready.
	BridgeTimeout time.Duration
	// AuthDelay is the debounce time for authenticating queued Clients.
	AuthDelay time.Duration

	bridges  *ordered.Map[string, *Bridge]
	handlers map[string]Handler
	aliases  map[string]string

	ticker uint64
	slots  uint64
}

// NewNetwork with default settings and the "local" alias.
func NewNetwork(loop Loop, dialer transport.Dialer) *Network {
	return &Network{
		Loop:   loop,
		Dialer: dialer,

		BridgeTimeout: DefaultBridgeTimeout,
		AuthDelay:     DefaultAuthDelay,

		bridges:  ordered.New[string, *Bridge](),
		handlers: make(map[string]Handler),
		aliases:  map[string]string{DefaultEndpoint: DefaultLocalRelay},
	}
}

// nextID returns the next value of the process-wide id counter, used for message and Request ids.
func (n *Network) nextID() uint64 {
	n.ticker++
	return n.ticker
}

func (n *Network) nextSlot() uint64 {
	n.slots++
	return n.slots
}

// Handle registers a Handler for an application message type, replacing a previous one.
// A nil Handler removes the registration.
func (n *Network) Handle(kind string, handler Handler) error {
	if kind == "" {
		return ErrEmptyType
	} else if _, reserved := reservedTypes[kind]; reserved {
		return fmt.Errorf("%w: %s", ErrReservedType, kind)
	}

	if handler == nil {
		delete(n.handlers, kind)
	} else {
		n.handlers[kind] = handler
	}
	return nil
}

func (n *Network) handler(kind string) (h Handler, ok bool) {
	h, ok = n.handlers[kind]
	return
}

// SetAlias maps a short name to an endpoint address. An empty address removes the alias.
func (n *Network) SetAlias(name, address string) {
	if address == "" {
		delete(n.aliases, name)
	} else {
		n.aliases[name] = address
	}
}

// Resolve an endpoint to the address to be dialed.
func (n *Network) Resolve(endpoint string) string {
	if address, ok := n.aliases[endpoint]; ok {
		return address
	}
	return endpoint
}

// Bridge returns the live Bridge for an endpoint, if any.
func (n *Network) Bridge(endpoint string) (*Bridge, bool) {
	return n.bridges.Get(endpoint)
}

// Bridges returns all live Bridges.
func (n *Network) Bridges() []*Bridge {
	return n.bridges.Values()
}

// NewClient creates a Client for this Network. The Client remains closed until opened.
func (n *Network) NewClient() *Client {
	return &Client{
		Channel:  DefaultChannel,
		Endpoint: DefaultEndpoint,
		Peers:    make(map[wire.NetID]*Peer),

		network: n,
	}
}

// Close destroys all Bridges and thus closes all Clients.
func (n *Network) Close() {
	for _, b := range n.bridges.Values() {
		b.destroy()
	}
}

// bridgeFor returns the live Bridge for an endpoint or creates a new one.
func (n *Network) bridgeFor(endpoint string) *Bridge {
	return n.bridges.GetOrSet(endpoint, func() *Bridge {
		log.WithField("endpoint", endpoint).Debug("Creating new bridge")
		return newBridge(n, endpoint)
	})
}

// parseTarget splits "channel@endpoint" into its parts. A bare string names a channel. Endpoints looking
// like a domain name are prefixed with a WebSocket scheme.
func parseTarget(target string) (channel, endpoint string) {
	pos := strings.Index(target, "@")
	if pos < 0 {
		return target, ""
	}

	channel, endpoint = target[:pos], target[pos+1:]
	if endpoint != "" && !strings.Contains(endpoint, "://") && domainish.MatchString(endpoint) {
		endpoint = "wss://" + endpoint
	}
	return
}
