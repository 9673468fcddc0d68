// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package etha implements the client side of a relay-brokered peer messaging protocol.
//
// A Client joins a channel on some relay endpoint. All Clients targeting the same endpoint share one Bridge,
// a single transport Channel to the relay. The Bridge authenticates its queued Clients in batches, keeps
// track of the Peers visible within each channel and dispatches incoming application messages to the
// Handlers registered on the Network.
//
// Everything bound to a Network is confined to the Network's Loop. Listeners are invoked synchronously and
// might call back into Open or Close, even for the Client whose state is currently changing. Code running
// outside the Loop, e.g., another goroutine, must enter it by Loop.Do.
//
//	loop := etha.NewEventLoop()
//	network := etha.NewNetwork(loop, &transport.WebSocketDialer{})
//
//	loop.Do(func() {
//		_ = network.Handle("chat", func(to *etha.Client, from *etha.Peer, payload []byte, meta etha.Meta) {
//			fmt.Printf("%d: %s\n", from.ID(), payload)
//		})
//
//		client := network.NewClient()
//		client.OnConnect(func(etha.ConnectEvent) {
//			client.Transmit("chat", []byte("hello"))
//		})
//		client.Open("lobby@ws://localhost:35037/relay")
//	})
package etha
