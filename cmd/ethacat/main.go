// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// ethacat joins a channel and exchanges lines of text with its other members.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/etha/pkg/discovery"
	"github.com/dtn7/etha/pkg/etha"
	"github.com/dtn7/etha/pkg/transport"
)

// chatType is the message type exchanged by ethacat.
const chatType = "chat"

// cat couples a Client with the terminal.
type cat struct {
	loop   etha.Loop
	client *etha.Client
	out    io.Writer

	doneOnce sync.Once
	doneSyn  chan struct{}
}

func newCat(loop etha.Loop, network *etha.Network, out io.Writer) (c *cat, err error) {
	c = &cat{
		loop:    loop,
		out:     out,
		doneSyn: make(chan struct{}),
	}

	loop.Do(func() {
		if err = network.Handle(chatType, c.onChat); err != nil {
			return
		}

		c.client = network.NewClient()
		c.client.OnJoin(func(ev etha.JoinEvent) {
			fmt.Fprintf(c.out, "* %d joined\n", ev.Peer.ID())
		})
		c.client.OnDrop(func(ev etha.DropEvent) {
			fmt.Fprintf(c.out, "* %d left\n", ev.Peer.ID())
		})
		c.client.OnConnect(func(etha.ConnectEvent) {
			fmt.Fprintf(c.out, "* connected to %s@%s as %d\n", c.client.Channel, c.client.Endpoint, c.client.ID())
		})
		c.client.OnDisconnect(func(ev etha.DisconnectEvent) {
			fmt.Fprintf(c.out, "* disconnected from %s\n", ev.Address)
		})
		c.client.OnStateChange(func(ev etha.StateChangeEvent) {
			if ev.New == etha.StateClosing {
				c.done()
			}
		})
	})
	return
}

func (c *cat) onChat(_ *etha.Client, from *etha.Peer, payload []byte, _ etha.Meta) {
	fmt.Fprintf(c.out, "<%d> %s\n", from.ID(), payload)
}

func (c *cat) done() {
	c.doneOnce.Do(func() { close(c.doneSyn) })
}

// open the Client towards a "channel@endpoint" target.
func (c *cat) open(target string, credentials []string) {
	c.loop.Do(func() {
		c.client.Open(target, credentials...)
	})
}

// send a line to all peers.
func (c *cat) send(line string) {
	c.loop.Do(func() {
		c.client.Transmit(chatType, []byte(line)).Catch(func(err error) {
			log.WithError(err).WithField("line", line).Warn("Sending line failed")
		})
	})
}

// readLines sends each line of r until EOF.
func (c *cat) readLines(r io.Reader) {
	defer c.done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			c.send(line)
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Warn("Reading input errored")
	}
}

func (c *cat) close() {
	c.loop.Do(func() {
		c.client.Close()
	})
}

func main() {
	if len(os.Args) < 3 {
		log.Fatalf("Usage: %s configuration.toml channel@endpoint [credentials...]", os.Args[0])
	}

	loop := etha.NewEventLoop()
	defer loop.Close()

	network := etha.NewNetwork(loop, &transport.WebSocketDialer{})

	conf, err := parseConfig(os.Args[1], network)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("Failed to parse config")
	}

	if conf.Discovery.IPv4 || conf.Discovery.IPv6 {
		notify := func(relay discovery.Relay) {
			loop.Post(func() { network.SetAlias(relay.Name, relay.URL) })
		}

		if manager, err := discovery.NewManager(notify, nil, 10*time.Second, conf.Discovery.IPv4, conf.Discovery.IPv6); err != nil {
			log.WithError(err).Warn("Starting discovery errored")
		} else {
			defer manager.Close()
		}
	}

	c, err := newCat(loop, network, os.Stdout)
	if err != nil {
		log.WithError(err).Fatal("Failed to register message handler")
	}

	c.open(os.Args[2], os.Args[3:])
	go c.readLines(os.Stdin)

	signalSyn := make(chan os.Signal, 1)
	signal.Notify(signalSyn, os.Interrupt)

	select {
	case <-signalSyn:
		log.Info("Received interrupt signal")
	case <-c.doneSyn:
	}

	c.close()
}
