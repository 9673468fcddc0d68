// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dtn7/etha/pkg/etha"
	"github.com/dtn7/etha/pkg/relay"
)

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	sync.Mutex
	buff bytes.Buffer
}

func (sb *syncBuffer) Write(p []byte) (int, error) {
	sb.Lock()
	defer sb.Unlock()
	return sb.buff.Write(p)
}

func (sb *syncBuffer) String() string {
	sb.Lock()
	defer sb.Unlock()
	return sb.buff.String()
}

func waitFor(t *testing.T, sb *syncBuffer, substr string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(sb.String(), substr) {
		if time.Now().After(deadline) {
			t.Fatalf("output misses %q: %q", substr, sb.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCatExchange(t *testing.T) {
	r := relay.NewRelay("cat-relay", nil)
	defer r.Close()

	loop := etha.NewEventLoop()
	defer loop.Close()

	var outA, outB syncBuffer

	a, err := newCat(loop, etha.NewNetwork(loop, r.LocalDialer()), &outA)
	if err != nil {
		t.Fatal(err)
	}
	b, err := newCat(loop, etha.NewNetwork(loop, r.LocalDialer()), &outB)
	if err != nil {
		t.Fatal(err)
	}

	a.open("room@local", nil)
	waitFor(t, &outA, "* connected to room@local")

	b.open("room@local", nil)
	waitFor(t, &outB, "* connected to room@local")

	var aID, bID string
	loop.Do(func() {
		aID = fmt.Sprint(a.client.ID())
		bID = fmt.Sprint(b.client.ID())
	})
	waitFor(t, &outA, fmt.Sprintf("* %s joined", bID))
	waitFor(t, &outB, fmt.Sprintf("* %s joined", aID))

	b.readLines(strings.NewReader("hello\n\nworld\n"))
	waitFor(t, &outA, fmt.Sprintf("<%s> hello\n<%s> world\n", bID, bID))

	select {
	case <-b.doneSyn:
	default:
		t.Fatal("reading all lines did not finish the cat")
	}

	b.close()
	waitFor(t, &outA, fmt.Sprintf("* %s left", bID))
	waitFor(t, &outB, "* disconnected from room@local")
}

func TestParseConfig(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "ethacat.toml")
	content := `
[client]
timeout = "3s"

[[alias]]
name = "home"
url = "ws://192.0.2.1:35037/relay"

[[alias]]
name = "broken"
`
	if err := os.WriteFile(config, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	loop := etha.NewEventLoop()
	defer loop.Close()

	network := etha.NewNetwork(loop, nil)
	if _, err := parseConfig(config, network); err == nil {
		t.Fatal("alias without URL passed")
	}

	if network.BridgeTimeout != 3*time.Second {
		t.Fatalf("timeout is %v", network.BridgeTimeout)
	}
	if network.AuthDelay != etha.DefaultAuthDelay {
		t.Fatalf("auth delay is %v", network.AuthDelay)
	}
	if addr := network.Resolve("home"); addr != "ws://192.0.2.1:35037/relay" {
		t.Fatalf("home resolves to %s", addr)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
		err      bool
	}{
		{"", time.Minute, false},
		{"250ms", 250 * time.Millisecond, false},
		{"-1s", 0, true},
		{"soon", 0, true},
	}

	for _, test := range tests {
		if d, err := parseDuration("test", test.value, time.Minute); (err != nil) != test.err {
			t.Fatalf("%q: unexpected error %v", test.value, err)
		} else if d != test.expected {
			t.Fatalf("%q: expected %v, got %v", test.value, test.expected, d)
		}
	}
}
