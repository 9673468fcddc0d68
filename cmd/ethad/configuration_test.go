// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/etha/pkg/relay"
)

func TestCheckConfig(t *testing.T) {
	valid := tomlConfig{Relay: relayConf{Listen: ":35037", Origin: "ethad"}}
	if err := checkConfig(valid); err != nil {
		t.Fatalf("valid configuration errored: %v", err)
	}

	invalid := tomlConfig{
		Relay:     relayConf{Listen: "nope"},
		Auth:      authConf{Tokens: []string{"ok", ""}},
		Discovery: discoveryConf{IPv4: true},
	}
	if err := checkConfig(invalid); err == nil {
		t.Fatal("invalid configuration passed")
	} else if merr, ok := err.(*multierror.Error); !ok || len(merr.Errors) != 4 {
		t.Fatalf("expected four errors, got %v", err)
	}
}

func TestParseDaemon(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "ethad.toml")
	content := `
[relay]
listen = "127.0.0.1:35037"
origin = "test"

[auth]
tokens = ["static"]

[logging]
level = "debug"
`
	if err := os.WriteFile(config, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	d, err := parseDaemon(config)
	if err != nil {
		t.Fatal(err)
	}
	defer d.close()

	if d.listen != "127.0.0.1:35037" || d.relay == nil || d.watcher != nil || d.discovery != nil {
		t.Fatalf("unexpected daemon %#v", d)
	}
}

func TestTokenWatcher(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tokens")
	if err := os.WriteFile(file, []byte("first\n"), 0600); err != nil {
		t.Fatal(err)
	}

	ta := relay.NewTokenAuthorizer()
	tw, err := newTokenWatcher(file, []string{"static"}, ta)
	if err != nil {
		t.Fatal(err)
	}
	defer tw.close()

	for _, token := range []string{"static", "first"} {
		if ok, _ := ta.Authorize("any", []string{token}); !ok {
			t.Fatalf("token %s is unknown", token)
		}
	}

	if err := os.WriteFile(file, []byte("# rotated\nsecond\n"), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		okFirst, _ := ta.Authorize("any", []string{"first"})
		okSecond, _ := ta.Authorize("any", []string{"second"})
		okStatic, _ := ta.Authorize("any", []string{"static"})
		if !okFirst && okSecond && okStatic {
			break
		} else if time.Now().After(deadline) {
			t.Fatal("tokens were not reloaded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
