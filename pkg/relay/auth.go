// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"bufio"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Authorizer decides about a client's admission to a channel.
type Authorizer interface {
	// Authorize a client for some channel based on its credentials. A denial might be explained by a reason.
	Authorize(channel string, credentials []string) (ok bool, reason string)
}

// AuthorizerFunc is a function implementing the Authorizer interface.
type AuthorizerFunc func(channel string, credentials []string) (bool, string)

func (af AuthorizerFunc) Authorize(channel string, credentials []string) (bool, string) {
	return af(channel, credentials)
}

// AllowAll admits everyone.
var AllowAll Authorizer = AuthorizerFunc(func(string, []string) (bool, string) {
	return true, ""
})

// TokenAuthorizer admits clients presenting at least one known token as a credential.
type TokenAuthorizer struct {
	sync.RWMutex

	tokens map[string]struct{}
}

// NewTokenAuthorizer for a set of tokens.
func NewTokenAuthorizer(tokens ...string) *TokenAuthorizer {
	ta := &TokenAuthorizer{}
	ta.Reload(tokens)
	return ta
}

// Reload replaces the known tokens.
func (ta *TokenAuthorizer) Reload(tokens []string) {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if token != "" {
			set[token] = struct{}{}
		}
	}

	ta.Lock()
	ta.tokens = set
	ta.Unlock()

	log.WithField("tokens", len(set)).Info("TokenAuthorizer loaded tokens")
}

func (ta *TokenAuthorizer) Authorize(_ string, credentials []string) (bool, string) {
	ta.RLock()
	defer ta.RUnlock()

	for _, credential := range credentials {
		if _, ok := ta.tokens[credential]; ok {
			return true, ""
		}
	}
	return false, "unknown token"
}

// ReadTokenFile reads one token per line. Empty lines and lines starting with # are skipped.
func ReadTokenFile(path string) (tokens []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens = append(tokens, line)
	}
	err = scanner.Err()
	return
}
