// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/etha/pkg/discovery"
	"github.com/dtn7/etha/pkg/relay"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Relay     relayConf
	Auth      authConf
	Logging   logConf
	Discovery discoveryConf
}

// relayConf describes the Relay-configuration block.
type relayConf struct {
	Listen string
	Origin string
}

// authConf describes the Auth-configuration block. Without any tokens, everyone is admitted.
type authConf struct {
	Tokens     []string
	TokensFile string `toml:"tokens-file"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// discoveryConf describes the Discovery-configuration block.
type discoveryConf struct {
	IPv4     bool
	IPv6     bool
	Interval uint
	Name     string
}

// daemon bundles everything started from a configuration.
type daemon struct {
	listen    string
	relay     *relay.Relay
	watcher   *tokenWatcher
	discovery *discovery.Manager
}

func (d *daemon) close() {
	if d.watcher != nil {
		d.watcher.close()
	}
	if d.discovery != nil {
		d.discovery.Close()
	}
}

// setupLogging configures logrus based on a logConf.
func setupLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

func parseListenPort(endpoint string) (port int, err error) {
	var portStr string
	_, portStr, err = net.SplitHostPort(endpoint)
	if err != nil {
		return
	}
	port, err = strconv.Atoi(portStr)
	return
}

// checkConfig reports all problems of a configuration at once.
func checkConfig(conf tomlConfig) (errs error) {
	if conf.Relay.Listen == "" {
		errs = multierror.Append(errs, fmt.Errorf("relay.listen is empty"))
	} else if _, err := parseListenPort(conf.Relay.Listen); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("relay.listen: %v", err))
	}

	if conf.Relay.Origin == "" {
		errs = multierror.Append(errs, fmt.Errorf("relay.origin is empty"))
	}

	for i, token := range conf.Auth.Tokens {
		if token == "" {
			errs = multierror.Append(errs, fmt.Errorf("auth.tokens[%d] is empty", i))
		}
	}

	if (conf.Discovery.IPv4 || conf.Discovery.IPv6) && conf.Discovery.Interval == 0 {
		errs = multierror.Append(errs, fmt.Errorf("discovery.interval must be positive"))
	}

	return
}

// parseAuthorizer creates the Relay's Authorizer and, for a tokens file, its watcher.
func parseAuthorizer(conf authConf) (relay.Authorizer, *tokenWatcher, error) {
	if len(conf.Tokens) == 0 && conf.TokensFile == "" {
		log.Warn("No tokens configured, admitting everyone")
		return relay.AllowAll, nil, nil
	}

	ta := relay.NewTokenAuthorizer(conf.Tokens...)
	if conf.TokensFile == "" {
		return ta, nil, nil
	}

	tw, err := newTokenWatcher(conf.TokensFile, conf.Tokens, ta)
	if err != nil {
		return nil, nil, err
	}
	return ta, tw, nil
}

// parseDaemon creates the Relay and its companions based on the given TOML configuration.
func parseDaemon(filename string) (d *daemon, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	setupLogging(conf.Logging)

	if err = checkConfig(conf); err != nil {
		return
	}

	d = &daemon{listen: conf.Relay.Listen}

	var authorizer relay.Authorizer
	if authorizer, d.watcher, err = parseAuthorizer(conf.Auth); err != nil {
		return nil, err
	}

	d.relay = relay.NewRelay(conf.Relay.Origin, authorizer)

	if conf.Discovery.IPv4 || conf.Discovery.IPv6 {
		name := conf.Discovery.Name
		if name == "" {
			name = conf.Relay.Origin
		}

		port, _ := parseListenPort(conf.Relay.Listen)
		announcements := []discovery.Announcement{{Name: name, Port: uint(port), Path: "/relay"}}

		d.discovery, err = discovery.NewManager(
			nil, announcements, time.Duration(conf.Discovery.Interval)*time.Second,
			conf.Discovery.IPv4, conf.Discovery.IPv6)
		if err != nil {
			d.close()
			return nil, err
		}
	}

	return
}
