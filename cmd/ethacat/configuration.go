// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/etha/pkg/etha"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Client    clientConf
	Alias     []aliasConf
	Logging   logConf
	Discovery discoveryConf
}

// clientConf describes the Client-configuration block. Empty durations keep the defaults.
type clientConf struct {
	Timeout   string
	AuthDelay string `toml:"auth-delay"`
}

// aliasConf describes an endpoint alias.
type aliasConf struct {
	Name string
	URL  string
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// discoveryConf describes the Discovery-configuration block. Discovered relays become aliases.
type discoveryConf struct {
	IPv4 bool
	IPv6 bool
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

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	} else if d, err := time.ParseDuration(value); err != nil {
		return 0, fmt.Errorf("%s: %v", name, err)
	} else if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	} else {
		return d, nil
	}
}

// parseConfig reads a TOML configuration and applies it to a Network, which must not yet be in use.
func parseConfig(filename string, network *etha.Network) (conf tomlConfig, err error) {
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	setupLogging(conf.Logging)

	var errs error

	if d, dErr := parseDuration("client.timeout", conf.Client.Timeout, etha.DefaultBridgeTimeout); dErr != nil {
		errs = multierror.Append(errs, dErr)
	} else {
		network.BridgeTimeout = d
	}

	if d, dErr := parseDuration("client.auth-delay", conf.Client.AuthDelay, etha.DefaultAuthDelay); dErr != nil {
		errs = multierror.Append(errs, dErr)
	} else {
		network.AuthDelay = d
	}

	for i, alias := range conf.Alias {
		if alias.Name == "" || alias.URL == "" {
			errs = multierror.Append(errs, fmt.Errorf("alias %d misses its name or URL", i))
			continue
		}
		network.SetAlias(alias.Name, alias.URL)
	}

	err = errs
	return
}
