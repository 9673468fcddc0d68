// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"

	"github.com/dtn7/etha/pkg/relay"
)

// tokenWatcher reloads a TokenAuthorizer whenever its tokens file changes. Tokens from the configuration
// itself are always kept.
type tokenWatcher struct {
	file   string
	static []string
	ta     *relay.TokenAuthorizer

	watcher  *fsnotify.Watcher
	closeSyn chan struct{}
	closeAck chan struct{}
}

func newTokenWatcher(file string, static []string, ta *relay.TokenAuthorizer) (tw *tokenWatcher, err error) {
	tw = &tokenWatcher{
		file:   filepath.Clean(file),
		static: static,
		ta:     ta,

		closeSyn: make(chan struct{}),
		closeAck: make(chan struct{}),
	}

	if err = tw.reload(); err != nil {
		return nil, err
	}

	if tw.watcher, err = fsnotify.NewWatcher(); err != nil {
		return nil, err
	}
	if err = tw.watcher.Add(filepath.Dir(tw.file)); err != nil {
		_ = tw.watcher.Close()
		return nil, err
	}

	go tw.handler()
	return tw, nil
}

func (tw *tokenWatcher) reload() error {
	tokens, err := relay.ReadTokenFile(tw.file)
	if err != nil {
		return err
	}

	tw.ta.Reload(append(append([]string{}, tw.static...), tokens...))
	return nil
}

func (tw *tokenWatcher) handler() {
	defer close(tw.closeAck)

	for {
		select {
		case <-tw.closeSyn:
			return

		case e, ok := <-tw.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if filepath.Clean(e.Name) != tw.file || e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			if err := tw.reload(); err != nil {
				log.WithError(err).WithField("file", tw.file).Warn("Reloading tokens errored, keeping old ones")
			}

		case err, ok := <-tw.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
		}
	}
}

func (tw *tokenWatcher) close() {
	close(tw.closeSyn)
	<-tw.closeAck
	_ = tw.watcher.Close()
}
