// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import (
	"sync"
	"time"
)

// Timer is a pending function call, created by Loop.AfterFunc.
type Timer interface {
	// Stop prevents the Timer from firing. It must be called from within the Loop and reports whether the
	// call stopped the Timer.
	Stop() bool
}

// Loop serializes all events of a Network. Each posted function runs to completion before the next one starts.
type Loop interface {
	// Post enqueues fn. Post is safe to be called from any goroutine, including the Loop's own.
	Post(fn func())

	// Do runs fn on the Loop and waits for its completion. Calling Do from within the Loop deadlocks.
	Do(fn func())

	// AfterFunc calls fn on the Loop after the duration d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

// EventLoop is a goroutine backed Loop.
type EventLoop struct {
	mutex   sync.Mutex
	pending []func()
	closed  bool

	wake     chan struct{}
	closeSyn chan struct{}
	closeAck chan struct{}
}

// NewEventLoop creates and starts an EventLoop.
func NewEventLoop() *EventLoop {
	l := &EventLoop{
		wake:     make(chan struct{}, 1),
		closeSyn: make(chan struct{}),
		closeAck: make(chan struct{}),
	}

	go l.handler()

	return l
}

func (l *EventLoop) handler() {
	defer close(l.closeAck)

	for {
		select {
		case <-l.closeSyn:
			return

		case <-l.wake:
			l.mutex.Lock()
			fns := l.pending
			l.pending = nil
			l.mutex.Unlock()

			for _, fn := range fns {
				fn()
			}
		}
	}
}

func (l *EventLoop) Post(fn func()) {
	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		return
	}
	l.pending = append(l.pending, fn)
	l.mutex.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *EventLoop) Do(fn func()) {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
	case <-l.closeAck:
	}
}

func (l *EventLoop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped {
				return
			}
			t.stopped = true
			fn()
		})
	})
	return t
}

// Close stops the EventLoop. Pending functions are discarded.
func (l *EventLoop) Close() {
	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		return
	}
	l.closed = true
	l.mutex.Unlock()

	close(l.closeSyn)
	<-l.closeAck
}

// loopTimer's stopped flag is only accessed from within the Loop.
type loopTimer struct {
	timer   *time.Timer
	stopped bool
}

func (t *loopTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}
