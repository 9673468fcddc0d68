// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import (
	"fmt"
	"sync"
)

// TransmitError is the rejection reason of a transmission.
type TransmitError struct {
	Status string
}

func (te *TransmitError) Error() string {
	return fmt.Sprintf("transmission failed: %s", te.Status)
}

const (
	// StatusFailed indicates the bridge could not hand off the message.
	StatusFailed = "failed"

	// StatusInvalid indicates a transmission request which could not be sent at all.
	StatusInvalid = "invalid message, state, or peers"
)

// Deferred is the eventual result of a transmission. It is either resolved with the relay's status or
// rejected with an error. A Deferred might also never settle, e.g., when its Client was closed in between.
//
// Callbacks registered by Then are invoked synchronously, on the Loop, when the Deferred settles or directly,
// if it has already settled.
type Deferred struct {
	mutex sync.Mutex
	done  chan struct{}

	settled bool
	status  string
	err     error

	onOK  []func(string)
	onErr []func(error)
}

func newDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Then registers callbacks for success and failure. Either might be nil.
func (d *Deferred) Then(onOK func(status string), onErr func(err error)) *Deferred {
	d.mutex.Lock()
	if !d.settled {
		if onOK != nil {
			d.onOK = append(d.onOK, onOK)
		}
		if onErr != nil {
			d.onErr = append(d.onErr, onErr)
		}
		d.mutex.Unlock()
		return d
	}
	status, err := d.status, d.err
	d.mutex.Unlock()

	if err == nil && onOK != nil {
		onOK(status)
	} else if err != nil && onErr != nil {
		onErr(err)
	}
	return d
}

// Catch is a shorthand for Then(nil, onErr).
func (d *Deferred) Catch(onErr func(err error)) *Deferred {
	return d.Then(nil, onErr)
}

// Done is closed when the Deferred settles.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Settled reports if the Deferred was resolved or rejected.
func (d *Deferred) Settled() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.settled
}

// Result returns the status and the error of a settled Deferred.
func (d *Deferred) Result() (status string, err error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.status, d.err
}

func (d *Deferred) settle(status string, err error) {
	d.mutex.Lock()
	if d.settled {
		d.mutex.Unlock()
		return
	}
	d.settled = true
	d.status, d.err = status, err
	onOK, onErr := d.onOK, d.onErr
	d.onOK, d.onErr = nil, nil
	d.mutex.Unlock()

	close(d.done)

	if err == nil {
		for _, fn := range onOK {
			fn(status)
		}
	} else {
		for _, fn := range onErr {
			fn(err)
		}
	}
}

func (d *Deferred) resolve(status string) {
	d.settle(status, nil)
}

func (d *Deferred) reject(err error) {
	d.settle("", err)
}
