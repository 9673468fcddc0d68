// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

// Request correlates one outbound client message with the relay's acknowledgement.
type Request struct {
	id       uint64
	agent    *Agent
	deferred *Deferred
}

// newRequest for an Agent, which might be nil.
func newRequest(network *Network, agent *Agent) *Request {
	return &Request{
		id:       network.nextID(),
		agent:    agent,
		deferred: newDeferred(),
	}
}

// log registers this Request as pending at its Agent's Bridge.
func (r *Request) log() {
	r.agent.bridge.requests.Set(r.id, r)
}

// done deregisters this Request.
func (r *Request) done() {
	if r.agent != nil && r.agent.bridge != nil {
		r.agent.bridge.requests.Delete(r.id)
	}
}

func (r *Request) yes(status string) {
	r.done()
	r.deferred.resolve(status)
}

func (r *Request) no(status string) {
	r.done()
	r.deferred.reject(&TransmitError{Status: status})
}
