// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/dtn7/cboring"
	"github.com/hashicorp/go-multierror"
)

// Payload is the typed data part of an Envelope.
type Payload interface {
	// Kind names this payload's type on the wire, e.g., "auth" or "net".
	Kind() string

	// CborMarshaler must only be implemented for the payload itself; the Envelope takes care of the kind.
	cboring.CborMarshaler
}

const (
	KindHello  = "hello"
	KindReady  = "ready"
	KindAuthRq = "auth-request"
	KindAuth   = "auth"
	KindNet    = "net"
	KindDie    = "die"
	KindClient = "client"
	KindSent   = "sent"
	KindDrop   = "drop"
)

var payloadMapping = map[string]reflect.Type{
	KindHello:  reflect.TypeOf(Hello{}),
	KindReady:  reflect.TypeOf(Ready{}),
	KindAuthRq: reflect.TypeOf(AuthRequest{}),
	KindAuth:   reflect.TypeOf(AuthReply{}),
	KindNet:    reflect.TypeOf(Net{}),
	KindDie:    reflect.TypeOf(Die{}),
	KindClient: reflect.TypeOf(ClientMessage{}),
	KindSent:   reflect.TypeOf(Sent{}),
	KindDrop:   reflect.TypeOf(Drop{}),
}

// Envelope wraps a Payload with its message id and timestamps.
type Envelope struct {
	ID       uint64
	Sent     time.Time
	Received time.Time
	Data     Payload
}

// NewEnvelope for some Payload, sent now.
func NewEnvelope(id uint64, data Payload) *Envelope {
	return &Envelope{
		ID:   id,
		Sent: time.Now(),
		Data: data,
	}
}

// Type of the wrapped Payload or an empty string.
func (env *Envelope) Type() string {
	if env.Data == nil {
		return ""
	}
	return env.Data.Kind()
}

// CheckValid checks the Envelope and its Payload, if the Payload supports validation.
func (env *Envelope) CheckValid() (errs error) {
	if env.Data == nil {
		errs = multierror.Append(errs, fmt.Errorf("envelope %d has no payload", env.ID))
	} else if _, ok := payloadMapping[env.Data.Kind()]; !ok {
		errs = multierror.Append(errs, fmt.Errorf("envelope %d has unknown kind %q", env.ID, env.Data.Kind()))
	} else if v, ok := env.Data.(interface{ CheckValid() error }); ok {
		if err := v.CheckValid(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return
}

func (env *Envelope) String() string {
	return fmt.Sprintf("Envelope(%d, %s)", env.ID, env.Type())
}

func timeToMillis(t time.Time) uint64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint64(t.UnixMilli())
}

func millisToTime(ms uint64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}

// MarshalCbor writes this Envelope's CBOR representation.
func (env *Envelope) MarshalCbor(w io.Writer) error {
	if env.Data == nil {
		return fmt.Errorf("envelope %d has no payload", env.ID)
	}

	if err := cboring.WriteArrayLength(5, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(env.ID, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(env.Data.Kind(), w); err != nil {
		return err
	}
	for _, t := range []time.Time{env.Sent, env.Received} {
		if err := cboring.WriteUInt(timeToMillis(t), w); err != nil {
			return err
		}
	}
	if err := cboring.Marshal(env.Data, w); err != nil {
		return fmt.Errorf("marshalling %s payload failed: %v", env.Data.Kind(), err)
	}

	return nil
}

// UnmarshalCbor reads an Envelope and creates its Payload based on the kind.
func (env *Envelope) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 5 {
		return fmt.Errorf("wrong array length: %d instead of 5", l)
	}

	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		env.ID = n
	}

	var kind string
	if k, err := cboring.ReadTextString(r); err != nil {
		return err
	} else if t, ok := payloadMapping[k]; !ok {
		return fmt.Errorf("unknown payload kind %q", k)
	} else {
		kind = k
		env.Data = reflect.New(t).Interface().(Payload)
	}

	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		env.Sent = millisToTime(n)
	}
	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		env.Received = millisToTime(n)
	}

	if err := cboring.Unmarshal(env.Data, r); err != nil {
		return fmt.Errorf("unmarshalling %s payload failed: %v", kind, err)
	}

	return nil
}

// WriteBatch writes a batch of Envelopes as a CBOR array.
func WriteBatch(batch []*Envelope, w io.Writer) error {
	if err := cboring.WriteArrayLength(uint64(len(batch)), w); err != nil {
		return err
	}

	for i, env := range batch {
		if err := cboring.Marshal(env, w); err != nil {
			return fmt.Errorf("marshalling Envelope %d (%v) failed: %v", i, env, err)
		}
	}

	return nil
}

// ReadBatch reads a batch of Envelopes.
func ReadBatch(r io.Reader) (batch []*Envelope, err error) {
	if l, cErr := cboring.ReadArrayLength(r); cErr != nil {
		err = cErr
		return
	} else {
		batch = make([]*Envelope, l)
	}

	for i := range batch {
		batch[i] = new(Envelope)
		if cErr := cboring.Unmarshal(batch[i], r); cErr != nil {
			batch = nil
			err = fmt.Errorf("unmarshalling Envelope %d failed: %v", i, cErr)
			return
		}
	}

	return
}

// MarshalBatch into a CBOR byte string.
func MarshalBatch(batch []*Envelope) (data []byte, err error) {
	buff := new(bytes.Buffer)
	if err = WriteBatch(batch, buff); err == nil {
		data = buff.Bytes()
	}
	return
}

// UnmarshalBatch from a CBOR byte string.
func UnmarshalBatch(data []byte) ([]*Envelope, error) {
	return ReadBatch(bytes.NewBuffer(data))
}
