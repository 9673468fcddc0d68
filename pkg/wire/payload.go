// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"fmt"
	"io"
	"time"

	"github.com/dtn7/cboring"
	"github.com/hashicorp/go-multierror"
)

// NetID is a network id, assigned by a relay on successful authentication. Zero means none.
type NetID uint64

// NetworkID returns the NetID itself, making it usable as a recipient.
func (id NetID) NetworkID() NetID {
	return id
}

func writeNetIDs(ids []NetID, w io.Writer) error {
	if err := cboring.WriteArrayLength(uint64(len(ids)), w); err != nil {
		return err
	}
	for _, id := range ids {
		if err := cboring.WriteUInt(uint64(id), w); err != nil {
			return err
		}
	}
	return nil
}

func readNetIDs(r io.Reader) (ids []NetID, err error) {
	var l uint64
	if l, err = cboring.ReadArrayLength(r); err != nil {
		return
	}

	ids = make([]NetID, 0, l)
	for i := uint64(0); i < l; i++ {
		if n, nErr := cboring.ReadUInt(r); nErr != nil {
			return nil, nErr
		} else {
			ids = append(ids, NetID(n))
		}
	}
	return
}

func writeTextStrings(strs []string, w io.Writer) error {
	if err := cboring.WriteArrayLength(uint64(len(strs)), w); err != nil {
		return err
	}
	for _, s := range strs {
		if err := cboring.WriteTextString(s, w); err != nil {
			return err
		}
	}
	return nil
}

func readTextStrings(r io.Reader) (strs []string, err error) {
	var l uint64
	if l, err = cboring.ReadArrayLength(r); err != nil {
		return
	}

	strs = make([]string, 0, l)
	for i := uint64(0); i < l; i++ {
		if s, sErr := cboring.ReadTextString(r); sErr != nil {
			return nil, sErr
		} else {
			strs = append(strs, s)
		}
	}
	return
}

// PeerInfo describes an authenticated participant within a channel.
type PeerInfo struct {
	ID      NetID
	Channel string
	Origin  string
	Start   time.Time
}

// CheckValid reports a missing id or channel.
func (pi PeerInfo) CheckValid() (errs error) {
	if pi.ID == 0 {
		errs = multierror.Append(errs, fmt.Errorf("peer has no network id"))
	}
	if pi.Channel == "" {
		errs = multierror.Append(errs, fmt.Errorf("peer %d has no channel", pi.ID))
	}
	return
}

func (pi *PeerInfo) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(4, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(uint64(pi.ID), w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(pi.Channel, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(pi.Origin, w); err != nil {
		return err
	}
	return cboring.WriteUInt(timeToMillis(pi.Start), w)
}

func (pi *PeerInfo) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 4 {
		return fmt.Errorf("wrong array length: %d instead of 4", l)
	}

	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		pi.ID = NetID(n)
	}
	if s, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		pi.Channel = s
	}
	if s, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		pi.Origin = s
	}
	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		pi.Start = millisToTime(n)
	}

	return nil
}

func writePeerInfos(peers []PeerInfo, w io.Writer) error {
	if err := cboring.WriteArrayLength(uint64(len(peers)), w); err != nil {
		return err
	}
	for i := range peers {
		if err := cboring.Marshal(&peers[i], w); err != nil {
			return fmt.Errorf("marshalling peer %d failed: %v", i, err)
		}
	}
	return nil
}

func readPeerInfos(r io.Reader) (peers []PeerInfo, err error) {
	var l uint64
	if l, err = cboring.ReadArrayLength(r); err != nil {
		return
	}

	peers = make([]PeerInfo, l)
	for i := range peers {
		if pErr := cboring.Unmarshal(&peers[i], r); pErr != nil {
			return nil, fmt.Errorf("unmarshalling peer %d failed: %v", i, pErr)
		}
	}
	return
}

// Hello is the bootstrap message a client sends right after the transport was established.
type Hello struct {
	Protocol string
	Network  string
}

func (_ *Hello) Kind() string {
	return KindHello
}

func (h *Hello) CheckValid() error {
	if h.Protocol == "" {
		return fmt.Errorf("hello without protocol")
	}
	return nil
}

func (h *Hello) MarshalCbor(w io.Writer) error {
	return writeTextStrings([]string{h.Protocol, h.Network}, w)
}

func (h *Hello) UnmarshalCbor(r io.Reader) error {
	if strs, err := readTextStrings(r); err != nil {
		return err
	} else if len(strs) != 2 {
		return fmt.Errorf("wrong array length: %d instead of 2", len(strs))
	} else {
		h.Protocol, h.Network = strs[0], strs[1]
		return nil
	}
}

// Ready is sent by a relay when it is able to authenticate clients. It carries the relay's origin.
type Ready struct {
	Origin string
}

func (_ *Ready) Kind() string {
	return KindReady
}

func (rd *Ready) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(rd.Origin, w)
}

func (rd *Ready) UnmarshalCbor(r io.Reader) (err error) {
	rd.Origin, err = cboring.ReadTextString(r)
	return
}

// AuthEntry asks for one agent's admission to a channel.
type AuthEntry struct {
	Slot        uint64
	Channel     string
	Credentials []string
}

// AuthRequest is one batch of AuthEntries.
type AuthRequest struct {
	Entries []AuthEntry
}

func (_ *AuthRequest) Kind() string {
	return KindAuthRq
}

func (ar *AuthRequest) CheckValid() (errs error) {
	if len(ar.Entries) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("empty auth request"))
	}
	for _, e := range ar.Entries {
		if e.Slot == 0 {
			errs = multierror.Append(errs, fmt.Errorf("auth entry without slot"))
		}
		if e.Channel == "" {
			errs = multierror.Append(errs, fmt.Errorf("auth entry %d without channel", e.Slot))
		}
	}
	return
}

func (ar *AuthRequest) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(uint64(len(ar.Entries)), w); err != nil {
		return err
	}

	for _, e := range ar.Entries {
		if err := cboring.WriteArrayLength(3, w); err != nil {
			return err
		}
		if err := cboring.WriteUInt(e.Slot, w); err != nil {
			return err
		}
		if err := cboring.WriteTextString(e.Channel, w); err != nil {
			return err
		}
		if err := writeTextStrings(e.Credentials, w); err != nil {
			return err
		}
	}

	return nil
}

func (ar *AuthRequest) UnmarshalCbor(r io.Reader) error {
	l, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}

	ar.Entries = make([]AuthEntry, l)
	for i := range ar.Entries {
		e := &ar.Entries[i]

		if n, err := cboring.ReadArrayLength(r); err != nil {
			return err
		} else if n != 3 {
			return fmt.Errorf("auth entry %d: wrong array length: %d instead of 3", i, n)
		}
		if e.Slot, err = cboring.ReadUInt(r); err != nil {
			return err
		}
		if e.Channel, err = cboring.ReadTextString(r); err != nil {
			return err
		}
		if e.Credentials, err = readTextStrings(r); err != nil {
			return err
		}
	}

	return nil
}

// AuthReply answers a single AuthEntry, identified by its slot.
type AuthReply struct {
	Slot      uint64
	NetworkID NetID
	OK        bool
	Peers     []PeerInfo
	Reason    string
}

func (_ *AuthReply) Kind() string {
	return KindAuth
}

func (ar *AuthReply) CheckValid() (errs error) {
	if ar.Slot == 0 {
		errs = multierror.Append(errs, fmt.Errorf("auth reply without slot"))
	}
	if ar.OK && ar.NetworkID == 0 {
		errs = multierror.Append(errs, fmt.Errorf("auth reply for slot %d without network id", ar.Slot))
	}
	for _, p := range ar.Peers {
		if err := p.CheckValid(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return
}

func (ar *AuthReply) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(5, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(ar.Slot, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(ar.NetworkID), w); err != nil {
		return err
	}
	if err := cboring.WriteBoolean(ar.OK, w); err != nil {
		return err
	}
	if err := writePeerInfos(ar.Peers, w); err != nil {
		return err
	}
	return cboring.WriteTextString(ar.Reason, w)
}

func (ar *AuthReply) UnmarshalCbor(r io.Reader) (err error) {
	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		return lErr
	} else if l != 5 {
		return fmt.Errorf("wrong array length: %d instead of 5", l)
	}

	if ar.Slot, err = cboring.ReadUInt(r); err != nil {
		return
	}
	if n, nErr := cboring.ReadUInt(r); nErr != nil {
		return nErr
	} else {
		ar.NetworkID = NetID(n)
	}
	if ar.OK, err = cboring.ReadBoolean(r); err != nil {
		return
	}
	if ar.Peers, err = readPeerInfos(r); err != nil {
		return
	}
	ar.Reason, err = cboring.ReadTextString(r)
	return
}

// DropSet lists network ids which left a channel.
type DropSet struct {
	Channel string
	IDs     []NetID
}

// Net announces joins and drops within channels.
type Net struct {
	Joins []PeerInfo
	Drops []DropSet
}

func (_ *Net) Kind() string {
	return KindNet
}

func (n *Net) CheckValid() (errs error) {
	for _, p := range n.Joins {
		if err := p.CheckValid(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, d := range n.Drops {
		if d.Channel == "" {
			errs = multierror.Append(errs, fmt.Errorf("drop set without channel"))
		}
	}
	return
}

func (n *Net) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := writePeerInfos(n.Joins, w); err != nil {
		return err
	}

	if err := cboring.WriteArrayLength(uint64(len(n.Drops)), w); err != nil {
		return err
	}
	for _, d := range n.Drops {
		if err := cboring.WriteArrayLength(2, w); err != nil {
			return err
		}
		if err := cboring.WriteTextString(d.Channel, w); err != nil {
			return err
		}
		if err := writeNetIDs(d.IDs, w); err != nil {
			return err
		}
	}

	return nil
}

func (n *Net) UnmarshalCbor(r io.Reader) (err error) {
	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		return lErr
	} else if l != 2 {
		return fmt.Errorf("wrong array length: %d instead of 2", l)
	}

	if n.Joins, err = readPeerInfos(r); err != nil {
		return
	}

	var l uint64
	if l, err = cboring.ReadArrayLength(r); err != nil {
		return
	}
	n.Drops = make([]DropSet, l)
	for i := range n.Drops {
		if dl, dErr := cboring.ReadArrayLength(r); dErr != nil {
			return dErr
		} else if dl != 2 {
			return fmt.Errorf("drop set %d: wrong array length: %d instead of 2", i, dl)
		}
		if n.Drops[i].Channel, err = cboring.ReadTextString(r); err != nil {
			return
		}
		if n.Drops[i].IDs, err = readNetIDs(r); err != nil {
			return
		}
	}

	return nil
}

// Die tells a bridge to shut down.
type Die struct {
	Code uint64
}

func (_ *Die) Kind() string {
	return KindDie
}

func (d *Die) MarshalCbor(w io.Writer) error {
	return cboring.WriteUInt(d.Code, w)
}

func (d *Die) UnmarshalCbor(r io.Reader) (err error) {
	d.Code, err = cboring.ReadUInt(r)
	return
}

// ClientMessage carries an application message of some Subtype. A Broadcast targets the sender's whole
// channel, otherwise only the listed network ids. The RequestID is echoed in the relay's Sent reply.
type ClientMessage struct {
	Subtype   string
	RequestID uint64
	From      NetID
	To        []NetID
	Broadcast bool
	Payload   []byte
}

func (_ *ClientMessage) Kind() string {
	return KindClient
}

func (cm *ClientMessage) CheckValid() (errs error) {
	if cm.Subtype == "" {
		errs = multierror.Append(errs, fmt.Errorf("client message without subtype"))
	}
	if cm.From == 0 {
		errs = multierror.Append(errs, fmt.Errorf("client message without sender"))
	}
	if !cm.Broadcast && len(cm.To) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("client message without recipients"))
	}
	return
}

func (cm *ClientMessage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(6, w); err != nil {
		return err
	}

	if err := cboring.WriteTextString(cm.Subtype, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(cm.RequestID, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(cm.From), w); err != nil {
		return err
	}
	if err := writeNetIDs(cm.To, w); err != nil {
		return err
	}
	if err := cboring.WriteBoolean(cm.Broadcast, w); err != nil {
		return err
	}
	return cboring.WriteByteString(cm.Payload, w)
}

func (cm *ClientMessage) UnmarshalCbor(r io.Reader) (err error) {
	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		return lErr
	} else if l != 6 {
		return fmt.Errorf("wrong array length: %d instead of 6", l)
	}

	if cm.Subtype, err = cboring.ReadTextString(r); err != nil {
		return
	}
	if cm.RequestID, err = cboring.ReadUInt(r); err != nil {
		return
	}
	if n, nErr := cboring.ReadUInt(r); nErr != nil {
		return nErr
	} else {
		cm.From = NetID(n)
	}
	if cm.To, err = readNetIDs(r); err != nil {
		return
	}
	if cm.Broadcast, err = cboring.ReadBoolean(r); err != nil {
		return
	}
	cm.Payload, err = cboring.ReadByteString(r)
	return
}

// Sent acknowledges a ClientMessage, referenced by its RequestID.
type Sent struct {
	RequestID uint64
	OK        bool
	Status    string
}

func (_ *Sent) Kind() string {
	return KindSent
}

func (s *Sent) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(s.RequestID, w); err != nil {
		return err
	}
	if err := cboring.WriteBoolean(s.OK, w); err != nil {
		return err
	}
	return cboring.WriteTextString(s.Status, w)
}

func (s *Sent) UnmarshalCbor(r io.Reader) (err error) {
	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		return lErr
	} else if l != 3 {
		return fmt.Errorf("wrong array length: %d instead of 3", l)
	}

	if s.RequestID, err = cboring.ReadUInt(r); err != nil {
		return
	}
	if s.OK, err = cboring.ReadBoolean(r); err != nil {
		return
	}
	s.Status, err = cboring.ReadTextString(r)
	return
}

// Drop informs the relay that a client left.
type Drop struct {
	Slot      uint64
	NetworkID NetID
}

func (_ *Drop) Kind() string {
	return KindDrop
}

func (d *Drop) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(d.Slot, w); err != nil {
		return err
	}
	return cboring.WriteUInt(uint64(d.NetworkID), w)
}

func (d *Drop) UnmarshalCbor(r io.Reader) (err error) {
	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		return lErr
	} else if l != 2 {
		return fmt.Errorf("wrong array length: %d instead of 2", l)
	}

	if d.Slot, err = cboring.ReadUInt(r); err != nil {
		return
	}
	if n, nErr := cboring.ReadUInt(r); nErr != nil {
		return nErr
	} else {
		d.NetworkID = NetID(n)
	}
	return nil
}
