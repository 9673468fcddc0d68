// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/dtn7/cboring"
)

// Announcement of some relay's WebSocket endpoint. The host is taken from the package's sender.
type Announcement struct {
	Name string
	Port uint
	Path string
}

// UnmarshalAnnouncements creates a new array of Announcement based on a CBOR byte string.
func UnmarshalAnnouncements(data []byte) (announcements []Announcement, err error) {
	buff := bytes.NewBuffer(data)

	if l, cErr := cboring.ReadArrayLength(buff); cErr != nil {
		err = cErr
		return
	} else {
		announcements = make([]Announcement, l)
	}

	for i := 0; i < len(announcements); i++ {
		if cErr := cboring.Unmarshal(&announcements[i], buff); cErr != nil {
			err = fmt.Errorf("unmarshalling Announcement %d failed: %v", i, cErr)
			return
		}
	}

	return
}

// MarshalAnnouncements into a CBOR byte string.
func MarshalAnnouncements(announcements []Announcement) (data []byte, err error) {
	buff := new(bytes.Buffer)

	if cErr := cboring.WriteArrayLength(uint64(len(announcements)), buff); cErr != nil {
		err = cErr
		return
	}

	for i := range announcements {
		announcement := announcements[i]
		if cErr := cboring.Marshal(&announcement, buff); cErr != nil {
			err = fmt.Errorf("marshalling Announcement %d (%v) failed: %v", i, announcement, cErr)
			return
		}
	}

	data = buff.Bytes()
	return
}

// MarshalCbor creates a CBOR representation for an Announcement.
func (announcement *Announcement) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(3, w); err != nil {
		return err
	}

	if err := cboring.WriteTextString(announcement.Name, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(uint64(announcement.Port), w); err != nil {
		return err
	}

	return cboring.WriteTextString(announcement.Path, w)
}

// UnmarshalCbor creates an Announcement from its CBOR representation.
func (announcement *Announcement) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 3 {
		return fmt.Errorf("wrong array length: %d instead of 3", l)
	}

	if name, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		announcement.Name = name
	}

	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else if n == 0 || n > 65535 {
		return fmt.Errorf("invalid port %d", n)
	} else {
		announcement.Port = uint(n)
	}

	if path, err := cboring.ReadTextString(r); err != nil {
		return err
	} else if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q is not absolute", path)
	} else {
		announcement.Path = path
	}

	return nil
}

// URL of the announced WebSocket endpoint, reachable at the given host.
func (announcement Announcement) URL(host string) string {
	hostPort := net.JoinHostPort(host, fmt.Sprintf("%d", announcement.Port))
	return fmt.Sprintf("ws://%s%s", hostPort, announcement.Path)
}

func (announcement Announcement) String() string {
	return fmt.Sprintf("Announcement(%s,%d,%s)", announcement.Name, announcement.Port, announcement.Path)
}
