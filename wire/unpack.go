// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// unpacker walks one packet with a bounds-checked cursor. Every multi-byte
// read validates against the buffer length before advancing.
type unpacker struct {
	buf []byte
	off int
}

// Unpack parses an RFC 1035 wire format packet into a Message.
func Unpack(b []byte) (*Message, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedPacket, len(b))
	}

	u := &unpacker{buf: b}
	hdr := header{
		id:      u.mustUint16(),
		flags:   Flags(u.mustUint16()),
		qdcount: u.mustUint16(),
		ancount: u.mustUint16(),
		nscount: u.mustUint16(),
		arcount: u.mustUint16(),
	}

	msg := &Message{
		ID:    hdr.id,
		Flags: hdr.flags,
	}
	for i := 0; i < int(hdr.qdcount); i++ {
		q, err := u.question()
		if err != nil {
			return nil, err
		}
		msg.Questions = append(msg.Questions, q)
	}

	sections := []struct {
		count int
		dst   *[]Record
	}{
		{int(hdr.ancount), &msg.Answers},
		{int(hdr.nscount), &msg.Authorities},
		{int(hdr.arcount), &msg.Additional},
	}
	for _, s := range sections {
		for i := 0; i < s.count; i++ {
			rr, err := u.record()
			if err != nil {
				return nil, err
			}
			*s.dst = append(*s.dst, rr)
		}
	}
	return msg, nil
}

// mustUint16 reads without a bounds check and is only used for the header,
// whose presence Unpack verifies up front.
func (u *unpacker) mustUint16() uint16 {
	v := binary.BigEndian.Uint16(u.buf[u.off:])
	u.off += 2
	return v
}

func (u *unpacker) uint16() (uint16, error) {
	if u.off+2 > len(u.buf) {
		return 0, fmt.Errorf("%w: truncated at offset %d", ErrMalformedPacket, u.off)
	}
	return u.mustUint16(), nil
}

func (u *unpacker) uint32() (uint32, error) {
	if u.off+4 > len(u.buf) {
		return 0, fmt.Errorf("%w: truncated at offset %d", ErrMalformedPacket, u.off)
	}

	v := binary.BigEndian.Uint32(u.buf[u.off:])
	u.off += 4
	return v, nil
}

// name reads a possibly-compressed name starting at the cursor. Pointer
// targets must fall strictly before the position where the pointer
// appears, and no target may be visited twice; either violation means
// the packet is malformed.
func (u *unpacker) name() (Name, error) {
	var labels []string

	off := u.off
	jumped := false
	size := 1
	visited := make(map[int]bool)

	for {
		if off >= len(u.buf) {
			return Name{}, fmt.Errorf("%w: name runs past the end of the packet", ErrMalformedPacket)
		}

		switch l := u.buf[off]; {
		case l == 0:
			if !jumped {
				u.off = off + 1
			}
			return Name{Labels: labels}, nil
		case l&0xC0 == 0xC0:
			if off+2 > len(u.buf) {
				return Name{}, fmt.Errorf("%w: truncated compression pointer at offset %d", ErrMalformedPacket, off)
			}

			target := int(binary.BigEndian.Uint16(u.buf[off:])) & maxCompressionOffset
			if target >= off {
				return Name{}, fmt.Errorf("%w: compression pointer at offset %d targets %d", ErrMalformedPacket, off, target)
			}
			if visited[target] {
				return Name{}, fmt.Errorf("%w: compression pointer cycle through offset %d", ErrMalformedPacket, target)
			}
			visited[target] = true

			if !jumped {
				u.off = off + 2
				jumped = true
			}
			off = target
		case l&0xC0 != 0:
			// The 01 and 10 prefixes are reserved by RFC 1035.
			return Name{}, fmt.Errorf("%w: reserved label prefix 0x%02x at offset %d", ErrMalformedPacket, l, off)
		default:
			end := off + 1 + int(l)
			if end > len(u.buf) {
				return Name{}, fmt.Errorf("%w: label at offset %d runs past the end of the packet", ErrMalformedPacket, off)
			}
			if size += 1 + int(l); size > maxNameSize {
				return Name{}, fmt.Errorf("%w: name exceeds the %d byte limit", ErrMalformedPacket, maxNameSize)
			}
			labels = append(labels, string(u.buf[off+1:end]))
			off = end
		}
	}
}

func (u *unpacker) question() (Question, error) {
	name, err := u.name()
	if err != nil {
		return Question{}, err
	}

	qtype, err := u.uint16()
	if err != nil {
		return Question{}, err
	}

	class, err := u.uint16()
	if err != nil {
		return Question{}, err
	}
	return Question{Name: name, Type: qtype, Class: class}, nil
}

func (u *unpacker) record() (Record, error) {
	var rr Record
	var err error

	if rr.Name, err = u.name(); err != nil {
		return rr, err
	}
	if rr.Type, err = u.uint16(); err != nil {
		return rr, err
	}
	if rr.Class, err = u.uint16(); err != nil {
		return rr, err
	}
	if rr.TTL, err = u.uint32(); err != nil {
		return rr, err
	}

	rdlen, err := u.uint16()
	if err != nil {
		return rr, err
	}

	end := u.off + int(rdlen)
	if end > len(u.buf) {
		return rr, fmt.Errorf("%w: RDATA length %d runs past the end of the packet", ErrMalformedPacket, rdlen)
	}

	if rr.Data, err = u.rdata(rr.Type, end); err != nil {
		return rr, err
	}
	if u.off != end {
		return rr, fmt.Errorf("%w: RDATA for type %d decoded to the wrong length", ErrMalformedPacket, rr.Type)
	}
	return rr, nil
}

// rdata parses the typed payload between the cursor and end. Unrecognized
// type codes keep their raw bytes.
func (u *unpacker) rdata(rtype uint16, end int) (RData, error) {
	switch rtype {
	case TypeA:
		if end-u.off != 4 {
			return nil, fmt.Errorf("%w: A record with %d byte RDATA", ErrMalformedPacket, end-u.off)
		}
		var d ARecord
		copy(d.Addr[:], u.buf[u.off:end])
		u.off = end
		return &d, nil
	case TypeAAAA:
		if end-u.off != 16 {
			return nil, fmt.Errorf("%w: AAAA record with %d byte RDATA", ErrMalformedPacket, end-u.off)
		}
		var d AAAARecord
		copy(d.Addr[:], u.buf[u.off:end])
		u.off = end
		return &d, nil
	case TypeCNAME:
		target, err := u.name()
		return &CNAMERecord{Target: target}, err
	case TypeNS:
		target, err := u.name()
		return &NSRecord{Target: target}, err
	case TypePTR:
		target, err := u.name()
		return &PTRRecord{Target: target}, err
	case TypeMX:
		pref, err := u.uint16()
		if err != nil {
			return nil, err
		}
		exchange, err := u.name()
		return &MXRecord{Preference: pref, Exchange: exchange}, err
	case TypeSRV:
		return u.srv()
	case TypeTXT:
		return u.txt(end)
	case TypeSOA:
		return u.soa()
	default:
		d := &RawRecord{
			Type: rtype,
			Data: append([]byte{}, u.buf[u.off:end]...),
		}
		u.off = end
		return d, nil
	}
}

func (u *unpacker) srv() (RData, error) {
	var d SRVRecord
	var err error

	if d.Priority, err = u.uint16(); err != nil {
		return nil, err
	}
	if d.Weight, err = u.uint16(); err != nil {
		return nil, err
	}
	if d.Port, err = u.uint16(); err != nil {
		return nil, err
	}
	d.Target, err = u.name()
	return &d, err
}

// txt walks consecutive length-prefixed strings until the RDATA boundary.
// Entries containing '=' also land in the key/value view, split on the
// first occurrence.
func (u *unpacker) txt(end int) (RData, error) {
	d := &TXTRecord{Attributes: make(map[string]string)}

	for u.off < end {
		l := int(u.buf[u.off])
		next := u.off + 1 + l
		if next > end {
			return nil, fmt.Errorf("%w: TXT string at offset %d crosses the RDATA boundary", ErrMalformedPacket, u.off)
		}

		entry := string(u.buf[u.off+1 : next])
		d.Strings = append(d.Strings, entry)
		if idx := strings.Index(entry, "="); idx >= 0 {
			d.Attributes[entry[:idx]] = entry[idx+1:]
		}
		u.off = next
	}
	return d, nil
}

func (u *unpacker) soa() (RData, error) {
	var d SOARecord
	var err error

	if d.NS, err = u.name(); err != nil {
		return nil, err
	}
	if d.Mbox, err = u.name(); err != nil {
		return nil, err
	}
	for _, field := range []*uint32{&d.Serial, &d.Refresh, &d.Retry, &d.Expire, &d.Minimum} {
		if *field, err = u.uint32(); err != nil {
			return nil, err
		}
	}
	return &d, nil
}
