// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
)

// packer serializes one message. The offsets map records where each name
// suffix was first written so later occurrences compress to a pointer.
type packer struct {
	buf     []byte
	offsets map[string]int
}

// Pack serializes the message into RFC 1035 wire format, compressing
// repeated name suffixes in the question and record owner positions.
func (m *Message) Pack() ([]byte, error) {
	if len(m.Questions) > 0xFFFF || len(m.Answers) > 0xFFFF ||
		len(m.Authorities) > 0xFFFF || len(m.Additional) > 0xFFFF {
		return nil, fmt.Errorf("%w: section count overflows 16 bits", ErrMalformedPacket)
	}

	p := &packer{
		buf:     make([]byte, 0, MaxUDPSize),
		offsets: make(map[string]int),
	}
	p.uint16(m.ID)
	p.uint16(uint16(m.Flags))
	p.uint16(uint16(len(m.Questions)))
	p.uint16(uint16(len(m.Answers)))
	p.uint16(uint16(len(m.Authorities)))
	p.uint16(uint16(len(m.Additional)))

	for _, q := range m.Questions {
		if err := p.name(q.Name); err != nil {
			return nil, err
		}
		p.uint16(q.Type)
		p.uint16(q.Class)
	}
	for _, section := range [][]Record{m.Answers, m.Authorities, m.Additional} {
		for _, rr := range section {
			if err := p.record(rr); err != nil {
				return nil, err
			}
		}
	}
	return p.buf, nil
}

func (p *packer) uint16(v uint16) {
	p.buf = append(p.buf, byte(v>>8), byte(v))
}

func (p *packer) uint32(v uint32) {
	p.buf = append(p.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// name writes a compressed name: the longest suffix already present in
// the packet is replaced by a pointer to its first occurrence.
func (p *packer) name(n Name) error {
	if err := n.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}

	for i := range n.Labels {
		if off, found := p.offsets[n.suffix(i).key()]; found {
			p.uint16(0xC000 | uint16(off))
			return nil
		}
		// Offsets beyond the 14-bit pointer range are unreachable
		// and never recorded.
		if off := len(p.buf); off <= maxCompressionOffset {
			p.offsets[n.suffix(i).key()] = off
		}
		label := n.Labels[i]
		p.buf = append(p.buf, byte(len(label)))
		p.buf = append(p.buf, label...)
	}

	p.buf = append(p.buf, 0)
	return nil
}

// rawName writes a name without consulting or updating the offsets map.
// Names inside RDATA are written this way.
func (p *packer) rawName(n Name) error {
	if err := n.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}

	for _, label := range n.Labels {
		p.buf = append(p.buf, byte(len(label)))
		p.buf = append(p.buf, label...)
	}
	p.buf = append(p.buf, 0)
	return nil
}

func (p *packer) record(rr Record) error {
	if rr.Data == nil {
		return fmt.Errorf("%w: record %s has no payload", ErrMalformedPacket, rr.Name)
	}

	rtype := rr.Type
	if rtype == 0 {
		rtype = rr.Data.Rtype()
	}
	class := rr.Class
	if class == 0 {
		class = ClassINET
	}

	if err := p.name(rr.Name); err != nil {
		return err
	}
	p.uint16(rtype)
	p.uint16(class)
	p.uint32(rr.TTL)

	lenPos := len(p.buf)
	p.uint16(0)
	start := len(p.buf)
	if err := p.rdata(rr.Data); err != nil {
		return err
	}

	size := len(p.buf) - start
	if size > 0xFFFF {
		return fmt.Errorf("%w: RDATA of %d bytes overflows the length field", ErrMalformedPacket, size)
	}
	binary.BigEndian.PutUint16(p.buf[lenPos:], uint16(size))
	return nil
}

func (p *packer) rdata(data RData) error {
	switch d := data.(type) {
	case *ARecord:
		p.buf = append(p.buf, d.Addr[:]...)
	case *AAAARecord:
		p.buf = append(p.buf, d.Addr[:]...)
	case *CNAMERecord:
		return p.rawName(d.Target)
	case *NSRecord:
		return p.rawName(d.Target)
	case *PTRRecord:
		return p.rawName(d.Target)
	case *MXRecord:
		p.uint16(d.Preference)
		return p.rawName(d.Exchange)
	case *SRVRecord:
		p.uint16(d.Priority)
		p.uint16(d.Weight)
		p.uint16(d.Port)
		return p.rawName(d.Target)
	case *TXTRecord:
		return p.txt(d)
	case *SOARecord:
		if err := p.rawName(d.NS); err != nil {
			return err
		}
		if err := p.rawName(d.Mbox); err != nil {
			return err
		}
		p.uint32(d.Serial)
		p.uint32(d.Refresh)
		p.uint32(d.Retry)
		p.uint32(d.Expire)
		p.uint32(d.Minimum)
	case *RawRecord:
		p.buf = append(p.buf, d.Data...)
	default:
		return fmt.Errorf("%w: unsupported payload %T", ErrMalformedPacket, data)
	}
	return nil
}

func (p *packer) txt(d *TXTRecord) error {
	strs := d.Strings
	if len(strs) == 0 {
		// A TXT record must carry at least one string, possibly empty.
		strs = []string{""}
	}

	for _, s := range strs {
		if len(s) > 255 {
			return fmt.Errorf("%w: TXT string of %d bytes exceeds the 255 byte limit", ErrMalformedPacket, len(s))
		}
		p.buf = append(p.buf, byte(len(s)))
		p.buf = append(p.buf, s...)
	}
	return nil
}
