// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package wire

// A Message is one complete DNS query or response.
type Message struct {
	ID          uint16
	Flags       Flags
	Questions   []Question
	Answers     []Record
	Authorities []Record
	Additional  []Record
}

// NewQueryMsg builds a standard query for records of the given type.
func NewQueryMsg(name Name, qtype uint16) *Message {
	return &Message{
		Flags: Flags(0).WithOpcode(OpcodeQuery),
		Questions: []Question{{
			Name:  name,
			Type:  qtype,
			Class: ClassINET,
		}},
	}
}

// Copy returns a deep copy of the message.
func (m *Message) Copy() *Message {
	dup := &Message{
		ID:          m.ID,
		Flags:       m.Flags,
		Questions:   make([]Question, len(m.Questions)),
		Answers:     copyRecords(m.Answers),
		Authorities: copyRecords(m.Authorities),
		Additional:  copyRecords(m.Additional),
	}

	for i, q := range m.Questions {
		q.Name = copyName(q.Name)
		dup.Questions[i] = q
	}
	return dup
}

// AnswersByType returns the answers whose record type matches qtype.
func (m *Message) AnswersByType(qtype uint16) []Record {
	var subset []Record

	for _, rr := range m.Answers {
		if rr.Type == qtype {
			subset = append(subset, rr)
		}
	}
	return subset
}

func copyName(n Name) Name {
	if len(n.Labels) == 0 {
		return Name{}
	}
	labels := make([]string, len(n.Labels))
	copy(labels, n.Labels)
	return Name{Labels: labels}
}

func copyRecords(records []Record) []Record {
	if records == nil {
		return nil
	}

	dup := make([]Record, len(records))
	for i, rr := range records {
		rr.Name = copyName(rr.Name)
		rr.Data = copyRData(rr.Data)
		dup[i] = rr
	}
	return dup
}

func copyRData(data RData) RData {
	switch d := data.(type) {
	case *ARecord:
		dup := *d
		return &dup
	case *AAAARecord:
		dup := *d
		return &dup
	case *CNAMERecord:
		return &CNAMERecord{Target: copyName(d.Target)}
	case *NSRecord:
		return &NSRecord{Target: copyName(d.Target)}
	case *PTRRecord:
		return &PTRRecord{Target: copyName(d.Target)}
	case *MXRecord:
		return &MXRecord{Preference: d.Preference, Exchange: copyName(d.Exchange)}
	case *SRVRecord:
		return &SRVRecord{
			Priority: d.Priority,
			Weight:   d.Weight,
			Port:     d.Port,
			Target:   copyName(d.Target),
		}
	case *TXTRecord:
		dup := &TXTRecord{Strings: make([]string, len(d.Strings))}
		copy(dup.Strings, d.Strings)
		if d.Attributes != nil {
			dup.Attributes = make(map[string]string, len(d.Attributes))
			for k, v := range d.Attributes {
				dup.Attributes[k] = v
			}
		}
		return dup
	case *SOARecord:
		dup := *d
		dup.NS = copyName(d.NS)
		dup.Mbox = copyName(d.Mbox)
		return &dup
	case *RawRecord:
		dup := &RawRecord{Type: d.Type, Data: make([]byte, len(d.Data))}
		copy(dup.Data, d.Data)
		return dup
	default:
		return data
	}
}
