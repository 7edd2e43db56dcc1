// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package wire

// Resource record type codes registered with IANA that this package
// understands. Everything else unpacks into a RawRecord.
const (
	TypeA     uint16 = 1
	TypeNS    uint16 = 2
	TypeCNAME uint16 = 5
	TypeSOA   uint16 = 6
	TypePTR   uint16 = 12
	TypeMX    uint16 = 15
	TypeTXT   uint16 = 16
	TypeAAAA  uint16 = 28
	TypeSRV   uint16 = 33
)

// Type codes valid only in the question section.
const (
	TypeAXFR  uint16 = 252
	TypeMAILB uint16 = 253
	TypeMAILA uint16 = 254
	TypeANY   uint16 = 255
)

// Class codes. Only ClassINET appears in practice.
const (
	ClassINET   uint16 = 1
	ClassCHAOS  uint16 = 3
	ClassHESIOD uint16 = 4
)

// Opcodes from the header flags field.
const (
	OpcodeQuery  uint16 = 0
	OpcodeIQuery uint16 = 1
	OpcodeStatus uint16 = 2
)

// Response codes from the header flags field.
const (
	RcodeSuccess        uint16 = 0
	RcodeFormatError    uint16 = 1
	RcodeServerFailure  uint16 = 2
	RcodeNameError      uint16 = 3
	RcodeNotImplemented uint16 = 4
	RcodeRefused        uint16 = 5
)

// MaxUDPSize is the largest message carried in a single datagram without
// EDNS(0) negotiation, which this package does not perform.
const MaxUDPSize = 512
