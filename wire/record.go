// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"net"
	"strings"
)

// A Question asks for records of one type under one name.
type Question struct {
	Name  Name
	Type  uint16
	Class uint16
}

// A Record is one resource record from the answer, authority, or
// additional section.
type Record struct {
	Name  Name
	Type  uint16
	Class uint16
	TTL   uint32
	Data  RData
}

// RData is the record-type-specific payload of a resource record.
type RData interface {
	// Rtype returns the resource record type code the payload belongs to.
	Rtype() uint16
}

// ARecord is an IPv4 host address.
type ARecord struct {
	Addr [4]byte
}

func (r *ARecord) Rtype() uint16 { return TypeA }

// IP returns the address as a net.IP.
func (r *ARecord) IP() net.IP {
	return net.IPv4(r.Addr[0], r.Addr[1], r.Addr[2], r.Addr[3])
}

// StringAddress returns the dotted-quad form of the address.
func (r *ARecord) StringAddress() string {
	return fmt.Sprintf("%d.%d.%d.%d", r.Addr[0], r.Addr[1], r.Addr[2], r.Addr[3])
}

func (r *ARecord) String() string {
	return "ARecord: " + r.StringAddress()
}

// AAAARecord is an IPv6 host address.
type AAAARecord struct {
	Addr [16]byte
}

func (r *AAAARecord) Rtype() uint16 { return TypeAAAA }

// IP returns the address as a net.IP.
func (r *AAAARecord) IP() net.IP {
	ip := make(net.IP, 16)
	copy(ip, r.Addr[:])
	return ip
}

// StringAddress returns the address as eight fully-padded hex groups,
// without zero compression.
func (r *AAAARecord) StringAddress() string {
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		groups[i] = fmt.Sprintf("%02x%02x", r.Addr[2*i], r.Addr[2*i+1])
	}
	return strings.Join(groups, ":")
}

func (r *AAAARecord) String() string {
	return "AAAARecord: " + r.StringAddress()
}

// CNAMERecord is the canonical name of an alias.
type CNAMERecord struct {
	Target Name
}

func (r *CNAMERecord) Rtype() uint16 { return TypeCNAME }

func (r *CNAMERecord) String() string {
	return "CNAMERecord: " + r.Target.String()
}

// NSRecord names an authoritative server for the zone.
type NSRecord struct {
	Target Name
}

func (r *NSRecord) Rtype() uint16 { return TypeNS }

func (r *NSRecord) String() string {
	return "NSRecord: " + r.Target.String()
}

// PTRRecord points back at a name, typically from a reverse-lookup zone.
type PTRRecord struct {
	Target Name
}

func (r *PTRRecord) Rtype() uint16 { return TypePTR }

func (r *PTRRecord) String() string {
	return "PTRRecord: " + r.Target.String()
}

// MXRecord names a mail exchanger and its preference.
type MXRecord struct {
	Preference uint16
	Exchange   Name
}

func (r *MXRecord) Rtype() uint16 { return TypeMX }

func (r *MXRecord) String() string {
	return fmt.Sprintf("MXRecord: %d %s", r.Preference, r.Exchange)
}

// SRVRecord locates a service endpoint.
type SRVRecord struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   Name
}

func (r *SRVRecord) Rtype() uint16 { return TypeSRV }

func (r *SRVRecord) String() string {
	return fmt.Sprintf("SRVRecord: %d %d %d %s", r.Priority, r.Weight, r.Port, r.Target)
}

// TXTRecord carries free-form strings. Strings preserves every entry in
// wire order; Attributes views the entries that contain a '=' as key/value
// pairs, split on the first occurrence.
type TXTRecord struct {
	Strings    []string
	Attributes map[string]string
}

func (r *TXTRecord) Rtype() uint16 { return TypeTXT }

func (r *TXTRecord) String() string {
	return "TXTRecord: " + strings.Join(r.Strings, " ")
}

// SOARecord is the start-of-authority record for a zone.
type SOARecord struct {
	NS      Name
	Mbox    Name
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (r *SOARecord) Rtype() uint16 { return TypeSOA }

func (r *SOARecord) String() string {
	return fmt.Sprintf("SOARecord: %s %s %d", r.NS, r.Mbox, r.Serial)
}

// RawRecord preserves the payload of a record type the codec does not
// interpret.
type RawRecord struct {
	Type uint16
	Data []byte
}

func (r *RawRecord) Rtype() uint16 { return r.Type }

func (r *RawRecord) String() string {
	return fmt.Sprintf("RawRecord: type %d, %d bytes", r.Type, len(r.Data))
}
