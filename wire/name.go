// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// A Name is a domain name as an ordered sequence of labels, the root label
// excluded. The zero value is the root name.
type Name struct {
	Labels []string
}

// NewName builds a Name from the provided labels, enforcing the wire
// format limits: each label is 1-63 bytes and the encoded name fits in
// 255 bytes including length prefixes and the terminating zero octet.
func NewName(labels ...string) (Name, error) {
	n := Name{Labels: labels}

	if err := n.validate(); err != nil {
		return Name{}, err
	}
	return n, nil
}

func (n Name) validate() error {
	size := 1
	for _, label := range n.Labels {
		if l := len(label); l == 0 || l > maxLabelSize {
			return fmt.Errorf("label %q exceeds the 1-63 byte limit", label)
		}
		size += 1 + len(label)
	}
	if size > maxNameSize {
		return fmt.Errorf("the name encodes to %d bytes, exceeding the %d byte limit", size, maxNameSize)
	}
	return nil
}

// ParseName converts a dotted host name into a Name. Unicode host names
// are converted to their ASCII form first, and a trailing dot is accepted.
func ParseName(s string) (Name, error) {
	if s == "" || s == "." {
		return Name{}, nil
	}

	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(s, "."))
	if err != nil {
		// Names from PTR responses and reverse-lookup zones contain
		// underscores and other octets the lookup profile rejects.
		ascii = strings.TrimSuffix(s, ".")
	}
	return NewName(strings.Split(ascii, ".")...)
}

// String returns the dotted form without the trailing root dot.
func (n Name) String() string {
	return strings.Join(n.Labels, ".")
}

// FQDN returns the dotted form with the trailing root dot.
func (n Name) FQDN() string {
	return n.String() + "."
}

// IsRoot reports whether the name has no labels.
func (n Name) IsRoot() bool {
	return len(n.Labels) == 0
}

// Equal reports whether two names carry the same labels, compared
// case-insensitively as RFC 1035 requires.
func (n Name) Equal(other Name) bool {
	if len(n.Labels) != len(other.Labels) {
		return false
	}
	for i, label := range n.Labels {
		if !strings.EqualFold(label, other.Labels[i]) {
			return false
		}
	}
	return true
}

// encodedSize returns the number of bytes the name occupies when written
// without compression.
func (n Name) encodedSize() int {
	size := 1
	for _, label := range n.Labels {
		size += 1 + len(label)
	}
	return size
}

// suffix returns the name starting at label index i.
func (n Name) suffix(i int) Name {
	return Name{Labels: n.Labels[i:]}
}

// key returns the canonical form used to index compression offsets.
func (n Name) key() string {
	return strings.ToLower(n.String())
}

// ReverseIPv4Name returns the in-addr.arpa name for a reverse lookup of
// the provided address.
func ReverseIPv4Name(ip net.IP) (Name, error) {
	v4 := ip.To4()
	if v4 == nil {
		return Name{}, fmt.Errorf("%v is not an IPv4 address", ip)
	}

	labels := make([]string, 0, 6)
	for i := 3; i >= 0; i-- {
		labels = append(labels, fmt.Sprintf("%d", v4[i]))
	}
	return NewName(append(labels, "in-addr", "arpa")...)
}

// ReverseIPv6Name returns the ip6.arpa name for a reverse lookup of the
// provided address: the nibbles of the address in reverse order, one
// hex digit per label, as RFC 3596 specifies.
func ReverseIPv6Name(ip net.IP) (Name, error) {
	v6 := ip.To16()
	if v6 == nil || ip.To4() != nil {
		return Name{}, fmt.Errorf("%v is not an IPv6 address", ip)
	}

	labels := make([]string, 0, 34)
	for i := 15; i >= 0; i-- {
		labels = append(labels,
			fmt.Sprintf("%x", v6[i]&0x0F),
			fmt.Sprintf("%x", v6[i]>>4))
	}
	return NewName(append(labels, "ip6", "arpa")...)
}
