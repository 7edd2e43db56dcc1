// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the DNS message format described by RFC 1035,
// including name compression. Pack and Unpack are pure functions over byte
// slices and perform no I/O.
package wire

import "errors"

// ErrMalformedPacket is returned for any truncation, illegal label length,
// illegal or cyclic compression pointer, or bounds violation found while
// packing or unpacking a message.
var ErrMalformedPacket = errors.New("malformed DNS packet")

const (
	headerSize = 12
	// maxLabelSize is the longest label the wire format can express.
	maxLabelSize = 63
	// maxNameSize bounds the encoded form of a name, length prefixes
	// and the terminating zero octet included.
	maxNameSize = 255
	// maxCompressionOffset is the largest offset a 14-bit pointer can reach.
	maxCompressionOffset = 0x3FFF
)
