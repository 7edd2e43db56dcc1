// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnsclient

import (
	"errors"

	"github.com/caffix/dnsclient/wire"
)

// ErrMalformedPacket reports a packet the codec refused to pack or unpack.
var ErrMalformedPacket = wire.ErrMalformedPacket

var (
	// ErrTimeout reports that no response arrived within the query budget.
	ErrTimeout = errors.New("the query timed out")
	// ErrCancelled reports a query ended by CancelQueries or client teardown.
	ErrCancelled = errors.New("the query was cancelled")
	// ErrUnknownTransaction reports a response with no matching
	// in-flight query. Such responses are dropped, not fatal.
	ErrUnknownTransaction = errors.New("no matching in-flight query")
	// ErrNoNameservers reports a connect attempt without a usable server.
	ErrNoNameservers = errors.New("no usable nameservers")
	// ErrConfigParse reports an unreadable resolver configuration.
	ErrConfigParse = errors.New("failed to parse the resolver configuration")
	// ErrInvalidIP reports helper input that does not parse as the
	// required address family.
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrPoolClosed reports use of a pool after Disconnect.
	ErrPoolClosed = errors.New("the pool has been closed")
	// ErrClientClosed reports use of a client after Close.
	ErrClientClosed = errors.New("the client has been closed")
)
