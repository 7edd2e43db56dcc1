// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

// Package conn provides the transports that carry DNS messages: connected
// UDP sockets, length-prefixed TCP streams, and the mDNS multicast group.
// Each transport runs one reader goroutine that unpacks inbound frames and
// appends them to the queue handed to the constructor; the owner of the
// queue correlates them with its in-flight queries.
package conn

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/caffix/dnsclient/wire"
	"github.com/caffix/queue"
)

// Protocol selects the transport personality.
type Protocol string

const (
	UDP Protocol = "udp"
	TCP Protocol = "tcp"
)

const (
	headerSize    = 12
	readBufSize   = 4096
	writeDeadline = 2 * time.Second
)

// Transport is one established channel to a DNS server.
type Transport interface {
	// WriteMsg packs the message and sends it to the remote endpoint.
	WriteMsg(msg *wire.Message) error
	// RemoteAddr returns the endpoint the transport was established to.
	RemoteAddr() net.Addr
	// Protocol returns the transport personality.
	Protocol() Protocol
	// Close shuts the transport down and releases the socket.
	Close() error
	// Done is closed once the transport has shut down for any reason.
	Done() <-chan struct{}
	// Err returns the failure that shut the transport down, or nil
	// after a clean Close. Valid once Done is closed.
	Err() error
}

// state carries the lifecycle shared by all transport personalities.
type state struct {
	sync.Mutex
	done  chan struct{}
	cause error
	resps queue.Queue
}

func (s *state) Done() <-chan struct{} {
	return s.done
}

func (s *state) Err() error {
	s.Lock()
	defer s.Unlock()

	return s.cause
}

// shutdown records the cause and closes the done channel exactly once.
func (s *state) shutdown(cause error) bool {
	s.Lock()
	defer s.Unlock()

	select {
	case <-s.done:
		return false
	default:
	}

	if cause != nil && !errors.Is(cause, net.ErrClosed) {
		s.cause = cause
	}
	close(s.done)
	return true
}

func (s *state) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// deliver unpacks one inbound frame and hands it to the response queue.
// A frame that fails to unpack is a pipeline error; the caller shuts the
// transport down so the owner drains its in-flight queries.
func (s *state) deliver(frame []byte) error {
	msg, err := wire.Unpack(frame)
	if err != nil {
		return err
	}

	s.resps.Append(msg)
	return nil
}

func packFor(msg *wire.Message, proto Protocol) ([]byte, error) {
	out, err := msg.Pack()
	if err != nil {
		return nil, err
	}
	if proto == TCP && len(out) > 0xFFFF {
		return nil, fmt.Errorf("%w: the message does not fit a TCP frame", wire.ErrMalformedPacket)
	}
	return out, nil
}
