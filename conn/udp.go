// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"net"
	"time"

	"github.com/caffix/dnsclient/wire"
	"github.com/caffix/queue"
)

type udpTransport struct {
	state
	conn *net.UDPConn
	addr *net.UDPAddr
}

// DialUDP establishes a connected UDP socket to the server, bound to an
// ephemeral local address. Inbound datagrams are unpacked and appended to
// resps until the transport shuts down.
func DialUDP(addr string, resps queue.Queue) (Transport, error) {
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	c, err := net.DialUDP("udp", nil, uaddr)
	if err != nil {
		return nil, err
	}

	t := &udpTransport{
		state: state{done: make(chan struct{}), resps: resps},
		conn:  c,
		addr:  uaddr,
	}

	go t.responses()
	return t, nil
}

func (t *udpTransport) RemoteAddr() net.Addr {
	return t.addr
}

func (t *udpTransport) Protocol() Protocol {
	return UDP
}

func (t *udpTransport) WriteMsg(msg *wire.Message) error {
	out, err := packFor(msg, UDP)
	if err != nil {
		return err
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if _, err := t.conn.Write(out); err != nil {
		return err
	}
	return nil
}

func (t *udpTransport) Close() error {
	t.shutdown(nil)
	return t.conn.Close()
}

// responses reads one message per datagram. The socket is connected, so
// only datagrams from the remote endpoint are delivered here.
func (t *udpTransport) responses() {
	b := make([]byte, readBufSize)

	for {
		n, err := t.conn.Read(b)
		if err != nil {
			if t.shutdown(err) {
				t.conn.Close()
			}
			return
		}
		if n < headerSize {
			// Too short to carry a header; not even worth a decode.
			continue
		}
		if err := t.deliver(b[:n]); err != nil {
			t.shutdown(err)
			t.conn.Close()
			return
		}
	}
}
