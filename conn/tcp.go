// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/caffix/dnsclient/wire"
	"github.com/caffix/queue"
)

type tcpTransport struct {
	state
	conn net.Conn
}

// DialTCP establishes a TCP stream to the server. Messages travel in both
// directions framed by a 16-bit big-endian length prefix per RFC 1035
// section 4.2.2.
func DialTCP(addr string, resps queue.Queue) (Transport, error) {
	c, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}

	t := &tcpTransport{
		state: state{done: make(chan struct{}), resps: resps},
		conn:  c,
	}

	go t.responses()
	return t, nil
}

func (t *tcpTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

func (t *tcpTransport) Protocol() Protocol {
	return TCP
}

func (t *tcpTransport) WriteMsg(msg *wire.Message) error {
	out, err := packFor(msg, TCP)
	if err != nil {
		return err
	}

	framed := make([]byte, 2+len(out))
	binary.BigEndian.PutUint16(framed, uint16(len(out)))
	copy(framed[2:], out)

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if _, err := t.conn.Write(framed); err != nil {
		return err
	}
	return nil
}

func (t *tcpTransport) Close() error {
	t.shutdown(nil)
	return t.conn.Close()
}

// responses accumulates stream bytes until each length-prefixed frame is
// complete, then unpacks it.
func (t *tcpTransport) responses() {
	var prefix [2]byte

	for {
		if _, err := io.ReadFull(t.conn, prefix[:]); err != nil {
			if t.shutdown(err) {
				t.conn.Close()
			}
			return
		}

		frame := make([]byte, binary.BigEndian.Uint16(prefix[:]))
		if _, err := io.ReadFull(t.conn, frame); err != nil {
			if t.shutdown(err) {
				t.conn.Close()
			}
			return
		}
		if err := t.deliver(frame); err != nil {
			t.shutdown(err)
			t.conn.Close()
			return
		}
	}
}
