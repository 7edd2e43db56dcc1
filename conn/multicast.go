// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"errors"
	"net"
	"time"

	"github.com/caffix/dnsclient/wire"
	"github.com/caffix/queue"
	"golang.org/x/net/ipv4"
)

// MulticastAddr is the IPv4 mDNS group every participant listens on.
var MulticastAddr = &net.UDPAddr{
	IP:   net.IPv4(224, 0, 0, 251),
	Port: 5353,
}

type multicastTransport struct {
	state
	conn  net.PacketConn
	group *net.UDPAddr
}

// ListenMulticast joins the mDNS group on every multicast-capable
// interface and delivers all group traffic to resps, solicited or not.
func ListenMulticast(resps queue.Queue) (Transport, error) {
	c, err := net.ListenPacket("udp4", ":5353")
	if err != nil {
		// The mDNS port is often owned by a system responder; an
		// ephemeral port still receives the unicast replies to our
		// own questions.
		if c, err = net.ListenPacket("udp4", ":0"); err != nil {
			return nil, err
		}
	}

	p := ipv4.NewPacketConn(c)
	if err := joinGroup(p); err != nil {
		c.Close()
		return nil, err
	}
	_ = p.SetMulticastLoopback(true)

	t := &multicastTransport{
		state: state{done: make(chan struct{}), resps: resps},
		conn:  c,
		group: MulticastAddr,
	}

	go t.responses()
	return t, nil
}

func joinGroup(p *ipv4.PacketConn) error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return err
	}

	joined := 0
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := p.JoinGroup(iface, &net.UDPAddr{IP: MulticastAddr.IP}); err == nil {
			joined++
		}
	}

	if joined == 0 {
		return errors.New("failed to join the mDNS group on any interface")
	}
	return nil
}

func (t *multicastTransport) RemoteAddr() net.Addr {
	return t.group
}

func (t *multicastTransport) Protocol() Protocol {
	return UDP
}

func (t *multicastTransport) WriteMsg(msg *wire.Message) error {
	out, err := packFor(msg, UDP)
	if err != nil {
		return err
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if _, err := t.conn.WriteTo(out, t.group); err != nil {
		return err
	}
	return nil
}

func (t *multicastTransport) Close() error {
	t.shutdown(nil)
	return t.conn.Close()
}

func (t *multicastTransport) responses() {
	b := make([]byte, readBufSize)

	for {
		n, _, err := t.conn.ReadFrom(b)
		if err != nil {
			if t.shutdown(err) {
				t.conn.Close()
			}
			return
		}
		if n < headerSize {
			continue
		}
		// Unlike the unicast personalities, group traffic includes
		// other participants' chatter; drop frames that fail to
		// unpack instead of tearing the transport down.
		_ = t.deliver(b[:n])
	}
}
