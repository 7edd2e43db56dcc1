// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/caffix/dnsclient/wire"
	"github.com/caffix/queue"
)

func testQuery(t *testing.T, id uint16) *wire.Message {
	t.Helper()

	name, err := wire.NewName("example", "com")
	if err != nil {
		t.Fatalf("Failed to build the query name: %v", err)
	}

	msg := wire.NewQueryMsg(name, wire.TypeA)
	msg.ID = id
	return msg
}

func reply(req *wire.Message) *wire.Message {
	resp := req.Copy()
	resp.Flags |= wire.FlagResponse
	return resp
}

func waitForMsg(t *testing.T, resps queue.Queue) *wire.Message {
	t.Helper()

	select {
	case <-resps.Signal():
	case <-time.After(2 * time.Second):
		t.Fatal("No message arrived on the response queue")
	}

	element, found := resps.Next()
	if !found {
		t.Fatal("The response queue signaled without an element")
	}

	msg, ok := element.(*wire.Message)
	if !ok {
		t.Fatalf("The queue delivered a %T instead of a message", element)
	}
	return msg
}

func TestUDPTransport(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer pc.Close()

	go func() {
		b := make([]byte, 512)

		n, addr, err := pc.ReadFrom(b)
		if err != nil {
			return
		}
		if req, err := wire.Unpack(b[:n]); err == nil {
			if out, err := reply(req).Pack(); err == nil {
				_, _ = pc.WriteTo(out, addr)
			}
		}
	}()

	resps := queue.NewQueue()
	tr, err := DialUDP(pc.LocalAddr().String(), resps)
	if err != nil {
		t.Fatalf("Failed to establish the transport: %v", err)
	}
	defer tr.Close()

	if tr.Protocol() != UDP {
		t.Errorf("Expected the UDP protocol tag, got %s", tr.Protocol())
	}
	if err := tr.WriteMsg(testQuery(t, 7)); err != nil {
		t.Fatalf("Failed to write the query: %v", err)
	}

	msg := waitForMsg(t, resps)
	if msg.ID != 7 || !msg.Flags.Response() {
		t.Errorf("The response did not match the query sent")
	}
}

func TestTCPFraming(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer l.Close()

	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		defer c.Close()

		var prefix [2]byte
		if _, err := io.ReadFull(c, prefix[:]); err != nil {
			return
		}

		frame := make([]byte, binary.BigEndian.Uint16(prefix[:]))
		if _, err := io.ReadFull(c, frame); err != nil {
			return
		}

		req, err := wire.Unpack(frame)
		if err != nil {
			return
		}

		out, err := reply(req).Pack()
		if err != nil {
			return
		}

		framed := make([]byte, 2+len(out))
		binary.BigEndian.PutUint16(framed, uint16(len(out)))
		copy(framed[2:], out)
		_, _ = c.Write(framed)
	}()

	resps := queue.NewQueue()
	tr, err := DialTCP(l.Addr().String(), resps)
	if err != nil {
		t.Fatalf("Failed to establish the transport: %v", err)
	}
	defer tr.Close()

	if tr.Protocol() != TCP {
		t.Errorf("Expected the TCP protocol tag, got %s", tr.Protocol())
	}
	if err := tr.WriteMsg(testQuery(t, 99)); err != nil {
		t.Fatalf("Failed to write the query: %v", err)
	}

	msg := waitForMsg(t, resps)
	if msg.ID != 99 || !msg.Flags.Response() {
		t.Errorf("The response did not match the query sent")
	}
}

func TestTCPZeroLengthFrame(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer l.Close()

	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		// An empty frame cannot hold a header and must shut the
		// transport down as a pipeline error.
		_, _ = c.Write([]byte{0x00, 0x00})
	}()

	tr, err := DialTCP(l.Addr().String(), queue.NewQueue())
	if err != nil {
		t.Fatalf("Failed to establish the transport: %v", err)
	}
	defer tr.Close()

	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("The transport did not shut down on the malformed frame")
	}
	if err := tr.Err(); err == nil {
		t.Error("Expected the shutdown cause to be reported")
	}
}

func TestTransportCloseIsClean(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer pc.Close()

	tr, err := DialUDP(pc.LocalAddr().String(), queue.NewQueue())
	if err != nil {
		t.Fatalf("Failed to establish the transport: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("The transport did not report completion after Close")
	}
	if err := tr.Err(); err != nil {
		t.Errorf("A deliberate Close must not record a cause, got: %v", err)
	}
}
