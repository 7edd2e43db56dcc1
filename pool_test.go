// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnsclient

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/caffix/dnsclient/conn"
	"github.com/miekg/dns"
)

func splitAddr(t *testing.T, addrstr string) (string, uint16) {
	t.Helper()

	host, portstr, err := net.SplitHostPort(addrstr)
	if err != nil {
		t.Fatalf("Failed to split the server address: %v", err)
	}

	port, err := strconv.Atoi(portstr)
	if err != nil {
		t.Fatalf("Failed to parse the server port: %v", err)
	}
	return host, uint16(port)
}

func TestPoolSourcing(t *testing.T) {
	dns.HandleFunc("example.com.", exampleHandler)
	defer dns.HandleRemove("example.com.")

	us, uaddr, err := runLocalUDPServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Unable to run the UDP test server: %v", err)
	}
	defer func() { _ = us.Shutdown() }()

	ts, taddr, err := runLocalTCPServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Unable to run the TCP test server: %v", err)
	}
	defer func() { _ = ts.Shutdown() }()

	uhost, uport := splitAddr(t, uaddr)
	thost, tport := splitAddr(t, taddr)

	p := NewPool(0)
	defer p.Disconnect()

	udpReq := Requirements{Host: uhost, Port: uport, Protocol: conn.UDP, Sourcing: SourceExisting}
	first, err := p.Next(context.TODO(), udpReq)
	if err != nil {
		t.Fatalf("Failed to obtain the first client: %v", err)
	}

	second, err := p.Next(context.TODO(), udpReq)
	if err != nil {
		t.Fatalf("Failed to obtain the second client: %v", err)
	}
	if first != second {
		t.Errorf("Existing sourcing did not reuse the pooled client")
	}
	if p.Len() != 1 {
		t.Errorf("Expected 1 pooled client, got %d", p.Len())
	}

	tcpReq := Requirements{Host: thost, Port: tport, Protocol: conn.TCP, Sourcing: SourceExisting}
	if _, err := p.Next(context.TODO(), tcpReq); err != nil {
		t.Fatalf("Failed to obtain the TCP client: %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("Expected 2 pooled clients after adding TCP, got %d", p.Len())
	}

	unpooled, err := p.Next(context.TODO(), Requirements{
		Host: uhost, Port: uport, Protocol: conn.UDP, Sourcing: SourceUnpooled,
	})
	if err != nil {
		t.Fatalf("Failed to obtain the unpooled client: %v", err)
	}
	defer unpooled.Close()

	if unpooled == first {
		t.Errorf("Unpooled sourcing returned a pooled client")
	}
	if p.Len() != 2 {
		t.Errorf("Unpooled sourcing changed the pool size to %d", p.Len())
	}

	fresh, err := p.Next(context.TODO(), Requirements{
		Host: uhost, Port: uport, Protocol: conn.UDP, Sourcing: SourceNew,
	})
	if err != nil {
		t.Fatalf("Failed to obtain the new client: %v", err)
	}
	if fresh == first {
		t.Errorf("New sourcing returned the pooled client")
	}
	if p.Len() != 3 {
		t.Errorf("Expected 3 pooled clients after new sourcing, got %d", p.Len())
	}
}

func TestPoolRemovesClosedClients(t *testing.T) {
	us, uaddr, err := runLocalUDPServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Unable to run the test server: %v", err)
	}
	defer func() { _ = us.Shutdown() }()

	host, port := splitAddr(t, uaddr)

	p := NewPool(0)
	defer p.Disconnect()

	c, err := p.Next(context.TODO(), Requirements{
		Host: host, Port: port, Protocol: conn.UDP, Sourcing: SourceExisting,
	})
	if err != nil {
		t.Fatalf("Failed to obtain the client: %v", err)
	}

	c.Close()
	for i := 0; i < 20 && p.Len() > 0; i++ {
		time.Sleep(50 * time.Millisecond)
	}
	if p.Len() != 0 {
		t.Errorf("The closed client was not removed from the pool")
	}
}

func TestPoolDisconnect(t *testing.T) {
	us, uaddr, err := runLocalUDPServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Unable to run the test server: %v", err)
	}
	defer func() { _ = us.Shutdown() }()

	host, port := splitAddr(t, uaddr)
	req := Requirements{Host: host, Port: port, Protocol: conn.UDP, Sourcing: SourceExisting}

	p := NewPool(0)
	c, err := p.Next(context.TODO(), req)
	if err != nil {
		t.Fatalf("Failed to obtain the client: %v", err)
	}

	p.Disconnect()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Errorf("Disconnect did not close the pooled client")
	}
	if p.Len() != 0 {
		t.Errorf("Disconnect did not empty the pool")
	}
	if _, err := p.Next(context.TODO(), req); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected the closed pool error, got: %v", err)
	}

	// Disconnect must be safe to repeat.
	p.Disconnect()
}

func TestPoolConnectRetry(t *testing.T) {
	// A TCP listener that is immediately closed leaves a port that
	// refuses connections, so every attempt fails.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	host, port := splitAddr(t, l.Addr().String())
	l.Close()

	p := NewPool(0)
	defer p.Disconnect()

	start := time.Now()
	_, err = p.Next(context.TODO(), Requirements{
		Host: host, Port: port, Protocol: conn.TCP, Sourcing: SourceExisting,
	})
	if err == nil {
		t.Fatal("Expected the connect attempts to fail")
	}
	if errors.Is(err, ErrPoolClosed) {
		t.Errorf("The final connect error was replaced: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Errorf("The retries finished too quickly to have backed off: %v", elapsed)
	}
}
