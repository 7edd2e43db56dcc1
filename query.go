// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnsclient

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/caffix/dnsclient/conn"
	"github.com/caffix/dnsclient/wire"
)

// QueryA resolves the host's IPv4 addresses and pairs each with the
// provided port.
func (c *Client) QueryA(ctx context.Context, host string, port uint16) ([]netip.AddrPort, error) {
	resp, err := c.exchange(ctx, host, wire.TypeA)
	if err != nil {
		return nil, err
	}

	var endpoints []netip.AddrPort
	for _, rr := range resp.AnswersByType(wire.TypeA) {
		if a, ok := rr.Data.(*wire.ARecord); ok {
			endpoints = append(endpoints, netip.AddrPortFrom(netip.AddrFrom4(a.Addr), port))
		}
	}
	return endpoints, nil
}

// QueryAAAA resolves the host's IPv6 addresses and pairs each with the
// provided port.
func (c *Client) QueryAAAA(ctx context.Context, host string, port uint16) ([]netip.AddrPort, error) {
	resp, err := c.exchange(ctx, host, wire.TypeAAAA)
	if err != nil {
		return nil, err
	}

	var endpoints []netip.AddrPort
	for _, rr := range resp.AnswersByType(wire.TypeAAAA) {
		if aaaa, ok := rr.Data.(*wire.AAAARecord); ok {
			endpoints = append(endpoints, netip.AddrPortFrom(netip.AddrFrom16(aaaa.Addr), port))
		}
	}
	return endpoints, nil
}

// QuerySRV returns the service records under the provided name.
func (c *Client) QuerySRV(ctx context.Context, service string) ([]*wire.SRVRecord, error) {
	resp, err := c.exchange(ctx, service, wire.TypeSRV)
	if err != nil {
		return nil, err
	}

	var records []*wire.SRVRecord
	for _, rr := range resp.AnswersByType(wire.TypeSRV) {
		if srv, ok := rr.Data.(*wire.SRVRecord); ok {
			records = append(records, srv)
		}
	}
	return records, nil
}

// QueryMX returns the host's mail exchangers.
func (c *Client) QueryMX(ctx context.Context, host string) ([]*wire.MXRecord, error) {
	resp, err := c.exchange(ctx, host, wire.TypeMX)
	if err != nil {
		return nil, err
	}

	var records []*wire.MXRecord
	for _, rr := range resp.AnswersByType(wire.TypeMX) {
		if mx, ok := rr.Data.(*wire.MXRecord); ok {
			records = append(records, mx)
		}
	}
	return records, nil
}

// QueryTXT returns the host's text records.
func (c *Client) QueryTXT(ctx context.Context, host string) ([]*wire.TXTRecord, error) {
	resp, err := c.exchange(ctx, host, wire.TypeTXT)
	if err != nil {
		return nil, err
	}

	var records []*wire.TXTRecord
	for _, rr := range resp.AnswersByType(wire.TypeTXT) {
		if txt, ok := rr.Data.(*wire.TXTRecord); ok {
			records = append(records, txt)
		}
	}
	return records, nil
}

// QueryCNAME returns the host's canonical name records.
func (c *Client) QueryCNAME(ctx context.Context, host string) ([]*wire.CNAMERecord, error) {
	resp, err := c.exchange(ctx, host, wire.TypeCNAME)
	if err != nil {
		return nil, err
	}

	var records []*wire.CNAMERecord
	for _, rr := range resp.AnswersByType(wire.TypeCNAME) {
		if cname, ok := rr.Data.(*wire.CNAMERecord); ok {
			records = append(records, cname)
		}
	}
	return records, nil
}

// QueryNS returns the authoritative server records for the zone.
func (c *Client) QueryNS(ctx context.Context, zone string) ([]*wire.NSRecord, error) {
	resp, err := c.exchange(ctx, zone, wire.TypeNS)
	if err != nil {
		return nil, err
	}

	var records []*wire.NSRecord
	for _, rr := range resp.AnswersByType(wire.TypeNS) {
		if ns, ok := rr.Data.(*wire.NSRecord); ok {
			records = append(records, ns)
		}
	}
	return records, nil
}

// QuerySOA returns the start-of-authority records for the zone.
func (c *Client) QuerySOA(ctx context.Context, zone string) ([]*wire.SOARecord, error) {
	resp, err := c.exchange(ctx, zone, wire.TypeSOA)
	if err != nil {
		return nil, err
	}

	var records []*wire.SOARecord
	for _, rr := range resp.AnswersByType(wire.TypeSOA) {
		if soa, ok := rr.Data.(*wire.SOARecord); ok {
			records = append(records, soa)
		}
	}
	return records, nil
}

// IPv4InverseAddress performs a reverse lookup of the IPv4 address under
// in-addr.arpa.
func (c *Client) IPv4InverseAddress(ctx context.Context, addr string) ([]*wire.PTRRecord, error) {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, addr)
	}

	name, err := wire.ReverseIPv4Name(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, addr)
	}
	return c.ptr(ctx, name)
}

// IPv6InverseAddress performs a reverse lookup of the IPv6 address under
// ip6.arpa, one nibble per label per RFC 3596.
func (c *Client) IPv6InverseAddress(ctx context.Context, addr string) ([]*wire.PTRRecord, error) {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, addr)
	}

	name, err := wire.ReverseIPv6Name(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, addr)
	}
	return c.ptr(ctx, name)
}

func (c *Client) ptr(ctx context.Context, name wire.Name) ([]*wire.PTRRecord, error) {
	resp, err := c.exchange(ctx, name.String(), wire.TypePTR)
	if err != nil {
		return nil, err
	}

	var records []*wire.PTRRecord
	for _, rr := range resp.AnswersByType(wire.TypePTR) {
		if ptr, ok := rr.Data.(*wire.PTRRecord); ok {
			records = append(records, ptr)
		}
	}
	return records, nil
}

// exchange sends the query and, when a UDP response comes back truncated,
// repeats it once over a fresh TCP channel to the same server.
func (c *Client) exchange(ctx context.Context, host string, qtype uint16) (*wire.Message, error) {
	resp, err := c.SendQuery(ctx, host, qtype, nil)
	if err != nil {
		return nil, err
	}

	if resp.Flags.Truncated() && c.Protocol() == conn.UDP && !c.multicast {
		if tc, terr := ConnectTCP(c.RemoteAddr()); terr == nil {
			defer tc.Close()

			if full, ferr := tc.SendQuery(ctx, host, qtype, nil); ferr == nil {
				resp = full
			}
		}
	}
	return resp, nil
}
