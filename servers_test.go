// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnsclient

import (
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

func exampleHandler(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)

	q := req.Question[0]
	hdr := dns.RR_Header{
		Name:   q.Name,
		Rrtype: q.Qtype,
		Class:  dns.ClassINET,
		Ttl:    300,
	}

	switch q.Qtype {
	case dns.TypeA:
		m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: net.ParseIP("192.0.2.1")})
	case dns.TypeAAAA:
		m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.ParseIP("2001:db8::1")})
	case dns.TypeMX:
		m.Answer = append(m.Answer, &dns.MX{Hdr: hdr, Preference: 10, Mx: "mail.example.com."})
	case dns.TypeTXT:
		m.Answer = append(m.Answer, &dns.TXT{Hdr: hdr, Txt: []string{"key=value", "plain"}})
	case dns.TypeCNAME:
		m.Answer = append(m.Answer, &dns.CNAME{Hdr: hdr, Target: "canonical.example.com."})
	case dns.TypeNS:
		m.Answer = append(m.Answer, &dns.NS{Hdr: hdr, Ns: "ns1.example.com."})
	case dns.TypeSOA:
		m.Answer = append(m.Answer, &dns.SOA{
			Hdr: hdr, Ns: "ns1.example.com.", Mbox: "hostmaster.example.com.",
			Serial: 2024010101, Refresh: 7200, Retry: 900, Expire: 1209600, Minttl: 86400,
		})
	case dns.TypeSRV:
		m.Answer = append(m.Answer, &dns.SRV{
			Hdr: hdr, Priority: 1, Weight: 5, Port: 27017, Target: "db.example.com.",
		})
	}
	_ = w.WriteMsg(m)
}

func ptrHandler(w dns.ResponseWriter, req *dns.Msg) {
	q := req.Question[0]
	if q.Qtype != dns.TypePTR {
		return
	}

	m := new(dns.Msg)
	m.SetReply(req)
	m.Answer = append(m.Answer, &dns.PTR{
		Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 300},
		Ptr: "dns.google.",
	})
	_ = w.WriteMsg(m)
}

// silentHandler never responds, leaving queries to expire.
func silentHandler(dns.ResponseWriter, *dns.Msg) {}

func runLocalUDPServer(laddr string) (*dns.Server, string, error) {
	pc, err := net.ListenPacket("udp", laddr)
	if err != nil {
		return nil, "", err
	}
	server := &dns.Server{PacketConn: pc, ReadTimeout: time.Hour, WriteTimeout: time.Hour}

	waitLock := sync.Mutex{}
	waitLock.Lock()
	server.NotifyStartedFunc = waitLock.Unlock

	go func() {
		_ = server.ActivateAndServe()
		pc.Close()
	}()

	waitLock.Lock()
	return server, pc.LocalAddr().String(), nil
}

func runLocalTCPServer(laddr string) (*dns.Server, string, error) {
	l, err := net.Listen("tcp", laddr)
	if err != nil {
		return nil, "", err
	}
	server := &dns.Server{Listener: l, ReadTimeout: time.Hour, WriteTimeout: time.Hour}

	waitLock := sync.Mutex{}
	waitLock.Lock()
	server.NotifyStartedFunc = waitLock.Unlock

	go func() {
		_ = server.ActivateAndServe()
		l.Close()
	}()

	waitLock.Lock()
	return server, l.Addr().String(), nil
}
