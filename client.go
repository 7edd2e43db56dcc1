// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

// Package dnsclient is an asynchronous DNS client. A Client owns one
// transport channel to a server, correlates responses with outstanding
// queries by message ID, and exposes typed helpers for the common record
// lookups. A Pool manages clients keyed by endpoint and protocol.
package dnsclient

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caffix/dnsclient/config"
	"github.com/caffix/dnsclient/conn"
	"github.com/caffix/dnsclient/wire"
	"github.com/caffix/queue"
	"github.com/caffix/stringset"
	"go.uber.org/ratelimit"
)

// DefaultTimeout is the duration waited until a DNS query expires.
const DefaultTimeout = 30 * time.Second

// MulticastHandler receives unsolicited questions seen on the mDNS group.
// The handler may answer through the client's WriteMsg.
type MulticastHandler func(c *Client, query *wire.Message)

// QueryOptions adjust a single send.
type QueryOptions struct {
	// Flags are OR'd into the query header flags.
	Flags wire.Flags
	// Timeout overrides DefaultTimeout for this query.
	Timeout time.Duration
}

// Client is one channel to a DNS server plus the table of queries
// awaiting responses on it.
type Client struct {
	log       *log.Logger
	transport conn.Transport
	xchgs     *xchgMgr
	resps     queue.Queue
	nextID    uint32
	rate      ratelimit.Limiter
	done      chan struct{}
	closeOnce sync.Once
	multicast bool
	onQuery   MulticastHandler
}

// Connect reads the system resolver configuration and establishes a UDP
// client to the preferred nameserver.
func Connect() (*Client, error) {
	cfg, err := config.Load(config.DefaultPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	addr := cfg.Preferred()
	if addr == "" {
		return nil, ErrNoNameservers
	}
	return ConnectTo(addr)
}

// ConnectTo establishes a UDP client to the provided server address,
// appending the default DNS port when none is present.
func ConnectTo(addr string) (*Client, error) {
	resps := queue.NewQueue()

	t, err := conn.DialUDP(config.EnsurePort(addr), resps)
	if err != nil {
		return nil, err
	}
	return newClient(t, resps), nil
}

// ConnectServers establishes a UDP client to the first IPv4 address among
// the provided servers, falling back to the first address of any family.
func ConnectServers(addrs ...string) (*Client, error) {
	set := stringset.New()
	defer set.Close()

	cfg := &config.Config{}
	for _, addr := range addrs {
		addr = config.EnsurePort(addr)
		if set.Has(addr) {
			continue
		}
		set.Insert(addr)
		cfg.Servers = append(cfg.Servers, addr)
	}

	addr := cfg.Preferred()
	if addr == "" {
		return nil, ErrNoNameservers
	}
	return ConnectTo(addr)
}

// ConnectTCP establishes a TCP client to the provided server address.
func ConnectTCP(addr string) (*Client, error) {
	resps := queue.NewQueue()

	t, err := conn.DialTCP(config.EnsurePort(addr), resps)
	if err != nil {
		return nil, err
	}
	return newClient(t, resps), nil
}

// ConnectMulticast joins the mDNS group. Queries sent on the client are
// not flagged for recursion, and unsolicited questions observed on the
// group are passed to the handler.
func ConnectMulticast(handler MulticastHandler) (*Client, error) {
	resps := queue.NewQueue()

	t, err := conn.ListenMulticast(resps)
	if err != nil {
		return nil, err
	}

	c := newClient(t, resps)
	c.multicast = true
	c.onQuery = handler
	return c, nil
}

func newClient(t conn.Transport, resps queue.Queue) *Client {
	c := &Client{
		log:       log.New(io.Discard, "", 0),
		transport: t,
		xchgs:     newXchgMgr(),
		resps:     resps,
		nextID:    rand.Uint32(),
		rate:      ratelimit.NewUnlimited(),
		done:      make(chan struct{}, 1),
	}

	go c.dispatch()
	return c
}

// SetLogger installs the logger used for drop warnings.
func (c *Client) SetLogger(l *log.Logger) {
	if l != nil {
		c.log = l
	}
}

// SetRateLimit caps outbound queries per second. Zero or negative
// removes the cap.
func (c *Client) SetRateLimit(qps int) {
	if qps > 0 {
		c.rate = ratelimit.New(qps)
	} else {
		c.rate = ratelimit.NewUnlimited()
	}
}

// RemoteAddr returns the server endpoint the client is connected to.
func (c *Client) RemoteAddr() string {
	return c.transport.RemoteAddr().String()
}

// Protocol returns the transport protocol in use.
func (c *Client) Protocol() conn.Protocol {
	return c.transport.Protocol()
}

// Done is closed once the client has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close cancels the in-flight queries, closes the channel, and releases
// the socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })

	c.CancelQueries()
	_ = c.transport.Close()
}

// CancelQueries resolves every in-flight query with ErrCancelled. The
// client remains usable.
func (c *Client) CancelQueries() {
	for _, q := range c.xchgs.removeAll() {
		q.resolve(nil, ErrCancelled)
	}
}

// buildQuery assembles the standard query for one send: recursion
// desired unless the client is multicast, plus any caller options.
func (c *Client) buildQuery(host string, qtype uint16, opts *QueryOptions) (*wire.Message, time.Duration, error) {
	if c.closed() {
		return nil, 0, ErrClientClosed
	}

	name, err := wire.ParseName(host)
	if err != nil {
		return nil, 0, err
	}

	msg := wire.NewQueryMsg(name, qtype)
	if !c.multicast {
		msg.Flags |= wire.FlagRecursionDesired
	}

	timeout := DefaultTimeout
	if opts != nil {
		msg.Flags |= opts.Flags
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
	}
	return msg, timeout, nil
}

// SendQueryAsync builds a standard query for the host and type and writes
// it to the channel. The returned channel delivers exactly one Result:
// the response, a timeout, a cancellation, or the write failure.
func (c *Client) SendQueryAsync(host string, qtype uint16, opts *QueryOptions) (<-chan Result, error) {
	msg, timeout, err := c.buildQuery(host, qtype, opts)
	if err != nil {
		return nil, err
	}

	q, _, err := c.sendMsg(msg, timeout)
	if err != nil {
		return nil, err
	}
	return q.result, nil
}

// SendQuery is the blocking form of SendQueryAsync.
func (c *Client) SendQuery(ctx context.Context, host string, qtype uint16, opts *QueryOptions) (*wire.Message, error) {
	msg, timeout, err := c.buildQuery(host, qtype, opts)
	if err != nil {
		return nil, err
	}

	q, id, err := c.sendMsg(msg, timeout)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		if c.xchgs.takeIf(id, q) {
			q.resolve(nil, ErrCancelled)
		}
		return nil, ctx.Err()
	case res := <-q.result:
		return res.Msg, res.Err
	}
}

// sendMsg registers the query before any bytes reach the wire, so a fast
// response cannot race ahead of its in-flight entry.
func (c *Client) sendMsg(msg *wire.Message, timeout time.Duration) (*sentQuery, uint16, error) {
	q := newSentQuery(msg)

	var id uint16
	for {
		id = uint16(atomic.AddUint32(&c.nextID, 1))

		// The expiration closure reads id after the loop settled it;
		// add only succeeds on the final iteration.
		err := c.xchgs.add(id, q, timeout, func() {
			if c.xchgs.takeIf(id, q) {
				q.resolve(nil, ErrTimeout)
			}
		})
		if err == nil {
			break
		}
	}
	msg.ID = id

	c.rate.Take()
	if err := c.transport.WriteMsg(msg); err != nil {
		if c.xchgs.takeIf(id, q) {
			q.resolve(nil, err)
		}
	}
	return q, id, nil
}

// WriteMsg sends a message as-is, without registering an in-flight entry.
// Multicast handlers use this to answer questions from the group.
func (c *Client) WriteMsg(msg *wire.Message) error {
	if c.closed() {
		return ErrClientClosed
	}
	return c.transport.WriteMsg(msg)
}

// dispatch serializes response handling for the client: inbound messages
// from the transport queue, transport failure, and client shutdown.
func (c *Client) dispatch() {
	t := time.NewTicker(250 * time.Millisecond)
	defer t.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.transport.Done():
			c.drainOnClose()
			return
		case <-t.C:
		case <-c.resps.Signal():
		}

		for {
			element, found := c.resps.Next()
			if !found {
				break
			}
			if msg, ok := element.(*wire.Message); ok {
				c.process(msg)
			}
		}
	}
}

func (c *Client) process(msg *wire.Message) {
	if !msg.Flags.Response() {
		if c.multicast && c.onQuery != nil {
			c.onQuery(c, msg)
		}
		return
	}

	q, found := c.xchgs.take(msg.ID)
	if !found {
		// A benign late arrival after timeout, or someone else's
		// answer on the multicast group.
		c.log.Printf("Dropped response ID %d: %v", msg.ID, ErrUnknownTransaction)
		return
	}
	q.resolve(msg, nil)
}

// drainOnClose ends every in-flight query after the transport shut down:
// cancellation when the closure was deliberate, the transport failure
// otherwise.
func (c *Client) drainOnClose() {
	cause := ErrCancelled
	if err := c.transport.Err(); err != nil {
		cause = fmt.Errorf("transport failure: %w", err)
	}

	for _, q := range c.xchgs.removeAll() {
		q.resolve(nil, cause)
	}
	c.closeOnce.Do(func() { close(c.done) })
}
