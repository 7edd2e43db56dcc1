// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnsclient

import (
	"context"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/caffix/dnsclient/conn"
	"golang.org/x/time/rate"
)

// DefaultConnectAttempts bounds how many times Next retries establishing
// a channel before reporting the final error.
const DefaultConnectAttempts = 3

// Sourcing tells the pool how to satisfy a request for a client.
type Sourcing int

const (
	// SourceExisting reuses a pooled client for the endpoint and
	// protocol when one exists, creating and pooling one otherwise.
	SourceExisting Sourcing = iota
	// SourceNew always creates a client and adds it to the pool.
	SourceNew
	// SourceUnpooled creates a client the pool never tracks.
	SourceUnpooled
)

// Requirements describes the client a caller needs from the pool.
type Requirements struct {
	Host     string
	Port     uint16
	Protocol conn.Protocol
	Sourcing Sourcing
}

func (r Requirements) address() string {
	port := r.Port
	if port == 0 {
		port = 53
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(int(port)))
}

type poolKey struct {
	addr  string
	proto conn.Protocol
}

// Pool is a managed set of clients keyed by remote endpoint and protocol.
type Pool struct {
	sync.Mutex
	done     chan struct{}
	log      *log.Logger
	rate     *rate.Limiter
	attempts int
	clients  map[poolKey][]*Client
}

// NewPool initializes a client pool. A positive qps bounds how quickly
// the pool hands out clients.
func NewPool(qps int) *Pool {
	limit := rate.Inf
	if qps > 0 {
		limit = rate.Limit(qps)
	}

	return &Pool{
		done:     make(chan struct{}, 1),
		log:      log.New(io.Discard, "", 0),
		rate:     rate.NewLimiter(limit, 1),
		attempts: DefaultConnectAttempts,
		clients:  make(map[poolKey][]*Client),
	}
}

// SetLogger installs the logger used for connect retry warnings.
func (p *Pool) SetLogger(l *log.Logger) {
	if l != nil {
		p.log = l
	}
}

func (p *Pool) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Next returns a client satisfying the requirements, creating one when
// the sourcing policy calls for it.
func (p *Pool) Next(ctx context.Context, req Requirements) (*Client, error) {
	if p.closed() {
		return nil, ErrPoolClosed
	}
	if err := p.rate.Wait(ctx); err != nil {
		return nil, err
	}

	key := poolKey{addr: req.address(), proto: req.Protocol}
	if req.Sourcing == SourceExisting {
		if c := p.lookup(key); c != nil {
			return c, nil
		}
	}

	c, err := p.connect(key)
	if err != nil {
		return nil, err
	}

	if req.Sourcing != SourceUnpooled {
		if err := p.store(key, c); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Disconnect marks the pool closed, empties it, and closes every held
// client. Subsequent Next calls fail with ErrPoolClosed.
func (p *Pool) Disconnect() {
	select {
	case <-p.done:
		return
	default:
	}
	close(p.done)

	p.Lock()
	var all []*Client
	for _, list := range p.clients {
		all = append(all, list...)
	}
	p.clients = make(map[poolKey][]*Client)
	p.Unlock()

	for _, c := range all {
		c.Close()
	}
}

// Len returns the number of pooled clients.
func (p *Pool) Len() int {
	p.Lock()
	defer p.Unlock()

	var count int
	for _, list := range p.clients {
		count += len(list)
	}
	return count
}

func (p *Pool) lookup(key poolKey) *Client {
	p.Lock()
	defer p.Unlock()

	if list := p.clients[key]; len(list) > 0 {
		return list[0]
	}
	return nil
}

func (p *Pool) store(key poolKey, c *Client) error {
	p.Lock()
	defer p.Unlock()

	if p.closed() {
		return ErrPoolClosed
	}
	p.clients[key] = append(p.clients[key], c)

	go p.watch(key, c)
	return nil
}

// watch unregisters the client once its channel closes, whether from a
// transport failure or an explicit Close.
func (p *Pool) watch(key poolKey, c *Client) {
	select {
	case <-p.done:
	case <-c.Done():
		p.remove(key, c)
	}
}

func (p *Pool) remove(key poolKey, c *Client) {
	p.Lock()
	defer p.Unlock()

	list := p.clients[key]
	for i, cur := range list {
		if cur == c {
			p.clients[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(p.clients[key]) == 0 {
		delete(p.clients, key)
	}
}

// connect attempts channel establishment with backoff between attempts,
// propagating only the final error.
func (p *Pool) connect(key poolKey) (*Client, error) {
	var c *Client
	var err error

	for i := 0; i < p.attempts; i++ {
		if i > 0 {
			time.Sleep(truncatedExponentialBackoff(i-1, 250*time.Millisecond, 2*time.Second))
		}

		if key.proto == conn.TCP {
			c, err = ConnectTCP(key.addr)
		} else {
			c, err = ConnectTo(key.addr)
		}
		if err == nil {
			return c, nil
		}
		p.log.Printf("Attempt %d to connect to %s failed: %v", i+1, key.addr, err)
	}
	return nil, err
}

// truncatedExponentialBackoff returns 2^events multiplied by the delay,
// with jitter of [0,delay) added and the result capped at max.
func truncatedExponentialBackoff(events int, delay, max time.Duration) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(events))) * delay
	if delay > 0 {
		backoff += time.Duration(rand.Int63n(int64(delay)))
	}

	if backoff > max {
		backoff = max
	}
	return backoff
}
