// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnsclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/caffix/dnsclient/wire"
)

// Result delivers the single outcome of a query: a response message or
// the error that ended it.
type Result struct {
	Msg *wire.Message
	Err error
}

// sentQuery is one in-flight query. The result channel is buffered so the
// dispatcher never blocks, and each entry is delivered to at most once:
// whoever removes the entry from the exchange manager owns its resolution.
type sentQuery struct {
	msg    *wire.Message
	result chan Result
	timer  *time.Timer
}

func newSentQuery(msg *wire.Message) *sentQuery {
	return &sentQuery{
		msg:    msg,
		result: make(chan Result, 1),
	}
}

func (q *sentQuery) resolve(msg *wire.Message, err error) {
	if q.timer != nil {
		q.timer.Stop()
	}
	q.result <- Result{Msg: msg, Err: err}
}

// The xchgMgr tracks queries awaiting responses, keyed by message ID.
type xchgMgr struct {
	sync.Mutex
	xchgs map[uint16]*sentQuery
}

func newXchgMgr() *xchgMgr {
	return &xchgMgr{xchgs: make(map[uint16]*sentQuery)}
}

// add registers the entry and arms its timeout in one critical section,
// so the timer field is published under the same lock every reader of
// the table acquires.
func (r *xchgMgr) add(id uint16, q *sentQuery, timeout time.Duration, expire func()) error {
	r.Lock()
	defer r.Unlock()

	if _, found := r.xchgs[id]; found {
		return fmt.Errorf("message ID %d is already in use", id)
	}

	q.timer = time.AfterFunc(timeout, expire)
	r.xchgs[id] = q
	return nil
}

func (r *xchgMgr) inFlight(id uint16) bool {
	r.Lock()
	defer r.Unlock()

	_, found := r.xchgs[id]
	return found
}

// take looks the entry up and removes it in one critical section, so a
// timeout firing during response arrival resolves the query exactly once.
func (r *xchgMgr) take(id uint16) (*sentQuery, bool) {
	r.Lock()
	defer r.Unlock()

	q, found := r.xchgs[id]
	if found {
		delete(r.xchgs, id)
	}
	return q, found
}

// takeIf removes the entry only while it still holds the provided query,
// and reports whether it did. A timer firing after its ID was resolved and reused
// must not steal the newer entry.
func (r *xchgMgr) takeIf(id uint16, q *sentQuery) bool {
	r.Lock()
	defer r.Unlock()

	if cur, found := r.xchgs[id]; !found || cur != q {
		return false
	}
	delete(r.xchgs, id)
	return true
}

func (r *xchgMgr) removeAll() []*sentQuery {
	r.Lock()
	defer r.Unlock()

	var removed []*sentQuery
	for id, q := range r.xchgs {
		removed = append(removed, q)
		delete(r.xchgs, id)
	}
	return removed
}

func (r *xchgMgr) len() int {
	r.Lock()
	defer r.Unlock()

	return len(r.xchgs)
}
