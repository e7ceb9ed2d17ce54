// Package netpool implements the per-node bounded connection pool described
// by spec §4.3: up to max_conns_per_node live connections spread across N
// sub-queues to reduce contention, round-robin checkout, an idle deadline
// bumped forward on every successful read/write, and a bcrypt-based
// authentication handshake performed once per freshly dialed connection.
//
// Grounded on orbas1-Synnergy/core/connection_pool.go's ConnPool (an
// address-keyed slice-backed idle list with a Dialer, Acquire/Release/Close
// and a background reaper), generalized from one pool-wide idle list to N
// independent sub-queues addressing spec §4.3's contention-reduction
// requirement, and from a periodic reaper to the spec's checkout-time
// idle-deadline check.
package netpool

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/aerokit-io/aerokit/errkit"
)

// Conn is a pooled connection: a net.Conn plus the bookkeeping the pool and
// its callers need (spec §3 "Connection").
type Conn struct {
	net.Conn

	subQueue     int
	idleDeadline time.Time
	authed       bool
}

// Authenticated reports whether the login handshake has already completed on
// this connection.
func (c *Conn) Authenticated() bool { return c.authed }

// MarkAuthenticated records that the login handshake has completed.
func (c *Conn) MarkAuthenticated() { c.authed = true }

// Touch bumps this connection's idle deadline forward, called after every
// successful read or write (spec §4.3 "Idle policy").
func (c *Conn) Touch(idleTimeout time.Duration) {
	c.idleDeadline = time.Now().Add(idleTimeout)
}

// Authenticator performs the login handshake on a freshly dialed connection.
// Implemented by internal/info in terms of an admin-command message, kept as
// an interface here so netpool has no dependency on the wire/info layers.
type Authenticator interface {
	Authenticate(ctx context.Context, conn *Conn) error
}

type subQueue struct {
	mu    sync.Mutex
	idle  []*Conn
	count int // outstanding + idle, bounded by capacity
}

// Pool is a single node's bounded connection pool.
type Pool struct {
	dial           func(ctx context.Context) (net.Conn, error)
	auth           Authenticator
	maxConns       int
	idleTimeout    time.Duration
	dialTimeout    time.Duration
	requireAuth    bool

	queues []*subQueue
	next   uint64 // round-robin cursor, advanced under nextMu
	nextMu sync.Mutex
}

// Config controls pool sizing (spec §4.3).
type Config struct {
	MaxConnsPerNode int
	ConnPoolsPerNode int
	IdleTimeout      time.Duration
	DialTimeout      time.Duration
	RequireAuth      bool
}

// New builds a pool of cfg.ConnPoolsPerNode sub-queues sharing a total
// capacity of cfg.MaxConnsPerNode connections.
func New(cfg Config, dial func(ctx context.Context) (net.Conn, error), auth Authenticator) *Pool {
	n := cfg.ConnPoolsPerNode
	if n < 1 {
		n = 1
	}
	p := &Pool{
		dial:        dial,
		auth:        auth,
		maxConns:    cfg.MaxConnsPerNode,
		idleTimeout: cfg.IdleTimeout,
		dialTimeout: cfg.DialTimeout,
		requireAuth: cfg.RequireAuth,
		queues:      make([]*subQueue, n),
	}
	for i := range p.queues {
		p.queues[i] = &subQueue{}
	}
	return p
}

// capacityPerQueue is the share of the total pool capacity each sub-queue is
// allotted; the last queue absorbs any remainder.
func (p *Pool) capacityPerQueue(idx int) int {
	n := len(p.queues)
	base := p.maxConns / n
	if idx == n-1 {
		return base + p.maxConns%n
	}
	return base
}

func (p *Pool) pickQueue() int {
	p.nextMu.Lock()
	idx := int(p.next % uint64(len(p.queues)))
	p.next++
	p.nextMu.Unlock()
	return idx
}

// Checkout implements spec §4.3's checkout algorithm: round-robin pick a
// sub-queue; return an idle connection if one is live, otherwise dial fresh
// if under capacity, otherwise try every other sub-queue once before failing
// with a PoolExhausted error.
func (p *Pool) Checkout(ctx context.Context) (*Conn, error) {
	start := p.pickQueue()
	n := len(p.queues)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		c, ok, err := p.tryQueue(ctx, idx)
		if err != nil {
			return nil, err
		}
		if ok {
			return c, nil
		}
	}
	return nil, errkit.NewPoolExhausted("no more connections available in any sub-queue")
}

// tryQueue attempts to satisfy a checkout from a single sub-queue: pop a live
// idle connection, or dial fresh if the sub-queue is under its capacity
// share. ok is false (with a nil error) when this sub-queue cannot help and
// the caller should try the next one.
func (p *Pool) tryQueue(ctx context.Context, idx int) (*Conn, bool, error) {
	q := p.queues[idx]

	q.mu.Lock()
	for len(q.idle) > 0 {
		c := q.idle[0]
		q.idle = q.idle[1:]
		if time.Now().After(c.idleDeadline) {
			q.count--
			q.mu.Unlock()
			_ = c.Close()
			q.mu.Lock()
			continue
		}
		q.mu.Unlock()
		return c, true, nil
	}
	capAvailable := q.count < p.capacityPerQueue(idx)
	if capAvailable {
		q.count++
	}
	q.mu.Unlock()

	if !capAvailable {
		return nil, false, nil
	}

	conn, err := p.dialFresh(ctx, idx)
	if err != nil {
		q.mu.Lock()
		q.count--
		q.mu.Unlock()
		return nil, false, err
	}
	return conn, true, nil
}

func (p *Pool) dialFresh(ctx context.Context, subQueueIdx int) (*Conn, error) {
	dialCtx := ctx
	var cancel context.CancelFunc
	if p.dialTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, p.dialTimeout)
		defer cancel()
	}
	raw, err := p.dial(dialCtx)
	if err != nil {
		return nil, errkit.NewIO("dialing new pooled connection", err)
	}
	c := &Conn{Conn: raw, subQueue: subQueueIdx, idleDeadline: time.Now().Add(p.idleTimeout)}

	if p.requireAuth && p.auth != nil {
		if err := p.auth.Authenticate(ctx, c); err != nil {
			_ = raw.Close()
			return nil, err
		}
		c.MarkAuthenticated()
	}
	return c, nil
}

// Return pushes conn back to its originating sub-queue if the pool is not
// over capacity, or closes it otherwise (spec §4.3 "Return").
func (p *Pool) Return(conn *Conn) {
	conn.Touch(p.idleTimeout)
	q := p.queues[conn.subQueue]

	q.mu.Lock()
	if q.count <= p.capacityPerQueue(conn.subQueue) {
		q.idle = append(q.idle, conn)
		q.mu.Unlock()
		return
	}
	q.count--
	q.mu.Unlock()
	_ = conn.Close()
}

// Drop discards conn without returning it to the pool: used when a caller
// has observed a write error or any parse error other than key-not-found
// (spec §3 invariant).
func (p *Pool) Drop(conn *Conn) {
	q := p.queues[conn.subQueue]
	q.mu.Lock()
	q.count--
	q.mu.Unlock()
	_ = conn.Close()
}

// Size reports the total outstanding+idle connection count across every
// sub-queue (used by the pool-size invariant test, spec §8).
func (p *Pool) Size() int {
	total := 0
	for _, q := range p.queues {
		q.mu.Lock()
		total += q.count
		q.mu.Unlock()
	}
	return total
}

// Close closes every idle connection across every sub-queue. In-flight
// checked-out connections are closed by their callers via Drop.
func (p *Pool) Close() {
	for _, q := range p.queues {
		q.mu.Lock()
		for _, c := range q.idle {
			_ = c.Close()
		}
		q.idle = nil
		q.count = 0
		q.mu.Unlock()
	}
}
