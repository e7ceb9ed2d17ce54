package netpool

import (
	"context"
	"net"
	"testing"
	"time"
)

// newLoopbackDialer starts a listener that accepts and immediately holds
// open every connection, returning a dial function pointed at it.
func newLoopbackDialer(t *testing.T) (dial func(ctx context.Context) (net.Conn, error), closeListener func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c
		}
	}()
	dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", ln.Addr().String())
	}
	return dial, func() { _ = ln.Close() }
}

func TestCheckoutDialsFreshUnderCapacity(t *testing.T) {
	dial, closeLn := newLoopbackDialer(t)
	defer closeLn()

	p := New(Config{MaxConnsPerNode: 2, ConnPoolsPerNode: 1, IdleTimeout: time.Minute, DialTimeout: time.Second}, dial, nil)
	defer p.Close()

	c, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if p.Size() != 1 {
		t.Fatalf("pool size = %d, want 1", p.Size())
	}
	p.Return(c)
	if p.Size() != 1 {
		t.Fatalf("pool size after return = %d, want 1 (still counted as idle)", p.Size())
	}
}

func TestCheckoutReusesReturnedConnection(t *testing.T) {
	dial, closeLn := newLoopbackDialer(t)
	defer closeLn()

	p := New(Config{MaxConnsPerNode: 1, ConnPoolsPerNode: 1, IdleTimeout: time.Minute, DialTimeout: time.Second}, dial, nil)
	defer p.Close()

	c1, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	p.Return(c1)

	c2, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("second Checkout: %v", err)
	}
	if c2 != c1 {
		t.Fatal("expected the returned connection to be reused")
	}
}

func TestCheckoutFailsFastWhenExhausted(t *testing.T) {
	dial, closeLn := newLoopbackDialer(t)
	defer closeLn()

	p := New(Config{MaxConnsPerNode: 1, ConnPoolsPerNode: 1, IdleTimeout: time.Minute, DialTimeout: time.Second}, dial, nil)
	defer p.Close()

	_, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("first Checkout: %v", err)
	}
	if _, err := p.Checkout(context.Background()); err == nil {
		t.Fatal("expected pool exhaustion error on second checkout over capacity")
	}
}

func TestPoolSizeInvariantNeverExceedsCapacity(t *testing.T) {
	dial, closeLn := newLoopbackDialer(t)
	defer closeLn()

	const maxConns = 4
	p := New(Config{MaxConnsPerNode: maxConns, ConnPoolsPerNode: 2, IdleTimeout: time.Minute, DialTimeout: time.Second}, dial, nil)
	defer p.Close()

	var checked []*Conn
	for i := 0; i < maxConns; i++ {
		c, err := p.Checkout(context.Background())
		if err != nil {
			t.Fatalf("Checkout %d: %v", i, err)
		}
		checked = append(checked, c)
		if p.Size() > maxConns {
			t.Fatalf("pool size %d exceeds capacity %d", p.Size(), maxConns)
		}
	}
	if _, err := p.Checkout(context.Background()); err == nil {
		t.Fatal("expected exhaustion once every slot across both sub-queues is in use")
	}
	for _, c := range checked {
		p.Return(c)
	}
	if p.Size() != maxConns {
		t.Fatalf("pool size after returning all = %d, want %d", p.Size(), maxConns)
	}
}

func TestDropDecrementsCount(t *testing.T) {
	dial, closeLn := newLoopbackDialer(t)
	defer closeLn()

	p := New(Config{MaxConnsPerNode: 1, ConnPoolsPerNode: 1, IdleTimeout: time.Minute, DialTimeout: time.Second}, dial, nil)
	defer p.Close()

	c, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	p.Drop(c)
	if p.Size() != 0 {
		t.Fatalf("pool size after drop = %d, want 0", p.Size())
	}

	if _, err := p.Checkout(context.Background()); err != nil {
		t.Fatalf("Checkout after drop freed a slot: %v", err)
	}
}

func TestStaleIdleConnectionIsReplaced(t *testing.T) {
	dial, closeLn := newLoopbackDialer(t)
	defer closeLn()

	p := New(Config{MaxConnsPerNode: 1, ConnPoolsPerNode: 1, IdleTimeout: time.Millisecond, DialTimeout: time.Second}, dial, nil)
	defer p.Close()

	c1, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	p.Return(c1)
	time.Sleep(10 * time.Millisecond)

	c2, err := p.Checkout(context.Background())
	if err != nil {
		t.Fatalf("second Checkout: %v", err)
	}
	if c2 == c1 {
		t.Fatal("expected stale connection to be closed and replaced, not reused")
	}
}

func TestHashCredentialIsDeterministic(t *testing.T) {
	a, err := HashCredential("secret")
	if err != nil {
		t.Fatalf("HashCredential: %v", err)
	}
	b, err := HashCredential("secret")
	if err != nil {
		t.Fatalf("HashCredential: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("expected identical credential hash for the same password under the fixed salt")
	}

	c, err := HashCredential("other")
	if err != nil {
		t.Fatalf("HashCredential: %v", err)
	}
	if string(a) == string(c) {
		t.Fatal("expected distinct credential hashes for distinct passwords")
	}
}
