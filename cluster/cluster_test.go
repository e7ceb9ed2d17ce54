package cluster

import (
	"sync/atomic"
	"testing"
)

func newTestCluster() *Cluster {
	return &Cluster{
		nodes:      make(map[string]*Node),
		partitions: NewPartitionMap(),
		done:       make(chan struct{}),
	}
}

func TestShouldRemoveInactiveNodeAlways(t *testing.T) {
	c := newTestCluster()
	n := NewNode("n1", Host{Name: "a", Port: 3000}, 0, nil)
	n.MarkInactive()
	if !c.shouldRemove(n, 3) {
		t.Fatal("an inactive node must always be removed regardless of cluster size")
	}
}

func TestShouldRemoveSingleNodeClusterRule(t *testing.T) {
	c := newTestCluster()
	n := NewNode("n1", Host{Name: "a", Port: 3000}, 0, nil)
	for i := 0; i < 6; i++ {
		n.RecordRefreshFailure()
	}
	atomic.StoreInt32(&c.seedSucceededThisCycle, 1)
	if !c.shouldRemove(n, 1) {
		t.Fatal("expected removal: cluster size 1, >5 failures, seed succeeded")
	}

	atomic.StoreInt32(&c.seedSucceededThisCycle, 0)
	if c.shouldRemove(n, 1) {
		t.Fatal("expected no removal when seed did not succeed this cycle")
	}
}

func TestShouldRemoveTwoNodeClusterRule(t *testing.T) {
	c := newTestCluster()
	n := NewNode("n1", Host{Name: "a", Port: 3000}, 0, nil)
	n.RecordRefreshFailure()
	atomic.StoreInt32(&c.refreshSuccessesThisCycle, 1)
	// reference count defaults to 0 (never set)
	if !c.shouldRemove(n, 2) {
		t.Fatal("expected removal: cluster size 2, refresh_count 1, zero references, at least one failure")
	}

	n.RecordRefreshSuccess()
	if c.shouldRemove(n, 2) {
		t.Fatal("expected no removal once failure count resets to zero")
	}

	n.RecordRefreshFailure()
	atomic.StoreInt32(&c.refreshSuccessesThisCycle, 2)
	if c.shouldRemove(n, 2) {
		t.Fatal("expected no removal when both nodes refreshed this cycle (refresh_count != 1)")
	}
}

func TestShouldRemoveThreeOrMoreNodeClusterRule(t *testing.T) {
	c := newTestCluster()
	n := NewNode("n1", Host{Name: "a", Port: 3000}, 0, nil)
	atomic.StoreInt32(&c.refreshSuccessesThisCycle, 2)

	if !c.shouldRemove(n, 3) {
		t.Fatal("expected removal: cluster size >=3, 2 refresh successes, zero references")
	}

	n.RecordRefreshSuccess()
	if !c.shouldRemove(n, 3) {
		t.Fatal("expected removal regardless of failure count once unreferenced and refresh_count >= 2")
	}

	atomic.StoreInt32(&c.refreshSuccessesThisCycle, 1)
	if c.shouldRemove(n, 3) {
		t.Fatal("expected no removal with fewer than 2 refresh successes this cycle")
	}
}

func TestResolveFallsBackToRoundRobinOnUnknownNamespace(t *testing.T) {
	c := newTestCluster()
	n1 := NewNode("n1", Host{Name: "a", Port: 3000}, 0, nil)
	n2 := NewNode("n2", Host{Name: "b", Port: 3000}, 0, nil)
	c.nodes["n1"] = n1
	c.nodes["n2"] = n2

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		n := c.Resolve("unknown-namespace", 0)
		if n == nil {
			t.Fatal("expected a fallback node, got nil")
		}
		seen[n.Name] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected round robin to visit both nodes, saw %v", seen)
	}
}

func TestResolveReturnsNilWhenNoActiveNodes(t *testing.T) {
	c := newTestCluster()
	if c.Resolve("ns", 0) != nil {
		t.Fatal("expected nil resolution with no active nodes")
	}
}
