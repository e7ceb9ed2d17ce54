package cluster

import "testing"

func TestNodeAliasDeduplication(t *testing.T) {
	n := NewNode("n1", Host{Name: "a", Port: 3000}, 0, nil)
	n.AddAlias(Host{Name: "a", Port: 3000})
	n.AddAlias(Host{Name: "b", Port: 3000})
	if len(n.Aliases()) != 2 {
		t.Fatalf("got %d aliases, want 2 (duplicate should not be added)", len(n.Aliases()))
	}
	if !n.HasAlias(Host{Name: "b", Port: 3000}) {
		t.Fatal("expected HasAlias to find the added alias")
	}
}

func TestNodeFailureCounterLifecycle(t *testing.T) {
	n := NewNode("n1", Host{Name: "a", Port: 3000}, 0, nil)
	n.RecordRefreshFailure()
	n.RecordRefreshFailure()
	if n.FailureCount() != 2 {
		t.Fatalf("failure count = %d, want 2", n.FailureCount())
	}
	n.RecordRefreshSuccess()
	if n.FailureCount() != 0 {
		t.Fatalf("failure count after success = %d, want 0", n.FailureCount())
	}
}

func TestNodeActiveLifecycle(t *testing.T) {
	n := NewNode("n1", Host{Name: "a", Port: 3000}, 0, nil)
	if !n.Active() {
		t.Fatal("expected newly constructed node to be active")
	}
	n.MarkInactive()
	if n.Active() {
		t.Fatal("expected node to be inactive after MarkInactive")
	}
}

func TestSetPartitionGenerationReportsChange(t *testing.T) {
	n := NewNode("n1", Host{Name: "a", Port: 3000}, 0, nil)
	if !n.SetPartitionGeneration(1) {
		t.Fatal("expected first generation set to report a change")
	}
	if n.SetPartitionGeneration(1) {
		t.Fatal("expected setting the same generation again to report no change")
	}
	if !n.SetPartitionGeneration(2) {
		t.Fatal("expected a new generation value to report a change")
	}
}

func TestParseHostPort(t *testing.T) {
	h, ok := parseHostPort("10.0.0.1:3000")
	if !ok || h.Name != "10.0.0.1" || h.Port != 3000 {
		t.Fatalf("got %+v, %v", h, ok)
	}
	if _, ok := parseHostPort("not-a-hostport"); ok {
		t.Fatal("expected malformed host:port to fail parsing")
	}
}
