package cluster

import (
	"testing"

	"github.com/aerokit-io/aerokit/internal/info"
)

func TestApplyFirstObserverSeedsEveryPartitionToThisNode(t *testing.T) {
	m := NewPartitionMap()
	n := &Node{Name: "n1"}

	bitmap := make([]byte, 512) // all-zero: no bits asserted yet
	m.Apply(n, []info.ReplicasMaster{{Namespace: "test", Bitmap: bitmap}})

	if m.Size("test") != partitionsPerNamespace {
		t.Fatalf("partition slot count = %d, want %d", m.Size("test"), partitionsPerNamespace)
	}
	if m.Owner("test", 0) != n {
		t.Fatal("expected first observer to own every slot, including unset bits")
	}
	if m.Owner("test", 4095) != n {
		t.Fatal("expected first observer to own the last slot too")
	}
}

func TestApplyReassignsOnlySetBits(t *testing.T) {
	m := NewPartitionMap()
	n1 := &Node{Name: "n1"}
	n2 := &Node{Name: "n2"}

	zero := make([]byte, 512)
	m.Apply(n1, []info.ReplicasMaster{{Namespace: "test", Bitmap: zero}})

	bitmap := make([]byte, 512)
	bitmap[0] = 0x80 // bit 0 set -> partition 0 owned by n2
	m.Apply(n2, []info.ReplicasMaster{{Namespace: "test", Bitmap: bitmap}})

	if m.Owner("test", 0) != n2 {
		t.Fatal("expected partition 0 reassigned to n2")
	}
	if m.Owner("test", 1) != n1 {
		t.Fatal("expected partition 1 to remain owned by n1 (bit not set)")
	}
}

func TestOwnerUnknownNamespaceReturnsNil(t *testing.T) {
	m := NewPartitionMap()
	if m.Owner("nope", 0) != nil {
		t.Fatal("expected nil owner for unobserved namespace")
	}
}

func TestRecomputeReferenceCounts(t *testing.T) {
	m := NewPartitionMap()
	n1 := &Node{Name: "n1"}
	n2 := &Node{Name: "n2"}

	zero := make([]byte, 512)
	m.Apply(n1, []info.ReplicasMaster{{Namespace: "test", Bitmap: zero}})
	bitmap := make([]byte, 512)
	bitmap[0] = 0x80
	m.Apply(n2, []info.ReplicasMaster{{Namespace: "test", Bitmap: bitmap}})

	m.RecomputeReferenceCounts([]*Node{n1, n2})

	if n2.ReferenceCount() != 1 {
		t.Fatalf("n2 reference count = %d, want 1", n2.ReferenceCount())
	}
	if n1.ReferenceCount() != partitionsPerNamespace-1 {
		t.Fatalf("n1 reference count = %d, want %d", n1.ReferenceCount(), partitionsPerNamespace-1)
	}
}

func TestPartitionMapSlotCountIsAlways4096(t *testing.T) {
	m := NewPartitionMap()
	n := &Node{Name: "n1"}
	zero := make([]byte, 512)
	m.Apply(n, []info.ReplicasMaster{{Namespace: "test", Bitmap: zero}})
	if m.Size("test") != 4096 {
		t.Fatalf("namespace slot count must always be exactly 4096, got %d", m.Size("test"))
	}
}
