package cluster

import (
	"sync"

	"github.com/aerokit-io/aerokit/internal/digest"
	"github.com/aerokit-io/aerokit/internal/info"
)

const partitionsPerNamespace = digest.NumPartitions

// PartitionMap is the namespace → 4096-slot owning-node vector described by
// spec §3 "PartitionMap" and §4.6. Readers never block each other; the
// tender excludes readers only while Apply updates the slot vectors in place
// under the write lock (spec §5 "Shared resources").
type PartitionMap struct {
	mu    sync.RWMutex
	slots map[string][]*Node
}

// NewPartitionMap returns an empty map with no namespaces observed yet.
func NewPartitionMap() *PartitionMap {
	return &PartitionMap{slots: make(map[string][]*Node)}
}

// Owner returns the node owning the given namespace/partition, or nil if the
// namespace has never been observed.
func (m *PartitionMap) Owner(namespace string, partitionID uint16) *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vec, ok := m.slots[namespace]
	if !ok {
		return nil
	}
	return vec[partitionID]
}

// Apply folds one node's replicas-master bitmaps into the map following
// spec §4.6's algorithm: first observer of a namespace seeds every slot to
// that node; thereafter each set bit in the bitmap reassigns the
// corresponding slot to this node, and unset bits are left untouched.
func (m *PartitionMap) Apply(node *Node, entries []info.ReplicasMaster) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		vec, ok := m.slots[e.Namespace]
		if !ok {
			vec = make([]*Node, partitionsPerNamespace)
			for i := range vec {
				vec[i] = node
			}
			m.slots[e.Namespace] = vec
			continue
		}
		for i := 0; i < partitionsPerNamespace; i++ {
			if e.OwnsPartition(uint16(i)) {
				vec[i] = node
			}
		}
	}
}

// Namespaces returns the set of namespaces currently tracked.
func (m *PartitionMap) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.slots))
	for ns := range m.slots {
		out = append(out, ns)
	}
	return out
}

// RecomputeReferenceCounts walks every namespace's slot vector and updates
// each node's reference count to the number of slots across all namespaces
// that currently point at it (spec §3 Node "reference count from partition
// map"). Called by the tender once per tend cycle, after the refresh and
// add-friends phases and before remove-stale decides which nodes have zero
// references.
func (m *PartitionMap) RecomputeReferenceCounts(allNodes []*Node) {
	counts := make(map[*Node]int32, len(allNodes))
	for _, n := range allNodes {
		counts[n] = 0
	}

	m.mu.RLock()
	for _, vec := range m.slots {
		for _, n := range vec {
			if n != nil {
				counts[n]++
			}
		}
	}
	m.mu.RUnlock()

	for n, c := range counts {
		n.setReferenceCount(c)
	}
}

// OwnedPartitions returns the sorted list of partition ids in namespace
// currently owned by node, walking the full slot vector (spec §4.9: the scan
// executor determines, per active node, the partitions it owns this way
// before issuing its scan request).
func (m *PartitionMap) OwnedPartitions(namespace string, node *Node) []uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vec, ok := m.slots[namespace]
	if !ok {
		return nil
	}
	out := make([]uint16, 0, len(vec))
	for i, n := range vec {
		if n == node {
			out = append(out, uint16(i))
		}
	}
	return out
}

// Size reports the number of partition slots tracked per namespace (always
// 4096 per spec §3's invariant); exposed for the slot-count invariant test.
func (m *PartitionMap) Size(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots[namespace])
}
