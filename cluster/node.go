// Package cluster implements the Node object, PartitionMap and the
// background Cluster tender described by spec §3-§4.5-§4.6: discovery and
// health tracking of server participants, the namespace-sharded partition
// ownership table, and the seed/refresh/add-friends/remove-stale tend loop
// that keeps both current.
//
// Grounded on orbas1-Synnergy/core/peer_management.go's PeerManagement
// (discover/connect/periodically-sample pattern) and
// orbas1-Synnergy/core/sharding.go's shardManager (tracking per-shard load
// and picking a fallback via round robin), adapted from peer discovery to
// server-node discovery and from shard load-balancing to partition
// ownership lookup.
package cluster

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/aerokit-io/aerokit/internal/info"
	"github.com/aerokit-io/aerokit/internal/netpool"
)

// Host is a (name, port) pair that resolves to one or more socket addresses
// (spec §3 "Host").
type Host struct {
	Name string
	Port int
}

// Node is a single server participant (spec §3 "Node").
type Node struct {
	Name string // server-assigned stable identity

	mu      sync.RWMutex
	aliases []Host

	features info.FeatureSet
	pool     *netpool.Pool

	failureCount       int32
	referenceCount     int32
	partitionGeneration int32
	active             int32 // atomic bool: 1 = active, 0 = inactive
}

// NewNode constructs a node from its server-reported name, first validated
// alias and feature set (spec §4.5 step 1 "seed").
func NewNode(name string, firstAlias Host, features info.FeatureSet, pool *netpool.Pool) *Node {
	return &Node{
		Name:     name,
		aliases:  []Host{firstAlias},
		features: features,
		pool:     pool,
		active:   1,
	}
}

// Pool returns this node's connection pool handle.
func (n *Node) Pool() *netpool.Pool { return n.pool }

// Features returns this node's advertised feature-flag set.
func (n *Node) Features() info.FeatureSet { return n.features }

// Aliases returns a snapshot of this node's known host aliases.
func (n *Node) Aliases() []Host {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Host, len(n.aliases))
	copy(out, n.aliases)
	return out
}

// AddAlias registers an additional host as reaching this same node (spec
// §4.5 step 3 "add friends": "register the host as an additional alias").
func (n *Node) AddAlias(h Host) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.aliases {
		if existing == h {
			return
		}
	}
	n.aliases = append(n.aliases, h)
}

// HasAlias reports whether h is already a known alias of this node.
func (n *Node) HasAlias(h Host) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, existing := range n.aliases {
		if existing == h {
			return true
		}
	}
	return false
}

func (n *Node) Active() bool          { return atomic.LoadInt32(&n.active) == 1 }
func (n *Node) MarkInactive()         { atomic.StoreInt32(&n.active, 0) }
func (n *Node) FailureCount() int32   { return atomic.LoadInt32(&n.failureCount) }
func (n *Node) ReferenceCount() int32 { return atomic.LoadInt32(&n.referenceCount) }
func (n *Node) PartitionGeneration() int32 { return atomic.LoadInt32(&n.partitionGeneration) }

// RecordRefreshFailure increments the consecutive failure counter (spec
// §4.5 "Failure handling").
func (n *Node) RecordRefreshFailure() { atomic.AddInt32(&n.failureCount, 1) }

// RecordRefreshSuccess resets the consecutive failure counter to zero.
func (n *Node) RecordRefreshSuccess() { atomic.StoreInt32(&n.failureCount, 0) }

// SetPartitionGeneration updates the node's observed partition generation,
// returning whether it changed (spec §4.5 step 2: "if partition generation
// changed, pull replicas-master").
func (n *Node) SetPartitionGeneration(gen int32) (changed bool) {
	old := atomic.SwapInt32(&n.partitionGeneration, gen)
	return old != gen
}

// setReferenceCount is called by PartitionMap.RecomputeReferenceCounts after
// counting how many slots across all namespaces point at this node.
func (n *Node) setReferenceCount(v int32) { atomic.StoreInt32(&n.referenceCount, v) }

// ResolveHost turns a Host into its candidate socket addresses via DNS
// resolution (spec §6 "Seed configuration").
func ResolveHost(h Host) ([]net.TCPAddr, error) {
	ips, err := net.LookupIP(h.Name)
	if err != nil {
		return nil, err
	}
	out := make([]net.TCPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.TCPAddr{IP: ip, Port: h.Port})
	}
	return out, nil
}
