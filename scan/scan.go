// Package scan implements the scan executor of spec §4.9: a fan-out stream
// across every active node, each contributing the partitions of a namespace
// it currently owns into one bounded, backpressured channel of records.
//
// Grounded on orbas1-Synnergy/core/peer_management.go's per-peer worker
// goroutine pattern (one goroutine per known peer, fan-in to a shared
// channel, closed once every worker goroutine returns), adapted here from
// peer health polling to one scan round trip per active node.
package scan

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aerokit-io/aerokit/cluster"
	"github.com/aerokit-io/aerokit/value"
)

// Request describes one scan: a namespace, optional set filter, and
// optional bin selection (nil selects every bin).
type Request struct {
	Namespace       string
	Set             string
	Bins            []string
	RecordQueueSize int // default 256
}

func (r Request) queueSize() int {
	if r.RecordQueueSize > 0 {
		return r.RecordQueueSize
	}
	return 256
}

// Record is one scanned record, or a carried per-node error (spec §7: the
// tender and individual scan tasks never abort the whole stream on one
// node's failure).
type Record struct {
	Digest     [20]byte
	Bins       map[string]value.Value
	Generation uint32
	Expiration uint32
	Err        error
}

// Source is satisfied by *cluster.Cluster: the active node set and the
// partition map the scan executor walks to find each node's owned
// partitions for the requested namespace.
type Source interface {
	ActiveNodes() []*cluster.Node
	Partitions() *cluster.PartitionMap
}

// Execute starts one scan task per active node that owns at least one
// partition of req.Namespace and returns a channel of records that closes
// once every task has finished. A namespace with no partitions owned by any
// known node yields an immediately-closed, empty channel (spec §8).
func Execute(ctx context.Context, src Source, req Request) <-chan Record {
	out := make(chan Record, req.queueSize())

	nodes := src.ActiveNodes()
	taskID := newTaskID()

	type unit struct {
		node       *cluster.Node
		partitions []uint16
	}
	units := make([]unit, 0, len(nodes))
	for _, n := range nodes {
		parts := src.Partitions().OwnedPartitions(req.Namespace, n)
		if len(parts) == 0 {
			continue
		}
		sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
		units = append(units, unit{node: n, partitions: parts})
	}

	if len(units) == 0 {
		close(out)
		return out
	}

	var wg sync.WaitGroup
	wg.Add(len(units))
	for _, u := range units {
		u := u
		go func() {
			defer wg.Done()
			runScanTask(ctx, u.node, taskID, req, u.partitions, out)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// newTaskID derives the u64 random scan task id spec §4.9 requires from a
// fresh random UUID's leading 8 bytes, rather than reimplementing a PRNG:
// google/uuid already draws from a cryptographically-seeded random source.
func newTaskID() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}
