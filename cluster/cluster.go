package cluster

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/aerokit-io/aerokit/errkit"
	"github.com/aerokit-io/aerokit/internal/info"
	"github.com/aerokit-io/aerokit/internal/netpool"
)

// negativeCacheTTL bounds how long a seed/friend address that just failed a
// one-shot query is skipped on the next tend cycle, so a cluster with one
// permanently unreachable configured seed doesn't pay its dial timeout on
// every single tend tick.
const negativeCacheTTL = 2 * time.Second

const negativeCacheSize = 256

// Resolver is satisfied by *Cluster; it lets the batch and scan executors
// depend on partition-to-node lookup without importing the whole tender.
type Resolver interface {
	Resolve(namespace string, partitionID uint16) *Node
}

// Config controls cluster construction and the tender's behavior (spec
// §4.5, §6).
type Config struct {
	Seeds               []Host
	ClusterName         string // optional; empty means "don't verify"
	TendInterval        time.Duration
	StabilizeDeadline   time.Duration // default 3s
	FailIfNotConnected  bool
	OneShotDialTimeout  time.Duration // default 5s, spec §4.3
	Pool                netpool.Config
	Authenticator       netpool.Authenticator
	Logger              *logrus.Logger
}

func (c Config) withDefaults() Config {
	if c.TendInterval == 0 {
		c.TendInterval = time.Second
	}
	if c.StabilizeDeadline == 0 {
		c.StabilizeDeadline = 3 * time.Second
	}
	if c.OneShotDialTimeout == 0 {
		c.OneShotDialTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// Cluster owns the active node set, the partition map, and the background
// tender task that keeps both current (spec §4.5).
type Cluster struct {
	cfg Config

	mu    sync.RWMutex
	nodes map[string]*Node // keyed by server-reported node name

	partitions *PartitionMap

	rrCounter uint64
	closed    int32

	refreshSuccessesThisCycle int32 // atomic: refreshOne runs concurrently per node
	seedSucceededThisCycle    int32 // atomic bool

	failedAddrs *lru.Cache[string, time.Time] // negative cache of recently unreachable addresses

	done chan struct{}
}

// New constructs a cluster, runs the wait-till-stabilized phase, and spawns
// the background tender. It returns an error only when
// cfg.FailIfNotConnected is set and no node could be reached during
// stabilization.
func New(ctx context.Context, cfg Config) (*Cluster, error) {
	cfg = cfg.withDefaults()
	failedAddrs, _ := lru.New[string, time.Time](negativeCacheSize)
	c := &Cluster{
		cfg:         cfg,
		nodes:       make(map[string]*Node),
		partitions:  NewPartitionMap(),
		failedAddrs: failedAddrs,
		done:        make(chan struct{}),
	}

	if err := c.waitTillStabilized(ctx); err != nil {
		return nil, err
	}

	go c.tendLoop()
	return c, nil
}

// waitTillStabilized repeatedly runs one tend cycle until either the
// deadline expires or the node count is unchanged across two consecutive
// cycles (spec §4.5 "Startup gating").
func (c *Cluster) waitTillStabilized(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.StabilizeDeadline)
	lastCount := -1

	for {
		c.tendOnce(ctx)

		count := c.nodeCount()
		if count == lastCount {
			break
		}
		lastCount = count

		if time.Now().After(deadline) {
			break
		}
	}

	if c.cfg.FailIfNotConnected && c.nodeCount() == 0 {
		return errkit.NewIO("cluster did not stabilize with any reachable node", nil)
	}
	return nil
}

func (c *Cluster) nodeCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

func (c *Cluster) activeNodesSnapshot() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	return out
}

// tendLoop runs tendOnce every cfg.TendInterval until Close is called.
func (c *Cluster) tendLoop() {
	ticker := time.NewTicker(c.cfg.TendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if atomic.LoadInt32(&c.closed) == 1 {
				return
			}
			c.tendOnce(context.Background())
		case <-c.done:
			return
		}
	}
}

// tendOnce runs one full tend cycle: seed (if empty), refresh every active
// node, add friends, then remove stale nodes (spec §4.5).
func (c *Cluster) tendOnce(ctx context.Context) {
	atomic.StoreInt32(&c.refreshSuccessesThisCycle, 0)
	atomic.StoreInt32(&c.seedSucceededThisCycle, 0)

	if c.nodeCount() == 0 {
		c.seed(ctx)
	}

	friends := c.refreshAll(ctx)
	c.addFriends(ctx, friends)
	c.partitions.RecomputeReferenceCounts(c.activeNodesSnapshot())
	c.removeStale()
}

// oneShotQuery dials addr, issues an info query, and closes the connection
// (spec §4.5 step 1 "over a one-shot connection").
func (c *Cluster) oneShotQuery(ctx context.Context, addr string, commands ...string) (map[string]string, error) {
	if failedAt, ok := c.failedAddrs.Get(addr); ok && time.Since(failedAt) < negativeCacheTTL {
		return nil, errkit.NewIO("address recently failed a one-shot query", nil)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.OneShotDialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		c.failedAddrs.Add(addr, time.Now())
		return nil, errkit.NewIO("dialing for one-shot info query", err)
	}
	defer conn.Close()

	resp, err := info.Query(ctx, conn, commands...)
	if err != nil {
		c.failedAddrs.Add(addr, time.Now())
	}
	return resp, err
}

// seed resolves each configured seed host, dials each resolved address, and
// adds the first successfully validated node (spec §4.5 step 1).
func (c *Cluster) seed(ctx context.Context) {
	for _, h := range c.cfg.Seeds {
		addrs, err := ResolveHost(h)
		if err != nil {
			c.cfg.Logger.WithError(err).WithField("host", h.Name).Warn("cluster: seed host resolution failed")
			continue
		}
		for _, addr := range addrs {
			socket := net.JoinHostPort(addr.IP.String(), fmt.Sprint(addr.Port))
			resp, err := c.oneShotQuery(ctx, socket, "node", "cluster-name", "features")
			if err != nil {
				continue
			}
			if !c.validateClusterName(resp) {
				continue
			}
			name := resp["node"]
			if name == "" {
				continue
			}
			c.addOrReuseNode(name, h, info.ParseFeatures(resp["features"]))
			atomic.StoreInt32(&c.seedSucceededThisCycle, 1)
			break // first successful alias wins this seed host
		}
	}
}

func (c *Cluster) validateClusterName(resp map[string]string) bool {
	if c.cfg.ClusterName == "" {
		return true
	}
	return resp["cluster-name"] == c.cfg.ClusterName
}

// addOrReuseNode registers a newly discovered (name, host, features) triple:
// if a node with this name already exists, the host becomes an additional
// alias; otherwise a new node (with its own pool) is created.
func (c *Cluster) addOrReuseNode(name string, h Host, features info.FeatureSet) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.nodes[name]; ok {
		existing.AddAlias(h)
		return existing
	}

	pool := netpool.New(c.cfg.Pool, func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", net.JoinHostPort(h.Name, fmt.Sprint(h.Port)))
	}, c.cfg.Authenticator)

	n := NewNode(name, h, features, pool)
	c.nodes[name] = n
	return n
}

// refreshAll issues a refresh info query against every active node's pooled
// connection, returning the set of candidate friend hosts discovered along
// the way (spec §4.5 step 2).
func (c *Cluster) refreshAll(ctx context.Context) []Host {
	nodes := c.activeNodesSnapshot()
	var mu sync.Mutex
	var friends []Host

	var wg sync.WaitGroup
	for _, n := range nodes {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			fs, ok := c.refreshOne(ctx, n)
			if ok {
				mu.Lock()
				friends = append(friends, fs...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return friends
}

func (c *Cluster) refreshOne(ctx context.Context, n *Node) (friends []Host, success bool) {
	conn, err := n.Pool().Checkout(ctx)
	if err != nil {
		n.RecordRefreshFailure()
		return nil, false
	}

	resp, err := info.Query(ctx, conn, "node", "cluster-name", "partition-generation", "services-alternate")
	if err != nil {
		n.Pool().Drop(conn)
		n.RecordRefreshFailure()
		return nil, false
	}
	n.Pool().Return(conn)

	if resp["node"] != n.Name {
		n.MarkInactive()
		n.RecordRefreshFailure()
		return nil, false
	}
	if !c.validateClusterName(resp) {
		n.RecordRefreshFailure()
		return nil, false
	}

	n.RecordRefreshSuccess()
	atomic.AddInt32(&c.refreshSuccessesThisCycle, 1)

	for _, hostport := range info.ParseServices(resp["services-alternate"]) {
		host, ok := parseHostPort(hostport)
		if ok && !n.HasAlias(host) {
			friends = append(friends, host)
		}
	}

	if gen, err := parseInt32(resp["partition-generation"]); err == nil {
		if n.SetPartitionGeneration(gen) {
			if err := c.pullPartitions(ctx, n); err != nil {
				c.cfg.Logger.WithError(err).WithField("node", n.Name).Warn("cluster: pulling replicas-master failed")
			}
		}
	}

	return friends, true
}

func (c *Cluster) pullPartitions(ctx context.Context, n *Node) error {
	conn, err := n.Pool().Checkout(ctx)
	if err != nil {
		return err
	}
	resp, err := info.Query(ctx, conn, "replicas-master")
	if err != nil {
		n.Pool().Drop(conn)
		return err
	}
	n.Pool().Return(conn)

	entries, err := info.ParseReplicasMaster(resp["replicas-master"])
	if err != nil {
		return err
	}
	c.partitions.Apply(n, entries)
	return nil
}

// addFriends validates each candidate host like seed does, but on a
// matching node name registers the host as an alias instead of creating a
// new node (spec §4.5 step 3).
func (c *Cluster) addFriends(ctx context.Context, friends []Host) {
	for _, h := range friends {
		socket := net.JoinHostPort(h.Name, fmt.Sprint(h.Port))
		resp, err := c.oneShotQuery(ctx, socket, "node", "cluster-name", "features")
		if err != nil {
			continue
		}
		if !c.validateClusterName(resp) {
			continue
		}
		name := resp["node"]
		if name == "" {
			continue
		}
		c.addOrReuseNode(name, h, info.ParseFeatures(resp["features"]))
	}
}

// removeStale evaluates every active node against spec §4.5 step 4's
// removal rules and drops the ones that qualify.
func (c *Cluster) removeStale() {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(c.nodes)
	for name, n := range c.nodes {
		if c.shouldRemove(n, size) {
			delete(c.nodes, name)
		}
	}
}

func (c *Cluster) shouldRemove(n *Node, clusterSize int) bool {
	if !n.Active() {
		return true
	}
	switch {
	case clusterSize == 1:
		return n.FailureCount() > 5 && atomic.LoadInt32(&c.seedSucceededThisCycle) == 1
	case clusterSize == 2:
		return atomic.LoadInt32(&c.refreshSuccessesThisCycle) == 1 && n.ReferenceCount() == 0 && n.FailureCount() > 0
	case clusterSize >= 3:
		return atomic.LoadInt32(&c.refreshSuccessesThisCycle) >= 2 && n.ReferenceCount() == 0
	default:
		return false
	}
}

// Resolve implements spec §4.6's "Node lookup for a request": the owning
// node for (namespace, partitionID), or any active node via round robin if
// the namespace is not yet known.
func (c *Cluster) Resolve(namespace string, partitionID uint16) *Node {
	if owner := c.partitions.Owner(namespace, partitionID); owner != nil {
		return owner
	}
	return c.anyActiveNode()
}

func (c *Cluster) anyActiveNode() *Node {
	nodes := c.activeNodesSnapshot()
	if len(nodes) == 0 {
		return nil
	}
	idx := atomic.AddUint64(&c.rrCounter, 1) % uint64(len(nodes))
	return nodes[idx]
}

// Partitions exposes the partition map for the executors.
func (c *Cluster) Partitions() *PartitionMap { return c.partitions }

// ActiveNodes returns a snapshot of every currently active node.
func (c *Cluster) ActiveNodes() []*Node { return c.activeNodesSnapshot() }

// Close stops the tender and closes every node's connection pool.
func (c *Cluster) Close() {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	close(c.done)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.nodes {
		n.Pool().Close()
	}
}

func parseHostPort(s string) (Host, bool) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Host{}, false
	}
	port, err := parseInt32(portStr)
	if err != nil {
		return Host{}, false
	}
	return Host{Name: host, Port: int(port)}, true
}

func parseInt32(s string) (int32, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}
