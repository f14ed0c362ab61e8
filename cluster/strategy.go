package cluster

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redikit/redikit/bridge"
	"github.com/redikit/redikit/mux"
	"github.com/redikit/redikit/redis"
	"github.com/redikit/redikit/resp"
)

// Strategy is a mux.RoutingStrategy for Redis Cluster topology: it
// keeps a slot->shard Table fed by CLUSTER NODES, builds one
// mux.Endpoint per known node lazily, follows MOVED/ASK redirects, and
// falls back to any known primary (the bootstrap probe) for a slot
// with no assigned shard yet, per §4.E "Cluster".
type Strategy struct {
	cfg  *mux.Config
	seed ReplicaSeed

	table *TableHolder

	mu        sync.RWMutex
	endpoints map[string]*mux.Endpoint // addr -> endpoint, lazily dialed
}

// NewStrategy bootstraps cluster topology from cfg.Endpoints (seed
// node addresses) using a throwaway bridge.Dumb connection per §9's
// "bootstrap probe", then builds the initial Table and endpoint set.
func NewStrategy(cfg *mux.Config) (*Strategy, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, redis.ErrConfiguration.New("no endpoints configured")
	}
	s := &Strategy{
		cfg:       cfg,
		seed:      DefaultReplicaSeed(),
		endpoints: make(map[string]*mux.Endpoint),
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// probeNodes issues CLUSTER NODES against the first reachable address
// in candidates, trying each in turn -- a single seed node being down
// must not prevent discovering the rest of the cluster.
func (s *Strategy) probeNodes(candidates []string) (string, error) {
	var lastErr error
	for _, addr := range candidates {
		d := &bridge.Dumb{Addr: addr, Protocol: s.cfg.Protocol, Timeout: s.cfg.ConnectTimeout}
		res, err := d.Do("CLUSTER", "NODES")
		d.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if res.Kind == resp.KindError {
			lastErr = fmt.Errorf("CLUSTER NODES: %s", res.Bytes)
			continue
		}
		return string(res.Bytes), nil
	}
	return "", redis.ErrConnectionFailure.Wrap(lastErr, "no seed node reachable for CLUSTER NODES")
}

// Refresh re-probes topology and publishes a new Table and endpoint
// set, retiring nodes no longer present and dialing newly discovered
// ones, per §4.F "Reconfiguration".
func (s *Strategy) Refresh() error {
	candidates := s.cfg.Endpoints
	if t := s.table; t != nil {
		if loaded := t.Load(); loaded != nil {
			candidates = append(append([]string(nil), loaded.KnownAddrs()...), candidates...)
		}
	}
	text, err := s.probeNodes(candidates)
	if err != nil {
		return err
	}
	shards, ranges, primaryOf := ParseClusterNodes(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*mux.Endpoint, len(shards))
	reply := mux.NewRedirectAwareReplyHandler(s, s.cfg)
	for _, sh := range shards {
		for _, addr := range sh.Addrs() {
			if ep, ok := s.endpoints[addr]; ok {
				next[addr] = ep
				continue
			}
			role := mux.RoleClusterNode
			if addr == sh.Primary {
				role = mux.RolePrimary
			} else {
				role = mux.RoleReplica
			}
			next[addr] = mux.NewEndpoint(addr, role, s.cfg, reply, nil)
		}
	}
	for addr, ep := range s.endpoints {
		if _, ok := next[addr]; !ok {
			ep.Close(false)
		}
	}
	s.endpoints = next
	_ = primaryOf

	table := NewTable(shards, ranges)
	if s.table == nil {
		s.table = NewTableHolder(table)
	} else {
		s.table.Store(table)
	}
	return nil
}

func (s *Strategy) endpointFor(addr string) (*mux.Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[addr]
	return ep, ok
}

// dialAsk lazily dials addr if MOVED/ASK names a node the table didn't
// already know about (mid-resharding, or a replica being promoted).
func (s *Strategy) dialAsk(addr string) *mux.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ep, ok := s.endpoints[addr]; ok {
		return ep
	}
	ep := mux.NewEndpoint(addr, mux.RoleClusterNode, s.cfg, mux.NewRedirectAwareReplyHandler(s, s.cfg), nil)
	s.endpoints[addr] = ep
	return ep
}

// Route resolves msg's routing key to a slot and looks it up in the
// current Table, honoring DemandReplica/PreferReplica by picking among
// the owning shard's replicas; a key with no assigned shard yet routes
// to any known primary as a bootstrap probe, per §4.E.
func (s *Strategy) Route(msg *redis.Message) (*mux.Endpoint, error) {
	keys, err := extractKeys(msg.Request)
	if err != nil {
		return nil, err
	}
	table := s.table.Load()
	var sh Shard
	var ok bool
	if len(keys) == 0 {
		addr, found := table.AnyMaster()
		if !found {
			return nil, redis.ErrNoEndpoint.New("no known cluster node to route %s", msg.Request.Cmd)
		}
		sh, ok = Shard{Primary: addr}, true
	} else {
		slot, found := SlotsForKeys(keys)
		if !found {
			return nil, redis.ErrCrossSlot.New("keys in %s hash to different slots", msg.Request.Cmd)
		}
		sh, ok = table.Lookup(slot)
		if !ok {
			addr, hasAny := table.AnyMaster()
			if !hasAny {
				return nil, redis.ErrNoEndpoint.New("slot %d has no assigned shard and no known master", slot)
			}
			sh = Shard{Primary: addr}
		}
	}

	addr := sh.Primary
	wantsReplica := msg.Flags&(redis.FlagDemandReplica|redis.FlagPreferReplica) != 0
	if wantsReplica {
		if len(sh.Replicas) > 0 {
			addr = PickReplica(sh, s.seed)
		} else if msg.Flags&redis.FlagDemandReplica != 0 {
			return nil, redis.ErrNoEndpoint.New("no replica endpoint available for demanded-replica request")
		}
	}

	ep, found := s.endpointFor(addr)
	if !found {
		ep = s.dialAsk(addr)
	}
	return ep, nil
}

// Reroute applies a MOVED redirect permanently to the slot table, or
// (for ASK) sends a one-shot ASKING to the target bridge before the
// retried command, atomically on the same bridge connection per §4.E
// "On ASK, the retry is sent to the indicated endpoint preceded by
// ASKING ... atomically (no reordering between the two)".
func (s *Strategy) Reroute(msg *redis.Message, redirect *redis.Redirect) error {
	ep := s.dialAsk(redirect.Addr)
	if !redirect.Ask {
		s.table.ApplyMoved(uint16(redirect.Slot), redirect.Addr)
		ep.Interactive.Submit(msg)
		return nil
	}
	// ASK: issue ASKING immediately ahead of msg in one SubmitBatch, so
	// no other caller's message can land between the two on the wire --
	// a sequential Submit-then-Submit pair would leave exactly that gap
	// open to any concurrent sender on the same bridge.
	asking := redis.NewMessage(redis.Req("ASKING"), redis.FlagHighPriority, redis.Void, nil)
	ep.Interactive.SubmitBatch([]*redis.Message{asking, msg})
	return nil
}

// Endpoints returns every primary shard endpoint known right now.
func (s *Strategy) Endpoints() []*mux.Endpoint {
	table := s.table.Load()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*mux.Endpoint, 0, len(table.shardsSnapshot()))
	seen := make(map[string]bool)
	for _, sh := range table.shardsSnapshot() {
		if seen[sh.Primary] {
			continue
		}
		seen[sh.Primary] = true
		if ep, ok := s.endpoints[sh.Primary]; ok {
			out = append(out, ep)
		}
	}
	return out
}

func (s *Strategy) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ep := range s.endpoints {
		ep.Close(false)
	}
}

// extractKeys pulls every key-bearing argument out of msg so multi-key
// commands (MGET, DEL, ...) can be checked for cross-slot violations
// before any network I/O, per §4.E "Multi-key operations".
func extractKeys(req redis.Request) ([][]byte, error) {
	k, ok := req.Key()
	if !ok {
		return nil, nil
	}
	switch strings.ToUpper(req.Cmd) {
	case "MGET", "DEL", "EXISTS", "UNLINK", "WATCH":
		keys := make([][]byte, 0, len(req.Args))
		for _, a := range req.Args {
			switch v := a.(type) {
			case string:
				keys = append(keys, []byte(v))
			case []byte:
				keys = append(keys, v)
			}
		}
		return keys, nil
	default:
		return [][]byte{k}, nil
	}
}

// ParseClusterNodes parses the bulk-string CLUSTER NODES reply into
// shards plus their slot ranges, grounded on the line format
// redis.ClusterNodesText already tokenizes in package redis; this
// parser additionally groups replica lines under their primary and
// resolves numeric slot ranges ("0-5460" or a bare "5461") into the
// [from,to] pairs NewTable expects.
func ParseClusterNodes(text string) (shards []Shard, ranges map[int][][2]int, primaryOf map[string]string) {
	type node struct {
		id, addr, flags, primary string
		slots                    []string
	}
	var nodes []node
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line == "" {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 8 {
			continue
		}
		addr := f[1]
		if i := strings.IndexByte(addr, '@'); i >= 0 {
			addr = addr[:i]
		}
		primary := f[3]
		if primary == "-" {
			primary = ""
		}
		n := node{id: f[0], addr: addr, flags: f[2], primary: primary}
		if len(f) > 8 {
			n.slots = f[8:]
		}
		nodes = append(nodes, n)
	}

	byID := make(map[string]int) // node id -> shard index, for primaries
	ranges = make(map[int][][2]int)
	primaryOf = make(map[string]string)

	for _, n := range nodes {
		if strings.Contains(n.flags, "master") {
			idx := len(shards)
			byID[n.id] = idx
			shards = append(shards, Shard{Primary: n.addr})
			for _, raw := range n.slots {
				if strings.HasPrefix(raw, "[") {
					continue // migrating/importing slot annotation, not a plain range
				}
				from, to := parseSlotRange(raw)
				if from < 0 {
					continue
				}
				ranges[idx] = append(ranges[idx], [2]int{from, to})
			}
		}
	}
	for _, n := range nodes {
		if !strings.Contains(n.flags, "slave") && !strings.Contains(n.flags, "replica") {
			continue
		}
		idx, ok := byID[n.primary]
		if !ok {
			continue
		}
		shards[idx].Replicas = append(shards[idx].Replicas, n.addr)
		primaryOf[n.addr] = shards[idx].Primary
	}
	return shards, ranges, primaryOf
}

func parseSlotRange(raw string) (int, int) {
	parts := strings.SplitN(raw, "-", 2)
	from, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1, -1
	}
	if len(parts) == 1 {
		return from, from
	}
	to, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1, -1
	}
	return from, to
}
