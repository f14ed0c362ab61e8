// Package cluster implements Redis Cluster topology tracking and
// request routing: hash slot computation, the slot→shard table derived
// from CLUSTER NODES, and MOVED/ASK redirect handling, per §4.E's
// "Cluster" topology mode.
package cluster

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Shard is one cluster shard: a primary address plus zero or more
// replica addresses, in the order CLUSTER NODES reported them.
type Shard struct {
	Primary  string
	Replicas []string
}

// Addrs returns every address in the shard, primary first.
func (s Shard) Addrs() []string {
	out := make([]string, 0, 1+len(s.Replicas))
	out = append(out, s.Primary)
	return append(out, s.Replicas...)
}

// Table is an immutable slot→shard mapping. ASK redirects are one-shot
// and leave no trace in it. A new Table is built and published wholesale on every reconfiguration or
// MOVED-driven update -- per §5 "the endpoint table is copy-on-write:
// readers take a snapshot with no locking; writers publish a new array
// under an exclusive lock" -- rather than the teacher's finer-grained
// per-slot atomic bit-packing (mapping.go's slots []uint32 with
// slot2shardno/slotSetShard bit tricks), which buys update granularity
// this client doesn't need: a full topology refresh already replaces
// every slot at once, and a single MOVED only ever touches one.
type Table struct {
	slots  [NumSlots]uint16 // index into shards, or unassignedShard
	shards []Shard
}

const unassignedShard = 0xFFFF

// NewTable builds a Table from a set of shards and the slot ranges
// CLUSTER NODES assigned to each. ranges maps a shard index (into
// shards) to the inclusive [from, to] slot ranges it owns.
func NewTable(shards []Shard, ranges map[int][][2]int) *Table {
	t := &Table{shards: shards}
	for i := range t.slots {
		t.slots[i] = unassignedShard
	}
	for shardIdx, rs := range ranges {
		for _, r := range rs {
			for slot := r[0]; slot <= r[1] && slot < NumSlots; slot++ {
				t.slots[slot] = uint16(shardIdx)
			}
		}
	}
	return t
}

// Lookup returns the shard owning slot, or false if no shard is
// currently assigned to it (the cluster is mid-resharding or this
// table predates full discovery).
func (t *Table) Lookup(slot uint16) (Shard, bool) {
	idx := t.slots[slot]
	if idx == unassignedShard || int(idx) >= len(t.shards) {
		return Shard{}, false
	}
	return t.shards[idx], true
}

// shardsSnapshot returns the shard list backing t, for callers (the
// Strategy's Endpoints()) that need to enumerate every shard without
// reaching into the unexported field directly from another file.
func (t *Table) shardsSnapshot() []Shard { return t.shards }

// AnyMaster returns an arbitrary known primary address, used to route
// a request whose slot has no assigned shard yet (the bootstrap-probe
// fallback in §4.E).
func (t *Table) AnyMaster() (string, bool) {
	if len(t.shards) == 0 {
		return "", false
	}
	return t.shards[0].Primary, true
}

// withMoved returns a copy of t with slot reassigned to point at addr,
// creating a new single-node shard for addr if it is not already a
// known primary. MOVED is permanent: the slot table itself changes.
func (t *Table) withMoved(slot uint16, addr string) *Table {
	shards := append([]Shard(nil), t.shards...)
	shardIdx := -1
	for i, sh := range shards {
		if sh.Primary == addr {
			shardIdx = i
			break
		}
	}
	if shardIdx < 0 {
		shards = append(shards, Shard{Primary: addr})
		shardIdx = len(shards) - 1
	}
	next := &Table{shards: shards}
	next.slots = t.slots
	next.slots[slot] = uint16(shardIdx)
	return next
}

// KnownAddrs returns every address (primary and replica) the table
// currently knows about, sorted, for diagnostics and topology diffing.
func (t *Table) KnownAddrs() []string {
	seen := make(map[string]struct{})
	for _, sh := range t.shards {
		for _, a := range sh.Addrs() {
			seen[a] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// TableHolder publishes Tables under copy-on-write semantics: Load is
// lock-free, Store and ApplyMoved serialize under mu so two
// concurrent MOVED redirects or a MOVED racing a full reconfiguration
// never interleave into an inconsistent table.
type TableHolder struct {
	mu  sync.Mutex
	ptr atomic.Pointer[Table]
}

func NewTableHolder(initial *Table) *TableHolder {
	h := &TableHolder{}
	h.ptr.Store(initial)
	return h
}

func (h *TableHolder) Load() *Table { return h.ptr.Load() }

// Store publishes a wholly new table, used after a full
// reconfiguration (CLUSTER NODES re-fetch).
func (h *TableHolder) Store(t *Table) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ptr.Store(t)
}

// ApplyMoved publishes a copy of the current table with slot
// reassigned to addr, per the MOVED handling in §4.E.
func (h *TableHolder) ApplyMoved(slot uint16, addr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ptr.Store(h.ptr.Load().withMoved(slot, addr))
}
