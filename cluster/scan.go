package cluster

import (
	"github.com/redikit/redikit/mux"
	"github.com/redikit/redikit/redis"
)

// Scanner walks every primary shard Strategy knows about in turn,
// issuing SCAN/HSCAN/SSCAN/ZSCAN against one shard at a time and
// advancing to the next once the current shard's cursor comes back
// "0" -- a keyless SCAN has no slot to route by, so covering the
// whole keyspace means visiting every shard rather than trusting
// Route's bootstrap-probe fallback to pick one node forever.
type Scanner struct {
	shards []*mux.Endpoint
	db     int
	cfg    *mux.Config
	opts   redis.ScanOpts

	idx     int
	base    redis.ScannerBase
	started bool
}

// Scanner implements mux.ShardedScanner: it snapshots the current
// primary set once, up front, so a topology change mid-iteration
// can't retarget an in-progress shard's cursor onto an unrelated node.
func (s *Strategy) Scanner(opts redis.ScanOpts, db int) redis.Scanner {
	return &Scanner{shards: s.Endpoints(), db: db, cfg: s.cfg, opts: opts}
}

// Next resolves cb with the next page of keys from the current shard,
// moving on to the next shard's fresh cursor once the current one is
// exhausted, and resolving nil only once every shard has been walked.
func (c *Scanner) Next(cb redis.Future) {
	for c.started && c.base.Done() {
		c.idx++
		c.base = redis.ScannerBase{ScanOpts: c.opts}
		c.started = false
	}
	if c.idx >= len(c.shards) {
		cb.Resolve(nil, 0)
		return
	}
	c.started = true
	snd := mux.NewEndpointSender(c.shards[c.idx], c.db, c.cfg)
	c.base.DoNext(cb, snd)
}
