package mux

import "github.com/redikit/redikit/redis"

// Database is a lightweight view bound to a db index, per §4.F:
// "Database handle is a lightweight view bound to a db index" --
// obtaining one never dials anything; every call funnels through the
// owning Multiplexer's Execute with Message.DB set, and the bridge
// layer issues an implicit SELECT only when a connection's last
// selected index actually differs.
type Database struct {
	mx    *Multiplexer
	index int
}

// Index returns the database index this view is bound to.
func (d *Database) Index() int { return d.index }

func (d *Database) Send(r redis.Request, cb redis.Future, n uint64) {
	msg := redis.NewMessage(r, 0, redis.Generic, cb)
	msg.SinkIndex = n
	msg.DB = d.index
	applyDeadline(msg, d.mx.cfg)
	d.mx.Execute(msg)
}

func (d *Database) SendMany(r []redis.Request, cb redis.Future, start uint64) {
	for i, req := range r {
		d.Send(req, cb, start+uint64(i))
	}
}

// SendTransaction wraps reqs in MULTI/EXEC against a single endpoint
// selected for this database index, mirroring Multiplexer.SendTransaction.
func (d *Database) SendTransaction(reqs []redis.Request, cb redis.Future, start uint64) {
	if len(reqs) == 0 {
		cb.Resolve([]interface{}{}, start)
		return
	}
	ep, err := d.routeBody(reqs)
	if err != nil {
		cb.Resolve(err, start)
		return
	}
	batch := make([]*redis.Message, 0, len(reqs)+2)
	batch = append(batch, redis.NewMessage(redis.Req("MULTI"), redis.FlagHighPriority, redis.Void, nil))
	for _, req := range reqs {
		batch = append(batch, redis.NewMessage(req, 0, redis.Void, nil))
	}
	exec := redis.NewMessage(redis.Req("EXEC"), 0, redis.Generic, cb)
	exec.SinkIndex = start
	batch = append(batch, exec)
	for _, m := range batch {
		m.DB = d.index
	}
	ep.Interactive.SubmitBatch(batch)
}

func (d *Database) routeBody(reqs []redis.Request) (*Endpoint, error) {
	var chosen *Endpoint
	for _, req := range reqs {
		probe := redis.NewMessage(req, 0, redis.Void, nil)
		probe.DB = d.index
		ep, err := d.mx.strategy.Route(probe)
		if err != nil {
			return nil, err
		}
		if chosen == nil {
			chosen = ep
			continue
		}
		if ep.Addr != chosen.Addr {
			return nil, redis.ErrMultiKeyOnDifferentServers.New(
				"transaction body spans %s and %s", chosen.Addr, ep.Addr)
		}
	}
	return chosen, nil
}

// Scanner returns a cursor-based iterator bound to this database index.
// Under Cluster topology this walks every shard in turn (via
// ShardedScanner) instead of the single endpoint strategy.Route would
// pick for a keyless SCAN.
func (d *Database) Scanner(opts redis.ScanOpts) redis.Scanner {
	if sharded, ok := d.mx.strategy.(ShardedScanner); ok {
		return sharded.Scanner(opts, d.index)
	}
	return &cursorScanner{base: redis.ScannerBase{ScanOpts: opts}, snd: d}
}

func (d *Database) EachShard(fn func(redis.Sender, error) bool) {
	for _, ep := range d.mx.strategy.Endpoints() {
		snd := &endpointSender{cfg: d.mx.cfg, ep: ep, db: d.index}
		if !fn(snd, nil) {
			return
		}
	}
}

// Close is a no-op: a Database owns nothing of its own to release,
// only its parent Multiplexer's endpoints.
func (d *Database) Close() {}
