package mux

import (
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/redikit/redikit/redis"
)

// Multiplexer is the public connection object Connect returns. It
// implements redis.Sender directly -- the default database's view --
// and hands out further views (a specific Database, the Subscriber,
// a single Server) that share the same RoutingStrategy and endpoint
// set, per §4.F.
type Multiplexer struct {
	cfg      *Config
	strategy RoutingStrategy

	subs *pubsubRouter

	profiler ProfilerProvider

	closed int32 // atomic

	reconfigGroup singleflight.Group
	stopc         chan struct{}
	donec         chan struct{}
}

// New wraps an already-built RoutingStrategy in a Multiplexer. The
// topology-specific constructors (standalone, cluster.NewStrategy,
// sentinel.NewStrategy) live outside this package -- mux never imports
// cluster or sentinel -- so a root-level Connect dispatches on
// cfg.Topology and calls this once it has built the right strategy.
func New(cfg *Config, strategy RoutingStrategy) *Multiplexer {
	cfg.setDefaults()
	mx := &Multiplexer{
		cfg:      cfg,
		strategy: strategy,
		stopc:    make(chan struct{}),
		donec:    make(chan struct{}),
	}
	mx.subs = newPubsubRouter(mx)
	go mx.reconfigureLoop()
	return mx
}

// Connect builds the standalone/primary-replica strategy directly
// (the only topology mux can construct without importing cluster or
// sentinel) and wraps it in a Multiplexer. Cluster and Sentinel
// topologies are built by their own packages' Connect wrappers, which
// call New themselves once the strategy is ready.
func Connect(cfg *Config) (*Multiplexer, error) {
	if cfg.Topology == Cluster || cfg.Topology == Sentinel {
		return nil, redis.ErrConfiguration.New(
			"topology %v requires its package's own Connect (cluster.Connect/sentinel.Connect)", cfg.Topology)
	}
	strategy, err := newStandaloneStrategy(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, strategy), nil
}

func (mx *Multiplexer) closedErr() error {
	return redis.ErrObjectDisposed.New("multiplexer closed")
}

// Execute routes msg via the active RoutingStrategy and submits it to
// the resolved endpoint's interactive bridge, per §4.F's "Execute
// (Message) -> future<Typed>" contract. Send and SendMany, on the
// Multiplexer and on a Database, funnel through this entry point;
// SendTransaction and the Server and EachShard senders submit straight
// to an endpoint's bridge, so the profiler hook and EVAL script
// caching here do not see them.
func (mx *Multiplexer) Execute(msg *redis.Message) {
	if atomic.LoadInt32(&mx.closed) != 0 {
		msg.MarkFailed(mx.closedErr())
		return
	}
	if mx.profiler != nil {
		if sess := mx.profiler(msg); sess != nil {
			msg.Sink = &profiledFuture{orig: msg.Sink, sess: sess}
		}
	}
	mx.rememberScript(msg)
	ep, err := mx.strategy.Route(msg)
	if err != nil {
		msg.MarkFailed(err)
		return
	}
	ep.Interactive.Submit(msg)
}

// rememberScript caches an EVAL's script body under its SHA1 digest so
// a later EVALSHA for the same body can recover from NOSCRIPT via
// SCRIPT LOAD, per §7's propagation policy.
func (mx *Multiplexer) rememberScript(msg *redis.Message) {
	if !strings.EqualFold(msg.Request.Cmd, "EVAL") || len(msg.Request.Args) == 0 {
		return
	}
	if body, ok := redis.BodyArg(msg.Request.Args[0]); ok {
		mx.cfg.Scripts.Remember(body)
	}
}

// Send implements redis.Sender against the configured DefaultDatabase.
func (mx *Multiplexer) Send(r redis.Request, cb redis.Future, n uint64) {
	msg := redis.NewMessage(r, 0, redis.Generic, cb)
	msg.SinkIndex = n
	msg.DB = mx.cfg.DefaultDatabase
	applyDeadline(msg, mx.cfg)
	mx.Execute(msg)
}

// applyDeadline stamps msg with cfg.AsyncTimeout's deadline, the
// default every caller-facing Send/SendMany gets unless msg already
// carries a deadline, per §5's "Operations carry an optional deadline
// (SyncTimeout or caller-provided)". It is not applied to
// SendTransaction's MULTI/body/EXEC messages, nor to bridge-internal
// plumbing (ASKING, SCRIPT LOAD, the implicit SELECT, PING), which is
// never the caller's own operation to time out independently of the
// command it accompanies.
func applyDeadline(msg *redis.Message, cfg *Config) {
	if msg.Deadline.IsZero() && cfg.AsyncTimeout > 0 {
		msg.Deadline = time.Now().Add(cfg.AsyncTimeout)
	}
}

// SendMany submits each request independently, each resolving cb at
// start+i -- no cross-request atomicity, unlike SendTransaction.
func (mx *Multiplexer) SendMany(r []redis.Request, cb redis.Future, start uint64) {
	for i, req := range r {
		mx.Send(req, cb, start+uint64(i))
	}
}

// SendTransaction wraps reqs in MULTI/EXEC against a single endpoint,
// resolving cb once with the EXEC array (or the nil-EXEC/error case),
// per §4.F's optimistic-transaction body requirement that every
// command in one transaction reach the same server. reqs are the body
// commands only; MULTI and EXEC are added here.
func (mx *Multiplexer) SendTransaction(reqs []redis.Request, cb redis.Future, start uint64) {
	if atomic.LoadInt32(&mx.closed) != 0 {
		cb.Resolve(mx.closedErr(), start)
		return
	}
	if len(reqs) == 0 {
		cb.Resolve([]interface{}{}, start)
		return
	}
	ep, err := mx.routeTransactionBody(reqs)
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
		m.DB = mx.cfg.DefaultDatabase
	}
	ep.Interactive.SubmitBatch(batch)
}

// routeTransactionBody resolves every body request to an endpoint and
// requires they all agree, failing with ErrMultiKeyOnDifferentServers
// otherwise (a cluster transaction whose keys don't share a slot).
func (mx *Multiplexer) routeTransactionBody(reqs []redis.Request) (*Endpoint, error) {
	var chosen *Endpoint
	for _, req := range reqs {
		probe := redis.NewMessage(req, 0, redis.Void, nil)
		probe.DB = mx.cfg.DefaultDatabase
		ep, err := mx.strategy.Route(probe)
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

// Scanner returns a cursor-based iterator bound to this Multiplexer's
// default database. Under Cluster topology this walks every shard in
// turn (via ShardedScanner) instead of the single endpoint strategy.Route
// would pick for a keyless SCAN.
func (mx *Multiplexer) Scanner(opts redis.ScanOpts) redis.Scanner {
	if sharded, ok := mx.strategy.(ShardedScanner); ok {
		return sharded.Scanner(opts, mx.cfg.DefaultDatabase)
	}
	return &cursorScanner{base: redis.ScannerBase{ScanOpts: opts}, snd: mx}
}

// EachShard invokes fn once per primary shard endpoint known right
// now, each bound to that single endpoint's default database, per
// §9's "EachShard" supplemented feature -- stopping early if fn
// returns false.
func (mx *Multiplexer) EachShard(fn func(redis.Sender, error) bool) {
	for _, ep := range mx.strategy.Endpoints() {
		snd := &endpointSender{cfg: mx.cfg, ep: ep, db: mx.cfg.DefaultDatabase}
		if !fn(snd, nil) {
			return
		}
	}
}

// Close releases every endpoint and stops the reconfiguration loop.
// Already-dispatched in-flight work is failed by each bridge's own
// Close; nothing new is admitted once closed flips.
func (mx *Multiplexer) Close() {
	if !atomic.CompareAndSwapInt32(&mx.closed, 0, 1) {
		return
	}
	close(mx.stopc)
	<-mx.donec
	mx.subs.close()
	mx.strategy.Close()
}

// GetDatabase returns a Database view bound to index, a lightweight
// handle that funnels through Execute with DB set, per §4.F.
func (mx *Multiplexer) GetDatabase(index int) *Database {
	return &Database{mx: mx, index: index}
}

// GetServer returns a Server view scoped to a single known endpoint
// address, for admin commands that must target one specific node
// (CLIENT LIST, INFO, CLUSTER NODES on a particular shard).
func (mx *Multiplexer) GetServer(addr string) (*Server, bool) {
	for _, ep := range mx.strategy.Endpoints() {
		if ep.Addr == addr {
			return &Server{mx: mx, ep: ep}, true
		}
	}
	return nil, false
}

// GetSubscriber returns the pub/sub view shared by every caller of
// this Multiplexer.
func (mx *Multiplexer) GetSubscriber() *Subscriber {
	return &Subscriber{mx: mx}
}

// reconfigureLoop ticks every ConfigCheckSeconds and calls Reconfigure,
// independent of any sentinel-driven or MOVED-triggered calls, per
// §4.F's periodic topology refresh.
func (mx *Multiplexer) reconfigureLoop() {
	defer close(mx.donec)
	if mx.cfg.ConfigCheckSeconds <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(mx.cfg.ConfigCheckSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-mx.stopc:
			return
		case <-ticker.C:
			mx.Reconfigure()
		}
	}
}

// Reconfigure re-probes topology. Concurrent callers (the periodic
// ticker, a sentinel +switch-master notification, a repeated MOVED, an
// explicit caller) coalesce onto a single in-flight refresh via
// singleflight, per §4.F "coalesce while running": only one CLUSTER
// NODES/sentinel re-probe is ever in flight at a time, and every
// concurrent caller observes its result.
func (mx *Multiplexer) Reconfigure() error {
	if atomic.LoadInt32(&mx.closed) != 0 {
		return mx.closedErr()
	}
	_, err, _ := mx.reconfigGroup.Do("reconfigure", func() (interface{}, error) {
		return nil, mx.strategy.Refresh()
	})
	return err
}

// cursorScanner adapts redis.ScannerBase (which issues requests
// through a Sender) to the redis.Scanner interface's Next(Future),
// stopping once the prior call's cursor already came back "0" instead
// of re-issuing SCAN against cursor 0 forever.
type cursorScanner struct {
	base    redis.ScannerBase
	snd     redis.Sender
	started bool
}

func (c *cursorScanner) Next(cb redis.Future) {
	if c.started && c.base.Done() {
		cb.Resolve(nil, 0)
		return
	}
	c.started = true
	c.base.DoNext(cb, c.snd)
}

// ShardedScanner is implemented by a RoutingStrategy that can walk its
// endpoint table shard-by-shard (cluster.Strategy); Multiplexer.Scanner
// and Database.Scanner prefer it over the single-endpoint cursorScanner
// so a keyless SCAN against Cluster topology covers every shard's
// keyspace instead of silently routing to one fixed node forever.
type ShardedScanner interface {
	Scanner(opts redis.ScanOpts, db int) redis.Scanner
}

// NewEndpointSender builds a redis.Sender pinned to a single Endpoint
// and database index, bypassing strategy routing entirely -- the same
// adapter EachShard hands its callback, exported so a RoutingStrategy
// in another package (cluster.Scanner) can drive per-shard requests
// without needing a *Multiplexer, consistent with §9's "non-owning
// handles": a RoutingStrategy never holds one. cfg supplies
// AsyncTimeout for the messages this sender builds.
func NewEndpointSender(ep *Endpoint, db int, cfg *Config) redis.Sender {
	return &endpointSender{ep: ep, db: db, cfg: cfg}
}

// endpointSender is the redis.Sender EachShard hands each callback: a
// Multiplexer pinned to one Endpoint instead of routing through the
// strategy, so a per-shard admin scan or SCAN sweep can't accidentally
// cross shards mid-iteration.
type endpointSender struct {
	cfg *Config
	ep  *Endpoint
	db  int
}

func (s *endpointSender) Send(r redis.Request, cb redis.Future, n uint64) {
	msg := redis.NewMessage(r, 0, redis.Generic, cb)
	msg.SinkIndex = n
	msg.DB = s.db
	applyDeadline(msg, s.cfg)
	s.ep.Interactive.Submit(msg)
}

func (s *endpointSender) SendMany(r []redis.Request, cb redis.Future, start uint64) {
	for i, req := range r {
		s.Send(req, cb, start+uint64(i))
	}
}

func (s *endpointSender) SendTransaction(reqs []redis.Request, cb redis.Future, start uint64) {
	if len(reqs) == 0 {
		cb.Resolve([]interface{}{}, start)
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
		m.DB = s.db
	}
	s.ep.Interactive.SubmitBatch(batch)
}

func (s *endpointSender) Scanner(opts redis.ScanOpts) redis.Scanner {
	return &cursorScanner{base: redis.ScannerBase{ScanOpts: opts}, snd: s}
}

func (s *endpointSender) EachShard(fn func(redis.Sender, error) bool) { fn(s, nil) }

func (s *endpointSender) Close() {}

// Topology.String supports %v in error messages without reaching for
// fmt.Stringer boilerplate elsewhere.
func (t Topology) String() string {
	switch t {
	case Standalone:
		return "Standalone"
	case PrimaryReplica:
		return "PrimaryReplica"
	case Sentinel:
		return "Sentinel"
	case Cluster:
		return "Cluster"
	default:
		return "Unknown"
	}
}
