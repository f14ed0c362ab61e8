package mux

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redikit/redikit/internal/workerpool"
	"github.com/redikit/redikit/redis"
	"github.com/redikit/redikit/resp"
)

// Handler receives one pub/sub delivery. pattern is "" for a plain
// SUBSCRIBE match; for a PSUBSCRIBE match it carries the pattern that
// matched and channel carries the concrete channel the message was
// published to.
type Handler func(pattern, channel string, payload []byte)

type subKind int

const (
	subChannel subKind = iota
	subPattern
	subShardChannel
)

type subKey struct {
	kind subKind
	name string
}

type handlerToken struct {
	id uint64
	h  Handler
}

type subEntry struct {
	handlers []handlerToken
}

// pubsubRouter is the Multiplexer's subscription table: channel/
// pattern -> ordered handler list, refcounted so SUBSCRIBE/PSUBSCRIBE
// is only issued to the server on the first registration and
// UNSUBSCRIBE/PUNSUBSCRIBE on the last, per §4.F "pub/sub router".
// Dispatch runs on a worker pool so a slow handler never blocks the
// subscription bridge's read loop.
type pubsubRouter struct {
	mx   *Multiplexer
	pool *workerpool.Pool

	mu     sync.Mutex
	subs   map[subKey]*subEntry
	nextID uint64

	epMu sync.Mutex
	ep   *Endpoint
}

func newPubsubRouter(mx *Multiplexer) *pubsubRouter {
	return &pubsubRouter{
		mx:   mx,
		pool: workerpool.New(0, 0),
		subs: make(map[subKey]*subEntry),
	}
}

// endpoint lazily picks and dials the subscription bridge every
// channel/pattern shares. A single shared subscription connection per
// Multiplexer matches the teacher's model (pub/sub is not sharded by
// key) -- cluster keyspace notifications that must track a moving
// slot owner are out of scope here, same as spec.md's command-hints
// table treating SUBSCRIBE as a plain non-keyed command.
func (r *pubsubRouter) endpoint() (*Endpoint, error) {
	r.epMu.Lock()
	defer r.epMu.Unlock()
	if r.ep != nil {
		return r.ep, nil
	}
	eps := r.mx.strategy.Endpoints()
	if len(eps) == 0 {
		return nil, redis.ErrNoEndpoint.New("no endpoint available for subscription")
	}
	ep := eps[0]
	ep.EnsureSubscription(r.mx.cfg, r.onPush)
	r.ep = ep
	return ep, nil
}

// subscribe registers h under key, issuing the wire SUBSCRIBE/
// PSUBSCRIBE only if this is the first handler for that channel or
// pattern. The subscribe command is sent fire-and-forget: its actual
// confirmation arrives later as an ordinary push frame on the
// subscription bridge (handled by onPush), consistent with the
// bridge's "a Subscription-role bridge treats its entire traffic as
// push" design -- a reply paired through the normal in-flight queue
// would never be popped on that bridge.
func (r *pubsubRouter) subscribe(kind subKind, name string, h Handler) (func(), error) {
	ep, err := r.endpoint()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	key := subKey{kind, name}
	entry, ok := r.subs[key]
	first := !ok
	if !ok {
		entry = &subEntry{}
		r.subs[key] = entry
	}
	id := atomic.AddUint64(&r.nextID, 1)
	entry.handlers = append(entry.handlers, handlerToken{id: id, h: h})
	r.mu.Unlock()

	if first {
		cmd := "SUBSCRIBE"
		switch kind {
		case subPattern:
			cmd = "PSUBSCRIBE"
		case subShardChannel:
			cmd = "SSUBSCRIBE"
		}
		msg := redis.NewMessage(redis.Req(cmd, name), redis.FlagFireAndForget|redis.FlagHighPriority, redis.Void, nil)
		ep.Subscription.Submit(msg)
	}

	return func() { r.unsubscribe(kind, name, id) }, nil
}

func (r *pubsubRouter) unsubscribe(kind subKind, name string, id uint64) {
	r.mu.Lock()
	key := subKey{kind, name}
	entry, ok := r.subs[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	for i, t := range entry.handlers {
		if t.id == id {
			entry.handlers = append(entry.handlers[:i], entry.handlers[i+1:]...)
			break
		}
	}
	last := len(entry.handlers) == 0
	if last {
		delete(r.subs, key)
	}
	r.mu.Unlock()

	if !last {
		return
	}
	ep, err := r.endpoint()
	if err != nil {
		return
	}
	cmd := "UNSUBSCRIBE"
	switch kind {
	case subPattern:
		cmd = "PUNSUBSCRIBE"
	case subShardChannel:
		cmd = "SUNSUBSCRIBE"
	}
	msg := redis.NewMessage(redis.Req(cmd, name), redis.FlagFireAndForget|redis.FlagHighPriority, redis.Void, nil)
	ep.Subscription.Submit(msg)
}

// onPush is the subscription bridge's push callback: it classifies the
// frame by its first element (RESP2 and RESP3 both spell pub/sub
// deliveries this way) and fans "message"/"pmessage"/"smessage" out to
// every registered handler, in insertion order, on the worker pool.
// Any other frame (subscribe/unsubscribe acks, RESP3 keyspace
// attributes) is dropped -- the multiplexer doesn't surface subscribe
// confirmations as a separate awaitable, per the fire-and-forget
// design above.
func (r *pubsubRouter) onPush(v resp.RawResult) {
	if v.Kind != resp.KindArray && v.Kind != resp.KindPush || len(v.Array) == 0 {
		return
	}
	kind := string(v.Array[0].Bytes)
	switch strings.ToLower(kind) {
	case "message":
		if len(v.Array) < 3 {
			return
		}
		r.dispatch(subChannel, string(v.Array[1].Bytes), "", string(v.Array[1].Bytes), v.Array[2].Bytes)
	case "pmessage":
		if len(v.Array) < 4 {
			return
		}
		r.dispatch(subPattern, string(v.Array[1].Bytes), string(v.Array[1].Bytes), string(v.Array[2].Bytes), v.Array[3].Bytes)
	case "smessage":
		if len(v.Array) < 3 {
			return
		}
		r.dispatch(subShardChannel, string(v.Array[1].Bytes), "", string(v.Array[1].Bytes), v.Array[2].Bytes)
	default:
		// subscribe/unsubscribe/psubscribe/punsubscribe/ssubscribe/
		// sunsubscribe confirmations and their refcounts -- no
		// caller-visible handler for these.
	}
}

func (r *pubsubRouter) dispatch(kind subKind, key, pattern, channel string, payload []byte) {
	r.mu.Lock()
	entry, ok := r.subs[subKey{kind, key}]
	var handlers []handlerToken
	if ok {
		handlers = append(handlers, entry.handlers...)
	}
	r.mu.Unlock()
	if len(handlers) == 0 {
		return
	}
	for _, t := range handlers {
		h := t.h
		r.pool.Go(func() { h(pattern, channel, payload) })
	}
}

func (r *pubsubRouter) close() {
	r.pool.Close()
}

// Subscriber is the pub/sub view handed out by GetSubscriber. Each
// Subscribe/PSubscribe call returns a cancel function that undoes
// exactly that registration, decrementing the shared refcount.
type Subscriber struct {
	mx *Multiplexer
}

// Subscribe registers h for literal channel, issuing SUBSCRIBE on the
// wire only if no other caller is already subscribed to it.
func (s *Subscriber) Subscribe(channel string, h Handler) (cancel func(), err error) {
	return s.mx.subs.subscribe(subChannel, channel, h)
}

// PSubscribe registers h for glob pattern, issuing PSUBSCRIBE only if
// no other caller already watches it.
func (s *Subscriber) PSubscribe(pattern string, h Handler) (cancel func(), err error) {
	return s.mx.subs.subscribe(subPattern, pattern, h)
}

// SSubscribe registers h for literal channel via sharded pub/sub
// (SSUBSCRIBE), issuing the wire command only if no other caller is
// already subscribed to it. This client routes sharded pub/sub through
// the same single shared subscription endpoint as Subscribe/PSubscribe
// rather than a keyslot-aware per-shard connection, and neither a
// Database nor a Server view has a subscribe method of its own, so a
// sharded channel is never subscribed on its slot owner's node.
func (s *Subscriber) SSubscribe(channel string, h Handler) (cancel func(), err error) {
	return s.mx.subs.subscribe(subShardChannel, channel, h)
}
