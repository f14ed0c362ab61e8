/*
Package redikit - high throughput Redis client with implicit pipelining.

https://redis.io/topics/pipelining

Pipelining improves the maximum throughput redis can serve, and reduces CPU
usage both on the redis server and on the client. Mostly this comes from
saving system CPU consumption.

But it is not always possible to use pipelining explicitly: usually there
are dozens of concurrent goroutines, each sending just one request at a
time. To handle that workload, pipelining has to be implicit.

Most Golang redis clients use a connection-per-request model with a
connection pool, and provide only explicit pipelining. This shows far from
optimal performance under highly concurrent load.

redikit was built as implicitly pipelined from the ground up to achieve
maximum performance in a highly concurrent environment. Each bridge writes
every request it has been given to a single connection, and continuously
reads answers on another goroutine, pairing each reply back to its
request's future.

Note that this trades a bit of latency for throughput, and therefore may
not be optimal for non-concurrent usage.

Capabilities

- fast, implicit pipelining: no need to batch requests yourself,

- thread-safe: no need to lock around a connection, no need to "return it
to a pool", etc,

- optimistic transactions with WATCH-evaluated Condition predicates, not
just bare MULTI/EXEC,

- full pub/sub support (SUBSCRIBE/PSUBSCRIBE with refcounted
subscribe/unsubscribe), dispatched to handlers independent of regular
command traffic,

- standalone, primary/replica, Sentinel-monitored, and Cluster topologies,
all behind the same redis.Sender interface,

- hook for custom logging (bridge.Logger),

- hook for request timing/tracing (mux.ProfilerProvider; see the metrics
subpackage for a Prometheus-backed implementation).

Limitations

- blocking calls are not rejected, and a blocking reply stalls the whole
pipeline on that connection: BLPOP, BRPOP, BRPOPLPUSH, BZPOPMIN,
BZPOPMAX, XREAD, XREADGROUP, WAIT, SAVE.

- within one transaction, WATCH/MULTI/EXEC and the pub/sub subscribe
commands are routed with FlagNoRedirect/FlagFireAndForget as appropriate;
see mux.Database.RunTransaction and mux.Subscriber's doc comments for the exact
guarantees each gives a concurrent caller sharing the same bridge.

Structure

- root package (this one) only resolves a Config's Topology to the right
RoutingStrategy and wraps it in a mux.Multiplexer -- it has no state of
its own,

- wire protocol parsing is in the resp subpackage,

- request/response types, errors, and the Sender/Future/Sync/SyncCtx
wrappers are in the redis subpackage,

- a single connection's read/write loops and reconnection state machine
are in the bridge subpackage,

- the multiplexer, its Database/Server/Subscriber views, and transaction
support are in the mux subpackage,

- Cluster topology support is in the cluster subpackage,

- Sentinel topology support is in the sentinel subpackage,

- a Prometheus-backed mux.ProfilerProvider is in the metrics subpackage,

- test fixtures built on miniredis are in the redistest subpackage.

Usage

Connect returns a *mux.Multiplexer, which implements redis.Sender: an
asynchronous API for sending a request, many requests, or a transaction's
body, each accepting a redis.Future implementation that is resolved once
the reply arrives. Usually there is no need to implement redis.Future
directly -- instead wrap the Sender with one of:

- redis.Sync{S: sender} - a simple synchronous API,

- redis.SyncCtx{S: sender} - the same API, but every method accepts a
context.Context and returns as soon as that context is done,

- redis.ChanFutured{S: sender} - an API whose future resolves by
closing a channel.

Types accepted as command arguments: nil, []byte, string, any integer
type, float64, float32, bool. Arguments are converted to redis bulk
strings as usual (string and []byte as-is; numbers in decimal notation;
bool as "0"/"1"; nil as an empty string).

As in the connector this package is descended from, no custom types are
used for command results -- results deserialize into plain Go types and
are returned as interface{}:

  redis        | go
  -------------|-------
  simple string | string
  bulk string   | []byte
  integer       | int64
  array         | []interface{}
  error         | error (*errorx.Error)

IO, connection, and protocol errors are not returned out-of-band but as
the result itself, sharing the same *errorx.Error underlying type as
server-reported errors (see redis.IsRetryable, redis.AsError).
*/
package redikit
