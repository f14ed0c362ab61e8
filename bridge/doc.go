// Package bridge implements the connection bridge: a single physical
// TCP (optionally TLS) link to one server endpoint in one role
// (interactive or subscription). It owns the socket, the write and
// read loops, the in-flight FIFO, the pre-connect backlog, and the
// handshake/reconnect state machine described in spec §4.D.
//
// It is grounded on the teacher's redisconn package (the per-shard
// write/read loop over a bufio.Reader/Writer pair, the Opts/Logger
// shape, exponential-backoff reconnection) generalized from a single
// RESP2-only "Connection" pumping N arbitrary shards into one socket,
// to a role-aware Bridge pumping one strict FIFO of Messages, since
// the spec's per-bridge ordering invariant is most directly satisfied
// by one queue rather than the teacher's N-shard fan-in (which only
// orders requests relative to others on the same shard, not globally).
package bridge
