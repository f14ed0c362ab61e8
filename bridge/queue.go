package bridge

import (
	"sync"
	"time"

	"github.com/redikit/redikit/redis"
)

// backlog is the bounded FIFO messages sit in while the bridge is not
// yet ConnectedEstablished -- queue 1 of the three logical queues in
// §4.D. It is deliberately a plain mutex-guarded slice rather than the
// teacher's channel-based admission: a backlog only ever has one
// producer (Submit) and one consumer (the drain that runs once, on
// establishment), so a channel buys nothing but an arbitrary capacity
// decided at construction time instead of one that can grow with
// Options.BacklogCap at runtime.
type backlog struct {
	mu    sync.Mutex
	items []*redis.Message
	cap   int
}

func newBacklog(capacity int) *backlog {
	return &backlog{cap: capacity}
}

// push admits m, returning false if the backlog is at capacity.
func (q *backlog) push(m *redis.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		return false
	}
	q.items = append(q.items, m)
	return true
}

// drain empties the backlog and returns everything it held, in
// admission order, so the caller can hand them to the write loop.
func (q *backlog) drain() []*redis.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *backlog) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// failAll fails every currently-backlogged message with err. The
// bridge calls it only on Close.
func (q *backlog) failAll(err error) {
	for _, m := range q.drain() {
		m.MarkFailed(err)
	}
}

// inflight is the FIFO of messages written to the socket and awaiting
// a reply -- queue 2 of §4.D. Replies arrive in write order, so a
// plain slice-backed queue popped from the front on every decoded
// frame reconstructs the pairing without an id or sequence number in
// the wire format.
type inflight struct {
	mu    sync.Mutex
	items []*redis.Message
}

func (q *inflight) push(m *redis.Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
}

// popFront removes and returns the oldest awaiting message, or false
// if none is outstanding -- Bridge.dispatch drops an unsolicited frame
// that arrives with an empty in-flight queue.
func (q *inflight) popFront() (*redis.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

// drainAll empties the in-flight queue, used when the read loop fails
// the connection and every awaiting message's outcome becomes unknown.
func (q *inflight) drainAll() []*redis.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *inflight) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// cancelOverdue invokes cancel for every still-queued message whose
// Deadline has passed, without removing it from the slice -- the slot
// stays exactly where write order put it, so a reply that eventually
// arrives for it is still consumed by the next popFront in the right
// position; Bridge.dispatch's own State() check is what discards that
// reply instead of resolving the caller a second time. Held under the
// same lock popFront/drainAll use, so a message already removed by
// either of those by the time cancelOverdue reaches it is simply not
// visited -- there is no message a sweep and a pop can race over.
func (q *inflight) cancelOverdue(now time.Time, cancel func(*redis.Message)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.items {
		if !m.Deadline.IsZero() && now.After(m.Deadline) {
			cancel(m)
		}
	}
}

// writeReady is queue 3 of §4.D: a single-consumer mailbox feeding the
// write loop. It is a plain buffered channel; the high-watermark
// backpressure described in §4.D is enforced by Submit checking len()
// against Options.HighWatermark before sending, not by the channel's
// own capacity, since a high-priority message must still get through
// past the watermark.
type writeReady struct {
	ch chan *redis.Message
}

func newWriteReady(capacity int) *writeReady {
	return &writeReady{ch: make(chan *redis.Message, capacity)}
}

func (w *writeReady) depth() int { return len(w.ch) }
