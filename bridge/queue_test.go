package bridge

import (
	"testing"
	"time"

	"github.com/redikit/redikit/redis"
)

func newTestMessage() *redis.Message {
	return redis.NewMessage(redis.Req("PING"), 0, redis.Void, redis.FuncFuture(func(interface{}, uint64) {}))
}

func TestBacklogRespectsCapacity(t *testing.T) {
	q := newBacklog(2)
	if !q.push(newTestMessage()) || !q.push(newTestMessage()) {
		t.Fatalf("expected first two pushes to be admitted")
	}
	if q.push(newTestMessage()) {
		t.Fatalf("expected third push to be rejected at capacity")
	}
	if q.len() != 2 {
		t.Fatalf("expected len 2, got %d", q.len())
	}
}

func TestBacklogDrainEmptiesInOrder(t *testing.T) {
	q := newBacklog(4)
	a, b := newTestMessage(), newTestMessage()
	q.push(a)
	q.push(b)
	items := q.drain()
	if len(items) != 2 || items[0] != a || items[1] != b {
		t.Fatalf("drain did not preserve admission order")
	}
	if q.len() != 0 {
		t.Fatalf("expected backlog empty after drain")
	}
}

func TestBacklogFailAllResolvesSinks(t *testing.T) {
	q := newBacklog(4)
	var got interface{}
	msg := redis.NewMessage(redis.Req("PING"), 0, redis.Void, redis.FuncFuture(func(res interface{}, _ uint64) {
		got = res
	}))
	q.push(msg)
	q.failAll(redis.ErrObjectDisposed.New("closed"))
	if msg.State() != redis.StateFailed {
		t.Fatalf("expected message to be failed, got %s", msg.State())
	}
	if got == nil {
		t.Fatalf("expected sink to be resolved with an error")
	}
}

func TestInflightFIFOOrder(t *testing.T) {
	q := &inflight{}
	a, b, c := newTestMessage(), newTestMessage(), newTestMessage()
	q.push(a)
	q.push(b)
	q.push(c)
	for _, want := range []*redis.Message{a, b, c} {
		got, ok := q.popFront()
		if !ok || got != want {
			t.Fatalf("expected FIFO order to be preserved")
		}
	}
	if _, ok := q.popFront(); ok {
		t.Fatalf("expected empty queue to report false")
	}
}

// TestInflightCancelOverdueTombstonesWithoutRemoving drives a message
// past its Deadline while it is awaiting a reply and checks that
// cancelOverdue resolves its sink with a timeout and flips it to
// Cancelled, but leaves the FIFO slot in place so a reply arriving
// after the sweep is discarded by the caller's own State() check
// instead of resolving the sink a second time.
func TestInflightCancelOverdueTombstonesWithoutRemoving(t *testing.T) {
	q := &inflight{}
	var resolved int
	overdue := redis.NewMessage(redis.Req("GET", "k"), 0, redis.Void, redis.FuncFuture(func(interface{}, uint64) {
		resolved++
	}))
	overdue.Deadline = time.Now().Add(-time.Second)
	fresh := newTestMessage()

	q.push(overdue)
	q.push(fresh)

	q.cancelOverdue(time.Now(), func(m *redis.Message) {
		m.MarkCancelled(redis.ErrTimeoutAfterWrite.New("deadline exceeded while awaiting reply"))
	})

	if overdue.State() != redis.StateCancelled {
		t.Fatalf("expected overdue message to be Cancelled, got %s", overdue.State())
	}
	if resolved != 1 {
		t.Fatalf("expected sink resolved exactly once, got %d", resolved)
	}
	if fresh.State() != redis.StateCreated {
		t.Fatalf("expected untouched message to be unaffected, got %s", fresh.State())
	}
	if q.len() != 2 {
		t.Fatalf("expected cancelOverdue to leave both slots in place, got len %d", q.len())
	}

	// The real reply now arrives: popFront still yields the tombstoned
	// message in its original FIFO position, and the caller (mirroring
	// Bridge.dispatch) must discard it rather than resolve again.
	got, ok := q.popFront()
	if !ok || got != overdue {
		t.Fatalf("expected tombstoned message to still occupy its FIFO slot")
	}
	if got.State() == redis.StateCancelled && resolved != 1 {
		t.Fatalf("dispatch-style discard must not re-resolve the sink")
	}
}

func TestInflightDrainAll(t *testing.T) {
	q := &inflight{}
	q.push(newTestMessage())
	q.push(newTestMessage())
	if len(q.drainAll()) != 2 {
		t.Fatalf("expected drainAll to return both messages")
	}
	if q.len() != 0 {
		t.Fatalf("expected queue empty after drainAll")
	}
}
