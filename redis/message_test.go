package redis

import "testing"

func TestMessageLifecycleMonotonic(t *testing.T) {
	m := NewMessage(Req("GET", "foo"), 0, Void, FuncFuture(func(interface{}, uint64) {}))
	if m.State() != StateCreated {
		t.Fatalf("expected Created, got %s", m.State())
	}
	m.MarkQueued()
	if m.State() != StateQueued || m.EnqueueTick.Before(m.CreationTick) {
		t.Fatalf("queued tick out of order")
	}
	m.MarkWritten()
	if m.SendTick.Before(m.EnqueueTick) {
		t.Fatalf("send tick out of order")
	}
	m.MarkAwaitingReply()
	m.MarkCompleted("OK")
	if m.State() != StateCompleted {
		t.Fatalf("expected Completed, got %s", m.State())
	}
}

func TestMessageTerminalTransitionPanics(t *testing.T) {
	m := NewMessage(Req("PING"), 0, Void, FuncFuture(func(interface{}, uint64) {}))
	m.MarkCompleted(nil)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic transitioning out of a terminal state")
		}
	}()
	m.MarkFailed(nil)
}

func TestMessageMarkCancelledResolvesSinkOnce(t *testing.T) {
	var resolved int
	var lastErr error
	m := NewMessage(Req("GET", "foo"), 0, Void, FuncFuture(func(v interface{}, _ uint64) {
		resolved++
		lastErr, _ = v.(error)
	}))
	m.MarkQueued()
	if !m.MarkCancelled(ErrTimeoutBeforeWrite.New("deadline exceeded")) {
		t.Fatalf("expected cancellation to take effect from Queued")
	}
	if m.State() != StateCancelled {
		t.Fatalf("expected Cancelled, got %s", m.State())
	}
	if resolved != 1 || lastErr == nil {
		t.Fatalf("expected sink resolved once with an error, got resolved=%d err=%v", resolved, lastErr)
	}
	// A reply arriving after the deadline swept the message must not
	// resolve the sink a second time.
	if m.MarkCancelled(ErrTimeoutBeforeWrite.New("second cancel")) {
		t.Fatalf("cancel from a terminal state must report no-op")
	}
	if resolved != 1 {
		t.Fatalf("sink resolved more than once: %d", resolved)
	}
}

func TestHashTagEmptyFallsBackToFullKey(t *testing.T) {
	if string(HashTag([]byte("{}foo"))) != "{}foo" {
		t.Fatalf("empty hash tag should fall back to the whole key")
	}
	if string(HashTag([]byte("{x}foo"))) != "x" {
		t.Fatalf("hash tag extraction failed")
	}
	if string(HashTag([]byte("foo"))) != "foo" {
		t.Fatalf("key with no braces should hash whole key")
	}
}

func TestRequestKeyExtraction(t *testing.T) {
	if k, ok := Req("GET", "foo").Key(); !ok || string(k) != "foo" {
		t.Fatalf("GET key extraction failed: %v %v", k, ok)
	}
	if _, ok := Req("RANDOMKEY").Key(); ok {
		t.Fatalf("RANDOMKEY must report no key")
	}
	if k, ok := Req("EVAL", "script", "k1").Key(); !ok || string(k) != "k1" {
		t.Fatalf("EVAL key extraction failed: %v %v", k, ok)
	}
}
