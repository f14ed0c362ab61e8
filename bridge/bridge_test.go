package bridge_test

import (
	"testing"
	"time"

	"github.com/redikit/redikit/bridge"
	"github.com/redikit/redikit/redis"
	"github.com/redikit/redikit/redistest"
)

func TestBridgeConnectsAndRoundTrips(t *testing.T) {
	mr := redistest.Start(t)
	b := bridge.New(mr.Addr(), bridge.Options{}, nil, nil)
	defer b.Close(false)

	redistest.WaitReady(t, b, time.Second)

	resultc := make(chan interface{}, 1)
	msg := redis.NewMessage(redis.Req("SET", "greeting", "hello"), 0, redis.Void,
		redis.FuncFuture(func(res interface{}, _ uint64) { resultc <- res }))
	b.Submit(msg)

	select {
	case res := <-resultc:
		if err, ok := res.(error); ok {
			t.Fatalf("SET failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for SET reply")
	}

	if got, err := mr.Get("greeting"); err != nil || got != "hello" {
		t.Fatalf("expected miniredis to hold the written value, got %q err=%v", got, err)
	}
}

func TestBridgeFailFastRejectsWhileDisconnected(t *testing.T) {
	b := bridge.New("127.0.0.1:1", bridge.Options{BacklogPolicy: bridge.FailFast}, nil, nil)
	defer b.Close(false)

	resultc := make(chan interface{}, 1)
	msg := redis.NewMessage(redis.Req("PING"), 0, redis.Void,
		redis.FuncFuture(func(res interface{}, _ uint64) { resultc <- res }))
	b.Submit(msg)

	select {
	case res := <-resultc:
		if _, ok := res.(error); !ok {
			t.Fatalf("expected FailFast to reject with an error, got %v", res)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for rejection")
	}
}

func TestBridgeClosePreventsFurtherSubmits(t *testing.T) {
	mr := redistest.Start(t)
	b := bridge.New(mr.Addr(), bridge.Options{}, nil, nil)
	redistest.WaitReady(t, b, time.Second)
	b.Close(false)

	resultc := make(chan interface{}, 1)
	msg := redis.NewMessage(redis.Req("PING"), 0, redis.Void,
		redis.FuncFuture(func(res interface{}, _ uint64) { resultc <- res }))
	b.Submit(msg)

	select {
	case res := <-resultc:
		if _, ok := res.(error); !ok {
			t.Fatalf("expected a disposed error after Close, got %v", res)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for post-close rejection")
	}
}
