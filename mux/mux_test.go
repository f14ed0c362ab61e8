package mux_test

import (
	"testing"
	"time"

	"github.com/redikit/redikit/mux"
	"github.com/redikit/redikit/redis"
	"github.com/redikit/redikit/redistest"
)

func TestMultiplexerSendRoundTrips(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())

	sync := redis.Sync{S: mx}
	if res := sync.Do("SET", "k", "v"); redis.AsError(res) != nil {
		t.Fatalf("SET: %v", res)
	}
	if res := sync.Do("GET", "k"); string(res.([]byte)) != "v" {
		t.Fatalf("GET: got %q", res)
	}
}

func TestMultiplexerSendTransaction(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())

	sync := redis.Sync{S: mx}
	results, err := sync.SendTransaction([]redis.Request{
		redis.Req("SET", "a{x}", "1"),
		redis.Req("INCR", "a{x}"),
	})
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].(int64) != 2 {
		t.Fatalf("expected INCR to return 2, got %v", results[1])
	}
}

func TestMultiplexerEachShardVisitsPrimary(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())

	var seen int
	mx.EachShard(func(snd redis.Sender, err error) bool {
		if err != nil {
			t.Fatalf("EachShard: %v", err)
		}
		seen++
		sync := redis.Sync{S: snd}
		if res := sync.Do("PING"); redis.AsError(res) != nil {
			t.Fatalf("PING: %v", res)
		}
		return true
	})
	if seen != 1 {
		t.Fatalf("expected exactly one shard for a standalone topology, got %d", seen)
	}
}

func TestMultiplexerCloseRejectsFurtherWork(t *testing.T) {
	mr := redistest.Start(t)
	cfg := redistest.StandaloneConfig(mr.Addr())
	mx, err := mux.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	mx.Close()

	sync := redis.Sync{S: mx}
	if res := sync.Do("PING"); redis.AsError(res) == nil {
		t.Fatalf("expected an error after Close, got %v", res)
	}
}

func TestMultiplexerReconfigureCoalesces(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() { done <- mx.Reconfigure() }()
	}
	deadline := time.After(time.Second)
	for i := 0; i < 4; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Reconfigure: %v", err)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for concurrent Reconfigure calls")
		}
	}
}
