package mux_test

import (
	"testing"
	"time"

	"github.com/redikit/redikit/redistest"
)

func TestSubscriberDeliversPublishedMessage(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())

	received := make(chan []byte, 1)
	cancel, err := mx.GetSubscriber().Subscribe("news", func(pattern, channel string, payload []byte) {
		if channel != "news" {
			t.Errorf("expected channel %q, got %q", "news", channel)
		}
		received <- payload
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	redistest.WaitFor(t, time.Second, func() bool {
		return mr.Publish("news", "hello") > 0
	})

	select {
	case payload := <-received:
		if string(payload) != "hello" {
			t.Fatalf("expected payload %q, got %q", "hello", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestSubscriberSSubscribeIssuesShardVerbs(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())

	noop := func(pattern, channel string, payload []byte) {}

	cancel1, err := mx.GetSubscriber().SSubscribe("shard-news", noop)
	if err != nil {
		t.Fatalf("SSubscribe 1: %v", err)
	}
	cancel2, err := mx.GetSubscriber().SSubscribe("shard-news", noop)
	if err != nil {
		t.Fatalf("SSubscribe 2: %v", err)
	}

	// Cancelling the first registration must not tear down the shard
	// channel's wire SSUBSCRIBE while the second is still registered.
	cancel1()
	cancel2()
}

func TestSubscriberRefcountsSharedChannel(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())

	noop := func(pattern, channel string, payload []byte) {}

	cancel1, err := mx.GetSubscriber().Subscribe("shared", noop)
	if err != nil {
		t.Fatalf("Subscribe 1: %v", err)
	}
	cancel2, err := mx.GetSubscriber().Subscribe("shared", noop)
	if err != nil {
		t.Fatalf("Subscribe 2: %v", err)
	}

	// Cancelling the first registration must not tear down the
	// channel's wire SUBSCRIBE while the second is still registered.
	cancel1()
	redistest.WaitFor(t, time.Second, func() bool {
		return mr.Publish("shared", "x") > 0
	})

	// Cancelling the last registration must UNSUBSCRIBE cleanly.
	cancel2()
}
