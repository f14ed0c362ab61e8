package redikit_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redikit/redikit"
	"github.com/redikit/redikit/mux"
	"github.com/redikit/redikit/redis"
)

func Example_usage() {
	ctx := context.Background()

	cfg := &mux.Config{
		Endpoints: []string{"127.0.0.1:6379"},
		Topology:  mux.Standalone,
	}
	mx, err := redikit.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer mx.Close()

	sync := redis.SyncCtx{S: mx} // wrapper for synchronous api

	res := sync.Do(ctx, "SET", "key", "ho")
	if err := redis.AsError(res); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("result: %q\n", res)

	res = sync.Do(ctx, "GET", "key")
	if err := redis.AsError(res); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("result: %q\n", res)

	results, err := sync.SendTransaction(ctx, []redis.Request{
		redis.Req("SET", "a{x}", "b"),
		redis.Req("SET", "b{x}", 0),
		redis.Req("INCRBY", "b{x}", 3),
	})
	if err != nil {
		log.Fatal(err)
	}
	for i, res := range results {
		fmt.Printf("tresult[%d]: %T %q\n", i, res, res)
	}

	// Output:
	// result: "OK"
	// result: "ho"
	// tresult[0]: string "OK"
	// tresult[1]: string "OK"
	// tresult[2]: int64 '\x03'
}

// Example_conditionalTransaction shows an optimistic transaction that
// only runs its body once a WATCHed key's value still matches what the
// caller last observed.
func Example_conditionalTransaction() {
	cfg := &mux.Config{
		Endpoints: []string{"127.0.0.1:6379"},
		Topology:  mux.Standalone,
	}
	mx, err := redikit.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer mx.Close()

	db := mx.GetDatabase(0)
	result, err := db.RunTransaction(
		[]mux.Condition{mux.ConditionEquals([]byte("balance{acct1}"), []byte("100"))},
		[]redis.Request{redis.Req("DECRBY", "balance{acct1}", 10)},
	)
	if err != nil {
		log.Fatal(err)
	}
	if !result.Executed {
		fmt.Println("balance changed since last read, aborting")
		return
	}
	fmt.Printf("new balance: %v\n", result.Results[0])
}

// Example_pubsub shows subscribing to a channel and later cancelling
// that subscription.
func Example_pubsub() {
	cfg := &mux.Config{
		Endpoints: []string{"127.0.0.1:6379"},
		Topology:  mux.Standalone,
	}
	mx, err := redikit.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer mx.Close()

	received := make(chan []byte, 1)
	cancel, err := mx.GetSubscriber().Subscribe("notifications", func(pattern, channel string, payload []byte) {
		received <- payload
	})
	if err != nil {
		log.Fatal(err)
	}
	defer cancel()

	select {
	case <-received:
	case <-time.After(time.Second):
	}
}
