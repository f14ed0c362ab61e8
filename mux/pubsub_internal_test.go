package mux

import (
	"testing"
	"time"

	"github.com/redikit/redikit/resp"
)

// TestPubsubRouterDispatchesShardMessage exercises onPush's "smessage"
// classification directly, without a live endpoint: sharded pub/sub
// deliveries must fan out to subShardChannel handlers the same way
// "message" fans out to subChannel ones.
func TestPubsubRouterDispatchesShardMessage(t *testing.T) {
	r := newPubsubRouter(nil)
	defer r.close()

	received := make(chan []byte, 1)
	r.subs[subKey{subShardChannel, "shard-chan"}] = &subEntry{
		handlers: []handlerToken{{id: 1, h: func(pattern, channel string, payload []byte) {
			received <- payload
		}}},
	}

	r.onPush(resp.RawResult{Kind: resp.KindPush, Array: []resp.RawResult{
		{Kind: resp.KindBulkString, Bytes: []byte("smessage")},
		{Kind: resp.KindBulkString, Bytes: []byte("shard-chan")},
		{Kind: resp.KindBulkString, Bytes: []byte("payload")},
	}})

	select {
	case payload := <-received:
		if string(payload) != "payload" {
			t.Fatalf("expected payload %q, got %q", "payload", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for smessage dispatch")
	}
}
