package redis

import (
	"testing"

	"github.com/redikit/redikit/resp"
)

func TestBoolFromOK(t *testing.T) {
	r := BoolFromOK.TryProcess(resp.RawResult{Kind: resp.KindSimpleString, Bytes: []byte("OK")})
	if r.Status != Completed || r.Value != true {
		t.Fatalf("expected true, got %+v", r)
	}
	r = BoolFromOK.TryProcess(resp.RawResult{Kind: resp.KindSimpleString, Bytes: []byte("QUEUED")})
	if r.Value != false {
		t.Fatalf("expected false for non-OK simple string, got %+v", r)
	}
}

func TestClassifyErrorMoved(t *testing.T) {
	r := classifyError(resp.RawResult{Kind: resp.KindError, Bytes: []byte("MOVED 16287 host2:6380")})
	if r.Status != NeedRedirect || r.Redirect == nil || r.Redirect.Slot != 16287 || r.Redirect.Addr != "host2:6380" {
		t.Fatalf("MOVED not classified correctly: %+v", r)
	}
}

func TestClassifyErrorAsk(t *testing.T) {
	r := classifyError(resp.RawResult{Kind: resp.KindError, Bytes: []byte("ASK 100 host3:6381")})
	if r.Status != NeedRedirect || !r.Redirect.Ask {
		t.Fatalf("ASK not classified correctly: %+v", r)
	}
}

func TestClassifyErrorGeneric(t *testing.T) {
	r := classifyError(resp.RawResult{Kind: resp.KindError, Bytes: []byte("WRONGTYPE operation against a key")})
	if r.Status != Failed || r.Err == nil {
		t.Fatalf("expected Failed for generic server error: %+v", r)
	}
}

func TestMapPairsFromFlattenedArray(t *testing.T) {
	raw := resp.RawResult{Kind: resp.KindArray, Array: []resp.RawResult{
		{Kind: resp.KindBulkString, Bytes: []byte("a")},
		{Kind: resp.KindBulkString, Bytes: []byte("1")},
	}}
	r := MapPairs.TryProcess(raw)
	m := r.Value.(map[string][]byte)
	if string(m["a"]) != "1" {
		t.Fatalf("map pairs mismatch: %+v", m)
	}
}

func TestBytesNullableDistinguishesNullFromEmpty(t *testing.T) {
	r := BytesNullable.TryProcess(resp.RawResult{Kind: resp.KindNull, IsNull: true})
	if r.Value.([]byte) != nil {
		t.Fatalf("expected nil for null bulk string")
	}
	r = BytesNullable.TryProcess(resp.RawResult{Kind: resp.KindBulkString, Bytes: []byte{}})
	if r.Value.([]byte) == nil {
		t.Fatalf("empty bulk string must not become nil")
	}
}
