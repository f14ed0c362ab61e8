package mux_test

import (
	"testing"

	"github.com/redikit/redikit/mux"
	"github.com/redikit/redikit/redis"
	"github.com/redikit/redikit/redistest"
)

func TestRunTransactionExecutesWhenConditionHolds(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())
	db := mx.GetDatabase(0)

	if err := mr.Set("balance{acct}", "100"); err != nil {
		t.Fatalf("miniredis Set: %v", err)
	}

	result, err := db.RunTransaction(
		[]mux.Condition{mux.ConditionEquals([]byte("balance{acct}"), []byte("100"))},
		[]redis.Request{redis.Req("DECRBY", "balance{acct}", 10)},
	)
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	if !result.Executed {
		t.Fatalf("expected transaction to execute, conditions: %+v", result.Conditions)
	}
	if result.Results[0].(int64) != 90 {
		t.Fatalf("expected DECRBY to return 90, got %v", result.Results[0])
	}
	if got, _ := mr.Get("balance{acct}"); got != "90" {
		t.Fatalf("expected miniredis balance 90, got %q", got)
	}
}

func TestRunTransactionAbortsWhenConditionFails(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())
	db := mx.GetDatabase(0)

	if err := mr.Set("balance{acct}", "50"); err != nil {
		t.Fatalf("miniredis Set: %v", err)
	}

	result, err := db.RunTransaction(
		[]mux.Condition{mux.ConditionEquals([]byte("balance{acct}"), []byte("100"))},
		[]redis.Request{redis.Req("DECRBY", "balance{acct}", 10)},
	)
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	if result.Executed {
		t.Fatalf("expected transaction to abort on mismatched condition")
	}
	if got, _ := mr.Get("balance{acct}"); got != "50" {
		t.Fatalf("expected balance untouched, got %q", got)
	}
}

func TestRunTransactionEmptyIsNoOp(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())
	db := mx.GetDatabase(0)

	result, err := db.RunTransaction(nil, nil)
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	if !result.Executed || len(result.Results) != 0 {
		t.Fatalf("expected an empty, executed result for a no-condition no-body transaction, got %+v", result)
	}
}

func TestRunTransactionNoConditionsRunsBody(t *testing.T) {
	mr := redistest.Start(t)
	mx := redistest.Connect(t, mr.Addr())
	db := mx.GetDatabase(0)

	result, err := db.RunTransaction(nil, []redis.Request{
		redis.Req("SET", "k{x}", "v"),
		redis.Req("GET", "k{x}"),
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	if !result.Executed {
		t.Fatalf("expected unconditional transaction to execute")
	}
	if string(result.Results[1].([]byte)) != "v" {
		t.Fatalf("expected GET to return v, got %v", result.Results[1])
	}
}
