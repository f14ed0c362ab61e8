package mux

import (
	"bytes"
	"strconv"
	"sync"

	"github.com/redikit/redikit/redis"
)

// ConditionKind tags the closed set of Condition shapes, per §9
// "condition kinds ... as tagged variants".
type ConditionKind int

const (
	CondExists ConditionKind = iota
	CondHashExists
	CondEquals
	CondLength
	CondRangeLength
	CondStartsWith
	CondScore
	CondLexPrefix
)

// Condition is a read check plus an expected-result predicate,
// evaluated against WATCHed keys before a transaction's body is
// allowed to MULTI/EXEC, per §4.F "Transactions (optimistic)".
// Constructors below are the only way to build one, keeping the kind
// set closed.
type Condition struct {
	Kind    ConditionKind
	Key     []byte
	request redis.Request
	check   func(res interface{}) (bool, error)
}

// ConditionExists checks key exists via EXISTS.
func ConditionExists(key []byte) Condition {
	return Condition{Kind: CondExists, Key: key,
		request: redis.Req("EXISTS", key),
		check:   func(res interface{}) (bool, error) { return intResult(res, func(n int64) bool { return n > 0 }) },
	}
}

// ConditionHashExists checks a hash field exists via HEXISTS.
func ConditionHashExists(key, field []byte) Condition {
	return Condition{Kind: CondHashExists, Key: key,
		request: redis.Req("HEXISTS", key, field),
		check:   func(res interface{}) (bool, error) { return intResult(res, func(n int64) bool { return n > 0 }) },
	}
}

// ConditionEquals checks key's string value equals want via GET.
func ConditionEquals(key, want []byte) Condition {
	return Condition{Kind: CondEquals, Key: key,
		request: redis.Req("GET", key),
		check: func(res interface{}) (bool, error) {
			b, err := bytesResult(res)
			if err != nil {
				return false, err
			}
			return bytes.Equal(b, want), nil
		},
	}
}

// ConditionLength checks lengthCmd (LLEN/HLEN/SCARD/ZCARD/STRLEN) of
// key equals n exactly.
func ConditionLength(lengthCmd string, key []byte, n int) Condition {
	return Condition{Kind: CondLength, Key: key,
		request: redis.Req(lengthCmd, key),
		check:   func(res interface{}) (bool, error) { return intResult(res, func(got int64) bool { return got == int64(n) }) },
	}
}

// ConditionRangeLength checks lengthCmd's result falls in [min, max].
func ConditionRangeLength(lengthCmd string, key []byte, min, max int) Condition {
	return Condition{Kind: CondRangeLength, Key: key,
		request: redis.Req(lengthCmd, key),
		check: func(res interface{}) (bool, error) {
			return intResult(res, func(got int64) bool { return got >= int64(min) && got <= int64(max) })
		},
	}
}

// ConditionStartsWith checks key's string value has the given prefix
// via GET.
func ConditionStartsWith(key, prefix []byte) Condition {
	return Condition{Kind: CondStartsWith, Key: key,
		request: redis.Req("GET", key),
		check: func(res interface{}) (bool, error) {
			b, err := bytesResult(res)
			if err != nil {
				return false, err
			}
			return bytes.HasPrefix(b, prefix), nil
		},
	}
}

// ConditionScore checks a sorted set member's score equals want via
// ZSCORE.
func ConditionScore(key, member []byte, want float64) Condition {
	return Condition{Kind: CondScore, Key: key,
		request: redis.Req("ZSCORE", key, member),
		check: func(res interface{}) (bool, error) {
			b, err := bytesResult(res)
			if err != nil {
				return false, err
			}
			if b == nil {
				return false, nil
			}
			got, err := strconv.ParseFloat(string(b), 64)
			if err != nil {
				return false, redis.ErrProtocolDecode.Wrap(err, "ZSCORE reply")
			}
			return got == want, nil
		},
	}
}

// ConditionLexPrefix probes whether any sorted-set member starts with
// prefix, via ZRANGEBYLEX's lexicographic range query (the "prefix
// probe" named in §4.F) bounded to one result.
func ConditionLexPrefix(key, prefix []byte) Condition {
	upper := append(append([]byte(nil), prefix...), 0xff)
	return Condition{Kind: CondLexPrefix, Key: key,
		request: redis.Req("ZRANGEBYLEX", key, "["+string(prefix), "["+string(upper), "LIMIT", 0, 1),
		check: func(res interface{}) (bool, error) {
			arr, ok := res.([]interface{})
			if !ok {
				if err, ok := res.(error); ok {
					return false, err
				}
				return false, redis.ErrProtocolDecode.New("unexpected ZRANGEBYLEX reply shape")
			}
			return len(arr) > 0, nil
		},
	}
}

func intResult(res interface{}, pred func(int64) bool) (bool, error) {
	if err, ok := res.(error); ok {
		return false, err
	}
	n, ok := res.(int64)
	if !ok {
		return false, redis.ErrProtocolDecode.New("expected integer reply, got %T", res)
	}
	return pred(n), nil
}

func bytesResult(res interface{}) ([]byte, error) {
	if err, ok := res.(error); ok {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	b, ok := res.([]byte)
	if !ok {
		return nil, redis.ErrProtocolDecode.New("expected bulk string reply, got %T", res)
	}
	return b, nil
}

// ConditionResult records whether a Condition held when evaluated.
type ConditionResult struct {
	Condition Condition
	Satisfied bool
	Err       error
}

// TransactionResult is the outcome of RunTransaction.
type TransactionResult struct {
	// Executed is true only if every Condition held and EXEC did not
	// return nil (the watched set held server-side too).
	Executed bool
	// Results holds each body command's converted result, in order,
	// only when Executed is true.
	Results    []interface{}
	Conditions []ConditionResult
}

// RunTransaction implements §4.F's optimistic transaction: WATCH every
// condition key, evaluate conditions, and only if all hold issue
// MULTI/body/EXEC -- all against one endpoint, matching "All commands
// in a transaction's body MUST map to the same server endpoint".
//
// The condition reads happen on the same physical bridge connection as
// the eventual MULTI/EXEC but are not batched atomically with it (a
// round trip is required in between to evaluate predicates before
// deciding whether to proceed) -- a second logical transaction sharing
// this Database's bridge could in principle interleave its own
// WATCH/MULTI between this one's WATCH and MULTI. Serializing every
// transaction onto a dedicated connection would close that gap but
// costs a connection per concurrent transaction; this client accepts
// the same multiplexed-connection tradeoff the teacher's redisconn
// makes everywhere else. Every Database of a Multiplexer shares the
// same endpoint bridges, so moving a transaction to another Database
// does not close the gap.
func (d *Database) RunTransaction(conditions []Condition, body []redis.Request) (TransactionResult, error) {
	if len(conditions) == 0 {
		return d.runBodyOnly(body)
	}

	ep, err := d.routeCombined(conditions, body)
	if err != nil {
		return TransactionResult{}, err
	}

	watchKeys := make([]interface{}, 0, len(conditions))
	seen := make(map[string]bool)
	for _, c := range conditions {
		if !seen[string(c.Key)] {
			seen[string(c.Key)] = true
			watchKeys = append(watchKeys, c.Key)
		}
	}
	watch := redis.NewMessage(redis.Req("WATCH", watchKeys...), redis.FlagNoRedirect, redis.Void, nil)
	watch.DB = d.index
	ep.Interactive.Submit(watch)

	results := make([]interface{}, len(conditions))
	var wg sync.WaitGroup
	wg.Add(len(conditions))
	for i, c := range conditions {
		msg := redis.NewMessage(c.request, redis.FlagNoRedirect, redis.Generic, &waitGroupFuture{wg: &wg, out: results, idx: i})
		msg.DB = d.index
		ep.Interactive.Submit(msg)
	}
	wg.Wait()

	condResults := make([]ConditionResult, len(conditions))
	allSatisfied := true
	for i, c := range conditions {
		ok, cerr := c.check(results[i])
		condResults[i] = ConditionResult{Condition: c, Satisfied: ok, Err: cerr}
		if cerr != nil || !ok {
			allSatisfied = false
		}
	}

	if !allSatisfied {
		unwatch := redis.NewMessage(redis.Req("UNWATCH"), redis.FlagFireAndForget|redis.FlagNoRedirect, redis.Void, nil)
		unwatch.DB = d.index
		ep.Interactive.Submit(unwatch)
		return TransactionResult{Executed: false, Conditions: condResults}, nil
	}

	execResult, err := d.runBatch(ep, body)
	if err != nil {
		return TransactionResult{Conditions: condResults}, err
	}
	if execResult == nil {
		return TransactionResult{Executed: false, Conditions: condResults}, nil
	}
	return TransactionResult{Executed: true, Results: execResult, Conditions: condResults}, nil
}

// runBodyOnly handles a condition-free transaction: a plain MULTI/
// body/EXEC with no WATCH, per "MULTI; EXEC with no body returns an
// empty array and no side effects" extended to "no conditions".
func (d *Database) runBodyOnly(body []redis.Request) (TransactionResult, error) {
	if len(body) == 0 {
		return TransactionResult{Executed: true, Results: []interface{}{}}, nil
	}
	ep, err := d.routeCombined(nil, body)
	if err != nil {
		return TransactionResult{}, err
	}
	execResult, err := d.runBatch(ep, body)
	if err != nil {
		return TransactionResult{}, err
	}
	if execResult == nil {
		return TransactionResult{Executed: false}, nil
	}
	return TransactionResult{Executed: true, Results: execResult}, nil
}

func (d *Database) runBatch(ep *Endpoint, body []redis.Request) ([]interface{}, error) {
	done := make(chan struct {
		res interface{}
	}, 1)
	batch := make([]*redis.Message, 0, len(body)+2)
	batch = append(batch, redis.NewMessage(redis.Req("MULTI"), redis.FlagNoRedirect|redis.FlagHighPriority, redis.Void, nil))
	for _, req := range body {
		batch = append(batch, redis.NewMessage(req, redis.FlagNoRedirect, redis.Void, nil))
	}
	exec := redis.NewMessage(redis.Req("EXEC"), redis.FlagNoRedirect, redis.Generic,
		redis.FuncFuture(func(res interface{}, _ uint64) {
			done <- struct {
				res interface{}
			}{res}
		}))
	batch = append(batch, exec)
	for _, m := range batch {
		m.DB = d.index
	}
	ep.Interactive.SubmitBatch(batch)

	outcome := <-done
	return redis.TransactionResponse(outcome.res)
}

// routeCombined resolves every condition and body key to an endpoint,
// requiring they all agree -- ErrMultiKeyOnDifferentServers otherwise.
func (d *Database) routeCombined(conditions []Condition, body []redis.Request) (*Endpoint, error) {
	var chosen *Endpoint
	route := func(req redis.Request) error {
		probe := redis.NewMessage(req, 0, redis.Void, nil)
		probe.DB = d.index
		ep, err := d.mx.strategy.Route(probe)
		if err != nil {
			return err
		}
		if chosen == nil {
			chosen = ep
			return nil
		}
		if ep.Addr != chosen.Addr {
			return redis.ErrMultiKeyOnDifferentServers.New(
				"transaction spans %s and %s", chosen.Addr, ep.Addr)
		}
		return nil
	}
	for _, c := range conditions {
		if err := route(c.request); err != nil {
			return nil, err
		}
	}
	for _, req := range body {
		if err := route(req); err != nil {
			return nil, err
		}
	}
	if chosen == nil {
		return nil, redis.ErrNoEndpoint.New("transaction has no routable commands")
	}
	return chosen, nil
}

// waitGroupFuture resolves a WaitGroup slot with a condition read's
// result, for RunTransaction's synchronous evaluation phase.
type waitGroupFuture struct {
	wg  *sync.WaitGroup
	out []interface{}
	idx int
}

func (f *waitGroupFuture) Resolve(res interface{}, _ uint64) {
	f.out[f.idx] = res
	f.wg.Done()
}

func (f *waitGroupFuture) Cancelled() bool { return false }
