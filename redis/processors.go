package redis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joomcode/errorx"

	"github.com/redikit/redikit/resp"
)

// ProcessStatus is the outcome TryProcess reports for one RawResult.
type ProcessStatus int

const (
	// Completed means Value holds the final caller-visible result.
	Completed ProcessStatus = iota
	// NeedRedirect means the server replied MOVED or ASK; Redirect
	// carries the target endpoint and slot.
	NeedRedirect
	// NeedRetry means a transient server condition (LOADING, TRYAGAIN,
	// CLUSTERDOWN) warrants an unconditional retry against the same
	// endpoint after the strategy's backoff.
	NeedRetry
	// NeedScriptLoad means an EVALSHA got NOSCRIPT; the caller should
	// issue SCRIPT LOAD for the matching cached body and retry the
	// original EVALSHA, per §7's "NOSCRIPT triggers automatic SCRIPT
	// LOAD + retry".
	NeedScriptLoad
	// Failed means the result is a terminal error.
	Failed
)

// Redirect describes a MOVED/ASK target.
type Redirect struct {
	Ask  bool
	Slot int
	Addr string
}

// ProcessResult is what a Processor produces from one RawResult.
type ProcessResult struct {
	Status   ProcessStatus
	Value    interface{}
	Redirect *Redirect
	Err      *errorx.Error
}

// Processor converts a decoded RawResult into a caller-visible typed
// value. It is modeled as a closed interface over a function plus a
// small struct of state, per the "processors as tagged variants, not
// open inheritance" design note.
type Processor interface {
	TryProcess(raw resp.RawResult) ProcessResult
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(resp.RawResult) ProcessResult

func (f ProcessorFunc) TryProcess(raw resp.RawResult) ProcessResult { return f(raw) }

// classifyError inspects a KindError RawResult and returns either a
// NeedRedirect/NeedRetry/NeedScriptLoad status (for MOVED/ASK/LOADING/
// TRYAGAIN/CLUSTERDOWN/NOSCRIPT) or a Failed status wrapping the
// matching ErrServer subtype, per the full prefix classification in
// §7 ("MOVED, ASK, CROSSSLOT, LOADING, BUSY, NOAUTH, WRONGPASS,
// READONLY, MASTERDOWN, NOSCRIPT, CLUSTERDOWN, TRYAGAIN, generic").
func classifyError(raw resp.RawResult) ProcessResult {
	msg := string(raw.Bytes)
	switch {
	case strings.HasPrefix(msg, "MOVED "):
		slot, addr := parseRedirect(msg[len("MOVED "):])
		return ProcessResult{Status: NeedRedirect, Redirect: &Redirect{Slot: slot, Addr: addr}}
	case strings.HasPrefix(msg, "ASK "):
		slot, addr := parseRedirect(msg[len("ASK "):])
		return ProcessResult{Status: NeedRedirect, Redirect: &Redirect{Ask: true, Slot: slot, Addr: addr}}
	case strings.HasPrefix(msg, "LOADING"):
		return ProcessResult{Status: NeedRetry, Err: ErrServerLoading.New(msg)}
	case strings.HasPrefix(msg, "TRYAGAIN"):
		return ProcessResult{Status: NeedRetry, Err: ErrServerTryAgain.New(msg)}
	case strings.HasPrefix(msg, "CLUSTERDOWN"):
		return ProcessResult{Status: NeedRetry, Err: ErrServerClusterDown.New(msg)}
	case strings.HasPrefix(msg, "NOSCRIPT"):
		return ProcessResult{Status: NeedScriptLoad, Err: ErrServerNoScript.New(msg)}
	case strings.HasPrefix(msg, "CROSSSLOT"):
		return ProcessResult{Status: Failed, Err: ErrServerCrossSlot.New(msg)}
	case strings.HasPrefix(msg, "BUSY"):
		return ProcessResult{Status: Failed, Err: ErrServerBusy.New(msg)}
	case strings.HasPrefix(msg, "NOAUTH"):
		return ProcessResult{Status: Failed, Err: ErrServerNoAuth.New(msg)}
	case strings.HasPrefix(msg, "WRONGPASS"):
		return ProcessResult{Status: Failed, Err: ErrServerWrongPass.New(msg)}
	case strings.HasPrefix(msg, "READONLY"):
		return ProcessResult{Status: Failed, Err: ErrServerReadOnly.New(msg)}
	case strings.HasPrefix(msg, "MASTERDOWN"):
		return ProcessResult{Status: Failed, Err: ErrServerMasterDown.New(msg)}
	default:
		return ProcessResult{Status: Failed, Err: ErrServer.New(msg)}
	}
}

func parseRedirect(rest string) (int, string) {
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) != 2 {
		return 0, ""
	}
	slot, _ := strconv.Atoi(parts[0])
	return slot, parts[1]
}

// Void discards the value and reports success for anything that isn't
// a server error.
var Void Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	return ProcessResult{Status: Completed}
})

// BoolFromOK treats a "+OK" simple string as true; any other non-error
// reply is false.
var BoolFromOK Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	ok := raw.Kind == resp.KindSimpleString && string(raw.Bytes) == "OK"
	return ProcessResult{Status: Completed, Value: ok}
})

// ZeroOrOneInt adapts a RESP integer (0 or 1) to a bool, the shape
// SETNX/EXPIRE/HEXISTS/SISMEMBER-style commands return.
var ZeroOrOneInt Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	if raw.Kind != resp.KindInteger {
		return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New(fmt.Sprintf("expected integer, got %s", raw.Kind))}
	}
	return ProcessResult{Status: Completed, Value: raw.Int != 0}
})

// Int64 returns the raw signed 64-bit integer.
var Int64 Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	if raw.Kind != resp.KindInteger {
		return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New(fmt.Sprintf("expected integer, got %s", raw.Kind))}
	}
	return ProcessResult{Status: Completed, Value: raw.Int}
})

// Double returns a RESP3 double, or parses a bulk-string/simple-string
// numeric reply for RESP2 servers that encode doubles as strings
// (ZSCORE et al.), including "inf"/"-inf"/"nan".
var Double Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	switch raw.Kind {
	case resp.KindDouble:
		return ProcessResult{Status: Completed, Value: raw.Double}
	case resp.KindBulkString, resp.KindSimpleString:
		v, err := parseFloatLoose(string(raw.Bytes))
		if err != nil {
			return ProcessResult{Status: Failed, Err: ErrProtocolDecode.Wrap(err, "malformed double")}
		}
		return ProcessResult{Status: Completed, Value: v}
	default:
		return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New(fmt.Sprintf("expected double, got %s", raw.Kind))}
	}
})

func parseFloatLoose(s string) (float64, error) {
	switch s {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// BytesNullable returns the bulk string payload, or nil for a RESP
// null -- the two are never conflated by the caller checking for a nil
// []byte versus a zero-length one.
var BytesNullable Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	if raw.Null() {
		return ProcessResult{Status: Completed, Value: []byte(nil)}
	}
	if raw.Kind != resp.KindBulkString && raw.Kind != resp.KindVerbatimString {
		return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New(fmt.Sprintf("expected bulk string, got %s", raw.Kind))}
	}
	return ProcessResult{Status: Completed, Value: raw.Bytes}
})

// ArrayOfBulkStrings converts a RESP array of bulk strings to
// [][]byte, skipping nulls as empty elements the way MGET does.
var ArrayOfBulkStrings Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	if raw.Null() {
		return ProcessResult{Status: Completed, Value: [][]byte(nil)}
	}
	out := make([][]byte, len(raw.Array))
	for i, el := range raw.Array {
		if el.Kind == resp.KindError {
			return classifyError(el)
		}
		out[i] = el.Bytes
	}
	return ProcessResult{Status: Completed, Value: out}
})

// MapPairs converts either a RESP2 flattened array or a RESP3 Map into
// key/value byte-string pairs (HGETALL, CONFIG GET).
var MapPairs Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	if len(raw.Array)%2 != 0 {
		return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New("map reply has odd element count")}
	}
	m := make(map[string][]byte, len(raw.Array)/2)
	for i := 0; i < len(raw.Array); i += 2 {
		m[string(raw.Array[i].Bytes)] = raw.Array[i+1].Bytes
	}
	return ProcessResult{Status: Completed, Value: m}
})

// ScoredMember is one element of a ZRANGE ... WITHSCORES reply.
type ScoredMember struct {
	Member []byte
	Score  float64
}

// SortedSetWithScores converts a flattened member/score array into
// []ScoredMember.
var SortedSetWithScores Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	if len(raw.Array)%2 != 0 {
		return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New("sorted set reply has odd element count")}
	}
	out := make([]ScoredMember, 0, len(raw.Array)/2)
	for i := 0; i < len(raw.Array); i += 2 {
		score, err := parseFloatLoose(string(raw.Array[i+1].Bytes))
		if err != nil {
			return ProcessResult{Status: Failed, Err: ErrProtocolDecode.Wrap(err, "malformed score")}
		}
		out = append(out, ScoredMember{Member: raw.Array[i].Bytes, Score: score})
	}
	return ProcessResult{Status: Completed, Value: out}
})

// GeoPosition is one longitude/latitude pair from GEOPOS.
type GeoPosition struct {
	Longitude, Latitude float64
	Valid                bool
}

// GeoPositions converts a GEOPOS reply (array of 2-element
// arrays-or-null) into []GeoPosition.
var GeoPositions Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	out := make([]GeoPosition, len(raw.Array))
	for i, el := range raw.Array {
		if el.Null() || len(el.Array) != 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(string(el.Array[0].Bytes), 64)
		lat, err2 := strconv.ParseFloat(string(el.Array[1].Bytes), 64)
		if err1 != nil || err2 != nil {
			return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New("malformed geo position")}
		}
		out[i] = GeoPosition{Longitude: lon, Latitude: lat, Valid: true}
	}
	return ProcessResult{Status: Completed, Value: out}
})

// StreamEntry is one XRANGE/XREAD entry: an id plus flattened
// field/value pairs.
type StreamEntry struct {
	ID     string
	Fields map[string][]byte
}

// StreamEntries converts an XRANGE-shaped array (each element a
// 2-element [id, fields] pair) into []StreamEntry.
var StreamEntries Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	out := make([]StreamEntry, 0, len(raw.Array))
	for _, el := range raw.Array {
		if len(el.Array) != 2 {
			return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New("malformed stream entry")}
		}
		fields := el.Array[1].Array
		if len(fields)%2 != 0 {
			return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New("stream entry fields have odd count")}
		}
		m := make(map[string][]byte, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			m[string(fields[i].Bytes)] = fields[i+1].Bytes
		}
		out = append(out, StreamEntry{ID: string(el.Array[0].Bytes), Fields: m})
	}
	return ProcessResult{Status: Completed, Value: out}
})

// ClusterNode is one line of a CLUSTER NODES reply.
type ClusterNode struct {
	ID       string
	Addr     string
	Flags    []string
	Primary  string
	Slots    []string
}

// ClusterNodesText parses the bulk-string CLUSTER NODES reply into
// []ClusterNode.
var ClusterNodesText Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	lines := strings.Split(strings.TrimSpace(string(raw.Bytes)), "\n")
	out := make([]ClusterNode, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 8 {
			continue
		}
		n := ClusterNode{ID: fields[0], Addr: fields[1], Flags: strings.Split(fields[2], ","), Primary: fields[3]}
		if n.Primary == "-" {
			n.Primary = ""
		}
		if len(fields) > 8 {
			n.Slots = fields[8:]
		}
		out = append(out, n)
	}
	return ProcessResult{Status: Completed, Value: out}
})

// BigNumber returns a RESP3 big number reply as an exact
// decimal.Decimal, since float64/int64 would silently truncate it.
var BigNumber Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	if raw.Kind != resp.KindBigNumber {
		return ProcessResult{Status: Failed, Err: ErrProtocolDecode.New(fmt.Sprintf("expected big number, got %s", raw.Kind))}
	}
	v, err := raw.BigNumber()
	if err != nil {
		return ProcessResult{Status: Failed, Err: ErrProtocolDecode.Wrap(err, "malformed big number")}
	}
	return ProcessResult{Status: Completed, Value: v}
})

// Generic is the default Processor attached to a Message whenever a
// caller does not need a specific typed shape -- the low-level
// redis.Sender primitive (Sync, SyncCtx, ChanFutured, Scanner,
// transaction Conditions) all decode through it, the same way the
// teacher's resp.Read produces an untyped Go value (string, []byte,
// int64, bool, float64, []interface{}, error) rather than a
// command-specific struct. Top-level server errors are classified
// (MOVED/ASK/LOADING/TRYAGAIN/CLUSTERDOWN trigger retry/redirect);
// errors nested inside an array (e.g. one failed command inside a
// MULTI/EXEC reply) are carried as plain error values in that slot.
var Generic Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	return ProcessResult{Status: Completed, Value: genericValue(raw)}
})

func genericValue(raw resp.RawResult) interface{} {
	if raw.Null() {
		return nil
	}
	switch raw.Kind {
	case resp.KindSimpleString:
		return string(raw.Bytes)
	case resp.KindError:
		return ErrServer.New(string(raw.Bytes))
	case resp.KindInteger:
		return raw.Int
	case resp.KindBulkString, resp.KindVerbatimString:
		return raw.Bytes
	case resp.KindDouble:
		return raw.Double
	case resp.KindBoolean:
		return raw.Bool
	case resp.KindBigNumber:
		v, err := raw.BigNumber()
		if err != nil {
			return ErrProtocolDecode.Wrap(err, "malformed big number")
		}
		return v
	case resp.KindArray, resp.KindSet, resp.KindPush, resp.KindMap:
		out := make([]interface{}, len(raw.Array))
		for i, el := range raw.Array {
			out[i] = genericValue(el)
		}
		return out
	default:
		return nil
	}
}

// AsError returns res itself when it already is an error, and nil
// otherwise -- the cast helper every generic-decode caller (scan
// cursors, transaction conditions, EachShard probes) uses instead of
// a raw type assertion.
func AsError(res interface{}) error {
	if err, ok := res.(error); ok {
		return err
	}
	return nil
}

// ClientInfo parses the single-line CLIENT INFO reply into a field map.
var ClientInfo Processor = ProcessorFunc(func(raw resp.RawResult) ProcessResult {
	if raw.Kind == resp.KindError {
		return classifyError(raw)
	}
	m := make(map[string]string)
	for _, field := range strings.Fields(strings.TrimSpace(string(raw.Bytes))) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) == 2 {
			m[kv[0]] = kv[1]
		}
	}
	return ProcessResult{Status: Completed, Value: m}
})
