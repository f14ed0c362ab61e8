package redis

import "errors"

// Scanner drives one SCAN/HSCAN/SSCAN/ZSCAN cursor.
type Scanner interface {
	Next(Future)
}

// ScanEOF is resolved by a Future's Cancelled/Resolve value to signal
// the cursor returned "0" and iteration is complete.
var ScanEOF = errors.New("redis: scan iteration finished")

// ScanOpts configures a cursor-based iteration. Cmd defaults to
// "SCAN"; set it to "HSCAN"/"SSCAN"/"ZSCAN" with Key to scan inside a
// collection.
type ScanOpts struct {
	Cmd   string
	Key   string
	Match string
	Count int
}

// Request builds the next cursor request given the previous iteration
// cursor (nil for the first call).
func (s ScanOpts) Request(cursor []byte) Request {
	if cursor == nil {
		cursor = []byte("0")
	}
	args := []interface{}{cursor}
	cmd := s.Cmd
	if cmd == "" {
		cmd = "SCAN"
	}
	if cmd != "SCAN" {
		args = append(args, s.Key)
	}
	if s.Match != "" {
		args = append(args, "MATCH", s.Match)
	}
	if s.Count > 0 {
		args = append(args, "COUNT", s.Count)
	}
	return Request{Cmd: cmd, Args: args}
}

// ScanResponse splits a SCAN-shaped reply ([cursor, [members...]])
// into the next cursor and the member list.
func ScanResponse(res interface{}) ([]byte, []string, error) {
	if err, ok := res.(error); ok {
		return nil, nil, err
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return nil, nil, ErrProtocolDecode.New("malformed scan reply")
	}
	cursor, ok := arr[0].([]byte)
	if !ok {
		return nil, nil, ErrProtocolDecode.New("malformed scan cursor")
	}
	members, ok := arr[1].([]interface{})
	if !ok {
		return nil, nil, ErrProtocolDecode.New("malformed scan member list")
	}
	out := make([]string, len(members))
	for i, m := range members {
		b, ok := m.([]byte)
		if !ok {
			return nil, nil, ErrProtocolDecode.New("malformed scan member")
		}
		out[i] = string(b)
	}
	return cursor, out, nil
}

// TransactionResponse unwraps an EXEC reply: the body command results
// as []interface{}, or a nil array (WATCH failure, ErrExecAbort) as an
// error.
func TransactionResponse(res interface{}) ([]interface{}, error) {
	if arr, ok := res.([]interface{}); ok {
		return arr, nil
	}
	if res == nil {
		return nil, ErrExecAbort.New("EXEC returned nil: watched key changed")
	}
	if err, ok := res.(error); ok {
		return nil, err
	}
	return nil, ErrProtocolDecode.New("unexpected EXEC reply shape")
}

// ScannerBase implements the resolve/advance bookkeeping for a single
// cursor against a single Sender: it tracks the last cursor seen and
// reports Done once that cursor comes back "0". A cluster-aware scan
// (cluster.Scanner) holds one ScannerBase per shard and advances to
// the next shard's fresh ScannerBase when the current one is Done,
// rather than this type doing any shard-advancing itself.
type ScannerBase struct {
	ScanOpts
	Cursor []byte
	Err    error
	cb     Future
}

// DoNext issues the next cursor request against snd.
func (s *ScannerBase) DoNext(cb Future, snd Sender) {
	s.cb = cb
	snd.Send(s.ScanOpts.Request(s.Cursor), s, 0)
}

// Done reports whether the last reply's cursor was "0": iteration
// exhausted the collection.
func (s *ScannerBase) Done() bool {
	return len(s.Cursor) == 1 && s.Cursor[0] == '0'
}

func (s *ScannerBase) Cancelled() bool { return s.cb.Cancelled() }

func (s *ScannerBase) Resolve(res interface{}, _ uint64) {
	var keys []string
	s.Cursor, keys, s.Err = ScanResponse(res)
	cb := s.cb
	s.cb = nil
	if s.Err != nil {
		cb.Resolve(s.Err, 0)
		return
	}
	cb.Resolve(keys, 0)
}
