package sentinel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redikit/redikit/resp"
)

func flatEntry(fields ...string) resp.RawResult {
	arr := make([]resp.RawResult, len(fields))
	for i, f := range fields {
		arr[i] = resp.RawResult{Kind: resp.KindBulkString, Bytes: []byte(f)}
	}
	return resp.RawResult{Kind: resp.KindArray, Array: arr}
}

func TestParseReplicaListSkipsDownFlags(t *testing.T) {
	res := resp.RawResult{Kind: resp.KindArray, Array: []resp.RawResult{
		flatEntry("ip", "127.0.0.1", "port", "6380", "flags", "slave"),
		flatEntry("ip", "127.0.0.1", "port", "6381", "flags", "slave,s_down"),
		flatEntry("ip", "127.0.0.1", "port", "6382", "flags", "slave,disconnected"),
	}}

	replicas := parseReplicaList(res)
	require.Len(t, replicas, 1)
	assert.Equal(t, "127.0.0.1:6380", replicas[0])
}

func TestParseReplicaListSkipsUnparseablePort(t *testing.T) {
	res := resp.RawResult{Kind: resp.KindArray, Array: []resp.RawResult{
		flatEntry("ip", "127.0.0.1", "port", "not-a-port", "flags", "slave"),
	}}
	assert.Empty(t, parseReplicaList(res))
}

func TestContains(t *testing.T) {
	cases := []struct {
		haystack, needle string
		want             bool
	}{
		{"slave,s_down", "s_down", true},
		{"slave", "s_down", false},
		{"", "x", false},
		{"x", "", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, contains(c.haystack, c.needle), "contains(%q, %q)", c.haystack, c.needle)
	}
}
