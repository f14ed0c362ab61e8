package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redikit/redikit/redis"
)

const sampleNodes = `07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30004@31004 slave e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 0 1426238317239 4 connected
67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 127.0.0.1:30002@31002 master - 0 1426238316232 2 connected 5461-10922
292f8b365bb7edb5e285caf0b7e6ddc7265d2f4f 127.0.0.1:30003@31003 master - 0 1426238318243 3 connected 10923-16383
6ec23923021cf3ffec47632106199cb7f496ce01 127.0.0.1:30005@31005 slave 67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 0 1426238316232 5 connected
824fe116063bc5fcf4f2f50ea78ba5dfd6c6fb4b 127.0.0.1:30006@31006 slave 292f8b365bb7edb5e285caf0b7e6ddc7265d2f4f 0 1426238317741 6 connected
e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 127.0.0.1:30001@31001 myself,master - 0 1426238316232 1 connected 0-5460
`

func TestParseClusterNodes(t *testing.T) {
	shards, ranges, primaryOf := ParseClusterNodes(sampleNodes)
	require.Len(t, shards, 3)

	byPrimary := make(map[string]Shard, len(shards))
	for _, s := range shards {
		byPrimary[s.Primary] = s
	}

	s1, ok := byPrimary["127.0.0.1:30001"]
	require.True(t, ok, "missing shard for primary 30001")
	require.Len(t, s1.Replicas, 1)
	assert.Equal(t, "127.0.0.1:30004", s1.Replicas[0])

	s2 := byPrimary["127.0.0.1:30002"]
	require.Len(t, s2.Replicas, 1)
	assert.Equal(t, "127.0.0.1:30005", s2.Replicas[0])

	assert.Equal(t, "127.0.0.1:30001", primaryOf["127.0.0.1:30004"])

	for idx, s := range shards {
		if s.Primary == "127.0.0.1:30001" {
			require.Len(t, ranges[idx], 1)
			assert.Equal(t, [2]int{0, 5460}, ranges[idx][0])
		}
	}
}

func TestParseSlotRange(t *testing.T) {
	from, to := parseSlotRange("5461-10922")
	assert.Equal(t, 5461, from)
	assert.Equal(t, 10922, to)

	from, to = parseSlotRange("123")
	assert.Equal(t, 123, from)
	assert.Equal(t, 123, to)

	from, _ = parseSlotRange("not-a-number")
	assert.Equal(t, -1, from)
}

func TestExtractKeysMultiKeyCommand(t *testing.T) {
	keys, err := extractKeys(redis.Req("MGET", "a", "b", []byte("c")))
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, "a", string(keys[0]))
	assert.Equal(t, "c", string(keys[2]))
}

func TestExtractKeysSingleKeyCommand(t *testing.T) {
	keys, err := extractKeys(redis.Req("GET", "onlykey"))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "onlykey", string(keys[0]))
}

func TestExtractKeysNoKeyCommand(t *testing.T) {
	keys, err := extractKeys(redis.Req("PING"))
	require.NoError(t, err)
	assert.Nil(t, keys)
}
