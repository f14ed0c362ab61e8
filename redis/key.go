package redis

import "bytes"

// Key wraps the routing key extracted from a command's arguments.
// Nil distinguishes "no key" (administrative commands) from an empty
// key, mirroring the teacher's nullable-result convention for results
// generally.
type Key []byte

// HashTag returns the bytes used for slot computation: the substring
// between the first '{' and the next '}' if one exists and
// is non-empty, otherwise the whole key. An empty tag ("{}") is
// ignored and the full key is hashed instead, per the empty-hash-tag
// edge case.
func HashTag(key []byte) []byte {
	i := bytes.IndexByte(key, '{')
	if i < 0 {
		return key
	}
	j := bytes.IndexByte(key[i+1:], '}')
	if j < 0 {
		return key
	}
	if j == 0 {
		// "{}" immediately: empty tag, fall back to the whole key.
		return key
	}
	return key[i+1 : i+1+j]
}
