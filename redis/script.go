package redis

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
)

// ScriptCache remembers EVAL script bodies by their SHA1 hex digest --
// the same digest EVALSHA takes as its first argument -- so that a
// NOSCRIPT reply to an EVALSHA can be repaired with SCRIPT LOAD and
// retried without the caller resending the script text, per §7's
// propagation policy ("NOSCRIPT triggers automatic SCRIPT LOAD +
// retry"). A digest is only recoverable this way if the same body was
// previously Remember-ed, normally because the caller issued it once
// via EVAL on this Sender.
type ScriptCache struct {
	mu     sync.RWMutex
	bodies map[string][]byte
}

// NewScriptCache returns an empty cache.
func NewScriptCache() *ScriptCache {
	return &ScriptCache{bodies: make(map[string][]byte)}
}

// Remember records body under its SHA1 hex digest and returns the
// digest.
func (c *ScriptCache) Remember(body []byte) string {
	sum := sha1.Sum(body)
	sha := hex.EncodeToString(sum[:])
	c.mu.Lock()
	c.bodies[sha] = append([]byte(nil), body...)
	c.mu.Unlock()
	return sha
}

// Get returns the body previously Remember-ed under sha, if any.
func (c *ScriptCache) Get(sha string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bodies[sha]
	return b, ok
}

// BodyArg coerces an EVAL/EVALSHA script or SHA1 argument (submitted
// as either a string or a []byte) into a []byte, the shape Remember/
// Get expect.
func BodyArg(arg interface{}) ([]byte, bool) {
	switch v := arg.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}
