// Package redistest centralizes the miniredis-backed test fixtures
// used across the packages' own test files, kept in one package so
// every package's tests share one copy instead of re-declaring it.
package redistest

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/redikit/redikit/bridge"
	"github.com/redikit/redikit/mux"
	"github.com/redikit/redikit/redis"
)

// Start runs a fresh miniredis instance and registers its Close with
// t.Cleanup.
func Start(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

// WaitReady polls b.State() until it reports Ready, failing the test
// if timeout elapses first.
func WaitReady(t *testing.T, b *bridge.Bridge, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.State().Ready() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("bridge did not reach ConnectedEstablished within %s (state=%s)", timeout, b.State())
}

// WaitFor polls cond until it reports true, failing the test if
// timeout elapses first. Used for conditions Start/WaitReady don't
// cover, e.g. waiting for a Multiplexer's topology refresh to observe
// a newly provisioned endpoint.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// StandaloneConfig returns a mux.Config wired to a single standalone
// address, with timeouts short enough that a test failure surfaces
// quickly instead of hanging on SyncTimeout's default.
func StandaloneConfig(addr string) *mux.Config {
	return &mux.Config{
		Endpoints:      []string{addr},
		Topology:       mux.Standalone,
		SyncTimeout:    2 * time.Second,
		ConnectTimeout: 2 * time.Second,
		BacklogPolicy:  bridge.BacklogAndRetry,
	}
}

// Connect starts a Multiplexer against addr and registers its Close
// with t.Cleanup. It blocks until the primary endpoint's interactive
// bridge has finished its asynchronous dial/handshake, so a test's
// first command never races the bridge's own connect goroutine.
func Connect(t *testing.T, addr string) *mux.Multiplexer {
	t.Helper()
	mx, err := mux.Connect(StandaloneConfig(addr))
	if err != nil {
		t.Fatalf("mux.Connect: %v", err)
	}
	t.Cleanup(mx.Close)
	sync := redis.Sync{S: mx}
	WaitFor(t, 2*time.Second, func() bool {
		return redis.AsError(sync.Do("PING")) == nil
	})
	return mx
}
