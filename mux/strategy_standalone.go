package mux

import (
	"sync"
	"sync/atomic"

	"github.com/redikit/redikit/redis"
)

// standaloneStrategy routes every request to a single endpoint. It
// also serves a primary-replica pair: Endpoints[0] is always the
// primary, Endpoints[1:] are replicas selected round-robin for
// PreferReplica/DemandReplica traffic, with no tiebreaker voting
// (single statically-configured primary -- tiebreaker resolution only
// matters once sentinel or a multi-candidate topology is in play).
type standaloneStrategy struct {
	cfg *Config

	mu      sync.RWMutex
	primary *Endpoint
	replica []*Endpoint
	next    uint32
}

// newStandaloneStrategy dials cfg.Endpoints[0] as the primary and any
// remaining addresses as replicas, per Topology Standalone/
// PrimaryReplica.
func newStandaloneStrategy(cfg *Config) (*standaloneStrategy, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, redis.ErrConfiguration.New("no endpoints configured")
	}
	s := &standaloneStrategy{cfg: cfg}
	reply := NewRedirectAwareReplyHandler(s, cfg)
	s.primary = NewEndpoint(cfg.Endpoints[0], RolePrimary, cfg, reply, nil)
	for _, addr := range cfg.Endpoints[1:] {
		s.replica = append(s.replica, NewEndpoint(addr, RoleReplica, cfg, reply, nil))
	}
	return s, nil
}

func (s *standaloneStrategy) Route(msg *redis.Message) (*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wantsReplica := msg.Flags&(redis.FlagDemandReplica|redis.FlagPreferReplica) != 0
	if wantsReplica && len(s.replica) > 0 {
		idx := atomic.AddUint32(&s.next, 1) % uint32(len(s.replica))
		return s.replica[idx], nil
	}
	if msg.Flags&redis.FlagDemandReplica != 0 {
		return nil, redis.ErrNoEndpoint.New("no replica endpoint available for demanded-replica request")
	}
	return s.primary, nil
}

// Reroute handles a standalone server reporting MOVED/ASK, which only
// happens if it is misconfigured as a cluster node the client thinks
// is standalone; there is nowhere else to send the request.
func (s *standaloneStrategy) Reroute(_ *redis.Message, redirect *redis.Redirect) error {
	return redis.ErrNoEndpoint.New("unexpected redirect to %s from a non-cluster endpoint", redirect.Addr)
}

func (s *standaloneStrategy) Endpoints() []*Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Endpoint, 0, 1+len(s.replica))
	out = append(out, s.primary)
	return append(out, s.replica...)
}

// Refresh is a no-op: a statically configured standalone/primary-
// replica topology has nothing to rediscover.
func (s *standaloneStrategy) Refresh() error { return nil }

func (s *standaloneStrategy) Close() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.primary.Close(false)
	for _, r := range s.replica {
		r.Close(false)
	}
}
