// Package sentinel implements Sentinel-managed primary/replica
// topology: it asks a set of sentinel processes for the current
// primary and replica set of one monitored service, rebuilds the
// multiplexer's endpoint table on every topology change, and
// subscribes to +switch-master/+odown so a failover is noticed without
// waiting for the next periodic refresh, per spec.md §4.E "Sentinel".
// The teacher (joomcode/redispipe) has no sentinel support of its own;
// this package is grounded on the same copy-on-write strategy shape
// cluster.Strategy uses, adapted to sentinel's polling/pubsub model.
package sentinel

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/redikit/redikit/bridge"
	"github.com/redikit/redikit/mux"
	"github.com/redikit/redikit/redis"
	"github.com/redikit/redikit/resp"
)

// Strategy is a mux.RoutingStrategy backed by a set of sentinel
// processes monitoring cfg.ServiceName. It never routes traffic to the
// sentinels themselves -- only to the primary/replica pair they report.
type Strategy struct {
	cfg         *mux.Config
	serviceName string

	mu       sync.RWMutex
	primary  *mux.Endpoint
	replica  []*mux.Endpoint
	next     uint32
	watchEnd *mux.Endpoint // the sentinel endpoint whose subscription bridge carries +switch-master/+odown

	notify atomic.Value // func() set by Connect once the Multiplexer exists
}

// NewStrategy probes cfg.Endpoints (sentinel addresses) for
// cfg.ServiceName's current primary/replica set and subscribes to
// failover notifications on the first configured sentinel address.
func NewStrategy(cfg *mux.Config) (*Strategy, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, redis.ErrConfiguration.New("no sentinel endpoints configured")
	}
	if cfg.ServiceName == "" {
		return nil, redis.ErrConfiguration.New("sentinel topology requires ServiceName")
	}
	s := &Strategy{cfg: cfg, serviceName: cfg.ServiceName}
	s.notify.Store(func() {})
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	s.watchFailover()
	return s, nil
}

// SetNotify installs the callback invoked when a +switch-master/+odown
// event arrives -- normally the owning Multiplexer's Reconfigure,
// wired by Connect once the Multiplexer exists (the Strategy is built
// before the Multiplexer that will own it, so this is set after the
// fact rather than passed into NewStrategy).
func (s *Strategy) SetNotify(fn func()) { s.notify.Store(fn) }

func (s *Strategy) fireNotify() { s.notify.Load().(func())() }

// probeAddr issues cmd against one sentinel using a throwaway
// bridge.Dumb, the same bootstrap-probe mechanism cluster.Strategy uses
// for CLUSTER NODES.
func probeAddr(addr string, protocol resp.Protocol, cmd string, args ...interface{}) (resp.RawResult, error) {
	d := &bridge.Dumb{Addr: addr, Protocol: protocol}
	res, err := d.Do(cmd, args...)
	d.Close()
	if err != nil {
		return resp.RawResult{}, err
	}
	if res.Kind == resp.KindError {
		return resp.RawResult{}, fmt.Errorf("%s: %s", cmd, res.Bytes)
	}
	return res, nil
}

// probeMaster asks each candidate sentinel in turn for the current
// primary address, returning the first successful answer.
func (s *Strategy) probeMaster() (string, error) {
	var lastErr error
	for _, addr := range s.cfg.Endpoints {
		res, err := probeAddr(addr, s.cfg.Protocol, "SENTINEL", "get-master-addr-by-name", s.serviceName)
		if err != nil {
			lastErr = err
			continue
		}
		if res.Null() || len(res.Array) != 2 {
			lastErr = fmt.Errorf("sentinel %s: no known master for %q", addr, s.serviceName)
			continue
		}
		return fmt.Sprintf("%s:%s", res.Array[0].Bytes, res.Array[1].Bytes), nil
	}
	return "", redis.ErrConnectionFailure.Wrap(lastErr, "no sentinel reachable for get-master-addr-by-name")
}

// probeReplicas asks each candidate sentinel for the replica set,
// skipping any replica flagged s_down/o_down/disconnected.
func (s *Strategy) probeReplicas() ([]string, error) {
	var lastErr error
	for _, addr := range s.cfg.Endpoints {
		res, err := probeAddr(addr, s.cfg.Protocol, "SENTINEL", "replicas", s.serviceName)
		if err != nil {
			res, err = probeAddr(addr, s.cfg.Protocol, "SENTINEL", "slaves", s.serviceName)
		}
		if err != nil {
			lastErr = err
			continue
		}
		return parseReplicaList(res), nil
	}
	return nil, redis.ErrConnectionFailure.Wrap(lastErr, "no sentinel reachable for replicas")
}

// parseReplicaList extracts "ip"/"port" field pairs out of SENTINEL
// REPLICAS' reply shape: an array of flat field/value arrays, one per
// replica.
func parseReplicaList(res resp.RawResult) []string {
	var out []string
	for _, entry := range res.Array {
		fields := map[string]string{}
		for i := 0; i+1 < len(entry.Array); i += 2 {
			fields[string(entry.Array[i].Bytes)] = string(entry.Array[i+1].Bytes)
		}
		flags := fields["flags"]
		if contains(flags, "s_down") || contains(flags, "o_down") || contains(flags, "disconnected") {
			continue
		}
		ip, port := fields["ip"], fields["port"]
		if ip == "" || port == "" {
			continue
		}
		if _, err := strconv.Atoi(port); err != nil {
			continue
		}
		out = append(out, ip+":"+port)
	}
	return out
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// Refresh re-probes the primary/replica set and swaps the endpoint
// table, retiring any endpoint no longer present.
func (s *Strategy) Refresh() error {
	primaryAddr, err := s.probeMaster()
	if err != nil {
		return err
	}
	replicaAddrs, err := s.probeReplicas()
	if err != nil {
		replicaAddrs = nil // a sentinel outage on replica listing shouldn't block a primary failover
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reply := mux.NewRedirectAwareReplyHandler(s, s.cfg)
	if s.primary == nil || s.primary.Addr != primaryAddr {
		old := s.primary
		s.primary = mux.NewEndpoint(primaryAddr, mux.RolePrimary, s.cfg, reply, nil)
		if old != nil {
			old.Close(false)
		}
	}

	existing := make(map[string]*mux.Endpoint, len(s.replica))
	for _, ep := range s.replica {
		existing[ep.Addr] = ep
	}
	next := make([]*mux.Endpoint, 0, len(replicaAddrs))
	for _, addr := range replicaAddrs {
		if ep, ok := existing[addr]; ok {
			next = append(next, ep)
			delete(existing, addr)
			continue
		}
		next = append(next, mux.NewEndpoint(addr, mux.RoleReplica, s.cfg, reply, nil))
	}
	for _, stale := range existing {
		stale.Close(false)
	}
	s.replica = next
	return nil
}

// watchFailover subscribes to +switch-master and +odown on the first
// configured sentinel address, without checking that it is reachable,
// so a failover triggers Refresh immediately instead
// of waiting for the next ConfigCheckSeconds tick, per spec.md §4.E
// "subscribes to +switch-master/+odown, and on event triggers
// reconfiguration".
func (s *Strategy) watchFailover() {
	for _, addr := range s.cfg.Endpoints {
		ep := mux.NewEndpoint(addr, mux.RoleSentinel, s.cfg, bridge.DefaultReplyHandler, nil)
		sub := ep.EnsureSubscription(s.cfg, s.onSentinelPush)
		subMsg := redis.NewMessage(redis.Req("SUBSCRIBE", "+switch-master"), redis.FlagFireAndForget|redis.FlagHighPriority, redis.Void, nil)
		sub.Submit(subMsg)
		odownMsg := redis.NewMessage(redis.Req("SUBSCRIBE", "+odown"), redis.FlagFireAndForget|redis.FlagHighPriority, redis.Void, nil)
		sub.Submit(odownMsg)

		s.mu.Lock()
		s.watchEnd = ep
		s.mu.Unlock()
		return
	}
}

func (s *Strategy) onSentinelPush(v resp.RawResult) {
	if v.Kind != resp.KindArray && v.Kind != resp.KindPush || len(v.Array) < 1 {
		return
	}
	kind := string(v.Array[0].Bytes)
	if kind != "message" {
		return
	}
	s.fireNotify()
}

func (s *Strategy) Route(msg *redis.Message) (*mux.Endpoint, error) {
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
	if s.primary == nil {
		return nil, redis.ErrNoEndpoint.New("no known primary for service %q", s.serviceName)
	}
	return s.primary, nil
}

// Reroute handles a primary reporting MOVED/ASK, which only happens if
// the monitored service is (incorrectly) a cluster node; there's
// nowhere sentinel-aware to send it.
func (s *Strategy) Reroute(_ *redis.Message, redirect *redis.Redirect) error {
	return redis.ErrNoEndpoint.New("unexpected redirect to %s from a sentinel-managed endpoint", redirect.Addr)
}

func (s *Strategy) Endpoints() []*mux.Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*mux.Endpoint, 0, 1+len(s.replica))
	if s.primary != nil {
		out = append(out, s.primary)
	}
	return append(out, s.replica...)
}

func (s *Strategy) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.primary != nil {
		s.primary.Close(false)
	}
	for _, ep := range s.replica {
		ep.Close(false)
	}
	if s.watchEnd != nil {
		s.watchEnd.Close(false)
	}
}
