package mux

import (
	"sync/atomic"

	"github.com/redikit/redikit/bridge"
	"github.com/redikit/redikit/redis"
	"github.com/redikit/redikit/resp"
)

// Role classifies an Endpoint for routing purposes, distinct from
// bridge.Role (which only distinguishes an interactive connection from
// a subscription one -- a single Endpoint owns one of each).
type Role int

const (
	RoleUnknown Role = iota
	RolePrimary
	RoleReplica
	RoleSentinel
	RoleClusterNode
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "Primary"
	case RoleReplica:
		return "Replica"
	case RoleSentinel:
		return "Sentinel"
	case RoleClusterNode:
		return "ClusterNode"
	default:
		return "Unknown"
	}
}

// Endpoint is one logical server the multiplexer knows about: its
// address, discovered role, and the pair of bridges (interactive and
// subscription) that carry traffic to it. A RoutingStrategy
// constructs and owns Endpoints; the multiplexer only ever sees them
// through the strategy's Endpoints()/Route() methods.
type Endpoint struct {
	Addr string

	role     int32 // atomic Role, mutable: a primary can become a replica on failover
	Version  uint64
	protocol int32 // atomic resp.Protocol

	Tiebreaker string

	Interactive  *bridge.Bridge
	Subscription *bridge.Bridge
}

// NewEndpoint dials both of addr's bridges (interactive, and --
// lazily, only when the multiplexer's pub/sub surface is first used --
// subscription) using cfg's shared connection options. reply is the
// interactive bridge's ReplyHandler, normally the strategy's own
// redirect-aware handler rather than bridge.DefaultReplyHandler.
func NewEndpoint(addr string, role Role, cfg *Config, reply bridge.ReplyHandler, push func(resp.RawResult)) *Endpoint {
	e := &Endpoint{Addr: addr}
	e.SetRole(role)
	e.Interactive = bridge.New(addr, cfg.bridgeOptions(bridge.Interactive), reply, push)
	return e
}

// EnsureSubscription lazily dials the subscription bridge the first
// time a caller asks for a Subscriber on this endpoint.
func (e *Endpoint) EnsureSubscription(cfg *Config, push func(resp.RawResult)) *bridge.Bridge {
	if e.Subscription == nil {
		e.Subscription = bridge.New(e.Addr, cfg.bridgeOptions(bridge.Subscription), nil, push)
	}
	return e.Subscription
}

func (e *Endpoint) Role() Role { return Role(atomic.LoadInt32(&e.role)) }

func (e *Endpoint) SetRole(r Role) { atomic.StoreInt32(&e.role, int32(r)) }

func (e *Endpoint) Protocol() resp.Protocol { return resp.Protocol(atomic.LoadInt32(&e.protocol)) }

func (e *Endpoint) setProtocol(p resp.Protocol) { atomic.StoreInt32(&e.protocol, int32(p)) }

// Ready reports whether the endpoint's interactive bridge can accept
// work without queuing to its backlog.
func (e *Endpoint) Ready() bool {
	return e.Interactive != nil && e.Interactive.State().Ready()
}

// Close releases both of the endpoint's bridges. allowPending is
// forwarded to each bridge's Close.
func (e *Endpoint) Close(allowPending bool) {
	if e.Interactive != nil {
		e.Interactive.Close(allowPending)
	}
	if e.Subscription != nil {
		e.Subscription.Close(allowPending)
	}
}

// RoutingStrategy picks, for each outgoing Message, which Endpoint
// should carry it, and owns the endpoint table's lifecycle
// (discovery, MOVED/ASK redirects, sentinel-driven failover). cluster
// and sentinel each implement this against mux.Endpoint, giving a
// one-directional dependency: mux never imports either.
type RoutingStrategy interface {
	// Route selects the endpoint msg should be sent to next, honoring
	// msg's DemandPrimary/DemandReplica/PreferPrimary/PreferReplica
	// flags and routing key.
	Route(msg *redis.Message) (*Endpoint, error)

	// Reroute is invoked by the strategy's own ReplyHandler when a
	// bridge reports NeedRedirect. It resolves the MOVED/ASK target
	// (dialing a new Endpoint if necessary) and resubmits msg there
	// itself -- required for ASK, whose preceding ASKING must reach the
	// wire as part of the same uninterruptible batch as msg -- rather
	// than handing an Endpoint back for the caller to Submit to
	// separately.
	Reroute(msg *redis.Message, redirect *redis.Redirect) error

	// Endpoints returns a stable snapshot of every primary shard
	// endpoint known right now, for EachShard and Database.Scanner.
	Endpoints() []*Endpoint

	// Refresh re-discovers topology (CLUSTER NODES, a sentinel
	// primary re-probe) and swaps the endpoint table if it changed.
	Refresh() error

	// Close releases every endpoint this strategy owns.
	Close()
}
