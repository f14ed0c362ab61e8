// Package redikit ties the topology-specific strategies together: it
// is the one package allowed to import mux, cluster, and sentinel at
// once, since mux itself must never import either (cluster.Strategy
// and sentinel.Strategy both depend on mux.RoutingStrategy, and a
// dependency the other way would cycle).
package redikit

import (
	"github.com/redikit/redikit/cluster"
	"github.com/redikit/redikit/mux"
	"github.com/redikit/redikit/sentinel"
)

// Connect builds the RoutingStrategy matching cfg.Topology and returns
// the Multiplexer wrapping it. This is the normal entry point; mux.Connect,
// cluster.Connect, and sentinel.Connect remain directly usable by callers
// who already know their topology and want to avoid this package's import
// of all three.
func Connect(cfg *mux.Config) (*mux.Multiplexer, error) {
	switch cfg.Topology {
	case mux.Cluster:
		return cluster.Connect(cfg)
	case mux.Sentinel:
		return sentinel.Connect(cfg)
	default:
		return mux.Connect(cfg)
	}
}
