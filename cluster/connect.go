package cluster

import "github.com/redikit/redikit/mux"

// Connect builds a cluster-aware Strategy and wraps it in a
// Multiplexer. Kept separate from mux.Connect because mux must never
// import cluster (the one-directional dependency mux/endpoint.go
// documents) -- this is the package that is allowed to depend on both.
func Connect(cfg *mux.Config) (*mux.Multiplexer, error) {
	strategy, err := NewStrategy(cfg)
	if err != nil {
		return nil, err
	}
	return mux.New(cfg, strategy), nil
}
