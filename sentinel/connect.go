package sentinel

import "github.com/redikit/redikit/mux"

// Connect builds a sentinel-aware Strategy and wraps it in a
// Multiplexer, wiring the Strategy's failover notifications back into
// the Multiplexer's own Reconfigure once it exists -- the two can't be
// constructed in one step since the Strategy must exist before New can
// build a Multiplexer around it, per mux's documented one-directional
// dependency (mux never imports sentinel).
func Connect(cfg *mux.Config) (*mux.Multiplexer, error) {
	strategy, err := NewStrategy(cfg)
	if err != nil {
		return nil, err
	}
	mx := mux.New(cfg, strategy)
	strategy.SetNotify(func() { _ = mx.Reconfigure() })
	return mx, nil
}
