package mux

import "github.com/redikit/redikit/redis"

// Server is a view scoped to one known endpoint, for admin commands
// that must target a specific node rather than whatever the routing
// strategy would pick (CLIENT LIST, a per-node INFO/CLUSTER NODES
// probe), per §9's GetServer.
type Server struct {
	mx *Multiplexer
	ep *Endpoint
}

// Addr returns the endpoint address this view is pinned to.
func (s *Server) Addr() string { return s.ep.Addr }

// Role reports the endpoint's last-known routing role.
func (s *Server) Role() Role { return s.ep.Role() }

func (s *Server) Send(r redis.Request, cb redis.Future, n uint64) {
	(&endpointSender{cfg: s.mx.cfg, ep: s.ep, db: s.mx.cfg.DefaultDatabase}).Send(r, cb, n)
}

func (s *Server) SendMany(r []redis.Request, cb redis.Future, start uint64) {
	(&endpointSender{cfg: s.mx.cfg, ep: s.ep, db: s.mx.cfg.DefaultDatabase}).SendMany(r, cb, start)
}

func (s *Server) SendTransaction(reqs []redis.Request, cb redis.Future, start uint64) {
	(&endpointSender{cfg: s.mx.cfg, ep: s.ep, db: s.mx.cfg.DefaultDatabase}).SendTransaction(reqs, cb, start)
}

func (s *Server) Scanner(opts redis.ScanOpts) redis.Scanner {
	return (&endpointSender{cfg: s.mx.cfg, ep: s.ep, db: s.mx.cfg.DefaultDatabase}).Scanner(opts)
}

func (s *Server) EachShard(fn func(redis.Sender, error) bool) {
	fn((&endpointSender{cfg: s.mx.cfg, ep: s.ep, db: s.mx.cfg.DefaultDatabase}), nil)
}

func (s *Server) Close() {}
