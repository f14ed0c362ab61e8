package mux

import "github.com/redikit/redikit/redis"

// ProfilerSession is an optional per-operation hook, started when a
// Message begins routing and finished once it completes, for a caller
// that wants to attach timing/tracing around individual commands
// without the core depending on any particular tracing library, per
// §9 "the profiler provider is a function returning an optional
// session object at each operation boundary; if null, profiling is
// skipped".
type ProfilerSession interface {
	Finish(err error)
}

// ProfilerProvider begins an optional profiling session for msg, or
// returns nil to skip profiling entirely. metrics.Profiler is the
// Prometheus-backed implementation; tests and callers with no
// profiling need pass nil.
type ProfilerProvider func(msg *redis.Message) ProfilerSession

// SetProfiler installs provider on the Multiplexer; nil disables
// profiling. Safe to call at any time -- Execute reads it through an
// atomic-free plain field since reconfiguration already serializes
// through the strategy, and profiler swaps are rare administrative
// actions, not hot-path traffic.
func (mx *Multiplexer) SetProfiler(provider ProfilerProvider) {
	mx.profiler = provider
}

// profiledFuture wraps a Message's real Sink so Finish observes the
// same outcome the caller does, without the routing path needing to
// know profiling is active.
type profiledFuture struct {
	orig redis.Future
	sess ProfilerSession
}

func (f *profiledFuture) Resolve(res interface{}, n uint64) {
	err, _ := res.(error)
	f.sess.Finish(err)
	if f.orig != nil {
		f.orig.Resolve(res, n)
	}
}

func (f *profiledFuture) Cancelled() bool {
	return f.orig != nil && f.orig.Cancelled()
}
