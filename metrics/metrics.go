// Package metrics implements a mux.ProfilerProvider backed by
// prometheus/client_golang, following the label-per-command,
// register-on-a-Registerer shape the retrieval pack's own metrics
// package uses.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/redikit/redikit/mux"
	"github.com/redikit/redikit/redis"
)

// Profiler is a mux.ProfilerProvider that records per-command latency
// and outcome counts. The zero value is not usable; build one with
// NewProfiler.
type Profiler struct {
	latency *prometheus.HistogramVec
	total   *prometheus.CounterVec
}

// NewProfiler builds a Profiler with its own metric vectors, labeled
// "cmd" (the request's command name) and, for total, "outcome" ("ok" or
// "error").
func NewProfiler(namespace string) *Profiler {
	return &Profiler{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redikit_command_duration_seconds",
			Help:      "Time from Execute to the command's reply, by command.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cmd"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redikit_commands_total",
			Help:      "Total commands completed, by command and outcome.",
		}, []string{"cmd", "outcome"}),
	}
}

// Register registers every metric vector on reg, the same
// RegisterCoreMetrics shape the pack's metrics package uses, split
// across calls rather than package-level vars so more than one
// Profiler (distinct namespaces) can coexist.
func (p *Profiler) Register(reg prometheus.Registerer) error {
	if err := reg.Register(p.latency); err != nil {
		return err
	}
	return reg.Register(p.total)
}

// Provider returns the mux.ProfilerProvider to install via
// Multiplexer.SetProfiler.
func (p *Profiler) Provider() mux.ProfilerProvider {
	return func(msg *redis.Message) mux.ProfilerSession {
		return &session{p: p, cmd: msg.Request.Cmd, start: time.Now()}
	}
}

type session struct {
	p     *Profiler
	cmd   string
	start time.Time
}

func (s *session) Finish(err error) {
	s.p.latency.WithLabelValues(s.cmd).Observe(time.Since(s.start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.p.total.WithLabelValues(s.cmd, outcome).Inc()
}
