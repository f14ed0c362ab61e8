package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/redikit/redikit/redis"
)

func TestProfilerRecordsOutcome(t *testing.T) {
	p := NewProfiler("")
	reg := prometheus.NewRegistry()
	if err := p.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	provider := p.Provider()
	msg := redis.NewMessage(redis.Req("GET", "k"), 0, redis.Void, nil)

	sess := provider(msg)
	if sess == nil {
		t.Fatal("expected non-nil session")
	}
	sess.Finish(nil)

	sess = provider(msg)
	sess.Finish(errors.New("boom"))

	m := &dto.Metric{}
	c, err := p.total.GetMetricWithLabelValues("GET", "ok")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	if err := c.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.Counter.GetValue() != 1 {
		t.Fatalf("expected one ok GET, got %v", m.Counter.GetValue())
	}

	c, err = p.total.GetMetricWithLabelValues("GET", "error")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	if err := c.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.Counter.GetValue() != 1 {
		t.Fatalf("expected one error GET, got %v", m.Counter.GetValue())
	}
}
