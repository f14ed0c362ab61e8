package cluster

import (
	"sync/atomic"
	"time"
)

// ReplicaSeed hands out a starting offset for replica round-robin
// selection. Adapted from rediscluster's RoundRobinSeed. FairSeed is a
// single shared counter; TimedSeed avoids that shared cache line by
// reseeding from a background goroutine instead of advancing per call.
type ReplicaSeed interface {
	Next() uint32
}

// FairSeed increments a single atomic counter. Simple and exactly
// fair across callers, at the cost of that one shared cache line.
type FairSeed struct {
	counter uint32
}

func (s *FairSeed) Next() uint32 {
	return atomic.AddUint32(&s.counter, 1)
}

// TimedSeed reseeds itself from a background goroutine every period
// instead of incrementing on every call, trading perfect fairness for
// zero contention on the hot path -- the choice rediscluster's
// TimedRoundRobinSeed makes for the same reason.
type TimedSeed struct {
	value  atomic.Uint32
	stopc  chan struct{}
	period time.Duration
	source func() uint32
}

// NewTimedSeed starts a TimedSeed that reseeds every period using
// source (normally a fast non-cryptographic RNG supplied by the
// caller). Call Stop to release the background goroutine.
func NewTimedSeed(period time.Duration, source func() uint32) *TimedSeed {
	s := &TimedSeed{stopc: make(chan struct{}), period: period, source: source}
	s.value.Store(source())
	go s.run()
	return s
}

func (s *TimedSeed) run() {
	t := time.NewTicker(s.period)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.value.Store(s.source())
		case <-s.stopc:
			return
		}
	}
}

func (s *TimedSeed) Next() uint32 { return s.value.Load() }

func (s *TimedSeed) Stop() { close(s.stopc) }

var defaultSeed = &FairSeed{}

// DefaultReplicaSeed returns the package-wide default ReplicaSeed, a
// FairSeed. Most callers needing replica round-robin can just use
// this rather than owning a seed of their own.
func DefaultReplicaSeed() ReplicaSeed { return defaultSeed }

// PickReplica chooses a replica address from a shard for a
// PreferReplica/DemandReplica request, round-robining across
// replicas (and, since a shard always has at least its primary, falls
// back to the primary when there are no replicas at all).
func PickReplica(sh Shard, seed ReplicaSeed) string {
	if len(sh.Replicas) == 0 {
		return sh.Primary
	}
	idx := int(seed.Next()) % len(sh.Replicas)
	return sh.Replicas[idx]
}
