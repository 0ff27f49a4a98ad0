// Package backpressure is the Back-pressure & Circuit Breaker gate
// (spec.md §4.8): a synchronous check the pipeline and reaper call before
// and after every batch, reacting proportionally to memory pressure
// instead of either ignoring it or aborting outright.
//
// Grounded on the teacher's internal/monitor.Monitor — its
// runtime.ReadMemStats sampling and MemoryPressureThreshold constant are
// the same idea, but the teacher's Monitor is a post-hoc ticker that only
// logs bottlenecks after the fact. This package repurposes that sampling
// into a synchronous gate callers must consult before proceeding, and
// adds the soft/hard ratio ladder and batch-shrink math the teacher never
// had (it has no analogue of task_batch_size).
package backpressure

import (
	"runtime"
	"sync"
	"time"
)

// Sampler reports the engine's current memory usage in bytes. The default
// samples runtime.MemStats.Alloc; tests inject a fake to drive the gate
// through each threshold deterministically.
type Sampler func() int64

// DefaultSampler reads runtime.MemStats.Alloc.
func DefaultSampler() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.Alloc)
}

// MinBatchSize is the floor batch-shrinking must never go below, so a
// back-pressured run still makes progress (spec.md §4.8).
const MinBatchSize = 10

// Result is what Check returns: callers react to OverSoft and
// CircuitBreak, ShrinkBatch consumes UsageRatio, and Usage is the raw
// sampled byte count callers feed into stats.Stats.UpdatePeakMemory so
// peak_memory reflects every sample, not just back-pressured ones.
type Result struct {
	OverSoft     bool
	CircuitBreak bool
	UsageRatio   float64
	Usage        int64
}

// Gate samples memory under a lock — serialized so concurrent callers
// never stampede the sampler (spec.md §4.8, "under lock to avoid
// thundering herd") — and classifies the reading against the soft limit.
type Gate struct {
	mu        sync.Mutex
	softLimit int64 // bytes; 0 disables all back-pressure/circuit-break logic
	hardRatio float64
	sample    Sampler
	sleep     func(time.Duration)
	requestGC func()
}

// New builds a Gate. softLimitBytes of 0 disables the gate entirely
// (Check always returns a zero Result).
func New(softLimitBytes int64, hardRatio float64) *Gate {
	return &Gate{
		softLimit: softLimitBytes,
		hardRatio: hardRatio,
		sample:    DefaultSampler,
		sleep:     time.Sleep,
		requestGC: runtime.GC,
	}
}

// WithSampler overrides the memory sampler, for tests.
func (g *Gate) WithSampler(s Sampler) *Gate {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sample = s
	return g
}

// Check samples current usage and classifies it against the soft/hard
// thresholds in spec.md §4.8:
//   - ratio >= hardRatio (or usage > soft limit): circuit-break.
//   - ratio > 0.85: back-pressure — pause ~100ms, request a GC cycle, and
//     report OverSoft so callers count a backpressure_event.
//   - ratio > 0.70: mild shrinkage only; ShrinkBatch reacts to
//     UsageRatio directly, but this band is not a backpressure_event.
func (g *Gate) Check() Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.softLimit <= 0 {
		return Result{}
	}

	usage := g.sample()
	ratio := float64(usage) / float64(g.softLimit)
	res := Result{UsageRatio: ratio, Usage: usage}

	switch {
	case ratio >= g.hardRatio || usage > g.softLimit:
		res.CircuitBreak = true
	case ratio > 0.85:
		res.OverSoft = true
		g.sleep(100 * time.Millisecond)
		g.requestGC()
	}
	return res
}

// ShrinkBatch applies the ladder in spec.md §4.8 to a base batch size:
// x0.75 above 0.70, x0.5 above 0.85, x0.25 above 1.0 (over the soft
// limit entirely), never dropping below MinBatchSize.
func ShrinkBatch(base int, r Result) int {
	var shrunk int
	switch {
	case r.UsageRatio > 1.0:
		shrunk = base / 4
	case r.UsageRatio > 0.85:
		shrunk = base / 2
	case r.UsageRatio > 0.70:
		shrunk = int(float64(base) * 0.75)
	default:
		return base
	}
	if shrunk < MinBatchSize {
		shrunk = MinBatchSize
	}
	return shrunk
}
