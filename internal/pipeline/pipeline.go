// Package pipeline is the File Pipeline (spec.md §4.3): the scheduled
// unit each batched file-task runs as. It stats a file under a scan-slot,
// decides purge-or-keep against the run's cutoff, and — outside dry-run —
// unlinks it under a delete-slot.
//
// Grounded on the teacher's engine.processFileTask and its gather-based
// batch dispatch (internal/engine/engine.go), generalized from the
// teacher's single global worker-pool semaphore to this spec's pair of
// independent scan/delete slots, and wired to internal/backpressure the
// way the component map in this project's expanded spec calls for: a
// before/after gate check around every batch flush, mirroring the
// reaper's Pass A (spec.md §4.7) rather than inventing a separate scheme.
package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/purgefs/purgefs/internal/backpressure"
	"github.com/purgefs/purgefs/internal/clock"
	"github.com/purgefs/purgefs/internal/config"
	"github.com/purgefs/purgefs/internal/fsops"
	"github.com/purgefs/purgefs/internal/sched"
	"github.com/purgefs/purgefs/internal/stats"
)

// Pipeline runs individual file-purge tasks against a shared fabric,
// stat source, and backend.
type Pipeline struct {
	cfg    *config.Config
	fabric *sched.Fabric
	fs     fsops.Backend
	stat   clock.StatSource
	st     *stats.Stats
	log    *logrus.Entry
}

// New builds a Pipeline.
func New(cfg *config.Config, fabric *sched.Fabric, fs fsops.Backend, stat clock.StatSource, st *stats.Stats, log *logrus.Entry) *Pipeline {
	return &Pipeline{cfg: cfg, fabric: fabric, fs: fs, stat: stat, st: st, log: log}
}

// Flush runs every path in batch concurrently (each task acquires its own
// scan/delete slots) and blocks until all have finished. gate may be nil
// to skip back-pressure checks (e.g. in tests). Returns true if the
// before- or after-batch memory check tripped the circuit breaker, in
// which case the caller (the walker) must stop opening new work.
func (p *Pipeline) Flush(ctx context.Context, gate *backpressure.Gate, batch []string) bool {
	if len(batch) == 0 {
		return p.checkGate(gate)
	}
	if p.checkGate(gate) {
		return true
	}

	var wg sync.WaitGroup
	wg.Add(len(batch))
	for _, path := range batch {
		path := path
		go func() {
			defer wg.Done()
			p.processFile(ctx, path)
		}()
	}
	wg.Wait()

	return p.checkGate(gate)
}

func (p *Pipeline) checkGate(gate *backpressure.Gate) bool {
	if gate == nil {
		return false
	}
	res := gate.Check()
	p.st.UpdatePeakMemory(res.Usage)
	if res.OverSoft {
		p.st.RecordBackpressureEvent()
	}
	return res.CircuitBreak
}

// processFile implements spec.md §4.3: acquire a scan-slot, stat, classify,
// and purge if stale. Errors are logged and counted, never returned —
// one task's failure never aborts its siblings.
func (p *Pipeline) processFile(ctx context.Context, path string) {
	if err := p.fabric.AcquireScan(ctx); err != nil {
		return
	}
	meta, statErr := p.stat.Lstat(path)
	p.fabric.ReleaseScan()

	if statErr != nil {
		if os.IsNotExist(statErr) {
			return
		}
		p.st.IncErrors()
		p.log.WithError(statErr).WithField("path", path).Warn("stat failed")
		return
	}
	p.st.IncFilesScanned()

	if meta.Kind != clock.KindRegular {
		return
	}
	if !meta.ModTime.Before(p.cfg.Cutoff) {
		return
	}

	p.st.RecordFileToPurge(meta.Size)
	if p.cfg.DryRun {
		return
	}

	if err := p.fabric.AcquireDelete(ctx); err != nil {
		return
	}
	defer p.fabric.ReleaseDelete()

	if err := p.fs.Unlink(path); err != nil {
		switch {
		case errors.Is(err, fsops.ErrGone):
		case errors.Is(err, fsops.ErrNotEmpty):
		case errors.Is(err, fsops.ErrPermission):
			p.st.IncErrors()
			p.log.WithField("path", path).Warn("permission denied unlinking file")
		default:
			p.st.IncErrors()
			p.log.WithError(err).WithField("path", path).Error("failed to unlink file")
		}
		return
	}
	p.st.IncFilesPurged()
}
