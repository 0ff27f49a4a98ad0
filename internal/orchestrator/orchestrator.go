// Package orchestrator is the top-level purge() entry point (spec.md
// §4.1): given a Config it runs the walker, then (if configured) the
// reaper, and returns the terminal Stats snapshot. It owns the run's
// shared infrastructure — the scheduling fabric, the directory reader
// pool, the back-pressure gate, and the progress reporter — and is the
// only component that starts or stops any of them.
//
// Grounded on the teacher's engine.DeleteDirectory (internal/engine/engine.go)
// for the overall phase sequence (validate, start monitoring, scan, delete,
// stop monitoring, report), generalized from a single deletion pass into
// this spec's walk-then-reap two-phase run with its own abort semantics.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/purgefs/purgefs/internal/backpressure"
	"github.com/purgefs/purgefs/internal/clock"
	"github.com/purgefs/purgefs/internal/config"
	"github.com/purgefs/purgefs/internal/dirreader"
	"github.com/purgefs/purgefs/internal/fsops"
	"github.com/purgefs/purgefs/internal/pipeline"
	"github.com/purgefs/purgefs/internal/reaper"
	"github.com/purgefs/purgefs/internal/reporter"
	"github.com/purgefs/purgefs/internal/sched"
	"github.com/purgefs/purgefs/internal/stats"
	"github.com/purgefs/purgefs/internal/walker"
)

// Version is the running build's version, attached to every startup log
// line (spec.md §6: "Startup emits one line whose extra_fields include
// the full effective configuration plus the running version").
const Version = "0.1.0"

// Purge runs one complete purge to completion and returns the final
// Stats. clk supplies "now" for scan_start/scan_end so tests can control
// elapsed-time math deterministically; production callers pass
// clock.System{}.
func Purge(ctx context.Context, cfg *config.Config, clk clock.Clock, log *logrus.Entry) *stats.Stats {
	st := stats.New(cfg.Root)
	logStartup(log, cfg)

	reporterCtx, stopReporter := context.WithCancel(ctx)
	rep := reporter.New(st, log)
	var repWG sync.WaitGroup
	repWG.Add(1)
	go func() {
		defer repWG.Done()
		rep.Run(reporterCtx)
	}()

	fabric := sched.New(cfg.ScanSlots, cfg.DeleteSlots, cfg.SubdirSlots)
	reader := dirreader.New(ctx, dirreader.PoolSize(cfg.SubdirSlots))
	if cfg.DirListingsPerSecond > 0 {
		reader = reader.WithRateLimit(cfg.DirListingsPerSecond)
	}
	gate := backpressure.New(cfg.SoftMemoryLimitBytes, cfg.HardMemoryRatio)
	fs := fsops.NewBackend()
	statSource := clock.System{}

	st.SetPhase(stats.PhaseScanning)
	st.MarkScanStart(clk.Now())

	pl := pipeline.New(cfg, fabric, fs, statSource, st, log)
	w := walker.New(cfg, fabric, reader, pl, gate, st, log)
	w.Walk(ctx, cfg.Root)

	st.MarkScanEnd(clk.Now())

	switch {
	case w.CircuitBroken():
		st.Abort("memory circuit breaker tripped during scan")
	case cfg.RemoveEmptyDirs:
		st.SetPhase(stats.PhaseRemovingEmptyDirs)
		rp := reaper.New(cfg, fabric, fs, reader, gate, rep, st, log)
		if rp.Run(ctx) {
			st.Abort("memory circuit breaker tripped during empty-dir reaping")
		}
	}

	if st.Snapshot().Phase != stats.PhaseAborted {
		st.SetPhase(stats.PhaseCompleted)
	}

	stopReporter()
	repWG.Wait()

	return st
}

func logStartup(log *logrus.Entry, cfg *config.Config) {
	log.WithFields(logrus.Fields{
		"version":                Version,
		"root":                   cfg.Root,
		"cutoff":                 cfg.Cutoff.Format(time.RFC3339),
		"max_age_days":           cfg.MaxAgeDays,
		"scan_slots":             cfg.ScanSlots,
		"delete_slots":           cfg.DeleteSlots,
		"subdir_slots":           cfg.SubdirSlots,
		"task_batch_size":        cfg.TaskBatchSize,
		"soft_memory_limit_mb":   cfg.SoftMemoryLimitBytes / (1024 * 1024),
		"hard_memory_ratio":      cfg.HardMemoryRatio,
		"remove_empty_dirs":      cfg.RemoveEmptyDirs,
		"max_empty_dirs_per_run": cfg.MaxEmptyDirsPerRun,
		"dry_run":                cfg.DryRun,
		"legacy_alias_used":      cfg.LegacyAliasUsed,
	}).Info("startup")

	if cfg.LegacyAliasUsed {
		log.Warn("max_concurrency is deprecated; set scan_slots and delete_slots independently")
	}
}
