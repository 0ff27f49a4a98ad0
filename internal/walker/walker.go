// Package walker is the Directory Walker and the Hybrid Sliding-Window
// Subdirectory Processor (spec.md §4.2, §4.6) — the design's centerpiece.
// Walker reads one directory at a time, batches its regular files through
// the pipeline, and recurses into its subdirectories with an active set
// bounded by subdir-slots instead of either a naive wait-for-all-N batch
// or fully unbounded recursion.
//
// Grounded on the teacher's recursive scan in internal/scanner/scanner.go
// (classification of symlink/dir/regular/special entries, deepest-first
// directory bookkeeping) combined with its processIndicesInBatches
// sliding-window release pattern (internal/engine/engine.go), generalized
// from "release a batch slot when one file finishes" to "release a
// subdir-slot when one child walk finishes." Deadlock avoidance uses
// golang.org/x/sync/semaphore's TryAcquire, uniformly at every depth,
// rather than only at the top level — a child walk never blocks waiting
// for a permit one of its own ancestors holds; it just keeps descending
// without ever holding ancestor-contested state.
package walker

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/purgefs/purgefs/internal/backpressure"
	"github.com/purgefs/purgefs/internal/config"
	"github.com/purgefs/purgefs/internal/dirreader"
	"github.com/purgefs/purgefs/internal/pipeline"
	"github.com/purgefs/purgefs/internal/sched"
	"github.com/purgefs/purgefs/internal/stats"
)

// subdirSafetyCeiling bounds the sliding-window loop's iteration count; it
// must never be reached under correct operation (spec.md §4.6).
const subdirSafetyCeiling = 10_000

// Walker drives the recursive directory traversal for one purge run.
type Walker struct {
	cfg      *config.Config
	fabric   *sched.Fabric
	reader   *dirreader.Reader
	pipeline *pipeline.Pipeline
	gate     *backpressure.Gate
	st       *stats.Stats
	log      *logrus.Entry

	circuitBroken atomic.Bool
}

// New builds a Walker. gate may be nil to disable back-pressure checks.
func New(cfg *config.Config, fabric *sched.Fabric, reader *dirreader.Reader, pl *pipeline.Pipeline, gate *backpressure.Gate, st *stats.Stats, log *logrus.Entry) *Walker {
	return &Walker{cfg: cfg, fabric: fabric, reader: reader, pipeline: pl, gate: gate, st: st, log: log}
}

// CircuitBroken reports whether a memory circuit-break has fired during
// this run; the orchestrator consults it to set the final abort reason.
func (w *Walker) CircuitBroken() bool { return w.circuitBroken.Load() }

// Walk traverses root to completion (subject to circuit-breaking).
func (w *Walker) Walk(ctx context.Context, root string) {
	w.walkDir(ctx, root)
}

// walkDir implements spec.md §4.2: list once, classify every entry,
// batch-flush regular files, recurse into subdirectories, and — if
// remove_empty_dirs is on and this isn't the root — re-check emptiness
// for the reaper.
func (w *Walker) walkDir(ctx context.Context, dir string) {
	if w.circuitBroken.Load() {
		return
	}

	entries, err := w.reader.List(ctx, dir)
	if err != nil {
		w.st.IncErrors()
		w.log.WithError(err).WithField("path", dir).Warn("failed to list directory")
		return
	}
	w.st.IncDirsScanned()

	var buffer []string
	var subdirs []string
	for _, e := range entries {
		full := filepath.Join(dir, e.Name)
		switch {
		case e.IsSymlink:
			w.st.IncSymlinksSkipped()
		case e.IsDir:
			subdirs = append(subdirs, full)
		case e.IsRegular:
			buffer = append(buffer, full)
			if len(buffer) >= w.cfg.TaskBatchSize {
				w.flush(ctx, &buffer)
			}
		default:
			w.st.IncSpecialFilesSkipped()
		}
	}
	w.flush(ctx, &buffer)

	w.processSubdirs(ctx, subdirs)

	if w.cfg.RemoveEmptyDirs && dir != w.cfg.Root {
		w.checkEmpty(ctx, dir)
	}
}

// flush drains buffer through the pipeline and clears it unconditionally,
// even if the flush itself reported a circuit-break (spec.md §4.2 step 3:
// "clear must happen even if the flush raised").
func (w *Walker) flush(ctx context.Context, buffer *[]string) {
	defer func() { *buffer = (*buffer)[:0] }()
	if len(*buffer) == 0 {
		return
	}
	if w.pipeline.Flush(ctx, w.gate, *buffer) {
		w.circuitBroken.Store(true)
	}
}

// processSubdirs is the hybrid sliding-window processor (spec.md §4.6).
// It maintains a count of in-flight child walks bounded by subdir-slots:
// while slots are free and subdirectories remain, it tries to claim a
// slot and dispatch a child walk concurrently; when the fabric has no
// free permits, it falls back to processing that child sequentially,
// inline, rather than blocking on a permit an ancestor may be holding.
func (w *Walker) processSubdirs(ctx context.Context, remaining []string) {
	active := 0
	completions := make(chan struct{})
	i := 0
	iterations := 0

	for i < len(remaining) || active > 0 {
		iterations++
		if iterations > subdirSafetyCeiling {
			w.log.WithField("path_count", len(remaining)).Error("subdir sliding window exceeded safety ceiling")
			break
		}

		for active < w.cfg.SubdirSlots && i < len(remaining) {
			if w.circuitBroken.Load() {
				// Circuit break: open no new subdir slots. Remaining
				// children are abandoned for this run.
				i = len(remaining)
				break
			}
			path := remaining[i]
			i++
			if w.fabric.TryAcquireSubdir() {
				active++
				go func(p string) {
					defer func() {
						w.fabric.ReleaseSubdir()
						completions <- struct{}{}
					}()
					w.walkDir(ctx, p)
				}(path)
			} else {
				w.walkDir(ctx, path)
			}
		}

		if active == 0 {
			break
		}
		<-completions
		active--
	}
}

// checkEmpty re-reads dir and, if it is still empty at this observation,
// atomically inserts it into the run's empty-directory set (spec.md §4.2
// step 6). A listing error here is a benign race (the directory may have
// been removed by a concurrent deletion elsewhere) and is not counted.
func (w *Walker) checkEmpty(ctx context.Context, dir string) {
	entries, err := w.reader.List(ctx, dir)
	if err != nil {
		return
	}
	if len(entries) == 0 {
		w.st.InsertEmptyDirIfAbsent(dir)
	}
}
