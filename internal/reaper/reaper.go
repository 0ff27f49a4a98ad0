// Package reaper is the Empty-Dir Reaper (spec.md §4.7): it consumes the
// walker's EmptyDirSet and removes directories depth-first (so parents are
// only considered once every empty child has already been removed),
// cascading upward as deletions empty out their own parents.
//
// Grounded on the teacher's deepest-first ordering in
// internal/scanner/scanner.go ("for i := len(directories) - 1; i >= 0;
// i--"), generalized from a single reverse pass over every scanned
// directory into the two-pass (initial + cascading) algorithm this spec
// requires, with rate-gated batches instead of the teacher's unbounded
// sequential loop.
package reaper

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/purgefs/purgefs/internal/backpressure"
	"github.com/purgefs/purgefs/internal/config"
	"github.com/purgefs/purgefs/internal/dirreader"
	"github.com/purgefs/purgefs/internal/fsops"
	"github.com/purgefs/purgefs/internal/reporter"
	"github.com/purgefs/purgefs/internal/sched"
	"github.com/purgefs/purgefs/internal/stats"
)

// perPathOverheadBytes is the rough memory cost attributed to tracking one
// pending empty-directory candidate, used only to compose the start-up
// suggestion when max_empty_dirs_per_run is left unlimited.
const perPathOverheadBytes = 256

// Reaper removes the empty directories accumulated during a walk.
type Reaper struct {
	cfg    *config.Config
	fabric *sched.Fabric
	fs     fsops.Backend
	reader *dirreader.Reader
	gate   *backpressure.Gate
	rep    *reporter.Reporter // nil disables stuck-interval batch shrinkage
	st     *stats.Stats
	log    *logrus.Entry
}

// New builds a Reaper. If cfg.MaxEmptyDirsPerRun is 0 (unlimited) it logs
// a one-time start-up warning, carrying a suggested bound when a soft
// memory limit is configured, per spec.md §4.7. rep
// may be nil to disable the stuck-interval batch-shrink feedback loop
// (e.g. in tests that construct a Reaper without a live Reporter).
func New(cfg *config.Config, fabric *sched.Fabric, fs fsops.Backend, reader *dirreader.Reader, gate *backpressure.Gate, rep *reporter.Reporter, st *stats.Stats, log *logrus.Entry) *Reaper {
	if cfg.MaxEmptyDirsPerRun == 0 {
		warn := log
		if cfg.SoftMemoryLimitBytes > 0 {
			suggested := int64(float64(cfg.SoftMemoryLimitBytes)*0.70) / perPathOverheadBytes
			warn = log.WithField("suggested_max_empty_dirs_per_run", suggested)
		}
		warn.Warn("max_empty_dirs_per_run is unlimited; an unbounded candidate set can itself pressure memory")
	}
	return &Reaper{cfg: cfg, fabric: fabric, fs: fs, reader: reader, gate: gate, rep: rep, st: st, log: log}
}

// Run drains the stats empty-directory set through Pass A and Pass B.
// Returns true if a circuit-break aborted the reaper mid-run.
func (r *Reaper) Run(ctx context.Context) bool {
	candidates := r.st.EmptyDirs()
	r.st.ClearEmptyDirs()
	if len(candidates) == 0 {
		return false
	}

	var counted int64
	quota := r.cfg.MaxEmptyDirsPerRun

	sortDeepestFirst(candidates)
	cascadeParents, circuitBroke := r.runPass(ctx, candidates, quota, &counted, false)
	if circuitBroke {
		return true
	}

	iteration := 0
	for len(cascadeParents) > 0 {
		if quota > 0 && atomic.LoadInt64(&counted) >= int64(quota) {
			break
		}
		filtered := r.filterCandidates(ctx, cascadeParents)
		if len(filtered) == 0 {
			break
		}
		sortDeepestFirst(filtered)

		var broke bool
		cascadeParents, broke = r.runPass(ctx, filtered, quota, &counted, true)
		iteration++

		snap := r.st.Snapshot()
		if iteration%100 == 0 || snap.EmptyDirsDeleted%1000 < int64(len(filtered)) {
			r.log.WithFields(logrus.Fields{
				"iteration":          iteration,
				"empty_dirs_deleted": snap.EmptyDirsDeleted,
			}).Info("cascade progress")
		}
		if broke {
			return true
		}
	}
	return false
}

// runPass processes candidates in dynamically-sized concurrent batches
// (base clamp(50, 200, delete_slots/10), shrunk by backpressure.ShrinkBatch
// and further halved once the reporter has seen StuckThreshold stuck
// intervals), checking the back-pressure gate before and after each
// batch, and returns the deduplicated set of parent directories made
// candidates for the next cascade iteration.
func (r *Reaper) runPass(ctx context.Context, candidates []string, quota int, counted *int64, cascade bool) ([]string, bool) {
	base := clampInt(50, 200, r.cfg.DeleteSlots/10)

	var mu sync.Mutex
	parentSet := make(map[string]struct{})

	for start := 0; start < len(candidates); {
		res, circuitBreak := r.sampleGate()
		if circuitBreak {
			return setToSlice(parentSet), true
		}

		batchSize := r.batchSize(base, res)
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]
		start = end

		var wg sync.WaitGroup
		var quotaSkipped int64
		wg.Add(len(batch))
		for _, path := range batch {
			path := path
			go func() {
				defer wg.Done()
				parent, skippedQuota := r.processItem(ctx, path, quota, counted, cascade)
				if skippedQuota {
					atomic.AddInt64(&quotaSkipped, 1)
					return
				}
				if parent != "" {
					mu.Lock()
					parentSet[parent] = struct{}{}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if n := atomic.LoadInt64(&quotaSkipped); n > 0 {
			r.log.WithField("unprocessed", n).Warn("max_empty_dirs_per_run reached, stopping")
		}

		if _, circuitBreak := r.sampleGate(); circuitBreak {
			return setToSlice(parentSet), true
		}
		if quota > 0 && atomic.LoadInt64(counted) >= int64(quota) {
			return setToSlice(parentSet), false
		}
	}
	return setToSlice(parentSet), false
}

// batchSize applies backpressure.ShrinkBatch to base, then halves the
// result again (floored at backpressure.MinBatchSize) once the run has
// been stuck for at least reporter.StuckThreshold intervals (spec.md
// §4.9: "after ≥2 stuck intervals, further shrink batch sizes").
func (r *Reaper) batchSize(base int, res backpressure.Result) int {
	size := backpressure.ShrinkBatch(base, res)
	if r.rep != nil && r.rep.StuckIntervals() >= reporter.StuckThreshold {
		size /= 2
		if size < backpressure.MinBatchSize {
			size = backpressure.MinBatchSize
		}
	}
	return size
}

// processItem re-reads path (no delete-slot needed for the read), skips it
// if non-empty, reserves one unit of the per-run quota, and — unless
// dry-run — rmdirs it under a delete-slot held only for the rmdir itself.
// Returns the parent path to record as a cascade candidate on a real
// deletion, or ("", true) if the item was confirmed empty but the quota
// was already exhausted.
//
// cascade candidates were never observed by the walker, so path was not
// counted into empty_dirs_found during the scan; confirming it empty here
// is this directory's first and only chance to count toward that invariant
// (spec.md §3, §8 invariant 2: empty_dirs_deleted ≤ empty_dirs_to_delete ≤
// empty_dirs_found). Pass A candidates (cascade == false) were already
// counted by the walker and must not be counted twice.
func (r *Reaper) processItem(ctx context.Context, path string, quota int, counted *int64, cascade bool) (string, bool) {
	entries, err := r.reader.List(ctx, path)
	if err != nil {
		return "", false // gone already; benign race
	}
	if len(entries) != 0 {
		return "", false
	}
	if cascade {
		r.st.InsertEmptyDirIfAbsent(path)
	}

	if quota > 0 {
		for {
			cur := atomic.LoadInt64(counted)
			if cur >= int64(quota) {
				return "", true
			}
			if atomic.CompareAndSwapInt64(counted, cur, cur+1) {
				break
			}
		}
	}

	r.st.IncEmptyDirsToDelete()
	if r.cfg.DryRun {
		return "", false
	}

	if err := r.fabric.AcquireDelete(ctx); err != nil {
		return "", false
	}
	rerr := r.fs.Rmdir(path)
	r.fabric.ReleaseDelete()

	if rerr != nil {
		switch {
		case errors.Is(rerr, fsops.ErrGone), errors.Is(rerr, fsops.ErrNotEmpty):
		case errors.Is(rerr, fsops.ErrPermission):
			r.st.IncErrors()
			r.log.WithField("path", path).Warn("permission denied removing empty directory")
		default:
			r.st.IncErrors()
			r.log.WithError(rerr).WithField("path", path).Error("failed to remove empty directory")
		}
		return "", false
	}

	r.st.IncEmptyDirsDeleted()
	return filepath.Dir(path), false
}

// filterCandidates keeps only parents that still exist, are directories,
// are not the purge root, and are currently empty (spec.md §4.7 Pass B).
func (r *Reaper) filterCandidates(ctx context.Context, parents []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range parents {
		if p == r.cfg.Root {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		entries, err := r.reader.List(ctx, p)
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			out = append(out, p)
		}
	}
	return out
}

// sampleGate checks the back-pressure gate, records the sampled usage as
// a peak-memory candidate and any over-soft reading as a backpressure
// event, and returns the full Result alongside its CircuitBreak verdict
// so callers can also derive a batch size from it.
func (r *Reaper) sampleGate() (backpressure.Result, bool) {
	if r.gate == nil {
		return backpressure.Result{}, false
	}
	res := r.gate.Check()
	r.st.UpdatePeakMemory(res.Usage)
	if res.OverSoft {
		r.st.RecordBackpressureEvent()
	}
	return res, res.CircuitBreak
}

// sortDeepestFirst orders paths by descending path-component count, so
// deletion is post-order: a parent is only ever considered after all of
// its listed children.
func sortDeepestFirst(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		return depth(paths[i]) > depth(paths[j])
	})
}

func depth(path string) int {
	return strings.Count(filepath.Clean(path), string(filepath.Separator))
}

func clampInt(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
