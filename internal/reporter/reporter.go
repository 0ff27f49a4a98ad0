// Package reporter is the Progress Reporter (spec.md §4.9): a
// cooperatively-scheduled task that wakes on an interval, snapshots the
// run's counters, and emits exactly one structured log record per
// interval — never more, regardless of how many workers are active.
//
// Grounded on the teacher's internal/progress.Reporter (rate/ETA/percent
// math, formatDuration/formatNumber) and internal/engine's periodic
// monitorDeletionRate ticker goroutine, generalized from a single
// files/sec figure printed to stdout into instant/short-term/overall/peak
// rate tiers for both files and directories, emitted as JSON via logrus
// instead of a carriage-return progress bar — this engine runs
// unattended, so there is no terminal to animate.
package reporter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/purgefs/purgefs/internal/stats"
)

// sampleInterval is how often history is recorded; reportInterval is how
// often a record is emitted. Keeping them distinct lets "instant" (last
// ~10s) and "short-term" (last ~60s) rates be computed from a rolling
// history even though records are only emitted every 30s.
const (
	sampleInterval = 10 * time.Second
	reportInterval = 30 * time.Second
	historyDepth   = 7 // enough samples to look back ~60s at a 10s cadence

	// StuckThreshold is the number of consecutive unchanged report
	// intervals after which StuckIntervals callers (the reaper) should
	// further shrink their batch sizes (spec.md §4.9).
	StuckThreshold = 2
)

type sample struct {
	at   time.Time
	snap stats.Snapshot
}

// Reporter periodically logs a structured progress record and tracks
// whether the run appears stuck.
type Reporter struct {
	st  *stats.Stats
	log *logrus.Entry

	history []sample

	peakFileRate float64
	peakDirRate  float64

	lastReport     stats.Snapshot
	haveLastReport bool
	stuckIntervals int64
}

// New builds a Reporter over st, logging through log.
func New(st *stats.Stats, log *logrus.Entry) *Reporter {
	return &Reporter{st: st, log: log}
}

// StuckIntervals returns the number of consecutive report intervals in
// which neither files_scanned nor dirs_scanned advanced — callers (the
// reaper) consult this to shrink batch sizes further once it reaches
// StuckThreshold (spec.md §4.9).
func (r *Reporter) StuckIntervals() int64 {
	return atomic.LoadInt64(&r.stuckIntervals)
}

// Run drives the sample and report tickers until ctx is canceled, then
// emits one final snapshot with the run's terminal phase.
func (r *Reporter) Run(ctx context.Context) {
	sampleTicker := time.NewTicker(sampleInterval)
	reportTicker := time.NewTicker(reportInterval)
	defer sampleTicker.Stop()
	defer reportTicker.Stop()

	r.recordSample()

	for {
		select {
		case <-ctx.Done():
			r.emitFinal()
			return
		case <-sampleTicker.C:
			r.recordSample()
		case <-reportTicker.C:
			r.emitReport()
		}
	}
}

func (r *Reporter) recordSample() {
	s := sample{at: time.Now(), snap: r.st.Snapshot()}
	r.history = append(r.history, s)
	if len(r.history) > historyDepth {
		r.history = r.history[len(r.history)-historyDepth:]
	}
}

// rateSince returns (files/sec, dirs/sec) between the most recent sample
// and the newest sample at least minAgo older than it; when no sample is
// that old yet, the oldest sample held is used instead. Returns zeros if
// there is no history or no time has elapsed between the two samples.
func (r *Reporter) rateSince(minAgo time.Duration) (float64, float64) {
	if len(r.history) == 0 {
		return 0, 0
	}
	latest := r.history[len(r.history)-1]
	cutoff := latest.at.Add(-minAgo)

	base := r.history[0]
	for _, s := range r.history {
		if !s.at.After(cutoff) {
			base = s
		}
	}
	elapsed := latest.at.Sub(base.at).Seconds()
	if elapsed <= 0 {
		return 0, 0
	}
	fileRate := float64(latest.snap.FilesScanned-base.snap.FilesScanned) / elapsed
	dirRate := float64(latest.snap.DirsScanned-base.snap.DirsScanned) / elapsed
	return fileRate, dirRate
}

func (r *Reporter) emitReport() {
	r.recordSample()
	curr := r.st.Snapshot()

	instantFiles, instantDirs := r.rateSince(sampleInterval)
	shortFiles, shortDirs := r.rateSince(60 * time.Second)

	var overallFiles, overallDirs float64
	if elapsed := time.Since(curr.ScanStart).Seconds(); elapsed > 0 && !curr.ScanStart.IsZero() {
		overallFiles = float64(curr.FilesScanned) / elapsed
		overallDirs = float64(curr.DirsScanned) / elapsed
	}

	if instantFiles > r.peakFileRate {
		r.peakFileRate = instantFiles
	}
	if instantDirs > r.peakDirRate {
		r.peakDirRate = instantDirs
	}

	stuck := r.haveLastReport &&
		curr.FilesScanned == r.lastReport.FilesScanned &&
		curr.DirsScanned == r.lastReport.DirsScanned
	if stuck {
		atomic.AddInt64(&r.stuckIntervals, 1)
	} else {
		atomic.StoreInt64(&r.stuckIntervals, 0)
	}

	fields := logrus.Fields{
		"phase":                 curr.Phase,
		"files_scanned":         curr.FilesScanned,
		"files_to_purge":        curr.FilesToPurge,
		"files_purged":          curr.FilesPurged,
		"dirs_scanned":          curr.DirsScanned,
		"empty_dirs_deleted":    curr.EmptyDirsDeleted,
		"errors":                curr.Errors,
		"bytes_freed":           curr.BytesFreed,
		"backpressure_events":   curr.BackpressureEvents,
		"rate_files_instant":    instantFiles,
		"rate_files_short_term": shortFiles,
		"rate_files_overall":    overallFiles,
		"rate_files_peak":       r.peakFileRate,
		"rate_dirs_instant":     instantDirs,
		"rate_dirs_short_term":  shortDirs,
		"rate_dirs_overall":     overallDirs,
		"rate_dirs_peak":        r.peakDirRate,
	}

	if stuck {
		n := atomic.LoadInt64(&r.stuckIntervals)
		fields["stuck_intervals"] = n
		r.log.WithFields(fields).Warn("possible_hang")
		if n >= StuckThreshold {
			r.log.WithField("stuck_intervals", n).Warn("stuck for multiple intervals, batch sizes will shrink further")
		}
	} else {
		r.log.WithFields(fields).Info("progress")
	}

	r.lastReport = curr
	r.haveLastReport = true
}

func (r *Reporter) emitFinal() {
	curr := r.st.Snapshot()
	r.log.WithFields(logrus.Fields{
		"phase":              curr.Phase,
		"abort_reason":       curr.AbortReason,
		"files_scanned":      curr.FilesScanned,
		"files_purged":       curr.FilesPurged,
		"empty_dirs_deleted": curr.EmptyDirsDeleted,
		"errors":             curr.Errors,
		"bytes_freed":        curr.BytesFreed,
	}).Info("final")
}
