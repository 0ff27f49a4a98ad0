// Package stats holds the single piece of widely-shared mutable state in
// the purge engine: the run's counters and the set of directories
// observed empty during the walk. Every field is guarded by one mutex,
// per spec.md §5 ("Stats is the only widely-mutated state and is guarded
// by exactly one mutex"); the empty-directory set is inserted into under
// that same lock so two concurrent observers of the same parent can never
// produce duplicate entries (spec.md §4.2, step 6).
package stats

import (
	"sync"
	"time"
)

// Phase is the orchestrator's coarse run state, reported in every
// progress snapshot and in the final Stats.
type Phase string

const (
	PhaseStarting          Phase = "starting"
	PhaseScanning          Phase = "scanning"
	PhaseRemovingEmptyDirs Phase = "removing_empty_dirs"
	PhaseCompleted         Phase = "completed"
	PhaseAborted           Phase = "aborted"
)

// Snapshot is a point-in-time, lock-free copy of Stats safe to log or
// return to a caller after the lock has been released.
type Snapshot struct {
	FilesScanned        int64
	FilesToPurge        int64
	FilesPurged         int64
	DirsScanned         int64
	SymlinksSkipped     int64
	SpecialFilesSkipped int64
	EmptyDirsFound      int64
	EmptyDirsToDelete   int64
	EmptyDirsDeleted    int64
	Errors              int64
	BytesFreed          int64
	BackpressureEvents  int64
	PeakMemory          int64
	ScanStart           time.Time
	ScanEnd             time.Time
	Phase               Phase
	AbortReason         string
}

// Stats is the orchestrator-owned, mutex-guarded run state described in
// spec.md §3. Every mutating method takes the lock; Snapshot takes it
// once and returns a plain copy so callers (the reporter, the final log
// line) never hold it.
type Stats struct {
	mu sync.Mutex
	s  Snapshot

	root      string
	emptyDirs map[string]struct{}
}

// New creates a Stats for a run whose root is rootPath; rootPath is
// excluded from the empty-directory set for the run's lifetime (spec.md
// §3 invariant: "The EmptyDirSet never contains the root path").
func New(rootPath string) *Stats {
	return &Stats{
		s:         Snapshot{Phase: PhaseStarting},
		root:      rootPath,
		emptyDirs: make(map[string]struct{}),
	}
}

// SetPhase transitions the run's phase.
func (st *Stats) SetPhase(p Phase) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Phase = p
}

// Abort transitions to PhaseAborted and records the reason, used by the
// circuit breaker (spec.md §4.8).
func (st *Stats) Abort(reason string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Phase = PhaseAborted
	st.s.AbortReason = reason
}

// MarkScanStart records the scan phase's start time.
func (st *Stats) MarkScanStart(t time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ScanStart = t
}

// MarkScanEnd records the scan phase's end time. The overall files/sec
// and dirs/sec reported at the end are computed from ScanStart..ScanEnd,
// deliberately excluding empty-dir reaping (spec.md §4.1).
func (st *Stats) MarkScanEnd(t time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ScanEnd = t
}

// IncFilesScanned increments files_scanned by one.
func (st *Stats) IncFilesScanned() {
	st.mu.Lock()
	st.s.FilesScanned++
	st.mu.Unlock()
}

// IncDirsScanned increments dirs_scanned by one.
func (st *Stats) IncDirsScanned() {
	st.mu.Lock()
	st.s.DirsScanned++
	st.mu.Unlock()
}

// IncSymlinksSkipped increments symlinks_skipped by one.
func (st *Stats) IncSymlinksSkipped() {
	st.mu.Lock()
	st.s.SymlinksSkipped++
	st.mu.Unlock()
}

// IncSpecialFilesSkipped increments special_files_skipped by one.
func (st *Stats) IncSpecialFilesSkipped() {
	st.mu.Lock()
	st.s.SpecialFilesSkipped++
	st.mu.Unlock()
}

// IncErrors increments the error counter by one.
func (st *Stats) IncErrors() {
	st.mu.Lock()
	st.s.Errors++
	st.mu.Unlock()
}

// RecordFileToPurge increments files_to_purge and adds size to
// bytes_freed. Called for every file found older than the cutoff,
// independent of dry_run (spec.md §3 invariant).
func (st *Stats) RecordFileToPurge(size int64) {
	st.mu.Lock()
	st.s.FilesToPurge++
	st.s.BytesFreed += size
	st.mu.Unlock()
}

// IncFilesPurged increments files_purged by one. Never called in
// dry-run mode.
func (st *Stats) IncFilesPurged() {
	st.mu.Lock()
	st.s.FilesPurged++
	st.mu.Unlock()
}

// IncEmptyDirsToDelete increments empty_dirs_to_delete by one; counted
// against the reaper's rate limit even in dry-run mode (spec.md §4.7).
func (st *Stats) IncEmptyDirsToDelete() {
	st.mu.Lock()
	st.s.EmptyDirsToDelete++
	st.mu.Unlock()
}

// IncEmptyDirsDeleted increments empty_dirs_deleted by one. Never called
// in dry-run mode.
func (st *Stats) IncEmptyDirsDeleted() {
	st.mu.Lock()
	st.s.EmptyDirsDeleted++
	st.mu.Unlock()
}

// RecordBackpressureEvent increments backpressure_events by one.
func (st *Stats) RecordBackpressureEvent() {
	st.mu.Lock()
	st.s.BackpressureEvents++
	st.mu.Unlock()
}

// UpdatePeakMemory raises peak_memory to usage if usage is higher,
// preserving the monotonically-non-decreasing invariant (spec.md §3, §8).
func (st *Stats) UpdatePeakMemory(usage int64) {
	st.mu.Lock()
	if usage > st.s.PeakMemory {
		st.s.PeakMemory = usage
	}
	st.mu.Unlock()
}

// InsertEmptyDirIfAbsent atomically checks and inserts path into the
// empty-directory set, returning true if it was newly inserted. The
// check-and-insert is one critical section under stats_lock so two
// concurrent observers of the same parent can never both insert it
// (spec.md §4.2 step 6, §9 "duplicate empty-dir observation"). The root
// path is always rejected.
func (st *Stats) InsertEmptyDirIfAbsent(path string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if path == st.root {
		return false
	}
	if _, exists := st.emptyDirs[path]; exists {
		return false
	}
	st.emptyDirs[path] = struct{}{}
	st.s.EmptyDirsFound++
	return true
}

// EmptyDirs returns a snapshot slice of every path currently in the
// empty-directory set, for the reaper to consume.
func (st *Stats) EmptyDirs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]string, 0, len(st.emptyDirs))
	for p := range st.emptyDirs {
		out = append(out, p)
	}
	return out
}

// ClearEmptyDirs empties the set after the reaper has consumed it
// (spec.md §3, "cleared after").
func (st *Stats) ClearEmptyDirs() {
	st.mu.Lock()
	st.emptyDirs = make(map[string]struct{})
	st.mu.Unlock()
}

// Snapshot returns a lock-free copy of the current counters, safe to log
// or return to the caller after the lock is released.
func (st *Stats) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}
