// Package sched is the scheduling fabric: three independent counting
// semaphores that are the only shapers of parallelism in the engine
// (spec.md §4.4, §5). scan-slots caps stat/read ops, delete-slots caps
// unlink/rmdir ops, and subdir-slots caps simultaneous subdirectory
// walks — the dominant control for memory on deep trees.
//
// Grounded on golang.org/x/sync/semaphore (see
// other_examples/50cffcbd_sflanaga-du2go__du.go.go for the same
// counting-semaphore-gated-walk pattern) rather than a hand-rolled
// buffered-channel token bucket, since semaphore.Weighted's TryAcquire
// is exactly the non-blocking exhaustion check the hybrid sliding-window
// walker needs for its deadlock-avoidance fallback (spec.md §4.6).
package sched

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Fabric owns the three semaphores for one purge run.
type Fabric struct {
	scan   *semaphore.Weighted
	delete *semaphore.Weighted
	subdir *semaphore.Weighted

	ScanCapacity   int
	DeleteCapacity int
	SubdirCapacity int
}

// New builds a Fabric with the given slot capacities.
func New(scanSlots, deleteSlots, subdirSlots int) *Fabric {
	return &Fabric{
		scan:           semaphore.NewWeighted(int64(scanSlots)),
		delete:         semaphore.NewWeighted(int64(deleteSlots)),
		subdir:         semaphore.NewWeighted(int64(subdirSlots)),
		ScanCapacity:   scanSlots,
		DeleteCapacity: deleteSlots,
		SubdirCapacity: subdirSlots,
	}
}

// AcquireScan blocks until a scan slot is free or ctx is done.
func (f *Fabric) AcquireScan(ctx context.Context) error {
	return f.scan.Acquire(ctx, 1)
}

// ReleaseScan returns a scan slot.
func (f *Fabric) ReleaseScan() { f.scan.Release(1) }

// AcquireDelete blocks until a delete slot is free or ctx is done.
func (f *Fabric) AcquireDelete(ctx context.Context) error {
	return f.delete.Acquire(ctx, 1)
}

// ReleaseDelete returns a delete slot.
func (f *Fabric) ReleaseDelete() { f.delete.Release(1) }

// TryAcquireSubdir attempts to claim a subdir slot without blocking.
// Returns false immediately when the fabric has no free permits — the
// signal the walker uses to fall back to sequential processing of a
// branch instead of risking deadlock against an ancestor holding the
// only outstanding permits (spec.md §4.6, §9).
func (f *Fabric) TryAcquireSubdir() bool {
	return f.subdir.TryAcquire(1)
}

// ReleaseSubdir returns a subdir slot claimed by TryAcquireSubdir.
func (f *Fabric) ReleaseSubdir() { f.subdir.Release(1) }
