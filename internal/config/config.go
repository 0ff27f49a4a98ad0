// Package config builds and validates the immutable Config the purge
// orchestrator runs with: the root path, the age cutoff, the three
// semaphore capacities, batching and memory thresholds, and the
// dry-run/remove-empty-dirs switches. It also enforces the root-path
// denylist (spec.md §4.1) before any filesystem I/O happens.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/purgefs/purgefs/internal/clock"
)

// Sentinel errors matching the taxonomy in spec.md §7. Both are fatal:
// the orchestrator returns them before starting any work.
var (
	ErrConfigInvalid = errors.New("config: invalid parameter")
	ErrRootBlocked   = errors.New("config: root path is a protected system path")
)

// blockedPrefixes are system paths that must never be purged or recursed
// into, per spec.md §4.1. Grounded on the teacher's internal/safety
// ProtectedPaths list, narrowed to the POSIX prefixes this spec names
// (the teacher's Windows drive-root entries don't apply to an EFS-class
// Linux target).
var blockedPrefixes = []string{
	"/proc",
	"/sys",
	"/dev",
	"/run",
	"/boot",
	"/bin",
	"/sbin",
	"/lib",
	"/lib64",
	"/etc",
}

// Params are the raw, CLI/env-sourced values used to build a Config. Zero
// values trigger the defaults documented per field.
type Params struct {
	Root                 string
	MaxAgeDays           float64 // files with mtime >= now-this are preserved
	ScanSlots            int     // default 1000
	DeleteSlots          int     // default 1000
	SubdirSlots          int     // default 100
	LegacyMaxConcurrency int     // deprecated alias for ScanSlots == DeleteSlots, 0 = unset
	TaskBatchSize        int     // default 500
	SoftMemoryLimitMB    int64   // 0 disables memory logic
	HardMemoryRatio      float64 // default 0.95 of soft limit
	RemoveEmptyDirs      bool
	MaxEmptyDirsPerRun   int // 0 = unlimited
	DryRun               bool

	// DirListingsPerSecond paces the directory reader's list_directory
	// calls on EFS-class backends where an unbounded concurrent burst of
	// READDIR calls degrades shared-filesystem latency for other
	// tenants (spec.md §4.5). 0 disables pacing.
	DirListingsPerSecond float64
}

const (
	defaultScanSlots       = 1000
	defaultDeleteSlots     = 1000
	defaultSubdirSlots     = 100
	defaultTaskBatchSize   = 500
	defaultHardMemoryRatio = 0.95
)

// Config is the orchestrator's immutable, validated run configuration.
// Built once at start; every field is read-only for the lifetime of a run
// (spec.md §3, "Built once at start, immutable").
type Config struct {
	Root       string
	Cutoff     time.Time
	MaxAgeDays float64

	ScanSlots   int
	DeleteSlots int
	SubdirSlots int

	TaskBatchSize int

	SoftMemoryLimitBytes int64 // 0 disables back-pressure/circuit-break logic
	HardMemoryRatio      float64

	RemoveEmptyDirs    bool
	MaxEmptyDirsPerRun int

	DryRun bool

	DirListingsPerSecond float64

	// LegacyAliasUsed records whether max_concurrency was supplied, so the
	// orchestrator can emit the one-time deprecation warning (spec.md §4.4).
	LegacyAliasUsed bool
}

// Build validates Params and a clock's "now" into an immutable Config.
// Returns ErrConfigInvalid for any out-of-domain value, or ErrRootBlocked
// if the root is or resolves into a denylisted system prefix. No
// filesystem I/O beyond path resolution happens here.
func Build(p Params, c clock.Clock) (*Config, error) {
	if p.Root == "" {
		return nil, fmt.Errorf("%w: root path must not be empty", ErrConfigInvalid)
	}
	absRoot, err := filepath.Abs(p.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve root path %q: %v", ErrConfigInvalid, p.Root, err)
	}
	absRoot = filepath.Clean(absRoot)

	if p.MaxAgeDays < 0 {
		return nil, fmt.Errorf("%w: max_age_days must be >= 0, got %v", ErrConfigInvalid, p.MaxAgeDays)
	}

	scanSlots := p.ScanSlots
	deleteSlots := p.DeleteSlots
	legacyUsed := false
	if p.LegacyMaxConcurrency > 0 {
		legacyUsed = true
		scanSlots = p.LegacyMaxConcurrency
		deleteSlots = p.LegacyMaxConcurrency
	}
	if scanSlots == 0 {
		scanSlots = defaultScanSlots
	}
	if deleteSlots == 0 {
		deleteSlots = defaultDeleteSlots
	}
	subdirSlots := p.SubdirSlots
	if subdirSlots == 0 {
		subdirSlots = defaultSubdirSlots
	}
	if scanSlots <= 0 {
		return nil, fmt.Errorf("%w: max_concurrency_scanning must be > 0, got %d", ErrConfigInvalid, scanSlots)
	}
	if deleteSlots <= 0 {
		return nil, fmt.Errorf("%w: max_concurrency_deletion must be > 0, got %d", ErrConfigInvalid, deleteSlots)
	}
	if subdirSlots <= 0 {
		return nil, fmt.Errorf("%w: max_concurrent_subdirs must be > 0, got %d", ErrConfigInvalid, subdirSlots)
	}

	batchSize := p.TaskBatchSize
	if batchSize == 0 {
		batchSize = defaultTaskBatchSize
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: task_batch_size must be >= 1, got %d", ErrConfigInvalid, batchSize)
	}

	if p.SoftMemoryLimitMB < 0 {
		return nil, fmt.Errorf("%w: memory_limit_mb must be >= 0, got %d", ErrConfigInvalid, p.SoftMemoryLimitMB)
	}

	hardRatio := p.HardMemoryRatio
	if hardRatio == 0 {
		hardRatio = defaultHardMemoryRatio
	}

	if p.MaxEmptyDirsPerRun < 0 {
		return nil, fmt.Errorf("%w: max_empty_dirs_to_delete must be >= 0, got %d", ErrConfigInvalid, p.MaxEmptyDirsPerRun)
	}

	if p.DirListingsPerSecond < 0 {
		return nil, fmt.Errorf("%w: dir_listings_per_second must be >= 0, got %v", ErrConfigInvalid, p.DirListingsPerSecond)
	}

	if blocked, prefix := isBlocked(absRoot); blocked {
		return nil, fmt.Errorf("%w: %s matches protected prefix %s", ErrRootBlocked, absRoot, prefix)
	}

	cutoff := c.Now().Add(-time.Duration(p.MaxAgeDays * float64(24*time.Hour)))

	return &Config{
		Root:                 absRoot,
		Cutoff:               cutoff,
		MaxAgeDays:           p.MaxAgeDays,
		ScanSlots:            scanSlots,
		DeleteSlots:          deleteSlots,
		SubdirSlots:          subdirSlots,
		TaskBatchSize:        batchSize,
		SoftMemoryLimitBytes: p.SoftMemoryLimitMB * 1024 * 1024,
		HardMemoryRatio:      hardRatio,
		RemoveEmptyDirs:      p.RemoveEmptyDirs,
		MaxEmptyDirsPerRun:   p.MaxEmptyDirsPerRun,
		DryRun:               p.DryRun,
		LegacyAliasUsed:      legacyUsed,
		DirListingsPerSecond: p.DirListingsPerSecond,
	}, nil
}

// isBlocked reports whether path equals or is nested inside a denylisted
// system prefix, mirroring the teacher's isParentOf/ProtectedPaths check
// in internal/safety/validator.go but inverted: here we ask "is the root
// inside a protected tree", where the teacher asked "does the root contain
// one" — a purge target a few levels under /etc is just as dangerous as
// /etc itself.
func isBlocked(path string) (bool, string) {
	for _, prefix := range blockedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return true, prefix
		}
	}
	return false, ""
}
