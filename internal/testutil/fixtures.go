package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TreeShape describes an age- and emptiness-aware directory tree to build
// for purge testing. Unlike a flat random-content fixture, every file
// carries an explicit mtime relative to a cutoff. Every directory gets
// FilesPerDir files, so directories are left empty only when FilesPerDir
// is 0 (then the leaves give reaper tests something to cascade through).
type TreeShape struct {
	Depth        int     // subdirectory nesting depth
	DirsPerLevel int     // subdirectories created at each level
	FilesPerDir  int     // files created in each directory (0 allowed, for pure empty-dir trees)
	Cutoff       time.Time
	StaleRatio   float64 // fraction of files backdated before Cutoff, in [0,1]
}

// BuildAgedTree materializes shape under t.TempDir() and returns the root.
// Each file's mtime is set directly via os.Chtimes rather than relying on
// wall-clock drift, so tests stay deterministic regardless of how long
// fixture construction takes.
func BuildAgedTree(t *testing.T, shape TreeShape) string {
	t.Helper()
	root := t.TempDir()
	if err := growAgedTree(root, 0, shape); err != nil {
		t.Fatalf("BuildAgedTree: %v", err)
	}
	return root
}

func growAgedTree(dir string, depth int, shape TreeShape) error {
	for i := 0; i < shape.FilesPerDir; i++ {
		name := filepath.Join(dir, fmt.Sprintf("file_%d_%d.txt", depth, i))
		stale := shape.StaleRatio >= 1 || (shape.StaleRatio > 0 && i%denom(shape.StaleRatio) == 0)
		if err := writeAgedFile(name, stale, shape.Cutoff); err != nil {
			return err
		}
	}

	if depth >= shape.Depth {
		return nil
	}
	for i := 0; i < shape.DirsPerLevel; i++ {
		sub := filepath.Join(dir, fmt.Sprintf("dir_%d_%d", depth, i))
		if err := os.Mkdir(sub, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", sub, err)
		}
		if err := growAgedTree(sub, depth+1, shape); err != nil {
			return err
		}
	}
	return nil
}

// denom turns a stale ratio into "every Nth file is stale" so callers get
// an approximately correct stale/fresh split without pulling in a random
// source purely for fixture shaping.
func denom(ratio float64) int {
	if ratio <= 0 {
		return 1 << 30 // effectively never
	}
	n := int(1 / ratio)
	if n < 1 {
		n = 1
	}
	return n
}

func writeAgedFile(path string, stale bool, cutoff time.Time) error {
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	var mtime time.Time
	if stale {
		mtime = cutoff.Add(-24 * time.Hour)
	} else {
		mtime = cutoff.Add(24 * time.Hour)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		return fmt.Errorf("chtimes %s: %w", path, err)
	}
	return nil
}

// BuildEmptyCascade creates a purely-empty chain root/d0/d1/.../d(n-1), used
// to exercise the post-order reap property (spec §8 invariant 7: no
// directory rmdir'd while a child still exists).
func BuildEmptyCascade(t *testing.T, depth int) string {
	t.Helper()
	root := t.TempDir()
	cur := root
	for i := 0; i < depth; i++ {
		cur = filepath.Join(cur, fmt.Sprintf("d%d", i))
		if err := os.Mkdir(cur, 0o755); err != nil {
			t.Fatalf("BuildEmptyCascade: %v", err)
		}
	}
	return root
}

// CountFiles recursively counts all non-directory entries in a directory.
func CountFiles(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}

// CountEmptyDirs recursively counts directories under dir (excluding dir
// itself) that contain no entries.
func CountEmptyDirs(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == dir {
			return nil
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			count++
		}
		return nil
	})
	return count, err
}
