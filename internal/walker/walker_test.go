package walker

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/purgefs/purgefs/internal/clock"
	"github.com/purgefs/purgefs/internal/config"
	"github.com/purgefs/purgefs/internal/dirreader"
	"github.com/purgefs/purgefs/internal/fsops"
	"github.com/purgefs/purgefs/internal/pipeline"
	"github.com/purgefs/purgefs/internal/sched"
	"github.com/purgefs/purgefs/internal/stats"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("logger", "test")
}

// buildTree creates root/ with: old.txt (stale), new.txt (fresh),
// sub/old_in_sub.txt (stale), and sub/empty/ (an empty directory).
func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	mustWrite := func(p string) {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite(filepath.Join(root, "old.txt"))
	mustWrite(filepath.Join(root, "new.txt"))
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(filepath.Join(root, "sub", "old_in_sub.txt"))
	if err := os.Mkdir(filepath.Join(root, "sub", "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	stale := time.Now().Add(-60 * 24 * time.Hour)
	for _, p := range []string{
		filepath.Join(root, "old.txt"),
		filepath.Join(root, "sub", "old_in_sub.txt"),
	} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func buildWalker(t *testing.T, root string, dryRun bool) (*Walker, *stats.Stats) {
	t.Helper()
	cfg, err := config.Build(config.Params{Root: root, MaxAgeDays: 30, DryRun: dryRun, RemoveEmptyDirs: true}, clock.System{})
	if err != nil {
		t.Fatalf("config.Build: %v", err)
	}
	fabric := sched.New(cfg.ScanSlots, cfg.DeleteSlots, cfg.SubdirSlots)
	ctx := context.Background()
	reader := dirreader.New(ctx, dirreader.PoolSize(cfg.SubdirSlots))
	st := stats.New(cfg.Root)
	pl := pipeline.New(cfg, fabric, fsops.NewBackend(), clock.System{}, st, discardLogger())
	w := New(cfg, fabric, reader, pl, nil, st, discardLogger())
	return w, st
}

func TestWalkPurgesStaleFilesKeepsFresh(t *testing.T) {
	root := buildTree(t)
	w, st := buildWalker(t, root, false)

	w.Walk(context.Background(), root)

	if _, err := os.Stat(filepath.Join(root, "old.txt")); !os.IsNotExist(err) {
		t.Error("old.txt should have been purged")
	}
	if _, err := os.Stat(filepath.Join(root, "new.txt")); err != nil {
		t.Error("new.txt should still exist")
	}
	if _, err := os.Stat(filepath.Join(root, "sub", "old_in_sub.txt")); !os.IsNotExist(err) {
		t.Error("sub/old_in_sub.txt should have been purged")
	}

	snap := st.Snapshot()
	if snap.FilesPurged != 2 {
		t.Fatalf("FilesPurged = %d, want 2", snap.FilesPurged)
	}
	dirs := st.EmptyDirs()
	found := false
	for _, d := range dirs {
		if d == filepath.Join(root, "sub", "empty") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sub/empty in EmptyDirSet, got %v", dirs)
	}
}

func TestWalkDryRunNeverDeletes(t *testing.T) {
	root := buildTree(t)
	w, st := buildWalker(t, root, true)

	w.Walk(context.Background(), root)

	if _, err := os.Stat(filepath.Join(root, "old.txt")); err != nil {
		t.Error("dry-run must not delete old.txt")
	}
	snap := st.Snapshot()
	if snap.FilesToPurge != 2 {
		t.Fatalf("FilesToPurge = %d, want 2", snap.FilesToPurge)
	}
	if snap.FilesPurged != 0 {
		t.Fatalf("FilesPurged = %d, want 0 in dry-run", snap.FilesPurged)
	}
}

func TestWalkNeverRecordsRootAsEmpty(t *testing.T) {
	root := t.TempDir() // root itself is empty
	w, st := buildWalker(t, root, false)

	w.Walk(context.Background(), root)

	if len(st.EmptyDirs()) != 0 {
		t.Fatalf("root must never be inserted into the empty-dir set, got %v", st.EmptyDirs())
	}
}
