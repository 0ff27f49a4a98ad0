package clock

import (
	"os"
	"sync"
	"time"
)

// Fake is a test Clock with a settable, mutex-protected "now".
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock pinned to t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

// Now returns the pinned time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set updates the pinned time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// FakeStatSource is an in-memory StatSource for tests that don't want to
// depend on real filesystem timing.
type FakeStatSource struct {
	mu      sync.Mutex
	entries map[string]FileMeta
}

// NewFakeStatSource returns an empty FakeStatSource.
func NewFakeStatSource() *FakeStatSource {
	return &FakeStatSource{entries: make(map[string]FileMeta)}
}

// Set registers metadata for a path.
func (f *FakeStatSource) Set(path string, meta FileMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[path] = meta
}

// Remove deletes a path's metadata, simulating a benign TOCTOU race.
func (f *FakeStatSource) Remove(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, path)
}

// Lstat implements StatSource.
func (f *FakeStatSource) Lstat(path string) (FileMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.entries[path]
	if !ok {
		return FileMeta{}, &os.PathError{Op: "lstat", Path: path, Err: os.ErrNotExist}
	}
	return meta, nil
}
