package clock

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSystemLstatClassifiesKinds(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(regular, []byte("x"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(regular, link); err != nil {
		t.Fatalf("setup: %v", err)
	}

	var s System
	cases := []struct {
		path string
		want Kind
	}{
		{regular, KindRegular},
		{sub, KindDirectory},
		{link, KindSymlink},
	}
	for _, tc := range cases {
		meta, err := s.Lstat(tc.path)
		if err != nil {
			t.Fatalf("Lstat(%s): %v", tc.path, err)
		}
		if meta.Kind != tc.want {
			t.Errorf("Lstat(%s).Kind = %v, want %v", tc.path, meta.Kind, tc.want)
		}
	}
}

func TestFakeClockSet(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(base)
	if !c.Now().Equal(base) {
		t.Fatalf("Now() = %v, want %v", c.Now(), base)
	}
	later := base.Add(time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Fatalf("Now() after Set = %v, want %v", c.Now(), later)
	}
}

func TestFakeStatSourceRemove(t *testing.T) {
	s := NewFakeStatSource()
	s.Set("/a", FileMeta{Kind: KindRegular})
	if _, err := s.Lstat("/a"); err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	s.Remove("/a")
	if _, err := s.Lstat("/a"); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist after Remove, got %v", err)
	}
}
