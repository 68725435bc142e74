package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFileStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)

	if err := s.Save(ctx, ".github/workflows/ci.yml", "on: push\n"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx, ".github/workflows/ci.yml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "on: push\n" {
		t.Errorf("Load() = %q", got)
	}

	if _, err := os.Stat(filepath.Join(dir, ".github/workflows/ci.yml.lock")); !os.IsNotExist(err) {
		t.Errorf("lock file left behind: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, ".github/workflows"))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only ci.yml", len(entries))
	}
}

func TestFileStore_KeepsFileMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci.yml")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := NewFileStore(dir).Save(context.Background(), "ci.yml", "new"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestFileStore_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)

	if _, err := s.Load(ctx, "missing.yml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Load(ctx, "../outside.yml"); !errors.Is(err, ErrInvalidLocator) {
		t.Errorf("Load(../) error = %v, want ErrInvalidLocator", err)
	}
	if err := s.Save(ctx, "", "x"); !errors.Is(err, ErrInvalidLocator) {
		t.Errorf("Save(\"\") error = %v, want ErrInvalidLocator", err)
	}

	big := strings.Repeat("a", 1024*1024+1)
	if err := s.Save(ctx, "big.yml", big); err == nil {
		t.Error("Save() accepted an oversized document")
	}
	if err := os.WriteFile(filepath.Join(dir, "null.yml"), []byte("on: push\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "null.yml"); err == nil {
		t.Error("Load() accepted a document with a null byte")
	}
}

func TestFileStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Save(ctx, "ci.yml", fmt.Sprintf("name: w%d\n", i))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("save %d error = %v", i, err)
		}
	}

	got, err := s.Load(ctx, "ci.yml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "name: w") {
		t.Errorf("Load() = %q, want one complete write", got)
	}
}

func TestBackoff_Retry(t *testing.T) {
	busy := errors.New("busy")
	fatal := errors.New("fatal")
	b := Backoff{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := b.retry(context.Background(), func() error { calls++; return busy }, func(error) bool { return true })
		if !errors.Is(err, busy) || calls != 3 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		err := b.retry(context.Background(), func() error { calls++; return fatal }, func(err error) bool { return err == busy })
		if !errors.Is(err, fatal) || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("succeeds after retry", func(t *testing.T) {
		calls := 0
		err := b.retry(context.Background(), func() error {
			calls++
			if calls < 2 {
				return busy
			}
			return nil
		}, func(error) bool { return true })
		if err != nil || calls != 2 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := Backoff{Attempts: 5, InitialDelay: time.Hour}
		err := slow.retry(ctx, func() error { return busy }, func(error) bool { return true })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestGrow(t *testing.T) {
	if got := grow(100*time.Millisecond, 2, time.Second); got != 200*time.Millisecond {
		t.Errorf("grow() = %v", got)
	}
	if got := grow(800*time.Millisecond, 2, time.Second); got != time.Second {
		t.Errorf("grow() = %v, want ceiling", got)
	}
	if got := jitter(0, 0.5); got != 0 {
		t.Errorf("jitter(0) = %v", got)
	}
}

func TestMemStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	if _, err := m.Load(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(a) error = %v", err)
	}
	_ = m.Save(ctx, "b", "2")
	_ = m.Save(ctx, "a", "1")
	if got := m.Locators(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Locators() = %v", got)
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("on: push\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "ci.yml", "release.yaml", "notes.txt", "nested/deploy.yml")
	if err := os.Symlink(filepath.Join(dir, "ci.yml"), filepath.Join(dir, "link.yml")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, err := Discover(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "ci.yml"),
		filepath.Join(dir, "nested/deploy.yml"),
		filepath.Join(dir, "release.yaml"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover() = %v, want %v", got, want)
	}

	top, err := Discover(dir, "*.yml")
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 {
		t.Errorf("Discover(*.yml) = %v", top)
	}

	if _, err := Discover(dir, "[bad"); err == nil {
		t.Error("Discover() accepted an invalid pattern")
	}
	if _, err := Discover(filepath.Join(dir, "ci.yml"), ""); err == nil {
		t.Error("Discover() accepted a file as directory")
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "wf/a.yml", "wf/b.yml", "single.yml")

	got, err := Expand([]string{
		filepath.Join(dir, "single.yml"),
		filepath.Join(dir, "wf"),
		filepath.Join(dir, "wf", "a.yml"),
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "single.yml"),
		filepath.Join(dir, "wf", "a.yml"),
		filepath.Join(dir, "wf", "b.yml"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}

	if _, err := Expand([]string{filepath.Join(dir, "nope")}, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expand(nope) error = %v", err)
	}
}
