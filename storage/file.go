package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nightlyone/lockfile"
	"go.uber.org/zap"

	"github.com/timoa/github-actions-gui/workflow"
)

// FileStore reads and writes workflow files on disk. Relative locators are
// resolved against the root directory and may not escape it.
type FileStore struct {
	root    string
	log     *zap.Logger
	backoff Backoff

	// lockfile treats a lock held by our own pid as acquired, so writers in
	// this process are serialized here first.
	inproc sync.Map // abs path -> *sync.Mutex
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithLogger sets the store logger.
func WithLogger(log *zap.Logger) FileOption {
	return func(s *FileStore) { s.log = log }
}

// WithBackoff sets how long Save waits for a lock held by another process.
func WithBackoff(b Backoff) FileOption {
	return func(s *FileStore) { s.backoff = b }
}

// NewFileStore returns a store rooted at root. An empty root means the
// current directory.
func NewFileStore(root string, opts ...FileOption) *FileStore {
	s := &FileStore{
		root:    root,
		log:     zap.NewNop(),
		backoff: DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path resolves a locator to an absolute file path.
func (s *FileStore) Path(locator string) (string, error) {
	if strings.TrimSpace(locator) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidLocator)
	}
	if filepath.IsAbs(locator) {
		return filepath.Clean(locator), nil
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	full := filepath.Join(root, locator)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes %s", ErrInvalidLocator, locator, root)
	}
	return full, nil
}

// Load reads the file at locator.
func (s *FileStore) Load(_ context.Context, locator string) (string, error) {
	path, err := s.Path(locator)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", locator, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrInvalidLocator, locator)
	}
	if info.Size() > workflow.MaxDocumentBytes {
		return "", fmt.Errorf("workflow exceeds maximum size of %d bytes", workflow.MaxDocumentBytes)
	}

	data, err := os.ReadFile(path) // #nosec G304 - user-selected workflow file
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", locator, err)
	}
	if err := workflow.CheckContent(data); err != nil {
		return "", err
	}
	return string(data), nil
}

// Save writes text to locator atomically while holding an exclusive lock.
func (s *FileStore) Save(ctx context.Context, locator, text string) error {
	path, err := s.Path(locator)
	if err != nil {
		return err
	}
	if err := workflow.CheckContent([]byte(text)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { // #nosec G301 - workflow directories are shared with the repo
		return fmt.Errorf("creating directory for %s: %w", locator, err)
	}

	mu, _ := s.inproc.LoadOrStore(path, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	lock, err := s.lock(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			s.log.Warn("releasing lock failed", zap.String("path", path), zap.Error(unlockErr))
		}
	}()

	if err := writeAtomic(path, []byte(text)); err != nil {
		return fmt.Errorf("writing %s: %w", locator, err)
	}
	s.log.Debug("workflow written", zap.String("path", path), zap.Int("bytes", len(text)))
	return nil
}

func (s *FileStore) lock(ctx context.Context, path string) (lockfile.Lockfile, error) {
	lock, err := lockfile.New(path + ".lock")
	if err != nil {
		return lock, fmt.Errorf("creating lock for %s: %w", path, err)
	}

	err = s.backoff.retry(ctx, lock.TryLock, func(err error) bool {
		// Stale locks are cleaned up by the next TryLock.
		return errors.Is(err, lockfile.ErrBusy) ||
			errors.Is(err, lockfile.ErrDeadOwner) ||
			errors.Is(err, lockfile.ErrInvalidPid) ||
			errors.Is(err, lockfile.ErrNotExist)
	})
	switch {
	case err == nil:
		return lock, nil
	case errors.Is(err, lockfile.ErrBusy):
		if owner, ownerErr := lock.GetOwner(); ownerErr == nil {
			return lock, fmt.Errorf("%w: %s (pid %d)", ErrLocked, path, owner.Pid)
		}
		return lock, fmt.Errorf("%w: %s", ErrLocked, path)
	default:
		return lock, fmt.Errorf("locking %s: %w", path, err)
	}
}

// writeAtomic replaces path with data through a temp file in the same
// directory. The existing file mode is kept.
func writeAtomic(path string, data []byte) (err error) {
	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
