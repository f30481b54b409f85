package lock_flock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const filePrefix = ".apt-publisher-"

var ErrLocked = errors.New("another apt-publisher instance holds the repository lock")

// Lock serializes processes that write the same repository tree.
type Lock struct {
	path string
	fl   *flock.Flock
}

func New(path string) *Lock {
	return &Lock{path: path, fl: flock.New(path)}
}

// ForRepo returns the lock guarding the repository rooted at root. The lock
// file lives in dir, outside the served tree, and is named after the
// absolute repository path.
func ForRepo(dir, root string) *Lock {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return New(filepath.Join(dir, filePrefix+hex.EncodeToString(sum[:8])+".lock"))
}

func (l *Lock) Path() string { return l.path }

func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

func (l *Lock) Release() error {
	return l.fl.Unlock()
}
