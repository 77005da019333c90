package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"mint/internal/mint"
)

// staleLockTimeout bounds how long a lock file's mtime is trusted before
// it's assumed to belong to a crashed process, so a crash can never wedge
// the store.
const staleLockTimeout = 10 * time.Minute

// acquireLock flock()s path (creating its parent dir if needed), touching
// its mtime on success and clearing a stale lock file first if one from a
// dead process is sitting there past staleLockTimeout.
func acquireLock(ctx context.Context, path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "creating lock dir for %s", path)
	}

	clearStaleLock(path)

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "acquiring lock %s", path)
	}
	if !locked {
		return nil, mint.Cancelled("acquiring lock " + path)
	}

	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return fl, nil
}

// clearStaleLock removes a lock file whose mtime is older than
// staleLockTimeout, on the assumption its owning process crashed without
// releasing it. flock.TryLock on a removed-then-recreated path is safe:
// the kernel's lock table is keyed by inode, not path, so a genuinely live
// holder simply keeps its lock on the old inode and harmlessly loses the
// race to rename a fresh file into place.
func clearStaleLock(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if time.Since(info.ModTime()) > staleLockTimeout {
		_ = os.Remove(path)
	}
}

func releaseLock(fl *flock.Flock) {
	if fl == nil {
		return
	}
	_ = fl.Unlock()
}

// lockPathFor returns the advisory lock file path for a content digest,
// cache/locks/<digest>.
func lockPathFor(root string, d Digest) string {
	return filepath.Join(root, "locks", string(d))
}

// indexLockPath returns the whole-file lock guarding CacheIndex writers.
func indexLockPath(root string) string {
	return filepath.Join(root, "locks", "index")
}
