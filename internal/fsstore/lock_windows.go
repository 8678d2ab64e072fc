//go:build windows

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Windows has no flock; an exclusively created lock file stands in for it.
func withLockFile(ctx context.Context, lockPath string, fn func() error) error {
	for {
		file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, defaultFilePerm)
		if errors.Is(err, os.ErrExist) {
			if werr := waitForLockRetry(ctx, lockPath); werr != nil {
				return werr
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", ErrLockUnavailable, lockPath, err)
		}
		writeLockOwner(file)
		defer func() {
			_ = file.Close()
			_ = os.Remove(lockPath)
		}()
		return fn()
	}
}
