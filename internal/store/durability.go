package store

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/objectfs/localstore/pkg/retry"
)

// durability fsyncs files and directories on behalf of the store when
// the synced policy is active (component B). It calls unix.Fsync on the
// raw file descriptor directly rather than os.File.Sync so a transient
// EINTR can be retried without reopening the file. fsync failures that
// indicate the platform doesn't support syncing a directory are
// swallowed — best-effort durability never fails the calling operation.
type durability struct {
	retryer *retry.Retryer
}

func newDurability() *durability {
	return &durability{
		retryer: retry.New(retry.Config{
			MaxAttempts:  3,
			InitialDelay: 0,
			Jitter:       false,
			RetryIf:      func(err error) bool { return errors.Is(err, unix.EINTR) },
		}),
	}
}

// fsyncFile forces path's data to durable storage.
func (d *durability) fsyncFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	_ = d.retryer.Do(func() error {
		return unix.Fsync(int(f.Fd()))
	})
}

// fsyncDir forces dir's entries to durable storage. Directory fsync is
// not meaningful on every platform (notably ENOTSUP on some filesystems);
// any failure here is swallowed.
func (d *durability) fsyncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()

	_ = d.retryer.Do(func() error {
		return unix.Fsync(int(f.Fd()))
	})
}
