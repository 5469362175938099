package store

import (
	"context"
	"os"

	objerrors "github.com/objectfs/localstore/pkg/errors"
)

// upload implements the upload state machine: staged -> streaming
// -> publishing -> published | aborted. The staged file is created
// eagerly; Close drives publishing; Abort unlinks the staged file
// best-effort.
func (s *Store) upload(ctx context.Context, name string, exactSize int64) (ByteSink, error) {
	target, err := s.resolver.resolve(name)
	if err != nil {
		return nil, err
	}

	future := submit(s.dispatcher, func() (*os.File, error) {
		if mkErr := os.MkdirAll(s.tempDir, 0750); mkErr != nil {
			return nil, mkErr
		}
		return os.CreateTemp(s.tempDir, "upload")
	})
	staged, err := future.Await(ctx)
	if err != nil {
		return nil, objerrors.Normalize(err, name, s.existsCheck)
	}
	stagedPath := staged.Name()

	onAbort := func(cause error) {
		_ = submitErr(s.dispatcher, func() error {
			staged.Close()
			return os.Remove(stagedPath)
		})
	}

	var sink *fileSink
	onClose := func(ctx context.Context) error {
		publishFuture := submit(s.dispatcher, func() (struct{}, error) {
			if closeErr := staged.Close(); closeErr != nil {
				os.Remove(stagedPath)
				return struct{}{}, closeErr
			}

			if exactSize >= 0 && sink.bytesWritten() != exactSize {
				os.Remove(stagedPath)
				return struct{}{}, objerrors.New(objerrors.UnexpectedSize, name,
					"upload byte count did not match declared size")
			}
			if s.synced {
				s.durability.fsyncFile(stagedPath)
			}

			publishErr := s.ensurer.ensure(target, func(t string) error {
				return os.Rename(stagedPath, t)
			})
			if publishErr != nil {
				os.Remove(stagedPath)
				return struct{}{}, publishErr
			}
			return struct{}{}, nil
		})
		_, pubErr := publishFuture.Await(ctx)
		if pubErr != nil {
			return objerrors.Normalize(pubErr, name, s.existsCheck)
		}
		return nil
	}

	sink = newFileSink(staged, s.dispatcher, onAbort, onClose)
	return sink, nil
}

// existsCheck is the callback Normalize uses to distinguish a directory
// collision from a regular-file one: it resolves name back to a host
// path and stats it.
func (s *Store) existsCheck(name string) (isDir bool, exists bool) {
	path, err := s.resolver.resolve(name)
	if err != nil {
		return false, false
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		return false, false
	}
	return info.IsDir(), true
}
