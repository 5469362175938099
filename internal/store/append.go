package store

import (
	"context"
	"os"

	objerrors "github.com/objectfs/localstore/pkg/errors"
)

// appendSink opens name for append at offset (opening -> writing) and
// reports the publishing step as a no-op, since an append target is
// already published: there is nothing to rename. Close only fsyncs (if
// synced is active) and releases the handle (writing -> closed).
func (s *Store) appendSink(ctx context.Context, name string, offset int64) (ByteSink, error) {
	target, err := s.resolver.resolve(name)
	if err != nil {
		return nil, err
	}

	future := submit(s.dispatcher, func() (*os.File, error) {
		if offset < 0 {
			return nil, objerrors.New(objerrors.IllegalOffset, name,
				"offset must not be negative")
		}

		info, statErr := os.Stat(target)
		missing := statErr != nil && os.IsNotExist(statErr)
		switch {
		case statErr != nil && !missing:
			return nil, statErr
		case missing && offset != 0:
			return nil, statErr
		case statErr == nil && info.IsDir():
			return nil, objerrors.New(objerrors.IsADirectory, name, "cannot append to a directory")
		case statErr == nil && offset > info.Size():
			return nil, objerrors.New(objerrors.IllegalOffset, name,
				"offset exceeds current file size")
		}

		flags := os.O_WRONLY
		if missing {
			flags |= os.O_CREATE
		}
		if s.syncedAppend {
			flags |= os.O_SYNC
		}
		f, openErr := os.OpenFile(target, flags, 0644)
		if openErr != nil {
			return nil, openErr
		}
		if _, seekErr := f.Seek(offset, 0); seekErr != nil {
			f.Close()
			return nil, seekErr
		}
		return f, nil
	})
	file, err := future.Await(ctx)
	if err != nil {
		return nil, objerrors.Normalize(err, name, s.existsCheck)
	}

	onAbort := func(cause error) {
		_ = submitErr(s.dispatcher, func() error {
			return file.Close()
		})
	}

	onClose := func(ctx context.Context) error {
		closeFuture := submit(s.dispatcher, func() (struct{}, error) {
			if s.synced {
				s.durability.fsyncFile(target)
			}
			return struct{}{}, file.Close()
		})
		_, closeErr := closeFuture.Await(ctx)
		if closeErr != nil {
			return objerrors.Normalize(closeErr, name, s.existsCheck)
		}
		return nil
	}

	return newFileSink(file, s.dispatcher, onAbort, onClose), nil
}
