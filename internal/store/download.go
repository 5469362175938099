package store

import (
	"context"
	"os"

	objerrors "github.com/objectfs/localstore/pkg/errors"
)

// download opens name for reading, honoring an optional byte range
// (opening -> streaming). length < 0 reads to EOF.
func (s *Store) download(ctx context.Context, name string, offset, length int64) (ByteSource, error) {
	target, err := s.resolver.resolve(name)
	if err != nil {
		return nil, err
	}

	future := submit(s.dispatcher, func() (*os.File, error) {
		info, statErr := os.Stat(target)
		if statErr != nil {
			return nil, statErr
		}
		if info.IsDir() {
			return nil, objerrors.New(objerrors.IsADirectory, name, "cannot download a directory")
		}
		if offset < 0 || offset > info.Size() {
			return nil, objerrors.New(objerrors.IllegalOffset, name,
				"offset is negative or exceeds current file size")
		}

		f, openErr := os.Open(target)
		if openErr != nil {
			return nil, openErr
		}
		if offset > 0 {
			if _, seekErr := f.Seek(offset, 0); seekErr != nil {
				f.Close()
				return nil, seekErr
			}
		}
		return f, nil
	})
	file, err := future.Await(ctx)
	if err != nil {
		return nil, objerrors.Normalize(err, name, s.existsCheck)
	}

	return newFileSource(file, s.dispatcher, length), nil
}
