// Package store implements the local-filesystem-backed object store: path
// confinement, atomic publication, durability policy, hardlink-preferred
// copy, glob listing and the closed error taxonomy, dispatched through a
// bounded blocking worker pool (components A-H).
package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/objectfs/localstore/internal/batch"
	"github.com/objectfs/localstore/internal/breaker"
	"github.com/objectfs/localstore/internal/buffer"
	"github.com/objectfs/localstore/internal/config"
	"github.com/objectfs/localstore/internal/metrics"
	objerrors "github.com/objectfs/localstore/pkg/errors"
)

// Info is a file's size and last-modified metadata.
type Info struct {
	Size        int64
	TimestampMs int64
}

// isBreakerFailure counts only unclassified host failures and domain
// IOError results against the dispatcher's breaker. A missing file, a
// directory where a file was expected, an illegal offset, and similar
// expected domain outcomes are routine for an object store's existence
// probes and must not trip the breaker.
func isBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *objerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind == objerrors.IOError
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrExist) || errors.Is(err, fs.ErrInvalid) {
		return false
	}
	return true
}

// Store is the facade (component H): it composes the path resolver,
// durability helper, target ensurer, copy/move primitives, lister and
// dispatcher, and owns the upload/append/download lifecycles.
type Store struct {
	root    string
	tempDir string

	synced       bool
	syncedAppend bool

	resolver   *resolver
	durability *durability
	ensurer    *targetEnsurer
	primitives *primitives
	lister     *lister
	dispatcher *dispatcher
	executor   *batch.Executor
	recorder   metrics.Recorder
}

// New builds a Store rooted at cfg.StorageRoot. The storage root and its
// temp directory are created if absent.
func New(cfg config.StoreConfig, recorder metrics.Recorder) (*Store, error) {
	if !filepath.IsAbs(cfg.StorageRoot) {
		return nil, errors.New("store: storage root must be an absolute path")
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	root := filepath.Clean(cfg.StorageRoot)
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(root, ".upload")
	}
	tempDir = filepath.Clean(tempDir)

	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, err
	}

	b := breaker.New(breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
		IsFailure:        isBreakerFailure,
	})

	res := newResolver(root, tempDir)
	dur := newDurability()
	ensurer := newTargetEnsurer(dur, cfg.Synced)

	s := &Store{
		root:         root,
		tempDir:      tempDir,
		synced:       cfg.Synced,
		syncedAppend: cfg.SyncedAppend,
		resolver:     res,
		durability:   dur,
		ensurer:      ensurer,
		primitives:   newPrimitives(ensurer, dur, tempDir, cfg.HardlinkOnCopy, cfg.Synced, time.Now, buffer.NewBytePool(), cfg.ReaderBufferSizeBytes()),
		lister:       newLister(res, root, tempDir),
		dispatcher:   newDispatcher(cfg.MaxConcurrency, b),
		executor:     batch.NewExecutor(cfg.MaxConcurrency),
		recorder:     recorder,
	}
	return s, nil
}

// Close waits for in-flight dispatched work to finish.
func (s *Store) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.dispatcher.wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping reports whether the store's dispatcher is currently accepting
// work; it surfaces the resilience breaker's state as a liveness signal.
func (s *Store) Ping(ctx context.Context) error {
	future := submitErr(s.dispatcher, func() error {
		_, err := os.Stat(s.root)
		return err
	})
	_, err := future.Await(ctx)
	if err != nil {
		return objerrors.Normalize(err, "", s.existsCheck)
	}
	return nil
}

func (s *Store) recordOp(op string, start time.Time, size int64, err error) {
	s.recorder.RecordOperation(op, time.Since(start), size, err == nil)
	if err != nil {
		s.recorder.RecordError(op, err)
	}
}

// Upload opens a byte-sink channel for name; the sink publishes its
// staged bytes atomically onto name when Close is called.
func (s *Store) Upload(ctx context.Context, name string) (ByteSink, error) {
	start := time.Now()
	sink, err := s.upload(ctx, name, -1)
	s.recordOp("upload", start, 0, err)
	return sink, err
}

// UploadSized is Upload with an exact byte count enforced at Close.
func (s *Store) UploadSized(ctx context.Context, name string, size int64) (ByteSink, error) {
	start := time.Now()
	sink, err := s.upload(ctx, name, size)
	s.recordOp("upload_sized", start, size, err)
	return sink, err
}

// Append opens a byte-sink channel for name starting at offset.
func (s *Store) Append(ctx context.Context, name string, offset int64) (ByteSink, error) {
	start := time.Now()
	sink, err := s.appendSink(ctx, name, offset)
	s.recordOp("append", start, 0, err)
	return sink, err
}

// Download opens a byte-source channel for name starting at offset,
// bounded to length bytes (length < 0 reads to EOF).
func (s *Store) Download(ctx context.Context, name string, offset, length int64) (ByteSource, error) {
	start := time.Now()
	source, err := s.download(ctx, name, offset, length)
	s.recordOp("download", start, 0, err)
	return source, err
}

// List returns every file matching glob, keyed by its root-relative
// "/"-delimited logical name.
func (s *Store) List(ctx context.Context, glob string) (map[string]Info, error) {
	start := time.Now()
	future := submit(s.dispatcher, func() (map[string]fileInfo, error) {
		return s.lister.list(glob)
	})
	raw, err := future.Await(ctx)
	if err != nil {
		err = objerrors.Normalize(err, glob, s.existsCheck)
		s.recordOp("list", start, 0, err)
		return nil, err
	}

	results := make(map[string]Info, len(raw))
	for name, fi := range raw {
		results[name] = Info{Size: fi.Size, TimestampMs: fi.TimestampMs}
	}
	s.recordOp("list", start, int64(len(results)), nil)
	return results, nil
}

// Info reports name's metadata, or ok == false if it is absent or a
// directory (directories produce no metadata).
func (s *Store) Info(ctx context.Context, name string) (Info, bool, error) {
	start := time.Now()
	path, err := s.resolver.resolve(name)
	if err != nil {
		s.recordOp("info", start, 0, err)
		return Info{}, false, err
	}

	future := submit(s.dispatcher, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
	fi, statErr := future.Await(ctx)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			s.recordOp("info", start, 0, nil)
			return Info{}, false, nil
		}
		normErr := objerrors.Normalize(statErr, name, s.existsCheck)
		s.recordOp("info", start, 0, normErr)
		return Info{}, false, normErr
	}
	if fi.IsDir() {
		s.recordOp("info", start, 0, nil)
		return Info{}, false, nil
	}

	s.recordOp("info", start, fi.Size(), nil)
	return Info{Size: fi.Size(), TimestampMs: fi.ModTime().UnixMilli()}, true, nil
}

// InfoAll reports metadata for every name that is present; absent or
// directory names are simply omitted from the result, not reported as
// errors. Any error Info reports for a name (ForbiddenPath, or a host
// failure other than absence) is collected into a BatchError keyed by
// that name.
func (s *Store) InfoAll(ctx context.Context, names []string) (map[string]Info, error) {
	start := time.Now()
	var mu sync.Mutex
	outcomes := make(map[string]Info, len(names))
	rawErrs := s.executor.Run(ctx, names, func(ctx context.Context, name string) error {
		info, ok, err := s.Info(ctx, name)
		if ok {
			mu.Lock()
			outcomes[name] = info
			mu.Unlock()
		}
		return err
	})

	failures := make(map[string]error)
	for name, err := range rawErrs {
		if err != nil {
			failures[name] = err
		}
	}

	results := outcomes

	if len(failures) > 0 {
		err := objerrors.NormalizeBatch(failures, func(k string) string { return k }, s.existsCheck)
		s.recordOp("info_all", start, int64(len(results)), err)
		return results, err
	}
	s.recordOp("info_all", start, int64(len(results)), nil)
	return results, nil
}

// Copy is a no-op touch when src == dst, else a
// hardlink-preferred copy with temp-dir fallback.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	start := time.Now()
	err := s.doCopy(ctx, src, dst)
	s.recordOp("copy", start, 0, err)
	return err
}

// Move is a no-op touch when src == dst, else a
// hardlink-and-unlink move with a rename fallback.
func (s *Store) Move(ctx context.Context, src, dst string) error {
	start := time.Now()
	err := s.doMove(ctx, src, dst)
	s.recordOp("move", start, 0, err)
	return err
}

func (s *Store) doCopy(ctx context.Context, src, dst string) error {
	srcPath, err := s.resolver.resolve(src)
	if err != nil {
		return err
	}
	dstPath, err := s.resolver.resolve(dst)
	if err != nil {
		return err
	}

	future := submitErr(s.dispatcher, func() error {
		return s.primitives.copy(srcPath, dstPath)
	})
	_, err = future.Await(ctx)
	if err != nil {
		return objerrors.Normalize(err, s.copyMoveName(err, src, dst), s.existsCheck)
	}
	return nil
}

func (s *Store) doMove(ctx context.Context, src, dst string) error {
	srcPath, err := s.resolver.resolve(src)
	if err != nil {
		return err
	}
	dstPath, err := s.resolver.resolve(dst)
	if err != nil {
		return err
	}

	future := submitErr(s.dispatcher, func() error {
		return s.primitives.move(srcPath, dstPath)
	})
	_, err = future.Await(ctx)
	if err != nil {
		return objerrors.Normalize(err, s.copyMoveName(err, src, dst), s.existsCheck)
	}
	return nil
}

// copyMoveName picks which of the two logical names a normalized error
// should be attributed to: the source when it is the one missing,
// otherwise the destination (the usual case: a collision at the target).
func (s *Store) copyMoveName(err error, src, dst string) string {
	if errors.Is(err, fs.ErrNotExist) {
		if _, exists := s.existsCheck(src); !exists {
			return src
		}
	}
	return dst
}

// CopyAll copies every src->dst pair. Targets must be distinct: a
// duplicate target is rejected before any I/O runs and produces a
// BatchError for the colliding keys.
func (s *Store) CopyAll(ctx context.Context, pairs map[string]string) error {
	start := time.Now()
	err := s.batchCopyMove(ctx, pairs, s.doCopy)
	s.recordOp("copy_all", start, int64(len(pairs)), err)
	return err
}

// MoveAll moves every src->dst pair, subject to the same duplicate-target
// rejection as CopyAll.
func (s *Store) MoveAll(ctx context.Context, pairs map[string]string) error {
	start := time.Now()
	err := s.batchCopyMove(ctx, pairs, s.doMove)
	s.recordOp("move_all", start, int64(len(pairs)), err)
	return err
}

func (s *Store) batchCopyMove(ctx context.Context, pairs map[string]string, op func(ctx context.Context, src, dst string) error) error {
	if dup := duplicateTargets(pairs); len(dup) > 0 {
		failures := make(map[string]*objerrors.Error, len(dup))
		for src, dst := range dup {
			failures[src] = objerrors.New(objerrors.IOError, dst, "duplicate target in batch operation")
		}
		return objerrors.NewBatchError(failures)
	}

	srcs := make([]string, 0, len(pairs))
	for src := range pairs {
		srcs = append(srcs, src)
	}

	rawErrs := s.executor.Run(ctx, srcs, func(ctx context.Context, src string) error {
		return op(ctx, src, pairs[src])
	})
	return objerrors.NormalizeBatch(rawErrs, func(k string) string { return k }, s.existsCheck)
}

// duplicateTargets returns the subset of pairs whose destination value
// is shared by more than one source key.
func duplicateTargets(pairs map[string]string) map[string]string {
	counts := make(map[string]int, len(pairs))
	for _, dst := range pairs {
		counts[dst]++
	}
	dup := make(map[string]string)
	for src, dst := range pairs {
		if counts[dst] > 1 {
			dup[src] = dst
		}
	}
	return dup
}

// Delete removes name if present. Deleting an absent name succeeds
// silently; deleting the storage root is a no-op; deleting a directory
// surfaces IsADirectory.
func (s *Store) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := s.doDelete(ctx, name)
	s.recordOp("delete", start, 0, err)
	return err
}

func (s *Store) doDelete(ctx context.Context, name string) error {
	path, err := s.resolver.resolve(name)
	if err != nil {
		return err
	}
	if path == s.root {
		return nil
	}

	future := submitErr(s.dispatcher, func() error {
		info, statErr := os.Stat(path)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				return nil
			}
			return statErr
		}
		if info.IsDir() {
			return objerrors.New(objerrors.IsADirectory, name, "cannot delete a directory")
		}
		return os.Remove(path)
	})
	_, err = future.Await(ctx)
	if err != nil {
		return objerrors.Normalize(err, name, s.existsCheck)
	}
	return nil
}

// DeleteAll deletes every name, equivalent to iterating Delete and
// collecting per-name results into a BatchError.
func (s *Store) DeleteAll(ctx context.Context, names []string) error {
	start := time.Now()
	rawErrs := s.executor.Run(ctx, names, s.doDelete)
	err := objerrors.NormalizeBatch(rawErrs, func(k string) string { return k }, s.existsCheck)
	s.recordOp("delete_all", start, int64(len(names)), err)
	return err
}
