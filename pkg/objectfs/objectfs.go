// Package objectfs is the public entry point for localstore's
// filesystem-backed object store: it re-exports the store facade type
// and its configuration so external callers never import internal/store
// directly.
package objectfs

import (
	"github.com/objectfs/localstore/internal/config"
	"github.com/objectfs/localstore/internal/metrics"
	"github.com/objectfs/localstore/internal/store"
	objerrors "github.com/objectfs/localstore/pkg/errors"
)

// Store is the local-filesystem object store facade.
type Store = store.Store

// Info is a file's size and last-modified metadata.
type Info = store.Info

// ByteSink is the push-style upload/append channel abstraction.
type ByteSink = store.ByteSink

// ByteSource is the pull-style download channel abstraction.
type ByteSource = store.ByteSource

// StoreConfig carries the store's configuration surface:
// storage root, reader_buffer_size, hardlink_on_copy, synced,
// synced_append, temp_dir, plus the worker-pool and breaker knobs.
type StoreConfig = config.StoreConfig

// Recorder is the opaque metrics observer interface the store reports
// operation outcomes to.
type Recorder = metrics.Recorder

// Kind is one of the closed set of domain error kinds.
type Kind = objerrors.Kind

// Error is a scalar domain error.
type Error = objerrors.Error

// BatchError wraps one scalar Error per failing key in a multi-key op.
type BatchError = objerrors.BatchError

// Closed error kinds, re-exported for callers that branch on them.
const (
	ForbiddenPath    = objerrors.ForbiddenPath
	FileNotFound     = objerrors.FileNotFound
	IsADirectory     = objerrors.IsADirectory
	PathContainsFile = objerrors.PathContainsFile
	IllegalOffset    = objerrors.IllegalOffset
	UnexpectedSize   = objerrors.UnexpectedSize
	MalformedGlob    = objerrors.MalformedGlob
	IOError          = objerrors.IOError
)

// New builds a Store rooted at cfg.StorageRoot, creating it and its temp
// directory if absent. A nil recorder discards metrics.
func New(cfg StoreConfig, recorder Recorder) (*Store, error) {
	return store.New(cfg, recorder)
}

// AsKind reports whether err is a domain *Error of the given kind.
func AsKind(err error, kind Kind) bool {
	return objerrors.AsKind(err, kind)
}

// DefaultConfig returns a Configuration with the ambient defaults
// (logging, metrics, store knobs) every deployment carries.
func DefaultConfig() *config.Configuration {
	return config.NewDefault()
}
