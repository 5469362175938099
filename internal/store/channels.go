package store

import (
	"context"
	"io"
	"os"
	"sync"
)

// ByteSink is the push-style byte-buffer abstraction the upload/append
// state machines write through. Close signals end-of-stream and drives
// the streaming->publishing transition; Ack resolves with the same
// outcome for callers that prefer to wait on a channel. Abort cancels an
// in-flight upload, triggering best-effort staged-file cleanup.
type ByteSink interface {
	Write(ctx context.Context, p []byte) (int, error)
	Close(ctx context.Context) error
	Ack() <-chan error
	Abort(cause error)
}

// ByteSource is the pull-style byte-buffer abstraction the download
// state machine reads through.
type ByteSource interface {
	Read(ctx context.Context, p []byte) (int, error)
	Close() error
}

// fileSink is the one concrete ByteSink: every Write is dispatched as a
// blocking closure on the worker pool; the caller's goroutine never
// touches the file descriptor directly.
type fileSink struct {
	file       *os.File
	dispatcher *dispatcher

	mu       sync.Mutex
	aborted  bool
	abortErr error

	ackCh     chan error
	onAbort   func(cause error)
	onClose   func(ctx context.Context) error
	finished  bool
	written   int64
}

func newFileSink(file *os.File, d *dispatcher, onAbort func(cause error), onClose func(ctx context.Context) error) *fileSink {
	return &fileSink{
		file:       file,
		dispatcher: d,
		ackCh:      make(chan error, 1),
		onAbort:    onAbort,
		onClose:    onClose,
	}
}

// Write dispatches a single blocking write of p to the worker pool.
func (s *fileSink) Write(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	aborted := s.aborted
	s.mu.Unlock()
	if aborted {
		return 0, s.abortErr
	}

	future := submit(s.dispatcher, func() (int, error) {
		return s.file.Write(p)
	})
	n, err := future.Await(ctx)
	s.mu.Lock()
	s.written += int64(n)
	s.mu.Unlock()
	return n, err
}

// bytesWritten reports the total bytes accepted by Write so far, used by
// size-enforcing uploads to validate the exact byte count at Close.
func (s *fileSink) bytesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close signals end-of-stream, driving the streaming->publishing
// transition via onClose, and resolves Ack with the outcome.
func (s *fileSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.aborted {
		err := s.abortErr
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	var err error
	if s.onClose != nil {
		err = s.onClose(ctx)
	}
	s.finish(err)
	return err
}

// Ack resolves once the facade's publishing logic calls finish.
func (s *fileSink) Ack() <-chan error {
	return s.ackCh
}

// Abort cancels the upload. The facade's onAbort hook unlinks the staged
// file best-effort; Ack is resolved with cause.
func (s *fileSink) Abort(cause error) {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.abortErr = cause
	s.mu.Unlock()

	if s.onAbort != nil {
		s.onAbort(cause)
	}
	s.finish(cause)
}

// finish resolves Ack exactly once; safe to call from either the publish
// path (nil or a publish error) or Abort.
func (s *fileSink) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	s.ackCh <- err
}

// fileSource is the one concrete ByteSource: reads are dispatched as
// blocking closures, bounded to limit bytes when limit >= 0.
type fileSource struct {
	file       *os.File
	dispatcher *dispatcher
	remaining  int64 // -1 means unbounded
}

func newFileSource(file *os.File, d *dispatcher, limit int64) *fileSource {
	return &fileSource{file: file, dispatcher: d, remaining: limit}
}

// Read dispatches a single blocking read into p, honoring any remaining
// byte limit.
func (s *fileSource) Read(ctx context.Context, p []byte) (int, error) {
	if s.remaining == 0 {
		return 0, io.EOF
	}

	readLen := len(p)
	if s.remaining > 0 && int64(readLen) > s.remaining {
		readLen = int(s.remaining)
	}

	future := submit(s.dispatcher, func() (int, error) {
		return s.file.Read(p[:readLen])
	})
	n, err := future.Await(ctx)
	if s.remaining > 0 {
		s.remaining -= int64(n)
	}
	return n, err
}

// Close releases the underlying file handle.
func (s *fileSource) Close() error {
	return s.file.Close()
}
