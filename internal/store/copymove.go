package store

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/objectfs/localstore/internal/buffer"
)

// primitives implements the hardlink/temp-dir copy and move algorithms
// (component D): hardlink, hardlink-then-unlink move, temp-dir
// stage-and-rename copy, and touch (mtime bump).
type primitives struct {
	ensurer        *targetEnsurer
	durability     *durability
	tempDir        string
	hardlinkOnCopy bool
	synced         bool
	now            func() time.Time
	bufferPool     *buffer.BytePool
	bufferSize     int
}

func newPrimitives(ensurer *targetEnsurer, d *durability, tempDir string, hardlinkOnCopy, synced bool, now func() time.Time, bufferPool *buffer.BytePool, bufferSize int) *primitives {
	return &primitives{
		ensurer:        ensurer,
		durability:     d,
		tempDir:        tempDir,
		hardlinkOnCopy: hardlinkOnCopy,
		synced:         synced,
		now:            now,
		bufferPool:     bufferPool,
		bufferSize:     bufferSize,
	}
}

// move touches the target when src == dst, else hardlink+unlink
// with a rename fallback.
func (p *primitives) move(src, dst string) error {
	if src == dst {
		return p.touch(src)
	}

	err := p.ensurer.ensure(dst, func(target string) error {
		if err := os.Link(src, target); err != nil {
			return os.Rename(src, target)
		}
		return os.Remove(src)
	})
	if err != nil {
		return err
	}

	return p.touch(dst)
}

// copy touches the target when src == dst, else hardlink with a
// temp-dir stage-and-rename fallback.
func (p *primitives) copy(src, dst string) error {
	if src == dst {
		return p.touch(src)
	}

	if p.hardlinkOnCopy {
		err := p.ensurer.ensure(dst, func(target string) error {
			return os.Link(src, target)
		})
		if err == nil {
			return nil
		}
		// Hardlink failed (cross-device, unsupported, permission): fall
		// through to the temp-dir copy, carrying the original error as
		// cause if that also fails.
		if copyErr := p.copyViaTempDir(src, dst); copyErr != nil {
			return fmt.Errorf("%w (after hardlink copy failed: %w)", copyErr, err)
		}
		return nil
	}

	return p.copyViaTempDir(src, dst)
}

func (p *primitives) copyViaTempDir(src, dst string) error {
	if err := os.MkdirAll(p.tempDir, 0750); err != nil {
		return err
	}

	staged, err := os.CreateTemp(p.tempDir, "upload")
	if err != nil {
		return err
	}
	stagedPath := staged.Name()

	if err := p.copyBytes(src, staged); err != nil {
		staged.Close()
		os.Remove(stagedPath)
		return err
	}
	if err := staged.Close(); err != nil {
		os.Remove(stagedPath)
		return err
	}
	if p.synced {
		p.durability.fsyncFile(stagedPath)
	}

	err = p.ensurer.ensure(dst, func(target string) error {
		return os.Rename(stagedPath, target)
	})
	if err != nil {
		os.Remove(stagedPath)
		return err
	}

	now := p.now()
	return os.Chtimes(dst, now, now)
}

func (p *primitives) copyBytes(src string, dst *os.File) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	buf := p.bufferPool.Get(p.bufferSize)
	defer p.bufferPool.Put(buf)

	_, err = io.CopyBuffer(dst, source, buf)
	return err
}

// touch sets mtime on an existing path to now.
func (p *primitives) touch(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	now := p.now()
	return os.Chtimes(path, now, now)
}
