package store

import (
	"os"
	"path/filepath"
)

// targetEnsurer guarantees a target path's parent directory exists before
// running a caller-supplied action that creates or replaces the target,
// then optionally fsyncs the parent directory (component C).
type targetEnsurer struct {
	durability *durability
	synced     bool
}

func newTargetEnsurer(d *durability, synced bool) *targetEnsurer {
	return &targetEnsurer{durability: d, synced: synced}
}

// ensure runs produce(target) after creating target's parent directory,
// then fsyncs the parent directory if synced is active.
func (e *targetEnsurer) ensure(target string, produce func(target string) error) error {
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0750); err != nil {
		return err
	}

	if err := produce(target); err != nil {
		return err
	}

	if e.synced {
		e.durability.fsyncDir(parent)
	}
	return nil
}
