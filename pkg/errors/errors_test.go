package errors

import (
	"errors"
	"io/fs"
	"os"
	"testing"
)

func TestNewError(t *testing.T) {
	t.Parallel()

	err := New(FileNotFound, "a/b.txt", "no such file")
	if err.Kind != FileNotFound {
		t.Errorf("Kind = %v, want %v", err.Kind, FileNotFound)
	}
	if err.Name != "a/b.txt" {
		t.Errorf("Name = %q, want %q", err.Name, "a/b.txt")
	}
	if err.Error() == "" {
		t.Error("Error() returned empty string")
	}
}

func TestErrorIs(t *testing.T) {
	t.Parallel()

	a := New(ForbiddenPath, "../x", "escapes root")
	b := New(ForbiddenPath, "other", "different message")
	if !errors.Is(a, b) {
		t.Error("errors with the same Kind should compare equal via errors.Is")
	}

	c := New(IOError, "x", "boom")
	if errors.Is(a, c) {
		t.Error("errors with different Kinds should not compare equal")
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := os.ErrPermission
	err := New(IOError, "x", "boom").WithCause(cause)
	if !errors.Is(err, os.ErrPermission) {
		t.Error("Unwrap should expose the underlying cause")
	}
}

func TestBatchError(t *testing.T) {
	t.Parallel()

	t.Run("empty map yields nil", func(t *testing.T) {
		if err := NewBatchError(map[string]*Error{}); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("non-empty map yields BatchError", func(t *testing.T) {
		err := NewBatchError(map[string]*Error{
			"dir": New(IsADirectory, "dir", "is a directory"),
		})
		var b *BatchError
		if !errors.As(err, &b) {
			t.Fatal("expected a *BatchError")
		}
		if len(b.Failures) != 1 {
			t.Errorf("Failures length = %d, want 1", len(b.Failures))
		}
	})

	t.Run("BatchError is not a scalar Error", func(t *testing.T) {
		err := NewBatchError(map[string]*Error{"k": New(IOError, "k", "boom")})
		var scalar *Error
		if errors.As(err, &scalar) {
			t.Error("BatchError must not satisfy errors.As(*Error) — distinct shapes")
		}
	})
}

func TestUnwrapSingleElementBatch(t *testing.T) {
	t.Parallel()

	batch := NewBatchError(map[string]*Error{
		"present": New(IsADirectory, "present", "is a directory"),
	})
	scalar := Unwrap(batch)
	var e *Error
	if !errors.As(scalar, &e) {
		t.Fatal("expected single-element batch to unwrap to a scalar *Error")
	}
	if e.Kind != IsADirectory {
		t.Errorf("Kind = %v, want %v", e.Kind, IsADirectory)
	}

	multi := NewBatchError(map[string]*Error{
		"a": New(IOError, "a", "boom"),
		"b": New(IOError, "b", "boom"),
	})
	if Unwrap(multi) != multi {
		t.Error("multi-element batch should pass through unchanged")
	}
}

func TestNormalizePassesThroughDomainErrors(t *testing.T) {
	t.Parallel()

	domainErr := New(ForbiddenPath, "../escape", "escapes root")
	got := Normalize(domainErr, "../escape", nil)
	if got != error(domainErr) {
		t.Errorf("expected pass-through, got %v", got)
	}
}

func TestNormalizeNotExist(t *testing.T) {
	t.Parallel()

	got := Normalize(fs.ErrNotExist, "missing", func(string) (bool, bool) { return false, false })
	if !AsKind(got, FileNotFound) {
		t.Errorf("expected FileNotFound, got %v", got)
	}
}

func TestNormalizeExistAsDirectory(t *testing.T) {
	t.Parallel()

	got := Normalize(fs.ErrExist, "d", func(string) (bool, bool) { return true, true })
	if !AsKind(got, IsADirectory) {
		t.Errorf("expected IsADirectory, got %v", got)
	}
}

func TestNormalizeExistAsFile(t *testing.T) {
	t.Parallel()

	got := Normalize(fs.ErrExist, "f/part", func(string) (bool, bool) { return false, true })
	if !AsKind(got, PathContainsFile) {
		t.Errorf("expected PathContainsFile, got %v", got)
	}
}

func TestNormalizeBatch(t *testing.T) {
	t.Parallel()

	raw := map[string]error{
		"present": nil,
		"dir":     fs.ErrExist,
		"absent":  fs.ErrNotExist,
	}
	err := NormalizeBatch(raw, nil, func(n string) (bool, bool) {
		if n == "dir" {
			return true, true
		}
		return false, false
	})
	var b *BatchError
	if !errors.As(err, &b) {
		t.Fatal("expected *BatchError")
	}
	if len(b.Failures) != 2 {
		t.Fatalf("Failures length = %d, want 2", len(b.Failures))
	}
	if b.Failures["dir"].Kind != IsADirectory {
		t.Errorf("dir kind = %v, want %v", b.Failures["dir"].Kind, IsADirectory)
	}
	if b.Failures["absent"].Kind != FileNotFound {
		t.Errorf("absent kind = %v, want %v", b.Failures["absent"].Kind, FileNotFound)
	}
}
