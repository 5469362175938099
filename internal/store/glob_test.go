package store

import (
	"os"
	"path/filepath"
	"testing"

	objerrors "github.com/objectfs/localstore/pkg/errors"
)

func newTestLister(t *testing.T) (*lister, string) {
	t.Helper()
	root := t.TempDir()
	tempDir := filepath.Join(root, ".upload")
	if err := os.MkdirAll(tempDir, 0750); err != nil {
		t.Fatal(err)
	}

	files := []string{"a.bin", "sub/dir/b.bin", "sub/dir/c.txt", "sub/other/d.bin"}
	for _, f := range files {
		full := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(tempDir, "staged"), []byte("y"), 0600); err != nil {
		t.Fatal(err)
	}

	r := newResolver(root, tempDir)
	return newLister(r, root, tempDir), root
}

func TestListEmptyGlob(t *testing.T) {
	l, _ := newTestLister(t)
	results, err := l.list("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty map, got %v", results)
	}
}

func TestListLiteralName(t *testing.T) {
	l, _ := newTestLister(t)
	results, err := l.list("a.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := results["a.bin"]; !ok {
		t.Fatalf("expected a.bin in results, got %v", results)
	}
}

func TestListGlobWithinSubdir(t *testing.T) {
	l, _ := newTestLister(t)
	results, err := l.list("sub/dir/*.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one match, got %v", results)
	}
	if _, ok := results["sub/dir/b.bin"]; !ok {
		t.Fatalf("expected sub/dir/b.bin, got %v", results)
	}
}

func TestListRecursiveDoubleStarCrossesDirectories(t *testing.T) {
	l, _ := newTestLister(t)
	results, err := l.list("**")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a.bin", "sub/dir/b.bin", "sub/dir/c.txt", "sub/other/d.bin"}
	for _, name := range want {
		if _, ok := results[name]; !ok {
			t.Fatalf("expected %q among results, got %v", name, results)
		}
	}
	if _, ok := results[".upload/staged"]; ok {
		t.Fatalf("expected temp-dir contents excluded from results, got %v", results)
	}
}

func TestListDoubleStarSuffixMatchesExtension(t *testing.T) {
	l, _ := newTestLister(t)
	results, err := l.list("**/*.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for name := range results {
		if filepath.Ext(name) != ".bin" {
			t.Fatalf("unexpected non-.bin match %q", name)
		}
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 .bin matches, got %v", results)
	}
}

func TestListMalformedPattern(t *testing.T) {
	l, _ := newTestLister(t)
	_, err := l.list("[")
	if err == nil {
		t.Fatal("expected error for malformed pattern")
	}
	if !objerrors.AsKind(err, objerrors.MalformedGlob) {
		t.Fatalf("expected MalformedGlob, got %v", err)
	}
}

func TestListSkipsTempDirEvenWhenWalkStartsAtRoot(t *testing.T) {
	l, _ := newTestLister(t)
	results, err := l.list("*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := results[".upload/staged"]; ok {
		t.Fatalf("temp-dir file leaked into top-level glob results: %v", results)
	}
}
