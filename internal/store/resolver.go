package store

import (
	"path/filepath"
	"strings"

	objerrors "github.com/objectfs/localstore/pkg/errors"
)

// resolver maps a logical name to an absolute path under a storage root,
// rejecting traversal and temp-dir collisions (component A). It performs
// no I/O and is total over its input.
type resolver struct {
	root    string
	tempDir string
}

func newResolver(root, tempDir string) *resolver {
	return &resolver{root: filepath.Clean(root), tempDir: filepath.Clean(tempDir)}
}

// resolve translates a logical name into an absolute host path, or
// returns a ForbiddenPath error.
func (r *resolver) resolve(name string) (string, error) {
	if name == "" {
		return "", objerrors.New(objerrors.ForbiddenPath, name, "name must not be empty")
	}
	if strings.HasPrefix(name, "/") {
		return "", objerrors.New(objerrors.ForbiddenPath, name, "name must not start with /")
	}

	hostRelative := name
	if filepath.Separator != '/' {
		hostRelative = strings.ReplaceAll(name, "/", string(filepath.Separator))
	}

	joined := filepath.Join(r.root, hostRelative)
	cleaned := filepath.Clean(joined)

	if !withinDir(cleaned, r.root) {
		return "", objerrors.New(objerrors.ForbiddenPath, name, "name escapes storage root")
	}
	if withinDir(cleaned, r.tempDir) || cleaned == r.tempDir {
		return "", objerrors.New(objerrors.ForbiddenPath, name, "name refers to the temp directory")
	}

	return cleaned, nil
}

// relativeName is the inverse of resolve: it turns an absolute path
// (already known to be under root) back into a logical name using '/'
// as separator, for use in list results and batch error keys.
func (r *resolver) relativeName(path string) string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return path
	}
	if filepath.Separator != '/' {
		rel = strings.ReplaceAll(rel, string(filepath.Separator), "/")
	}
	return rel
}

func withinDir(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
