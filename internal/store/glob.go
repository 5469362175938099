package store

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	objerrors "github.com/objectfs/localstore/pkg/errors"
)

const globMeta = "*?[{\\"

// lister implements glob-based listing (component E): split the pattern
// into a literal prefix and the remaining glob, walk only that
// subdirectory, and match root-relative "/"-delimited paths. Matching is
// done segment by segment so a "**" segment can stand for zero or more
// intervening directories, matching the recursive-listing idiom used by
// list("**").
type lister struct {
	resolver *resolver
	root     string
	tempDir  string
}

func newLister(r *resolver, root, tempDir string) *lister {
	return &lister{resolver: r, root: filepath.Clean(root), tempDir: filepath.Clean(tempDir)}
}

// fileInfo is the metadata tuple returned for each matched entry.
type fileInfo struct {
	Size        int64
	TimestampMs int64
}

// list returns every regular file whose root-relative, "/"-delimited
// path matches glob, skipping the temp-dir subtree entirely. An empty
// glob yields an empty map, not an error.
func (l *lister) list(glob string) (map[string]fileInfo, error) {
	results := make(map[string]fileInfo)
	if glob == "" {
		return results, nil
	}

	patSegs := strings.Split(glob, "/")
	if err := validatePattern(patSegs); err != nil {
		return nil, objerrors.New(objerrors.MalformedGlob, glob, "invalid glob pattern").WithCause(err)
	}

	prefix := literalPrefix(patSegs)
	startDir := l.root
	if prefix != "" {
		resolved, err := l.resolver.resolve(prefix)
		if err != nil {
			return nil, err
		}
		startDir = resolved
	}

	info, statErr := os.Stat(startDir)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return results, nil
		}
		return nil, statErr
	}
	if !info.IsDir() {
		rel := l.resolver.relativeName(startDir)
		if matchSegments(patSegs, strings.Split(rel, "/")) {
			results[rel] = fileInfo{Size: info.Size(), TimestampMs: info.ModTime().UnixMilli()}
		}
		return results, nil
	}

	walkErr := filepath.WalkDir(startDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == l.tempDir || strings.HasPrefix(path, l.tempDir+string(filepath.Separator)) {
				return filepath.SkipDir
			}
			return nil
		}

		rel := l.resolver.relativeName(path)
		if !matchSegments(patSegs, strings.Split(rel, "/")) {
			return nil
		}

		fi, statErr := d.Info()
		if statErr != nil {
			return statErr
		}
		results[rel] = fileInfo{Size: fi.Size(), TimestampMs: fi.ModTime().UnixMilli()}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return results, nil
}

// validatePattern rejects malformed per-segment glob syntax up front
// (e.g. an unterminated "[" bracket expression), independent of whatever
// names happen to exist on disk.
func validatePattern(segs []string) error {
	for _, seg := range segs {
		if seg == "**" {
			continue
		}
		if _, err := filepath.Match(seg, ""); err != nil {
			return err
		}
	}
	return nil
}

// literalPrefix returns the longest run of leading path segments with no
// glob metacharacters, joined back with "/"; this is the subdirectory
// lister.list actually walks. When every segment is literal, the last one
// is left out of the prefix.
func literalPrefix(segs []string) string {
	n := 0
	for _, seg := range segs {
		if strings.ContainsAny(seg, globMeta) {
			break
		}
		n++
	}
	if n == len(segs) {
		n--
	}
	if n <= 0 {
		return ""
	}
	return strings.Join(segs[:n], "/")
}

// matchSegments matches a "/"-split name against a "/"-split pattern,
// where a "**" pattern segment matches zero or more name segments.
func matchSegments(pat, name []string) bool {
	if len(pat) == 0 {
		return len(name) == 0
	}

	if pat[0] == "**" {
		for skip := 0; skip <= len(name); skip++ {
			if matchSegments(pat[1:], name[skip:]) {
				return true
			}
		}
		return false
	}

	if len(name) == 0 {
		return false
	}

	ok, err := filepath.Match(pat[0], name[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pat[1:], name[1:])
}
