// Package discover finds source files under the configured scan roots.
package discover

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName holds gitignore-style patterns, relative to the project
// directory, for files no scan should return.
const IgnoreFileName = ".sitebuildignore"

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	".cache":       {},
	".sass-cache":  {},
}

// Scanner enumerates files below a project directory.
type Scanner struct {
	project string
	ignore  *ignore.GitIgnore
}

// NewScanner returns a scanner honoring the project's ignore file, if any.
func NewScanner(projectDir string) *Scanner {
	return &Scanner{project: projectDir, ignore: loadIgnore(projectDir)}
}

// Files returns the absolute paths of regular files under root whose extension
// is one of exts, sorted. A missing root yields no files.
func (s *Scanner) Files(root string, exts ...string) ([]string, error) {
	extSet := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		extSet[e] = struct{}{}
	}

	var results []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if s.Ignored(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if _, ok := extSet[filepath.Ext(name)]; !ok {
			return nil
		}
		if s.Ignored(path) {
			return nil
		}

		results = append(results, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

// Ignored reports whether path matches the project's ignore file.
func (s *Scanner) Ignored(path string) bool {
	if s.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(s.project, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return s.ignore.MatchesPath(filepath.ToSlash(rel))
}

func loadIgnore(project string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(project, IgnoreFileName))
	if err != nil {
		return nil
	}
	return gi
}
