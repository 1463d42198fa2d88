package graph

import (
	"path/filepath"
	"strings"

	"github.com/phobologic/sitebuild/internal/config"
)

// ModuleName derives a module or layout module name from one of its files:
// the file's directory relative to root, segments joined by the separator.
// Files directly under root belong to the root module.
func ModuleName(cfg *config.Config, root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return cfg.RootModuleFileName
	}
	return joinSegments(rel, cfg.NameSeparator)
}

// ComponentName derives a component name from one of its files. Files
// directly under the components root are named by their base name.
func ComponentName(cfg *config.Config, root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return baseName(path)
	}
	return joinSegments(rel, cfg.NameSeparator)
}

// LibraryName derives a standalone library name: the first directory below
// root, or the base name of a file directly under root.
func LibraryName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return baseName(path)
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) == 1 {
		return baseName(path)
	}
	return segments[0]
}

// FileName derives a template or shared library name: the path relative to
// root without its extension, slash separated.
func FileName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return baseName(path)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func joinSegments(rel, sep string) string {
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", sep)
}
