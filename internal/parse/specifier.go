package parse

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/sitebuild/internal/model"
)

var scriptExtensions = []string{".js", ".ts", ".mjs", ".cjs", ".mts", ".cts"}

// ResolveSpecifier maps a specifier found in the file at from to the
// absolute path it names. It reports false for specifiers that are not file
// references. When no candidate exists on disk the plainest candidate is
// returned so that callers can report it as unresolved.
func ResolveSpecifier(from, spec string, group model.Group) (string, bool) {
	if !isFileSpecifier(spec, group) {
		return "", false
	}

	var base string
	if filepath.IsAbs(spec) {
		base = filepath.Clean(spec)
	} else {
		base = filepath.Join(filepath.Dir(from), filepath.FromSlash(spec))
	}

	candidates := scriptCandidates(base)
	if group == model.Style {
		candidates = styleCandidates(base)
	}
	for _, c := range candidates {
		if isFile(c) {
			return c, true
		}
	}
	return candidates[0], true
}

func isFileSpecifier(spec string, group model.Group) bool {
	switch {
	case spec == "":
		return false
	case strings.Contains(spec, "://"), strings.HasPrefix(spec, "//"), strings.HasPrefix(spec, "data:"):
		return false
	}
	if group == model.Style {
		// Sass resolves plain names against the importing file first.
		return !strings.HasPrefix(spec, "sass:") && !strings.HasPrefix(spec, "~")
	}
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") ||
		spec == "." || spec == ".." || filepath.IsAbs(spec)
}

func scriptCandidates(base string) []string {
	out := []string{base}
	if filepath.Ext(base) == "" {
		for _, ext := range scriptExtensions {
			out = append(out, base+ext)
		}
	}
	for _, ext := range scriptExtensions {
		out = append(out, filepath.Join(base, "index"+ext))
	}
	return out
}

func styleCandidates(base string) []string {
	dir, name := filepath.Split(base)
	if ext := filepath.Ext(name); ext == ".scss" || ext == ".css" {
		return []string{base, filepath.Join(dir, "_"+name)}
	}
	return []string{
		base + ".scss",
		filepath.Join(dir, "_"+name+".scss"),
		base + ".css",
		filepath.Join(base, "index.scss"),
		filepath.Join(base, "_index.scss"),
		base,
	}
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
