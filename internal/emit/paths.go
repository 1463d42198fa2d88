package emit

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/model"
)

// Output extensions. Sources are emitted as browser formats regardless of the
// project type.
const (
	ScriptExtension = ".js"
	StyleExtension  = ".css"
	MarkupExtension = ".html"
)

// OutputDirectory returns the configured output directory for a buildable
// kind, relative to the public directory.
func OutputDirectory(cfg *config.Config, k model.Kind) (string, bool) {
	out := cfg.OutputDirectories
	switch k {
	case model.ModuleScript:
		return out.ModuleScripts, true
	case model.LayoutModuleScript:
		return out.LayoutModuleScripts, true
	case model.ComponentScript:
		return out.ComponentScripts, true
	case model.StandaloneEntryScript:
		return out.StandaloneScriptLibraries, true
	case model.ModuleStyle:
		return out.ModuleStyles, true
	case model.LayoutModuleStyle:
		return out.LayoutModuleStyles, true
	case model.ComponentStyle:
		return out.ComponentStyles, true
	case model.StandaloneEntryStyle:
		return out.StandaloneStyleLibraries, true
	case model.ModuleMarkup:
		return out.MarkupFiles, true
	}
	return "", false
}

func extension(k model.Kind) string {
	switch k.Group() {
	case model.Script:
		return ScriptExtension
	case model.Style:
		return StyleExtension
	}
	return MarkupExtension
}

// RelativeOutputPath returns where a record of kind k named name is written,
// relative to the project directory.
func RelativeOutputPath(cfg *config.Config, k model.Kind, name string) (string, bool) {
	dir, ok := OutputDirectory(cfg, k)
	if !ok {
		return "", false
	}
	return filepath.Join(cfg.PublicDirectory, dir, name+extension(k)), true
}

// OutputPath returns the absolute output path of a buildable record or of a
// library record some buildable record imports.
func OutputPath(cfg *config.Config, a *model.Asset) (string, bool) {
	if root, dir, ok := libraryDirectories(cfg, a.Kind); ok {
		rel, err := filepath.Rel(root, a.Path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", false
		}
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + extension(a.Kind)
		return filepath.Join(cfg.OutputPath(dir), filepath.Base(root), rel), true
	}
	rel, ok := RelativeOutputPath(cfg, a.Kind, a.Name)
	if !ok {
		return "", false
	}
	return filepath.Join(cfg.ProjectDirectory, rel), true
}

// libraryDirectories returns the source root and output directory of a
// kind that is only emitted because something imports it.
func libraryDirectories(cfg *config.Config, k model.Kind) (root, dir string, ok bool) {
	src, out := cfg.SourceDirectories, cfg.OutputDirectories
	switch k {
	case model.LibraryScript:
		return src.LibraryScripts, out.LibraryScripts, true
	case model.StandaloneDependencyScript:
		return src.StandaloneScriptLibraries, out.LibraryScripts, true
	case model.LibraryStyle:
		return src.LibraryStyles, out.LibraryStyles, true
	case model.StandaloneDependencyStyle:
		return src.StandaloneStyleLibraries, out.LibraryStyles, true
	}
	return "", "", false
}

// VendorDirectory returns the absolute output directory of a vendor bundle.
func VendorDirectory(cfg *config.Config, v *model.Vendor) string {
	dir := cfg.OutputDirectories.VendorScripts
	if v.Group == model.Style {
		dir = cfg.OutputDirectories.VendorStyles
	}
	return filepath.Join(cfg.OutputPath(dir), v.Name)
}

// URL returns the public URL of a buildable record.
func URL(cfg *config.Config, a *model.Asset) string {
	dir, _ := OutputDirectory(cfg, a.Kind)
	return publicURL(cfg, dir, a.Name+extension(a.Kind))
}

// VendorURLs returns the public URLs of a vendor bundle's files.
func VendorURLs(cfg *config.Config, v *model.Vendor) []string {
	dir := cfg.OutputDirectories.VendorScripts
	if v.Group == model.Style {
		dir = cfg.OutputDirectories.VendorStyles
	}
	out := make([]string, 0, len(v.Paths))
	for _, p := range v.Paths {
		out = append(out, publicURL(cfg, dir, v.Name, p))
	}
	return out
}

func publicURL(cfg *config.Config, elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		parts = append(parts, filepath.ToSlash(e))
	}
	base := cfg.PublicPath
	if base == "" {
		base = "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimPrefix(path.Join(parts...), "/")
}

// CleanDirectories returns the absolute output directories a full build
// removes first. Vendor directories are included only when vendors are copied.
func CleanDirectories(cfg *config.Config, vendors bool) []string {
	out := cfg.OutputDirectories
	dirs := []string{
		out.ModuleScripts,
		out.LayoutModuleScripts,
		out.ComponentScripts,
		out.StandaloneScriptLibraries,
		out.ModuleStyles,
		out.LayoutModuleStyles,
		out.ComponentStyles,
		out.StandaloneStyleLibraries,
		out.MarkupFiles,
		out.LibraryScripts,
		out.LibraryStyles,
	}
	if vendors {
		dirs = append(dirs, out.VendorScripts, out.VendorStyles)
	}
	abs := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs = append(abs, cfg.OutputPath(d))
	}
	return abs
}
