// Package config loads sitebuild project configuration.
//
// Scalar settings come from sitebuild.json through viper, with defaults and
// SITEBUILD_ environment overrides. The name-keyed sections (vendors, static
// references, modules, layout modules) are decoded from the same file with CUE
// so that declaration order, key case and explicit nulls survive.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/phobologic/sitebuild/internal/model"
)

// FileName is the project configuration file looked up in the project directory.
const FileName = "sitebuild.json"

// Project types.
const (
	JavaScript = "javascript"
	TypeScript = "typescript"
)

// SourceDirectories are the scan roots, absolute after Load.
type SourceDirectories struct {
	Modules                   string
	LayoutModules             string
	StandaloneScriptLibraries string
	StandaloneStyleLibraries  string
	LibraryScripts            string
	LibraryStyles             string
	MarkupTemplates           string
	Components                string
}

// OutputDirectories are relative to the public directory.
type OutputDirectories struct {
	ModuleScripts             string
	LayoutModuleScripts       string
	VendorScripts             string
	ModuleStyles              string
	LayoutModuleStyles        string
	VendorStyles              string
	StandaloneScriptLibraries string
	StandaloneStyleLibraries  string
	MarkupFiles               string
	ComponentScripts          string
	ComponentStyles           string
	// Imported files without an output of their own, such as shared
	// libraries and standalone library dependencies.
	LibraryScripts            string
	LibraryStyles             string
}

// ReferencePath is one vendor file in its standard and minified variants.
type ReferencePath struct {
	StandardPath string
	MinPath      string
}

// For picks the variant for the build mode, falling back to the other one.
func (r ReferencePath) For(prod bool) string {
	if prod {
		if r.MinPath != "" {
			return r.MinPath
		}
		return r.StandardPath
	}
	if r.StandardPath != "" {
		return r.StandardPath
	}
	return r.MinPath
}

// VendorSource is a configured vendor bundle.
type VendorSource struct {
	Name            string
	SourceDirectory string
	References      []ReferencePath
}

// Paths returns the reference paths chosen for the build mode.
func (v VendorSource) Paths(prod bool) []string {
	out := make([]string, 0, len(v.References))
	for _, r := range v.References {
		if p := r.For(prod); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WatchConfig tunes the file watcher.
type WatchConfig struct {
	Debounce time.Duration
	Ignore   []string // doublestar patterns relative to the project directory
}

// Config is the resolved project configuration.
type Config struct {
	ProjectType      string
	ProjectDirectory string // absolute
	PublicDirectory  string // relative to ProjectDirectory

	SourceDirectories SourceDirectories
	OutputDirectories OutputDirectories

	DefaultMarkupTemplate                string
	NameSeparator                        string
	ValidStandaloneLibraryEntryFileNames []string
	RootModuleFileName                   string
	ContentExpression                    string
	ScriptExpression                     string
	StyleExpression                      string
	ComponentPostFix                     string
	PublicPath                           string
	LogLevel                             string

	Watch WatchConfig

	VendorScripts          []VendorSource
	VendorStyles           []VendorSource
	StaticScriptReferences []model.StaticReference
	StaticStyleReferences  []model.StaticReference

	Modules       map[string]Directives
	LayoutModules map[string]Directives
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile overrides <ProjectDirectory>/sitebuild.json.
	ConfigFile string
	// ProjectDirectory defaults to the working directory.
	ProjectDirectory string
}

// ScriptExtension returns the source extension for the project type.
func (c *Config) ScriptExtension() string {
	if c.ProjectType == TypeScript {
		return ".ts"
	}
	return ".js"
}

// Source extensions for styles and markup.
const (
	StyleExtension  = ".scss"
	MarkupExtension = ".hbs"
	ConfigExtension = ".json"
)

// OutputRoot returns the absolute public directory.
func (c *Config) OutputRoot() string {
	return filepath.Join(c.ProjectDirectory, c.PublicDirectory)
}

// OutputPath joins an output directory onto the absolute public directory.
func (c *Config) OutputPath(dir string) string {
	return filepath.Join(c.OutputRoot(), dir)
}

// Default returns a configuration with every default applied, rooted at dir.
func Default(dir string) *Config {
	cfg, err := build(newViper(), nil, dir)
	if err != nil {
		// Defaults never fail to decode.
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("projectType", JavaScript)
	v.SetDefault("publicDirectory", "public")

	v.SetDefault("sourceDirectories.modules", "src/modules")
	v.SetDefault("sourceDirectories.layoutModules", "src/layoutModules")
	v.SetDefault("sourceDirectories.standaloneScriptLibraries", "src/standaloneScriptLibraries")
	v.SetDefault("sourceDirectories.standaloneStyleLibraries", "src/standaloneStyleLibraries")
	v.SetDefault("sourceDirectories.libraryScripts", "src/libraryScripts")
	v.SetDefault("sourceDirectories.libraryStyles", "src/libraryStyles")
	v.SetDefault("sourceDirectories.markupTemplates", "src/templates")
	v.SetDefault("sourceDirectories.components", "src/components")

	v.SetDefault("outputDirectories.moduleScripts", "js/modules")
	v.SetDefault("outputDirectories.layoutModuleScripts", "js/layoutModules")
	v.SetDefault("outputDirectories.vendorScripts", "js/vendor")
	v.SetDefault("outputDirectories.moduleStyles", "css/modules")
	v.SetDefault("outputDirectories.layoutModuleStyles", "css/layoutModules")
	v.SetDefault("outputDirectories.vendorStyles", "css/vendor")
	v.SetDefault("outputDirectories.standaloneScriptLibraries", "js/standalone")
	v.SetDefault("outputDirectories.standaloneStyleLibraries", "css/standalone")
	v.SetDefault("outputDirectories.markupFiles", "html")
	v.SetDefault("outputDirectories.componentScripts", "js/components")
	v.SetDefault("outputDirectories.componentStyles", "css/components")
	v.SetDefault("outputDirectories.libraryScripts", "js/lib")
	v.SetDefault("outputDirectories.libraryStyles", "css/lib")

	v.SetDefault("defaultMarkupTemplate", "default")
	v.SetDefault("nameSeparator", "-")
	v.SetDefault("validStandaloneLibraryEntryFileNames", []string{"index", "main"})
	v.SetDefault("rootModuleFileName", "index")
	v.SetDefault("contentExpression", "{{content}}")
	v.SetDefault("scriptExpression", "{{scripts}}")
	v.SetDefault("styleExpression", "{{styles}}")
	v.SetDefault("componentPostFix", "-component")
	v.SetDefault("publicPath", "/")
	v.SetDefault("logLevel", "info")
	v.SetDefault("watch.debounce", "100ms")
	v.SetDefault("watch.ignore", []string{})

	v.SetEnvPrefix("SITEBUILD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the project configuration. A missing sitebuild.json is not an
// error unless ConfigFile names it explicitly.
func Load(opts LoadOptions) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	dir := opts.ProjectDirectory
	if dir == "" {
		dir = os.Getenv("SITEBUILD_PROJECTDIRECTORY")
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory: %w", err)
	}

	path := opts.ConfigFile
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, FileName)
	}

	v := newViper()
	var raw *cue.Value

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, &ValidationError{File: path, Details: err.Error()}
		}
		val, err := compileValidated(data, path, "#Project")
		if err != nil {
			return nil, err
		}
		raw = &val
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return build(v, raw, dir)
}

func build(v *viper.Viper, raw *cue.Value, dir string) (*Config, error) {
	cfg := &Config{
		ProjectType:      v.GetString("projectType"),
		ProjectDirectory: dir,
		PublicDirectory:  v.GetString("publicDirectory"),

		DefaultMarkupTemplate:                v.GetString("defaultMarkupTemplate"),
		NameSeparator:                        v.GetString("nameSeparator"),
		ValidStandaloneLibraryEntryFileNames: v.GetStringSlice("validStandaloneLibraryEntryFileNames"),
		RootModuleFileName:                   v.GetString("rootModuleFileName"),
		ContentExpression:                    v.GetString("contentExpression"),
		ScriptExpression:                     v.GetString("scriptExpression"),
		StyleExpression:                      v.GetString("styleExpression"),
		ComponentPostFix:                     v.GetString("componentPostFix"),
		PublicPath:                           v.GetString("publicPath"),
		LogLevel:                             v.GetString("logLevel"),

		Watch: WatchConfig{
			Debounce: v.GetDuration("watch.debounce"),
			Ignore:   v.GetStringSlice("watch.ignore"),
		},

		Modules:       map[string]Directives{},
		LayoutModules: map[string]Directives{},
	}

	if cfg.ProjectType != JavaScript && cfg.ProjectType != TypeScript {
		return nil, &ValidationError{File: FileName, Details: fmt.Sprintf("projectType: unknown value %q", cfg.ProjectType)}
	}
	if cfg.NameSeparator == "" {
		return nil, &ValidationError{File: FileName, Details: "nameSeparator: must not be empty"}
	}

	src := func(key string) string {
		return filepath.Join(dir, filepath.FromSlash(v.GetString("sourceDirectories."+key)))
	}
	cfg.SourceDirectories = SourceDirectories{
		Modules:                   src("modules"),
		LayoutModules:             src("layoutModules"),
		StandaloneScriptLibraries: src("standaloneScriptLibraries"),
		StandaloneStyleLibraries:  src("standaloneStyleLibraries"),
		LibraryScripts:            src("libraryScripts"),
		LibraryStyles:             src("libraryStyles"),
		MarkupTemplates:           src("markupTemplates"),
		Components:                src("components"),
	}

	out := func(key string) string {
		return filepath.FromSlash(v.GetString("outputDirectories." + key))
	}
	cfg.OutputDirectories = OutputDirectories{
		ModuleScripts:             out("moduleScripts"),
		LayoutModuleScripts:       out("layoutModuleScripts"),
		VendorScripts:             out("vendorScripts"),
		ModuleStyles:              out("moduleStyles"),
		LayoutModuleStyles:        out("layoutModuleStyles"),
		VendorStyles:              out("vendorStyles"),
		StandaloneScriptLibraries: out("standaloneScriptLibraries"),
		StandaloneStyleLibraries:  out("standaloneStyleLibraries"),
		MarkupFiles:               out("markupFiles"),
		ComponentScripts:          out("componentScripts"),
		ComponentStyles:           out("componentStyles"),
		LibraryScripts:            out("libraryScripts"),
		LibraryStyles:             out("libraryStyles"),
	}

	if raw == nil {
		return cfg, nil
	}
	if err := decodeSections(cfg, *raw); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeSections(cfg *Config, raw cue.Value) error {
	var err error
	if cfg.VendorScripts, err = decodeVendors(raw, "vendorScripts", cfg.ProjectDirectory); err != nil {
		return err
	}
	if cfg.VendorStyles, err = decodeVendors(raw, "vendorStyles", cfg.ProjectDirectory); err != nil {
		return err
	}
	if cfg.StaticScriptReferences, err = decodeStatic(raw, "staticScriptReferences"); err != nil {
		return err
	}
	if cfg.StaticStyleReferences, err = decodeStatic(raw, "staticStyleReferences"); err != nil {
		return err
	}
	if err := decodeDirectiveMap(raw, "modules", cfg.Modules); err != nil {
		return err
	}
	return decodeDirectiveMap(raw, "layoutModules", cfg.LayoutModules)
}

// fields iterates a struct section in declaration order. An absent or null
// section yields nothing.
func fields(raw cue.Value, section string, fn func(name string, v cue.Value) error) error {
	f := field(raw, section)
	if !f.Exists() || isNull(f) {
		return nil
	}
	it, err := f.Fields()
	if err != nil {
		return decodeError(FileName, section, err)
	}
	for it.Next() {
		if err := fn(it.Selector().Unquoted(), it.Value()); err != nil {
			return err
		}
	}
	return nil
}

func decodeVendors(raw cue.Value, section, dir string) ([]VendorSource, error) {
	var out []VendorSource
	err := fields(raw, section, func(name string, v cue.Value) error {
		var decoded struct {
			SourceDirectory string `json:"sourceDirectory"`
			References      []struct {
				StandardPath string `json:"standardPath"`
				MinPath      string `json:"minPath"`
			} `json:"relativePathsOfReferences"`
		}
		if err := v.Decode(&decoded); err != nil {
			return decodeError(FileName, section+"."+name, err)
		}
		src := filepath.FromSlash(decoded.SourceDirectory)
		if !filepath.IsAbs(src) {
			src = filepath.Join(dir, src)
		}
		vs := VendorSource{Name: name, SourceDirectory: src}
		for _, r := range decoded.References {
			vs.References = append(vs.References, ReferencePath{StandardPath: r.StandardPath, MinPath: r.MinPath})
		}
		out = append(out, vs)
		return nil
	})
	return out, err
}

func decodeStatic(raw cue.Value, section string) ([]model.StaticReference, error) {
	var out []model.StaticReference
	err := fields(raw, section, func(name string, v cue.Value) error {
		url, err := v.String()
		if err != nil {
			return decodeError(FileName, section+"."+name, err)
		}
		out = append(out, model.StaticReference{Name: name, URL: url})
		return nil
	})
	return out, err
}

func decodeDirectiveMap(raw cue.Value, section string, dst map[string]Directives) error {
	return fields(raw, section, func(name string, v cue.Value) error {
		d, err := decodeDirectives(v, FileName)
		if err != nil {
			return err
		}
		dst[name] = d
		return nil
	})
}

// Clone returns a copy whose directive maps can be extended without touching c.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Modules = make(map[string]Directives, len(c.Modules))
	for k, v := range c.Modules {
		cp.Modules[k] = v
	}
	cp.LayoutModules = make(map[string]Directives, len(c.LayoutModules))
	for k, v := range c.LayoutModules {
		cp.LayoutModules[k] = v
	}
	return &cp
}
