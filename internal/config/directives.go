package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/phobologic/sitebuild/internal/model"
)

//go:embed schema.cue
var schemaSource []byte

// Names is a tri-state list directive. The zero value means the key was
// absent; Set with nil Values means an explicit null.
type Names struct {
	Set    bool
	Values []string
}

// Null reports whether the directive was explicitly null.
func (n Names) Null() bool { return n.Set && n.Values == nil }

// List reports whether the directive carries a (possibly empty) list.
func (n Names) List() bool { return n.Set && n.Values != nil }

// Contains reports whether name is listed.
func (n Names) Contains(name string) bool {
	for _, v := range n.Values {
		if v == name {
			return true
		}
	}
	return false
}

// OptionalString is a tri-state string directive.
type OptionalString struct {
	Set   bool
	Null  bool
	Value string
}

// References is a tri-state list of literal static references.
type References struct {
	Set    bool
	Values []model.StaticReference // nil with Set means explicit null
}

// Filter holds the include/exclude pair for one resolvable category.
type Filter struct {
	Include Names
	Exclude Names
}

// Directives is the configuration a module or layout module carries about
// itself. Only keys present in the source are Set.
type Directives struct {
	SubstitutingModules []string
	LayoutModule        OptionalString
	MarkupTemplate      OptionalString

	StandaloneScripts Filter
	StandaloneStyles  Filter
	VendorScripts     Filter
	VendorStyles      Filter
	StaticScripts     Filter
	StaticStyles      Filter

	AppendStaticScripts References
	AppendStaticStyles  References
}

// ValidationError reports configuration that does not match the schema.
type ValidationError struct {
	File    string
	Details string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.File, e.Details)
}

// LoadDirectivesFile reads a per-module JSON directive file.
func LoadDirectivesFile(path string) (Directives, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Directives{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseDirectives(data, path)
}

// ParseDirectives validates data against the directive schema and decodes it.
func ParseDirectives(data []byte, filename string) (Directives, error) {
	raw, err := compileValidated(data, filename, "#Directives")
	if err != nil {
		return Directives{}, err
	}
	return decodeDirectives(raw, filename)
}

// compileValidated compiles JSON (a subset of CUE) and checks it against the
// named schema definition. It returns the raw, un-unified value so that absent
// keys and explicit nulls stay distinguishable.
func compileValidated(data []byte, filename, definition string) (cue.Value, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if schema.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: compiling schema: %w", schema.Err())
	}
	def := schema.LookupPath(cue.ParsePath(definition))
	if def.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s: %w", definition, def.Err())
	}

	raw := ctx.CompileBytes(data, cue.Filename(filename))
	if raw.Err() != nil {
		return cue.Value{}, &ValidationError{File: filename, Details: cueerrors.Details(raw.Err(), nil)}
	}

	if err := def.Unify(raw).Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, &ValidationError{File: filename, Details: cueerrors.Details(err, nil)}
	}
	return raw, nil
}

func field(v cue.Value, name string) cue.Value {
	return v.LookupPath(cue.MakePath(cue.Str(name)))
}

func isNull(v cue.Value) bool {
	return v.Null() == nil
}

func decodeDirectives(v cue.Value, filename string) (Directives, error) {
	var d Directives
	var err error

	if f := field(v, "substitutingModules"); f.Exists() {
		if err := f.Decode(&d.SubstitutingModules); err != nil {
			return d, decodeError(filename, "substitutingModules", err)
		}
	}
	if d.LayoutModule, err = decodeOptionalString(v, "layoutModule", filename); err != nil {
		return d, err
	}
	if d.MarkupTemplate, err = decodeOptionalString(v, "markupTemplate", filename); err != nil {
		return d, err
	}

	filters := []struct {
		dst  *Filter
		name string
	}{
		{&d.StandaloneScripts, "StandaloneScripts"},
		{&d.StandaloneStyles, "StandaloneStyles"},
		{&d.VendorScripts, "VendorScripts"},
		{&d.VendorStyles, "VendorStyles"},
		{&d.StaticScripts, "StaticScriptReferences"},
		{&d.StaticStyles, "StaticStyleReferences"},
	}
	for _, f := range filters {
		if f.dst.Include, err = decodeNames(v, "include"+f.name, filename); err != nil {
			return d, err
		}
		if f.dst.Exclude, err = decodeNames(v, "exclude"+f.name, filename); err != nil {
			return d, err
		}
	}

	if d.AppendStaticScripts, err = decodeReferences(v, "staticScriptReferences", filename); err != nil {
		return d, err
	}
	if d.AppendStaticStyles, err = decodeReferences(v, "staticStyleReferences", filename); err != nil {
		return d, err
	}
	return d, nil
}

func decodeNames(v cue.Value, name, filename string) (Names, error) {
	f := field(v, name)
	if !f.Exists() {
		return Names{}, nil
	}
	if isNull(f) {
		return Names{Set: true}, nil
	}
	var values []string
	if err := f.Decode(&values); err != nil {
		return Names{}, decodeError(filename, name, err)
	}
	if values == nil {
		values = []string{}
	}
	return Names{Set: true, Values: values}, nil
}

func decodeOptionalString(v cue.Value, name, filename string) (OptionalString, error) {
	f := field(v, name)
	if !f.Exists() {
		return OptionalString{}, nil
	}
	if isNull(f) {
		return OptionalString{Set: true, Null: true}, nil
	}
	s, err := f.String()
	if err != nil {
		return OptionalString{}, decodeError(filename, name, err)
	}
	return OptionalString{Set: true, Value: s}, nil
}

func decodeReferences(v cue.Value, name, filename string) (References, error) {
	f := field(v, name)
	if !f.Exists() {
		return References{}, nil
	}
	if isNull(f) {
		return References{Set: true}, nil
	}
	var raw []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := f.Decode(&raw); err != nil {
		return References{}, decodeError(filename, name, err)
	}
	refs := make([]model.StaticReference, 0, len(raw))
	for _, r := range raw {
		refs = append(refs, model.StaticReference{Name: r.Name, URL: r.URL})
	}
	return References{Set: true, Values: refs}, nil
}

func decodeError(filename, key string, err error) error {
	return &ValidationError{File: filename, Details: fmt.Sprintf("%s: %s", key, cueerrors.Details(err, nil))}
}
