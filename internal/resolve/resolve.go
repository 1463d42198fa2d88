// Package resolve computes the effective optional asset sets of a module by
// merging its own directives and then those of each layout module above it.
//
// Every category is decided by the first level that says anything about it;
// levels further up the chain cannot change a category once it is set.
package resolve

import (
	"fmt"
	"slices"

	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/model"
)

// Slot is one resolvable category: its current value and whether some level
// has explicitly decided it.
type Slot[T any] struct {
	Value T
	Set   bool
}

// Bag accumulates one module's resolution. It is transient: the graph copies
// the final values onto the module and discards the bag.
type Bag struct {
	StandaloneScripts Slot[[]*model.Asset]
	StandaloneStyles  Slot[[]*model.Asset]
	VendorScripts     Slot[[]*model.Vendor]
	VendorStyles      Slot[[]*model.Vendor]
	StaticScripts     Slot[[]model.StaticReference]
	StaticStyles      Slot[[]model.StaticReference]
	Template          Slot[*model.Asset]
}

// Universe is everything a bag can select from.
type Universe struct {
	// Standalone entries only; dependency records are never selectable.
	StandaloneScripts []*model.Asset
	StandaloneStyles  []*model.Asset

	VendorScripts []*model.Vendor
	VendorStyles  []*model.Vendor
	StaticScripts []model.StaticReference
	StaticStyles  []model.StaticReference

	Templates       map[string]*model.Asset
	DefaultTemplate string
}

// Level is one step of the cascade.
type Level struct {
	Owner      string // module or layout module name, for error reporting
	Directives config.Directives
}

// UnknownNameError reports a directive naming something that does not exist.
type UnknownNameError struct {
	Owner     string
	Directive string
	Name      string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("%s: %s names unknown entry %q", e.Owner, e.Directive, e.Name)
}

// NewBag seeds a bag with the conservative defaults: everything selectable and
// the global default template. No category is marked set.
func NewBag(u Universe) Bag {
	return Bag{
		StandaloneScripts: Slot[[]*model.Asset]{Value: slices.Clone(u.StandaloneScripts)},
		StandaloneStyles:  Slot[[]*model.Asset]{Value: slices.Clone(u.StandaloneStyles)},
		VendorScripts:     Slot[[]*model.Vendor]{Value: slices.Clone(u.VendorScripts)},
		VendorStyles:      Slot[[]*model.Vendor]{Value: slices.Clone(u.VendorStyles)},
		StaticScripts:     Slot[[]model.StaticReference]{Value: slices.Clone(u.StaticScripts)},
		StaticStyles:      Slot[[]model.StaticReference]{Value: slices.Clone(u.StaticStyles)},
		Template:          Slot[*model.Asset]{Value: u.Templates[u.DefaultTemplate]},
	}
}

// Complete reports whether every category has been decided.
func (b Bag) Complete() bool {
	return b.StandaloneScripts.Set && b.StandaloneStyles.Set &&
		b.VendorScripts.Set && b.VendorStyles.Set &&
		b.StaticScripts.Set && b.StaticStyles.Set &&
		b.Template.Set
}

// Merge applies one level's directives to every category still unset and
// returns the result. b is not modified.
func (b Bag) Merge(u Universe, level Level) (Bag, error) {
	d := level.Directives
	var err error

	if b.StandaloneScripts, err = filterSlot(b.StandaloneScripts, u.StandaloneScripts, assetName, d.StandaloneScripts, level.Owner, "StandaloneScripts"); err != nil {
		return b, err
	}
	if b.StandaloneStyles, err = filterSlot(b.StandaloneStyles, u.StandaloneStyles, assetName, d.StandaloneStyles, level.Owner, "StandaloneStyles"); err != nil {
		return b, err
	}
	if b.VendorScripts, err = filterSlot(b.VendorScripts, u.VendorScripts, vendorName, d.VendorScripts, level.Owner, "VendorScripts"); err != nil {
		return b, err
	}
	if b.VendorStyles, err = filterSlot(b.VendorStyles, u.VendorStyles, vendorName, d.VendorStyles, level.Owner, "VendorStyles"); err != nil {
		return b, err
	}

	scriptsUnset, stylesUnset := !b.StaticScripts.Set, !b.StaticStyles.Set
	if b.StaticScripts, err = filterSlot(b.StaticScripts, u.StaticScripts, refName, d.StaticScripts, level.Owner, "StaticScriptReferences"); err != nil {
		return b, err
	}
	if b.StaticStyles, err = filterSlot(b.StaticStyles, u.StaticStyles, refName, d.StaticStyles, level.Owner, "StaticStyleReferences"); err != nil {
		return b, err
	}
	if scriptsUnset {
		b.StaticScripts = appendSlot(b.StaticScripts, d.AppendStaticScripts)
	}
	if stylesUnset {
		b.StaticStyles = appendSlot(b.StaticStyles, d.AppendStaticStyles)
	}

	if !b.Template.Set && d.MarkupTemplate.Set {
		if d.MarkupTemplate.Null {
			b.Template = Slot[*model.Asset]{Set: true}
		} else {
			t, ok := u.Templates[d.MarkupTemplate.Value]
			if !ok {
				return b, &UnknownNameError{Owner: level.Owner, Directive: "markupTemplate", Name: d.MarkupTemplate.Value}
			}
			b.Template = Slot[*model.Asset]{Value: t, Set: true}
		}
	}

	return b, nil
}

// Resolve merges levels in order, nearest first, stopping once every
// category is decided.
func Resolve(u Universe, levels []Level) (Bag, error) {
	b := NewBag(u)
	for _, level := range levels {
		if b.Complete() {
			break
		}
		var err error
		if b, err = b.Merge(u, level); err != nil {
			return b, err
		}
	}
	return b, nil
}

// filterSlot applies the first matching filter directive: include list,
// exclude list, include null (empty), exclude null (keep, but decided).
func filterSlot[T any](s Slot[[]T], universe []T, name func(T) string, f config.Filter, owner, category string) (Slot[[]T], error) {
	if s.Set {
		return s, nil
	}
	switch {
	case f.Include.List():
		if err := checkNames(universe, name, f.Include.Values, owner, "include"+category); err != nil {
			return s, err
		}
		return Slot[[]T]{Value: keep(s.Value, name, f.Include.Contains), Set: true}, nil
	case f.Exclude.List():
		if err := checkNames(universe, name, f.Exclude.Values, owner, "exclude"+category); err != nil {
			return s, err
		}
		notExcluded := func(n string) bool { return !f.Exclude.Contains(n) }
		return Slot[[]T]{Value: keep(s.Value, name, notExcluded), Set: true}, nil
	case f.Include.Null():
		return Slot[[]T]{Value: []T{}, Set: true}, nil
	case f.Exclude.Null():
		return Slot[[]T]{Value: s.Value, Set: true}, nil
	}
	return s, nil
}

func appendSlot(s Slot[[]model.StaticReference], refs config.References) Slot[[]model.StaticReference] {
	if !refs.Set {
		return s
	}
	out := slices.Clone(s.Value)
	out = append(out, refs.Values...)
	return Slot[[]model.StaticReference]{Value: out, Set: true}
}

func keep[T any](items []T, name func(T) string, pred func(string) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if pred(name(it)) {
			out = append(out, it)
		}
	}
	return out
}

func checkNames[T any](universe []T, name func(T) string, names []string, owner, directive string) error {
	known := make(map[string]struct{}, len(universe))
	for _, it := range universe {
		known[name(it)] = struct{}{}
	}
	for _, n := range names {
		if _, ok := known[n]; !ok {
			return &UnknownNameError{Owner: owner, Directive: directive, Name: n}
		}
	}
	return nil
}

func assetName(a *model.Asset) string { return a.Name }

func vendorName(v *model.Vendor) string { return v.Name }

func refName(r model.StaticReference) string { return r.Name }
