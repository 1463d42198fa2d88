// Package model defines core data structures for sitebuild.
package model

import (
	"sort"
)

// Group is the file family an asset belongs to. Edges only connect assets of
// the same group.
type Group uint8

const (
	Script Group = iota
	Style
	Markup
	Configuration
)

func (g Group) String() string {
	switch g {
	case Script:
		return "script"
	case Style:
		return "style"
	case Markup:
		return "markup"
	case Configuration:
		return "config"
	}
	return "unknown"
}

// Role is the part an asset plays in the site structure.
type Role uint8

const (
	Library Role = iota
	ModuleRole
	LayoutModuleRole
	ComponentRole
	StandaloneEntry
	StandaloneDependency
	TemplateRole
)

func (r Role) String() string {
	switch r {
	case Library:
		return "library"
	case ModuleRole:
		return "module"
	case LayoutModuleRole:
		return "layout-module"
	case ComponentRole:
		return "component"
	case StandaloneEntry:
		return "standalone-entry"
	case StandaloneDependency:
		return "standalone-dependency"
	case TemplateRole:
		return "template"
	}
	return "unknown"
}

// Kind tags every asset. The set is closed; callers switch on it instead of
// on Go types.
type Kind uint8

const (
	LibraryScript Kind = iota
	ModuleScript
	LayoutModuleScript
	ComponentScript
	StandaloneEntryScript
	StandaloneDependencyScript
	LibraryStyle
	ModuleStyle
	LayoutModuleStyle
	ComponentStyle
	StandaloneEntryStyle
	StandaloneDependencyStyle
	ModuleMarkup
	LayoutModuleMarkup
	ComponentMarkup
	TemplateMarkup
	ModuleConfig
	LayoutModuleConfig
	numKinds
)

var kindTable = [numKinds]struct {
	name  string
	group Group
	role  Role
}{
	LibraryScript:              {"library-script", Script, Library},
	ModuleScript:               {"module-script", Script, ModuleRole},
	LayoutModuleScript:         {"layout-module-script", Script, LayoutModuleRole},
	ComponentScript:            {"component-script", Script, ComponentRole},
	StandaloneEntryScript:      {"standalone-entry-script", Script, StandaloneEntry},
	StandaloneDependencyScript: {"standalone-dependency-script", Script, StandaloneDependency},
	LibraryStyle:               {"library-style", Style, Library},
	ModuleStyle:                {"module-style", Style, ModuleRole},
	LayoutModuleStyle:          {"layout-module-style", Style, LayoutModuleRole},
	ComponentStyle:             {"component-style", Style, ComponentRole},
	StandaloneEntryStyle:       {"standalone-entry-style", Style, StandaloneEntry},
	StandaloneDependencyStyle:  {"standalone-dependency-style", Style, StandaloneDependency},
	ModuleMarkup:               {"module-markup", Markup, ModuleRole},
	LayoutModuleMarkup:         {"layout-module-markup", Markup, LayoutModuleRole},
	ComponentMarkup:            {"component-markup", Markup, ComponentRole},
	TemplateMarkup:             {"template-markup", Markup, TemplateRole},
	ModuleConfig:               {"module-config", Configuration, ModuleRole},
	LayoutModuleConfig:         {"layout-module-config", Configuration, LayoutModuleRole},
}

func (k Kind) String() string {
	if k >= numKinds {
		return "unknown"
	}
	return kindTable[k].name
}

// Group returns the file family of k.
func (k Kind) Group() Group { return kindTable[k].group }

// Role returns the structural role of k.
func (k Kind) Role() Role { return kindTable[k].role }

// Buildable reports whether assets of this kind produce output of their own.
// Library files and standalone dependencies only reach output through the
// records that import them.
func (k Kind) Buildable() bool {
	switch k.Role() {
	case ModuleRole, LayoutModuleRole, ComponentRole, StandaloneEntry:
		return k.Group() == Script || k.Group() == Style || k == ModuleMarkup
	}
	return false
}

// Asset is one discovered file. Assets are owned by the graph that created
// them; edges between assets never imply ownership.
type Asset struct {
	Path    string // Absolute, unique within its group
	Kind    Kind
	Name    string // Module, component, library or template name
	Content []byte

	// References holds the paths reported by the last reference scan.
	References []string

	parents    edgeSet
	children   edgeSet
	users      edgeSet
	components []*Component
}

// NewAsset creates an asset with empty edge sets.
func NewAsset(path string, kind Kind, name string, content []byte) *Asset {
	return &Asset{Path: path, Kind: kind, Name: name, Content: content}
}

// Parents returns the assets referencing a, sorted by path.
func (a *Asset) Parents() []*Asset { return a.parents.sorted() }

// Children returns the assets a references, sorted by path.
func (a *Asset) Children() []*Asset { return a.children.sorted() }

// HasChild reports whether a references child.
func (a *Asset) HasChild(child *Asset) bool { return a.children.has(child) }

// HasParent reports whether parent references a.
func (a *Asset) HasParent(parent *Asset) bool { return a.parents.has(parent) }

// Users returns the records that depend on a without importing it: modules
// using a template or standalone entry, markup using a component.
func (a *Asset) Users() []*Asset { return a.users.sorted() }

// AddUser records user as a dependent of a.
func (a *Asset) AddUser(user *Asset) { a.users.add(user) }

// Components returns the components used by a markup asset, in discovery order.
func (a *Asset) Components() []*Component { return a.components }

// UseComponent records c as used by a. It reports false if c was already recorded.
func (a *Asset) UseComponent(c *Component) bool {
	for _, existing := range a.components {
		if existing == c {
			return false
		}
	}
	a.components = append(a.components, c)
	if c.Markup != nil {
		c.Markup.AddUser(a)
	}
	return true
}

// Link adds the edge parent -> child in both directions.
func Link(parent, child *Asset) {
	parent.children.add(child)
	child.parents.add(parent)
}

// Unlink removes the edge parent -> child in both directions.
func Unlink(parent, child *Asset) {
	parent.children.remove(child)
	child.parents.remove(parent)
}

type edgeSet map[string]*Asset

func (s *edgeSet) add(a *Asset) {
	if *s == nil {
		*s = make(edgeSet)
	}
	(*s)[a.Path] = a
}

func (s edgeSet) remove(a *Asset) { delete(s, a.Path) }

func (s edgeSet) has(a *Asset) bool {
	got, ok := s[a.Path]
	return ok && got == a
}

func (s edgeSet) sorted() []*Asset {
	out := make([]*Asset, 0, len(s))
	for _, a := range s {
		out = append(out, a)
	}
	SortAssets(out)
	return out
}

// SortAssets orders assets by path.
func SortAssets(assets []*Asset) {
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Path < assets[j].Path
	})
}
