// Package graph builds the site's dependency and ownership graph: asset
// records, import edges, the layout hierarchy, component usage and each
// module's resolved asset sets.
//
// A Graph is built in one pass by Construct and is not modified afterwards
// except through incremental edge updates on individual assets.
package graph

import (
	"sort"

	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/model"
)

// Graph is the fully resolved site.
type Graph struct {
	// Config is the configuration the graph was built from, with per-module
	// directive files merged in.
	Config *config.Config
	// Prod records the build mode used to choose vendor reference variants.
	Prod bool

	assets  map[string]*model.Asset
	scripts map[string]*model.Asset
	styles  map[string]*model.Asset

	modules     map[string]*model.Module // includes aliases
	moduleList  []*model.Module
	layouts     map[string]*model.LayoutModule
	layoutList  []*model.LayoutModule
	components  map[string]*model.Component
	byMarkup    map[*model.Asset]*model.Module
	layoutOf    map[*model.Asset]*model.LayoutModule
	libraries   []*model.StandaloneLibrary
	libraryOf   map[*model.Asset]*model.StandaloneLibrary
	templates   map[string]*model.Asset
	vendorJS    []*model.Vendor
	vendorCSS   []*model.Vendor
	staticJS    []model.StaticReference
	staticCSS   []model.StaticReference
	directives  map[*model.Asset]string
	componentOf map[*model.Asset]*model.Component
}

func newGraph(cfg *config.Config, prod bool) *Graph {
	return &Graph{
		Config:      cfg,
		Prod:        prod,
		assets:      make(map[string]*model.Asset),
		scripts:     make(map[string]*model.Asset),
		styles:      make(map[string]*model.Asset),
		modules:     make(map[string]*model.Module),
		layouts:     make(map[string]*model.LayoutModule),
		components:  make(map[string]*model.Component),
		byMarkup:    make(map[*model.Asset]*model.Module),
		layoutOf:    make(map[*model.Asset]*model.LayoutModule),
		libraryOf:   make(map[*model.Asset]*model.StandaloneLibrary),
		templates:   make(map[string]*model.Asset),
		directives:  make(map[*model.Asset]string),
		componentOf: make(map[*model.Asset]*model.Component),
	}
}

// Asset returns the record for an absolute path, or nil.
func (g *Graph) Asset(path string) *model.Asset { return g.assets[path] }

// Assets returns every record, sorted by path.
func (g *Graph) Assets() []*model.Asset {
	out := make([]*model.Asset, 0, len(g.assets))
	for _, a := range g.assets {
		out = append(out, a)
	}
	model.SortAssets(out)
	return out
}

// Lookup returns the record of the given group at path, or nil.
func (g *Graph) Lookup(group model.Group, path string) *model.Asset {
	switch group {
	case model.Script:
		return g.scripts[path]
	case model.Style:
		return g.styles[path]
	}
	return nil
}

// Module returns the module registered under name or one of its aliases.
func (g *Graph) Module(name string) (*model.Module, bool) {
	m, ok := g.modules[name]
	return m, ok
}

// Modules returns each module once, sorted by name.
func (g *Graph) Modules() []*model.Module { return g.moduleList }

// ModuleForMarkup returns the module owning a module markup record.
func (g *Graph) ModuleForMarkup(a *model.Asset) *model.Module { return g.byMarkup[a] }

// LayoutModule returns the layout module registered under name.
func (g *Graph) LayoutModule(name string) (*model.LayoutModule, bool) {
	l, ok := g.layouts[name]
	return l, ok
}

// LayoutModules returns every layout module, sorted by name.
func (g *Graph) LayoutModules() []*model.LayoutModule { return g.layoutList }

// LayoutForMarkup returns the layout module owning a layout markup record.
func (g *Graph) LayoutForMarkup(a *model.Asset) *model.LayoutModule { return g.layoutOf[a] }

// Component returns the component registered under name.
func (g *Graph) Component(name string) (*model.Component, bool) {
	c, ok := g.components[name]
	return c, ok
}

// Components returns every component, sorted by name.
func (g *Graph) Components() []*model.Component {
	out := make([]*model.Component, 0, len(g.components))
	for _, c := range g.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ComponentFor returns the component owning a component record.
func (g *Graph) ComponentFor(a *model.Asset) *model.Component { return g.componentOf[a] }

// Libraries returns the standalone libraries, scripts first, each group sorted by name.
func (g *Graph) Libraries() []*model.StandaloneLibrary { return g.libraries }

// LibraryOf returns the standalone library a standalone record belongs to.
func (g *Graph) LibraryOf(a *model.Asset) *model.StandaloneLibrary { return g.libraryOf[a] }

// Template returns the template registered under name.
func (g *Graph) Template(name string) (*model.Asset, bool) {
	t, ok := g.templates[name]
	return t, ok
}

// VendorScripts returns the vendor script bundles in configuration order.
func (g *Graph) VendorScripts() []*model.Vendor { return g.vendorJS }

// VendorStyles returns the vendor style bundles in configuration order.
func (g *Graph) VendorStyles() []*model.Vendor { return g.vendorCSS }

// DirectivesOwner returns the module or layout module name a configuration
// record applies to.
func (g *Graph) DirectivesOwner(a *model.Asset) string { return g.directives[a] }

// StaticScripts returns the configured static script references.
func (g *Graph) StaticScripts() []model.StaticReference { return g.staticJS }

// StaticStyles returns the configured static style references.
func (g *Graph) StaticStyles() []model.StaticReference { return g.staticCSS }
