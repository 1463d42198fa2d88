package model

// Module is a routable unit: one markup record with optional script and
// style counterparts plus the asset sets resolved for it.
type Module struct {
	Name    string
	Aliases []string

	Markup *Asset
	Script *Asset
	Style  *Asset

	Layout   *LayoutModule // nil for modules without a layout
	Template *Asset        // nil when the resolved template is explicitly null

	StandaloneScripts []*Asset
	StandaloneStyles  []*Asset
	VendorScripts     []*Vendor
	VendorStyles      []*Vendor
	StaticScripts     []StaticReference
	StaticStyles      []StaticReference
}

// LayoutModule wraps the modules nested beneath it and supplies defaults to
// their resolution.
type LayoutModule struct {
	Name   string
	Markup *Asset
	Script *Asset
	Style  *Asset

	Parent   *LayoutModule
	Children []*LayoutModule
	Modules  []*Module
}

// Chain returns l followed by its ancestors, nearest first.
// The graph rejects cyclic chains at construction time.
func (l *LayoutModule) Chain() []*LayoutModule {
	var chain []*LayoutModule
	for cur := l; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	return chain
}

// Component is a reusable markup fragment matched by naming convention.
type Component struct {
	Name       string
	Expression string // Name followed by the configured postfix
	Markup     *Asset
	Script     *Asset
	Style      *Asset
}

// StandaloneLibrary is a self-contained bundle with a single entry file.
type StandaloneLibrary struct {
	Name         string
	Group        Group
	Entry        *Asset // nil if no file qualified as entry
	Dependencies []*Asset
}

// Vendor is an externally sourced bundle copied as a unit.
type Vendor struct {
	Name            string
	Group           Group
	SourceDirectory string
	Paths           []string // Relative to SourceDirectory, already chosen for the build mode
}

// StaticReference is a name/URL pair injected into output without transfer.
type StaticReference struct {
	Name string
	URL  string
}
