package model

// Summary is a flattened view of a site graph for reporting. Paths are
// relative to Root and slash separated.
type Summary struct {
	Project    string
	Root       string
	Files      []FileInfo // sorted by rank descending
	Modules    []ModuleInfo
	Layouts    []LayoutInfo
	Components []ComponentInfo
	Libraries  []LibraryInfo
	Imports    []Import
}

// FileInfo is a script or style file with its import centrality.
type FileInfo struct {
	Path string
	Kind Kind
	Name string
	Rank float64
}

// ModuleInfo describes a module and what resolved for it.
type ModuleInfo struct {
	Name       string
	Aliases    []string
	Layout     string
	Template   string
	Files      []string // markup, then script and style when present
	Components []string
	Vendors    []string
}

// LayoutInfo describes a layout module.
type LayoutInfo struct {
	Name   string
	Parent string
	Files  []string
}

// ComponentInfo describes a component and how many markup files use it.
type ComponentInfo struct {
	Name  string
	Files []string
	Users int
}

// LibraryInfo describes a standalone library.
type LibraryInfo struct {
	Name         string
	Group        Group
	Entry        string
	Dependencies int
}

// Import is an edge from an importing file to an imported one.
type Import struct {
	Source string
	Target string
}
