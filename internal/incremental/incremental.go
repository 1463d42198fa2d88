// Package incremental turns file change events into the smallest set of
// records to rebuild, keeping the published graph's import edges current in
// between full reconstructions.
package incremental

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/graph"
	"github.com/phobologic/sitebuild/internal/model"
	"github.com/phobologic/sitebuild/internal/parse"
	"github.com/phobologic/sitebuild/internal/watch"
)

// Action is what an event requires.
type Action int

const (
	Ignore Action = iota
	// Reconstruct discards the graph, builds a new one and rebuilds everything.
	Reconstruct
	// RebuildSelf updates the asset's edges and rebuilds it.
	RebuildSelf
	// RebuildAncestors updates a library file's edges and rebuilds its
	// ultimate ancestors.
	RebuildAncestors
	// RebuildEntry rebuilds the entry of the changed file's standalone library.
	RebuildEntry
	// RebuildDeepestModules rebuilds every module below a layout module.
	RebuildDeepestModules
	// RebuildUsers rebuilds the module markup records that use a markup file.
	RebuildUsers
)

func (a Action) String() string {
	switch a {
	case Ignore:
		return "ignore"
	case Reconstruct:
		return "reconstruct"
	case RebuildSelf:
		return "rebuild self"
	case RebuildAncestors:
		return "rebuild ancestors"
	case RebuildEntry:
		return "rebuild library entry"
	case RebuildDeepestModules:
		return "rebuild layout modules"
	case RebuildUsers:
		return "rebuild users"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Classify maps an event to an action. configFile is the project
// configuration file; any change to it reconstructs.
func Classify(g *graph.Graph, ev watch.Event, configFile string) Action {
	if configFile != "" && ev.Path == configFile {
		return Reconstruct
	}

	a := g.Asset(ev.Path)
	if ev.Op.Membership() {
		if a != nil || Watched(g.Config, ev.Path) || sourceDirectory(g, ev.Path) {
			return Reconstruct
		}
		return Ignore
	}
	if a == nil {
		return Ignore
	}

	switch a.Kind {
	case model.ModuleConfig, model.LayoutModuleConfig:
		return Reconstruct
	case model.LibraryScript, model.LibraryStyle:
		return RebuildAncestors
	case model.StandaloneDependencyScript, model.StandaloneDependencyStyle:
		return RebuildEntry
	case model.LayoutModuleMarkup:
		return RebuildDeepestModules
	case model.ModuleMarkup, model.TemplateMarkup, model.ComponentMarkup:
		return RebuildUsers
	}
	if a.Kind.Group() == model.Script || a.Kind.Group() == model.Style {
		return RebuildSelf
	}
	return Ignore
}

// Watched reports whether path lies under a source root with an extension
// that root is scanned for.
func Watched(cfg *config.Config, path string) bool {
	ext := filepath.Ext(path)
	dirs := cfg.SourceDirectories
	script := cfg.ScriptExtension()

	roots := map[string][]string{
		dirs.Modules:                   {script, config.StyleExtension, config.MarkupExtension, config.ConfigExtension},
		dirs.LayoutModules:             {script, config.StyleExtension, config.MarkupExtension, config.ConfigExtension},
		dirs.Components:                {script, config.StyleExtension, config.MarkupExtension},
		dirs.StandaloneScriptLibraries: {script},
		dirs.StandaloneStyleLibraries:  {config.StyleExtension},
		dirs.LibraryScripts:            {script},
		dirs.LibraryStyles:             {config.StyleExtension},
		dirs.MarkupTemplates:           {config.MarkupExtension},
	}
	for root, exts := range roots {
		if within(root, path) && slices.Contains(exts, ext) {
			return true
		}
	}
	return false
}

// sourceDirectory reports whether path is a directory under a source root,
// or was one: a directory moved away produces a single event for itself and
// none for the files it held.
func sourceDirectory(g *graph.Graph, path string) bool {
	if !underSourceRoot(g.Config, path) {
		return false
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return true
	}
	prefix := path + string(filepath.Separator)
	for _, a := range g.Assets() {
		if strings.HasPrefix(a.Path, prefix) {
			return true
		}
	}
	return false
}

func underSourceRoot(cfg *config.Config, path string) bool {
	dirs := cfg.SourceDirectories
	for _, root := range []string{
		dirs.Modules,
		dirs.LayoutModules,
		dirs.Components,
		dirs.StandaloneScriptLibraries,
		dirs.StandaloneStyleLibraries,
		dirs.LibraryScripts,
		dirs.LibraryStyles,
		dirs.MarkupTemplates,
	} {
		if path == root || within(root, path) {
			return true
		}
	}
	return false
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Plan is the outcome of applying an event to a graph.
type Plan struct {
	// Reconstruct is set when the change cannot be applied incrementally.
	Reconstruct bool
	// Targets are the buildable records to rebuild, sorted by path.
	Targets []*model.Asset
}

// Apply performs action for the asset at path against g: it refreshes the
// asset's content, updates its edges where needed and returns what to
// rebuild. A markup change that alters which components are used requires a
// reconstruction.
func Apply(g *graph.Graph, action Action, path string, lister graph.ReferenceLister) (Plan, error) {
	switch action {
	case Ignore:
		return Plan{}, nil
	case Reconstruct:
		return Plan{Reconstruct: true}, nil
	}

	a := g.Asset(path)
	if a == nil {
		return Plan{Reconstruct: true}, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if a.Kind.Group() == model.Markup {
		scanner := parse.NewComponentScanner(g.Config.ComponentPostFix)
		before := distinct(scanner.Expressions(a.Content))
		after := distinct(scanner.Expressions(content))
		if !slices.Equal(before, after) {
			return Plan{Reconstruct: true}, nil
		}
	}
	if !bytes.Equal(a.Content, content) {
		a.Content = content
	}

	var targets []*model.Asset
	switch action {
	case RebuildSelf:
		if err := UpdateEdges(a, lister, g.Lookup); err != nil {
			return Plan{}, err
		}
		targets = []*model.Asset{a}
	case RebuildAncestors:
		if err := UpdateEdges(a, lister, g.Lookup); err != nil {
			return Plan{}, err
		}
		targets = UltimateAncestors(a)
	case RebuildEntry:
		if err := UpdateEdges(a, lister, g.Lookup); err != nil {
			return Plan{}, err
		}
		if lib := g.LibraryOf(a); lib != nil && lib.Entry != nil {
			targets = []*model.Asset{lib.Entry}
		}
	case RebuildDeepestModules:
		if l := g.LayoutForMarkup(a); l != nil {
			targets = markupOf(DeepestModules(l))
		}
	case RebuildUsers:
		targets = moduleMarkupUsers(g, a)
	}

	return Plan{Targets: buildable(targets)}, nil
}

// UpdateEdges rescans a's references and reconciles its children with them.
// Edges present in both are left untouched. lookup resolves a referenced path
// within a's group.
func UpdateEdges(a *model.Asset, lister graph.ReferenceLister, lookup func(model.Group, string) *model.Asset) error {
	paths, err := lister.ListReferencedPaths(a)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Path, err)
	}

	want := make(map[*model.Asset]bool, len(paths))
	for _, p := range paths {
		child := lookup(a.Kind.Group(), p)
		if child == nil {
			return &graph.UnresolvedReferenceError{File: a.Path, Path: p}
		}
		if child != a {
			want[child] = true
		}
	}

	for _, c := range a.Children() {
		if !want[c] {
			model.Unlink(a, c)
		}
	}
	for c := range want {
		if !a.HasChild(c) {
			model.Link(a, c)
		}
	}
	a.References = paths
	return nil
}

// UltimateAncestors walks parent edges from a and returns every ancestor
// without parents, a itself if it has none. Each node is visited once. When
// every path leads into a cycle, the buildable nodes seen on the walk are
// returned instead.
func UltimateAncestors(a *model.Asset) []*model.Asset {
	visited := make(map[*model.Asset]bool)
	var roots, seen []*model.Asset

	var walk func(*model.Asset)
	walk = func(n *model.Asset) {
		if visited[n] {
			return
		}
		visited[n] = true
		seen = append(seen, n)

		parents := n.Parents()
		if len(parents) == 0 {
			roots = append(roots, n)
			return
		}
		for _, p := range parents {
			walk(p)
		}
	}
	walk(a)

	if len(roots) == 0 {
		for _, n := range seen {
			if n.Kind.Buildable() {
				roots = append(roots, n)
			}
		}
	}
	model.SortAssets(roots)
	return roots
}

// DeepestModules returns the modules attached to l or to any layout module
// below it, sorted by name. Each layout module is visited once.
func DeepestModules(l *model.LayoutModule) []*model.Module {
	visited := make(map[*model.LayoutModule]bool)
	var out []*model.Module

	var walk func(*model.LayoutModule)
	walk = func(cur *model.LayoutModule) {
		if visited[cur] {
			return
		}
		visited[cur] = true
		for _, c := range cur.Children {
			walk(c)
		}
		out = append(out, cur.Modules...)
	}
	walk(l)

	slices.SortFunc(out, func(a, b *model.Module) int { return strings.Compare(a.Name, b.Name) })
	return slices.CompactFunc(out, func(a, b *model.Module) bool { return a == b })
}

// moduleMarkupUsers resolves a markup file to the module markup records
// rendered from it.
func moduleMarkupUsers(g *graph.Graph, a *model.Asset) []*model.Asset {
	visited := make(map[*model.Asset]bool)
	var out []*model.Asset

	var walk func(*model.Asset)
	walk = func(n *model.Asset) {
		if visited[n] {
			return
		}
		visited[n] = true
		switch n.Kind {
		case model.ModuleMarkup:
			out = append(out, n)
		case model.LayoutModuleMarkup:
			if l := g.LayoutForMarkup(n); l != nil {
				out = append(out, markupOf(DeepestModules(l))...)
			}
		default:
			for _, u := range n.Users() {
				walk(u)
			}
		}
	}
	walk(a)
	return out
}

func markupOf(modules []*model.Module) []*model.Asset {
	out := make([]*model.Asset, 0, len(modules))
	for _, m := range modules {
		out = append(out, m.Markup)
	}
	return out
}

func buildable(assets []*model.Asset) []*model.Asset {
	seen := make(map[*model.Asset]bool, len(assets))
	out := make([]*model.Asset, 0, len(assets))
	for _, a := range assets {
		if a.Kind.Buildable() && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	model.SortAssets(out)
	return out
}

func distinct(exprs []string) []string {
	out := slices.Clone(exprs)
	slices.Sort(out)
	return slices.Compact(out)
}
