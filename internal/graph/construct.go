package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/discover"
	"github.com/phobologic/sitebuild/internal/model"
	"github.com/phobologic/sitebuild/internal/parse"
	"github.com/phobologic/sitebuild/internal/resolve"
)

// ReferenceLister reports the absolute paths an asset's content references.
// Implementations must be safe for concurrent use.
type ReferenceLister interface {
	ListReferencedPaths(a *model.Asset) ([]string, error)
}

// Options configures Construct.
type Options struct {
	// Prod selects minified vendor references where available.
	Prod bool
	// Lister defaults to a fresh parse.Extractor.
	Lister ReferenceLister
	// Scanner defaults to one rooted at the project directory.
	Scanner *discover.Scanner
	Logger  *log.Logger
}

// Construct scans the project and builds a new, fully resolved graph. cfg is
// not modified. Nothing is returned unless every step succeeds.
func Construct(ctx context.Context, cfg *config.Config, opts Options) (*Graph, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Scanner == nil {
		opts.Scanner = discover.NewScanner(cfg.ProjectDirectory)
	}
	if opts.Lister == nil {
		e, err := parse.NewExtractor(parse.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		opts.Lister = e
	}

	b := &builder{
		g:          newGraph(cfg.Clone(), opts.Prod),
		opts:       opts,
		log:        opts.Logger,
		scanner:    opts.Scanner,
		components: parse.NewComponentScanner(cfg.ComponentPostFix),
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"scanning files", b.scan},
		{"reading module configuration", b.loadDirectives},
		{"linking references", b.link},
		{"expanding components", b.expandComponents},
		{"resolving layout modules", b.resolveLayouts},
		{"resolving modules", b.resolveModules},
		{"resolving asset sets", b.resolveAssetSets},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step.fn(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	b.log.Debug("graph constructed",
		"assets", len(b.g.assets),
		"modules", len(b.g.moduleList),
		"layouts", len(b.g.layoutList),
		"components", len(b.g.components))
	return b.g, nil
}

type builder struct {
	g          *Graph
	opts       Options
	log        *log.Logger
	scanner    *discover.Scanner
	components *parse.ComponentScanner

	byKind map[model.Kind][]*model.Asset
}

type source struct {
	root string
	exts []string
	kind func(path string) model.Kind
	name func(path string) string
}

func fixed(k model.Kind) func(string) model.Kind {
	return func(string) model.Kind { return k }
}

func (b *builder) sources() []source {
	cfg := b.g.Config
	dirs := cfg.SourceDirectories
	script := []string{cfg.ScriptExtension()}
	style := []string{config.StyleExtension}
	markup := []string{config.MarkupExtension}
	conf := []string{config.ConfigExtension}

	moduleName := func(root string) func(string) string {
		return func(p string) string { return ModuleName(cfg, root, p) }
	}
	componentName := func(p string) string { return ComponentName(cfg, dirs.Components, p) }
	fileName := func(root string) func(string) string {
		return func(p string) string { return FileName(root, p) }
	}
	libraryName := func(root string) func(string) string {
		return func(p string) string { return LibraryName(root, p) }
	}

	return []source{
		{dirs.LibraryScripts, script, fixed(model.LibraryScript), fileName(dirs.LibraryScripts)},
		{dirs.StandaloneScriptLibraries, script, b.standaloneKind(dirs.StandaloneScriptLibraries, model.StandaloneEntryScript, model.StandaloneDependencyScript), libraryName(dirs.StandaloneScriptLibraries)},
		{dirs.Modules, script, fixed(model.ModuleScript), moduleName(dirs.Modules)},
		{dirs.LayoutModules, script, fixed(model.LayoutModuleScript), moduleName(dirs.LayoutModules)},
		{dirs.Components, script, fixed(model.ComponentScript), componentName},

		{dirs.LibraryStyles, style, fixed(model.LibraryStyle), fileName(dirs.LibraryStyles)},
		{dirs.StandaloneStyleLibraries, style, b.standaloneKind(dirs.StandaloneStyleLibraries, model.StandaloneEntryStyle, model.StandaloneDependencyStyle), libraryName(dirs.StandaloneStyleLibraries)},
		{dirs.Modules, style, fixed(model.ModuleStyle), moduleName(dirs.Modules)},
		{dirs.LayoutModules, style, fixed(model.LayoutModuleStyle), moduleName(dirs.LayoutModules)},
		{dirs.Components, style, fixed(model.ComponentStyle), componentName},

		{dirs.Components, markup, fixed(model.ComponentMarkup), componentName},
		{dirs.MarkupTemplates, markup, fixed(model.TemplateMarkup), fileName(dirs.MarkupTemplates)},
		{dirs.Modules, markup, fixed(model.ModuleMarkup), moduleName(dirs.Modules)},
		{dirs.LayoutModules, markup, fixed(model.LayoutModuleMarkup), moduleName(dirs.LayoutModules)},

		{dirs.Modules, conf, fixed(model.ModuleConfig), moduleName(dirs.Modules)},
		{dirs.LayoutModules, conf, fixed(model.LayoutModuleConfig), moduleName(dirs.LayoutModules)},
	}
}

// standaloneKind classifies a file under a standalone library root. Files
// directly under the root are entries of their own single-file library. A
// file one level down is the library's entry if its base name is
// whitelisted. Everything else is a dependency.
func (b *builder) standaloneKind(root string, entry, dep model.Kind) func(string) model.Kind {
	names := b.g.Config.ValidStandaloneLibraryEntryFileNames
	return func(path string) model.Kind {
		dir := filepath.Dir(path)
		if dir == root {
			return entry
		}
		if filepath.Dir(dir) == root && slices.Contains(names, baseName(path)) {
			return entry
		}
		return dep
	}
}

// Kinds whose records must have unique names.
var uniqueKinds = map[model.Kind]bool{
	model.ModuleScript:          true,
	model.LayoutModuleScript:    true,
	model.ComponentScript:       true,
	model.StandaloneEntryScript: true,
	model.ModuleStyle:           true,
	model.LayoutModuleStyle:     true,
	model.ComponentStyle:        true,
	model.StandaloneEntryStyle:  true,
	model.ModuleMarkup:          true,
	model.LayoutModuleMarkup:    true,
	model.ComponentMarkup:       true,
	model.TemplateMarkup:        true,
	model.ModuleConfig:          true,
	model.LayoutModuleConfig:    true,
}

func (b *builder) scan(_ context.Context) error {
	g := b.g
	b.byKind = make(map[model.Kind][]*model.Asset)
	seen := make(map[model.Kind]map[string]string)

	for _, src := range b.sources() {
		paths, err := b.scanner.Files(src.root, src.exts...)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", src.root, err)
		}
		for _, p := range paths {
			if _, dup := g.assets[p]; dup {
				b.log.Debug("file matched by more than one source directory", "file", p)
				continue
			}
			content, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}

			kind := src.kind(p)
			a := model.NewAsset(p, kind, src.name(p), content)

			if uniqueKinds[kind] {
				if seen[kind] == nil {
					seen[kind] = make(map[string]string)
				}
				if prev, ok := seen[kind][a.Name]; ok {
					return &DuplicateNameError{Kind: kind, Name: a.Name, Paths: []string{prev, p}}
				}
				seen[kind][a.Name] = p
			}

			g.assets[p] = a
			switch kind.Group() {
			case model.Script:
				g.scripts[p] = a
			case model.Style:
				g.styles[p] = a
			}
			b.byKind[kind] = append(b.byKind[kind], a)
		}
	}

	for _, assets := range b.byKind {
		model.SortAssets(assets)
	}

	for _, a := range b.byKind[model.TemplateMarkup] {
		g.templates[a.Name] = a
	}
	b.buildLibraries()
	g.vendorJS = vendors(g.Config.VendorScripts, model.Script, g.Prod)
	g.vendorCSS = vendors(g.Config.VendorStyles, model.Style, g.Prod)
	g.staticJS = slices.Clone(g.Config.StaticScriptReferences)
	g.staticCSS = slices.Clone(g.Config.StaticStyleReferences)
	return nil
}

func (b *builder) buildLibraries() {
	g := b.g
	for _, kinds := range [][2]model.Kind{
		{model.StandaloneEntryScript, model.StandaloneDependencyScript},
		{model.StandaloneEntryStyle, model.StandaloneDependencyStyle},
	} {
		byName := make(map[string]*model.StandaloneLibrary)
		get := func(a *model.Asset) *model.StandaloneLibrary {
			lib, ok := byName[a.Name]
			if !ok {
				lib = &model.StandaloneLibrary{Name: a.Name, Group: a.Kind.Group()}
				byName[a.Name] = lib
			}
			g.libraryOf[a] = lib
			return lib
		}
		for _, a := range b.byKind[kinds[0]] {
			get(a).Entry = a
		}
		for _, a := range b.byKind[kinds[1]] {
			lib := get(a)
			lib.Dependencies = append(lib.Dependencies, a)
		}

		libs := make([]*model.StandaloneLibrary, 0, len(byName))
		for _, lib := range byName {
			if lib.Entry == nil {
				b.log.Warn("standalone library has no entry file", "library", lib.Name, "group", lib.Group)
			}
			libs = append(libs, lib)
		}
		sort.Slice(libs, func(i, j int) bool { return libs[i].Name < libs[j].Name })
		g.libraries = append(g.libraries, libs...)
	}
}

func vendors(sources []config.VendorSource, group model.Group, prod bool) []*model.Vendor {
	out := make([]*model.Vendor, 0, len(sources))
	for _, v := range sources {
		out = append(out, &model.Vendor{
			Name:            v.Name,
			Group:           group,
			SourceDirectory: v.SourceDirectory,
			Paths:           v.Paths(prod),
		})
	}
	return out
}

// loadDirectives merges per-module directive files into the graph's copy of
// the configuration. A file overrides an inline entry of the same name.
func (b *builder) loadDirectives(_ context.Context) error {
	g := b.g
	for _, kind := range []model.Kind{model.ModuleConfig, model.LayoutModuleConfig} {
		dst := g.Config.Modules
		if kind == model.LayoutModuleConfig {
			dst = g.Config.LayoutModules
		}
		for _, a := range b.byKind[kind] {
			d, err := config.ParseDirectives(a.Content, a.Path)
			if err != nil {
				return err
			}
			dst[a.Name] = d
			g.directives[a] = a.Name
		}
	}
	return nil
}

func (b *builder) link(ctx context.Context) error {
	for _, group := range []map[string]*model.Asset{b.g.scripts, b.g.styles} {
		assets := make([]*model.Asset, 0, len(group))
		for _, a := range group {
			assets = append(assets, a)
		}
		model.SortAssets(assets)

		refs, err := listAll(ctx, b.opts.Lister, assets)
		if err != nil {
			return err
		}

		for i, a := range assets {
			a.References = refs[i]
			for _, p := range refs[i] {
				child := group[p]
				if child == nil {
					return &UnresolvedReferenceError{File: a.Path, Path: p}
				}
				if child == a {
					continue
				}
				model.Link(a, child)
			}
		}
	}
	return nil
}

// listAll lists references for every asset concurrently. Results are in
// input order; the first failure by input order is returned.
func listAll(ctx context.Context, lister ReferenceLister, assets []*model.Asset) ([][]string, error) {
	if len(assets) == 0 {
		return nil, nil
	}

	type result struct {
		index int
		paths []string
		err   error
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(assets) {
		numWorkers = len(assets)
	}

	work := make(chan int, len(assets))
	results := make(chan result, len(assets))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if err := ctx.Err(); err != nil {
					results <- result{index: idx, err: err}
					continue
				}
				paths, err := lister.ListReferencedPaths(assets[idx])
				if err != nil {
					err = fmt.Errorf("%s: %w", assets[idx].Path, err)
				}
				results <- result{index: idx, paths: paths, err: err}
			}
		}()
	}

	for i := range assets {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	out := make([][]string, len(assets))
	errs := make([]error, len(assets))
	for r := range results {
		out[r.index] = r.paths
		errs[r.index] = r.err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *builder) expandComponents(_ context.Context) error {
	g := b.g
	byExpr := make(map[string]*model.Component)

	scripts := indexByName(b.byKind[model.ComponentScript])
	styles := indexByName(b.byKind[model.ComponentStyle])
	for _, a := range b.byKind[model.ComponentMarkup] {
		c := &model.Component{
			Name:       a.Name,
			Expression: a.Name + g.Config.ComponentPostFix,
			Markup:     a,
			Script:     scripts[a.Name],
			Style:      styles[a.Name],
		}
		g.components[c.Name] = c
		byExpr[c.Expression] = c
		for _, r := range []*model.Asset{c.Markup, c.Script, c.Style} {
			if r != nil {
				g.componentOf[r] = c
			}
		}
	}
	for _, kind := range []model.Kind{model.ComponentScript, model.ComponentStyle} {
		for _, a := range b.byKind[kind] {
			if g.componentOf[a] == nil {
				b.log.Warn("component file has no markup", "file", a.Path)
			}
		}
	}

	for _, kind := range []model.Kind{model.TemplateMarkup, model.LayoutModuleMarkup, model.ModuleMarkup} {
		for _, a := range b.byKind[kind] {
			if err := b.expand(a, a.Content, byExpr, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// expand records every component reachable from content on markup. stack
// holds the components currently being expanded.
func (b *builder) expand(markup *model.Asset, content []byte, byExpr map[string]*model.Component, stack []*model.Component) error {
	prev := ""
	for _, expr := range b.components.Expressions(content) {
		if expr == prev {
			continue
		}
		prev = expr

		c := byExpr[expr]
		if c == nil {
			b.log.Debug("unknown component expression", "file", markup.Path, "expression", expr)
			continue
		}
		if i := slices.Index(stack, c); i >= 0 {
			cycle := make([]string, 0, len(stack)-i+1)
			for _, s := range stack[i:] {
				cycle = append(cycle, s.Name)
			}
			return &CycleError{Kind: "component", Cycle: append(cycle, c.Name)}
		}
		// A component already recorded for this markup had its subtree
		// expanded then.
		if !markup.UseComponent(c) {
			continue
		}
		if err := b.expand(markup, c.Markup.Content, byExpr, append(stack, c)); err != nil {
			return err
		}
	}
	return nil
}

func indexByName(assets []*model.Asset) map[string]*model.Asset {
	m := make(map[string]*model.Asset, len(assets))
	for _, a := range assets {
		m[a.Name] = a
	}
	return m
}

func (b *builder) resolveLayouts(_ context.Context) error {
	g := b.g
	root := g.Config.SourceDirectories.LayoutModules
	scripts := indexByName(b.byKind[model.LayoutModuleScript])
	styles := indexByName(b.byKind[model.LayoutModuleStyle])

	byDir := make(map[string]*model.LayoutModule)
	for _, a := range b.byKind[model.LayoutModuleMarkup] {
		l := &model.LayoutModule{
			Name:   a.Name,
			Markup: a,
			Script: scripts[a.Name],
			Style:  styles[a.Name],
		}
		g.layouts[l.Name] = l
		g.layoutList = append(g.layoutList, l)
		g.layoutOf[a] = l
		byDir[filepath.Dir(a.Path)] = l
	}
	sort.Slice(g.layoutList, func(i, j int) bool { return g.layoutList[i].Name < g.layoutList[j].Name })

	for _, l := range g.layoutList {
		d := g.Config.LayoutModules[l.Name]
		var parent *model.LayoutModule
		switch {
		case d.LayoutModule.Set && d.LayoutModule.Null:
		case d.LayoutModule.Set:
			p, ok := g.layouts[d.LayoutModule.Value]
			if !ok {
				return &ConfigReferenceError{Owner: l.Name, Directive: "layoutModule", Name: d.LayoutModule.Value}
			}
			parent = p
		default:
			parent = layoutAbove(byDir, root, filepath.Dir(filepath.Dir(l.Markup.Path)))
		}
		if parent != nil {
			l.Parent = parent
			parent.Children = append(parent.Children, l)
		}
	}

	for _, l := range g.layoutList {
		if err := checkChain(l); err != nil {
			return err
		}
	}
	return nil
}

// layoutAbove walks from dir up to root, inclusive, and returns the first
// layout module living in one of those directories.
func layoutAbove(byDir map[string]*model.LayoutModule, root, dir string) *model.LayoutModule {
	for {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
		if l, ok := byDir[dir]; ok {
			return l
		}
		if rel == "." {
			return nil
		}
		dir = filepath.Dir(dir)
	}
}

func checkChain(l *model.LayoutModule) error {
	visited := make(map[*model.LayoutModule]bool)
	var names []string
	for cur := l; cur != nil; cur = cur.Parent {
		names = append(names, cur.Name)
		if visited[cur] {
			return &CycleError{Kind: "layout module", Cycle: names}
		}
		visited[cur] = true
	}
	return nil
}

func (b *builder) resolveModules(_ context.Context) error {
	g := b.g
	cfg := g.Config
	scripts := indexByName(b.byKind[model.ModuleScript])
	styles := indexByName(b.byKind[model.ModuleStyle])

	byDir := make(map[string]*model.LayoutModule, len(g.layoutList))
	for _, l := range g.layoutList {
		byDir[filepath.Dir(l.Markup.Path)] = l
	}

	for _, a := range b.byKind[model.ModuleMarkup] {
		m := &model.Module{
			Name:   a.Name,
			Markup: a,
			Script: scripts[a.Name],
			Style:  styles[a.Name],
		}
		g.modules[m.Name] = m
		g.moduleList = append(g.moduleList, m)
		g.byMarkup[a] = m
	}
	sort.Slice(g.moduleList, func(i, j int) bool { return g.moduleList[i].Name < g.moduleList[j].Name })

	for _, m := range g.moduleList {
		d := cfg.Modules[m.Name]

		for _, alias := range d.SubstitutingModules {
			if other, ok := g.modules[alias]; ok && other != m {
				return &DuplicateNameError{Kind: model.ModuleMarkup, Name: alias, Paths: []string{other.Markup.Path, m.Markup.Path}}
			}
			g.modules[alias] = m
			m.Aliases = append(m.Aliases, alias)
		}

		switch {
		case d.LayoutModule.Set && d.LayoutModule.Null:
		case d.LayoutModule.Set:
			l, ok := g.layouts[d.LayoutModule.Value]
			if !ok {
				return &ConfigReferenceError{Owner: m.Name, Directive: "layoutModule", Name: d.LayoutModule.Value}
			}
			m.Layout = l
		default:
			rel, err := filepath.Rel(cfg.SourceDirectories.Modules, filepath.Dir(m.Markup.Path))
			if err != nil {
				rel = "."
			}
			root := cfg.SourceDirectories.LayoutModules
			m.Layout = layoutAbove(byDir, root, filepath.Join(root, rel))
		}
		if m.Layout != nil {
			m.Layout.Modules = append(m.Layout.Modules, m)
		}
	}

	for name := range cfg.Modules {
		if _, ok := g.modules[name]; !ok {
			b.log.Warn("configuration for unknown module", "module", name)
		}
	}
	return nil
}

func (b *builder) resolveAssetSets(_ context.Context) error {
	g := b.g
	cfg := g.Config

	u := resolve.Universe{
		VendorScripts:   g.vendorJS,
		VendorStyles:    g.vendorCSS,
		StaticScripts:   g.staticJS,
		StaticStyles:    g.staticCSS,
		Templates:       g.templates,
		DefaultTemplate: cfg.DefaultMarkupTemplate,
	}
	for _, lib := range g.libraries {
		if lib.Entry == nil {
			continue
		}
		if lib.Group == model.Script {
			u.StandaloneScripts = append(u.StandaloneScripts, lib.Entry)
		} else {
			u.StandaloneStyles = append(u.StandaloneStyles, lib.Entry)
		}
	}
	if _, ok := g.templates[cfg.DefaultMarkupTemplate]; !ok && cfg.DefaultMarkupTemplate != "" {
		b.log.Warn("default markup template not found", "template", cfg.DefaultMarkupTemplate)
	}

	for _, m := range g.moduleList {
		levels := []resolve.Level{{Owner: m.Name, Directives: cfg.Modules[m.Name]}}
		if m.Layout != nil {
			for _, l := range m.Layout.Chain() {
				levels = append(levels, resolve.Level{Owner: l.Name, Directives: cfg.LayoutModules[l.Name]})
			}
		}

		bag, err := resolve.Resolve(u, levels)
		if err != nil {
			var unknown *resolve.UnknownNameError
			if errors.As(err, &unknown) {
				return &ConfigReferenceError{Owner: unknown.Owner, Directive: unknown.Directive, Name: unknown.Name}
			}
			return err
		}

		m.Template = bag.Template.Value
		m.StandaloneScripts = bag.StandaloneScripts.Value
		m.StandaloneStyles = bag.StandaloneStyles.Value
		m.VendorScripts = bag.VendorScripts.Value
		m.VendorStyles = bag.VendorStyles.Value
		m.StaticScripts = bag.StaticScripts.Value
		m.StaticStyles = bag.StaticStyles.Value

		if m.Template != nil {
			m.Template.AddUser(m.Markup)
		}
		for _, e := range m.StandaloneScripts {
			e.AddUser(m.Markup)
		}
		for _, e := range m.StandaloneStyles {
			e.AddUser(m.Markup)
		}
	}
	return nil
}
