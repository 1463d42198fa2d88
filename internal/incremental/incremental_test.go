package incremental

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/graph"
	"github.com/phobologic/sitebuild/internal/model"
	"github.com/phobologic/sitebuild/internal/parse"
	"github.com/phobologic/sitebuild/internal/watch"
)

type fakeLister map[string][]string

func (f fakeLister) ListReferencedPaths(a *model.Asset) ([]string, error) {
	refs, ok := f[a.Path]
	if !ok {
		return nil, errors.New("no references recorded")
	}
	return refs, nil
}

func assetsByPath(assets ...*model.Asset) func(model.Group, string) *model.Asset {
	m := make(map[string]*model.Asset, len(assets))
	for _, a := range assets {
		m[a.Path] = a
	}
	return func(_ model.Group, p string) *model.Asset { return m[p] }
}

func paths(assets []*model.Asset) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Path)
	}
	return out
}

func TestUpdateEdgesDiff(t *testing.T) {
	t.Parallel()

	a := model.NewAsset("/a.js", model.ModuleScript, "a", nil)
	b := model.NewAsset("/b.js", model.LibraryScript, "b", nil)
	c := model.NewAsset("/c.js", model.LibraryScript, "c", nil)
	d := model.NewAsset("/d.js", model.LibraryScript, "d", nil)
	other := model.NewAsset("/other.js", model.ModuleScript, "other", nil)
	model.Link(a, b)
	model.Link(a, c)
	model.Link(other, b)
	lookup := assetsByPath(a, b, c, d, other)

	err := UpdateEdges(a, fakeLister{"/a.js": {"/b.js", "/d.js"}}, lookup)
	require.NoError(t, err)

	assert.Equal(t, []string{"/b.js", "/d.js"}, paths(a.Children()))
	assert.Empty(t, c.Parents())
	assert.Equal(t, []string{"/a.js"}, paths(d.Parents()))
	assert.Equal(t, []string{"/a.js", "/other.js"}, paths(b.Parents()))
	assert.Equal(t, []string{"/b.js", "/d.js"}, a.References)
}

func TestUpdateEdgesUnresolved(t *testing.T) {
	t.Parallel()

	a := model.NewAsset("/a.js", model.ModuleScript, "a", nil)
	b := model.NewAsset("/b.js", model.LibraryScript, "b", nil)
	model.Link(a, b)

	err := UpdateEdges(a, fakeLister{"/a.js": {"/missing.js"}}, assetsByPath(a, b))
	var unresolved *graph.UnresolvedReferenceError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "/missing.js", unresolved.Path)
	// Edges are untouched on failure.
	assert.Equal(t, []string{"/b.js"}, paths(a.Children()))
}

func TestUltimateAncestors(t *testing.T) {
	t.Parallel()

	lib := model.NewAsset("/lib.js", model.LibraryScript, "lib", nil)
	mid := model.NewAsset("/mid.js", model.LibraryScript, "mid", nil)
	m1 := model.NewAsset("/m1.js", model.ModuleScript, "m1", nil)
	m2 := model.NewAsset("/m2.js", model.ModuleScript, "m2", nil)
	model.Link(mid, lib)
	model.Link(m1, mid)
	model.Link(m2, mid)
	model.Link(m2, lib)

	assert.Equal(t, []string{"/m1.js", "/m2.js"}, paths(UltimateAncestors(lib)))
	assert.Equal(t, []string{"/m1.js"}, paths(UltimateAncestors(m1)))
}

func TestUltimateAncestorsCycle(t *testing.T) {
	t.Parallel()

	lib := model.NewAsset("/lib.js", model.LibraryScript, "lib", nil)
	a := model.NewAsset("/a.js", model.ModuleScript, "a", nil)
	b := model.NewAsset("/b.js", model.ModuleScript, "b", nil)
	model.Link(a, lib)
	model.Link(a, b)
	model.Link(b, a)

	assert.Equal(t, []string{"/a.js", "/b.js"}, paths(UltimateAncestors(lib)))
}

func TestUltimateAncestorsLongCycleWithRoot(t *testing.T) {
	t.Parallel()

	x := model.NewAsset("/x.js", model.LibraryScript, "x", nil)
	y := model.NewAsset("/y.js", model.LibraryScript, "y", nil)
	z := model.NewAsset("/z.js", model.LibraryScript, "z", nil)
	root := model.NewAsset("/root.js", model.ModuleScript, "root", nil)
	model.Link(y, x)
	model.Link(z, y)
	model.Link(x, z)
	model.Link(root, z)

	assert.Equal(t, []string{"/root.js"}, paths(UltimateAncestors(x)))
}

func TestDeepestModules(t *testing.T) {
	t.Parallel()

	m1 := &model.Module{Name: "a-page"}
	m2 := &model.Module{Name: "a-aa-page"}
	m3 := &model.Module{Name: "a-aa-bb-page"}
	a := &model.LayoutModule{Name: "a", Modules: []*model.Module{m1}}
	aa := &model.LayoutModule{Name: "a-aa", Parent: a, Modules: []*model.Module{m2}}
	bb := &model.LayoutModule{Name: "a-aa-bb", Parent: aa, Modules: []*model.Module{m3}}
	a.Children = []*model.LayoutModule{aa}
	aa.Children = []*model.LayoutModule{bb}
	// A malformed back edge must not loop.
	bb.Children = []*model.LayoutModule{a}

	got := DeepestModules(a)
	var names []string
	for _, m := range got {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"a-aa-bb-page", "a-aa-page", "a-page"}, names)
	assert.Len(t, DeepestModules(bb), 3)
}

type fixture struct {
	t   *testing.T
	dir string
	cfg *config.Config
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	return &fixture{t: t, dir: dir, cfg: config.Default(dir)}
}

func (f *fixture) write(rel, content string) string {
	f.t.Helper()
	p := filepath.Join(f.dir, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(f.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (f *fixture) construct(lister graph.ReferenceLister) *graph.Graph {
	f.t.Helper()
	g, err := graph.Construct(context.Background(), f.cfg, graph.Options{Lister: lister})
	require.NoError(f.t, err)
	return g
}

func TestClassify(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	files := map[string]string{
		"module.js":    f.write("src/modules/home/home.js", ""),
		"module.hbs":   f.write("src/modules/home/home.hbs", ""),
		"module.json":  f.write("src/modules/home/home.json", "{}"),
		"layout.hbs":   f.write("src/layoutModules/main/main.hbs", ""),
		"layout.scss":  f.write("src/layoutModules/main/main.scss", ""),
		"library.js":   f.write("src/libraryScripts/util.js", ""),
		"library.scss": f.write("src/libraryStyles/_colors.scss", ""),
		"entry.js":     f.write("src/standaloneScriptLibraries/lib/index.js", ""),
		"dep.js":       f.write("src/standaloneScriptLibraries/lib/util.js", ""),
		"template":     f.write("src/templates/default.hbs", ""),
		"component":    f.write("src/components/nav/nav.hbs", ""),
		"component.js": f.write("src/components/nav/nav.js", ""),
	}
	configFile := filepath.Join(f.dir, config.FileName)
	g := f.construct(nil)

	tests := []struct {
		name string
		path string
		op   watch.Op
		want Action
	}{
		{"module script", files["module.js"], watch.Write, RebuildSelf},
		{"layout style", files["layout.scss"], watch.Write, RebuildSelf},
		{"component script", files["component.js"], watch.Write, RebuildSelf},
		{"standalone entry", files["entry.js"], watch.Write, RebuildSelf},
		{"library script", files["library.js"], watch.Write, RebuildAncestors},
		{"library style", files["library.scss"], watch.Write, RebuildAncestors},
		{"standalone dependency", files["dep.js"], watch.Write, RebuildEntry},
		{"layout markup", files["layout.hbs"], watch.Write, RebuildDeepestModules},
		{"module markup", files["module.hbs"], watch.Write, RebuildUsers},
		{"template", files["template"], watch.Write, RebuildUsers},
		{"component markup", files["component"], watch.Write, RebuildUsers},
		{"module config", files["module.json"], watch.Write, Reconstruct},
		{"project config", configFile, watch.Write, Reconstruct},
		{"removed asset", files["library.js"], watch.Remove, Reconstruct},
		{"new module file", filepath.Join(f.dir, "src/modules/about/about.hbs"), watch.Create, Reconstruct},
		{"renamed into place", filepath.Join(f.dir, "src/libraryStyles/_new.scss"), watch.Rename, Reconstruct},
		{"unwatched extension", filepath.Join(f.dir, "src/modules/home/notes.md"), watch.Create, Ignore},
		{"outside sources", filepath.Join(f.dir, "public/js/modules/home.js"), watch.Create, Ignore},
		{"unknown write", filepath.Join(f.dir, "README.md"), watch.Write, Ignore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(g, watch.Event{Path: tt.path, Op: tt.op}, configFile)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestClassifyDirectories(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.write("src/modules/home/home.hbs", "")
	f.write("src/modules/about/about.hbs", "")
	g := f.construct(nil)

	// Moved out: only the directory itself is reported.
	about := filepath.Join(f.dir, "src", "modules", "about")
	require.NoError(t, os.Rename(about, filepath.Join(f.dir, "moved-away")))
	// Moved in: the files inside produce no events.
	f.write("src/layoutModules/shop/shop.hbs", "")
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "public", "js"), 0o755))

	tests := []struct {
		name string
		path string
		op   watch.Op
		want Action
	}{
		{"moved out", about, watch.Rename, Reconstruct},
		{"moved in", filepath.Join(f.dir, "src", "layoutModules", "shop"), watch.Create, Reconstruct},
		{"unknown directory gone", filepath.Join(f.dir, "src", "modules", "ghost"), watch.Remove, Ignore},
		{"output directory", filepath.Join(f.dir, "public", "js"), watch.Create, Ignore},
		{"directory write", filepath.Join(f.dir, "src", "modules", "home"), watch.Write, Ignore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(g, watch.Event{Path: tt.path, Op: tt.op}, "")
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestApplyLibraryChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.write("src/modules/a/a.hbs", "")
	f.write("src/modules/b/b.hbs", "")
	a := f.write("src/modules/a/a.js", `import "../../libraryScripts/shared";`)
	b := f.write("src/modules/b/b.js", `import "../../libraryScripts/shared";`)
	shared := f.write("src/libraryScripts/shared.js", "")
	extra := f.write("src/libraryScripts/extra.js", "")

	e, err := parse.NewExtractor(16)
	require.NoError(t, err)
	g := f.construct(e)

	f.write("src/libraryScripts/shared.js", `import "./extra";`)
	plan, err := Apply(g, RebuildAncestors, shared, e)
	require.NoError(t, err)
	assert.False(t, plan.Reconstruct)
	assert.Equal(t, []string{a, b}, paths(plan.Targets))
	assert.Equal(t, []string{extra}, paths(g.Asset(shared).Children()))
	assert.Equal(t, []string{shared}, paths(g.Asset(extra).Parents()))
	assert.Equal(t, `import "./extra";`, string(g.Asset(shared).Content))
}

func TestApplyStandaloneDependency(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	entry := f.write("src/standaloneStyleLibraries/theme/index.scss", `@import "vars";`)
	vars := f.write("src/standaloneStyleLibraries/theme/_vars.scss", "$a: 1;")
	g := f.construct(nil)

	plan, err := Apply(g, RebuildEntry, vars, fakeLister{vars: nil})
	require.NoError(t, err)
	assert.Equal(t, []string{entry}, paths(plan.Targets))
}

func TestApplyMarkup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.write("src/layoutModules/main/main.hbs", "{{content}}")
	f.write("src/layoutModules/main/sub/sub.hbs", "{{> nav-component}}{{content}}")
	home := f.write("src/modules/main/home/home.hbs", "")
	page := f.write("src/modules/main/sub/page/page.hbs", "")
	other := f.write("src/modules/other/other.hbs", "")
	tmpl := f.write("src/templates/default.hbs", "{{content}}")
	nav := f.write("src/components/nav/nav.hbs", "<nav></nav>")
	g := f.construct(fakeLister{})

	t.Run("layout markup", func(t *testing.T) {
		plan, err := Apply(g, RebuildDeepestModules, filepath.Join(f.dir, "src/layoutModules/main/main.hbs"), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{home, page}, paths(plan.Targets))
	})
	t.Run("template", func(t *testing.T) {
		plan, err := Apply(g, RebuildUsers, tmpl, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{home, page, other}, paths(plan.Targets))
	})
	t.Run("component used by layout", func(t *testing.T) {
		f.write("src/components/nav/nav.hbs", "<nav>changed</nav>")
		plan, err := Apply(g, RebuildUsers, nav, nil)
		require.NoError(t, err)
		assert.False(t, plan.Reconstruct)
		assert.Equal(t, []string{page}, paths(plan.Targets))
	})
	t.Run("new component usage", func(t *testing.T) {
		f.write("src/modules/other/other.hbs", "{{> nav-component}}")
		plan, err := Apply(g, RebuildUsers, other, nil)
		require.NoError(t, err)
		assert.True(t, plan.Reconstruct)
	})
}

func TestApplyIgnoreAndReconstruct(t *testing.T) {
	t.Parallel()

	g := newFixture(t).construct(fakeLister{})

	plan, err := Apply(g, Ignore, "/nowhere", nil)
	require.NoError(t, err)
	assert.Equal(t, Plan{}, plan)

	plan, err = Apply(g, Reconstruct, "/nowhere", nil)
	require.NoError(t, err)
	assert.True(t, plan.Reconstruct)

	plan, err = Apply(g, RebuildSelf, "/nowhere", nil)
	require.NoError(t, err)
	assert.True(t, plan.Reconstruct)
}
