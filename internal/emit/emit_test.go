package emit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/sitebuild/internal/build"
	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/graph"
	"github.com/phobologic/sitebuild/internal/model"
)

func writeFixture(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// site lays out a small project with a layout, a template, a component,
// a standalone library and a vendor bundle.
func site(t *testing.T) (*config.Config, *graph.Graph) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.PublicPath = "/static/"

	writeFixture(t, dir, "src/templates/default.hbs", "<html><head>{{styles}}</head><body>{{content}}{{scripts}}</body></html>")
	writeFixture(t, dir, "src/layoutModules/shop/shop.hbs", "<div class=\"shop\">{{> nav-component}}{{content}}</div>")
	writeFixture(t, dir, "src/layoutModules/shop/shop.js", "")
	writeFixture(t, dir, "src/components/nav/nav.hbs", "<nav>{{> logo-component}}</nav>")
	writeFixture(t, dir, "src/components/nav/nav.scss", "nav{}")
	writeFixture(t, dir, "src/components/logo/logo.hbs", "<img>")
	writeFixture(t, dir, "src/modules/shop/item/item.hbs", "<h1>item</h1>")
	writeFixture(t, dir, "src/modules/shop/item/item.js", "console.log(1)")
	writeFixture(t, dir, "src/modules/shop/item/item.scss", "h1{}")
	writeFixture(t, dir, "src/standaloneScriptLibraries/polyfill.js", "")
	writeFixture(t, dir, "vendor/jquery/jquery.js", "jq")
	writeFixture(t, dir, "vendor/jquery/jquery.min.js", "jq.min")

	cfg.VendorScripts = []config.VendorSource{{
		Name:            "jquery",
		SourceDirectory: filepath.Join(dir, "vendor", "jquery"),
		References:      []config.ReferencePath{{StandardPath: "jquery.js", MinPath: "jquery.min.js"}},
	}}
	cfg.StaticStyleReferences = []model.StaticReference{{Name: "fonts", URL: "https://fonts.example.com/css"}}

	g, err := graph.Construct(context.Background(), cfg, graph.Options{})
	require.NoError(t, err)
	return cfg, g
}

func TestOutputPaths(t *testing.T) {
	t.Parallel()

	cfg := config.Default("/project")
	tests := []struct {
		kind model.Kind
		name string
		want string
	}{
		{model.ModuleScript, "home", "public/js/modules/home.js"},
		{model.LayoutModuleStyle, "shop", "public/css/layoutModules/shop.css"},
		{model.ComponentScript, "nav", "public/js/components/nav.js"},
		{model.StandaloneEntryStyle, "theme", "public/css/standalone/theme.css"},
		{model.ModuleMarkup, "shop-item", "public/html/shop-item.html"},
	}
	for _, tt := range tests {
		got, ok := RelativeOutputPath(cfg, tt.kind, tt.name)
		require.True(t, ok, tt.kind.String())
		assert.Equal(t, filepath.FromSlash(tt.want), got)
	}

	for _, k := range []model.Kind{model.LibraryScript, model.ComponentMarkup, model.TemplateMarkup, model.StandaloneDependencyStyle} {
		_, ok := RelativeOutputPath(cfg, k, "x")
		assert.False(t, ok, k.String())
	}
}

func TestURLs(t *testing.T) {
	t.Parallel()

	cfg := config.Default("/project")
	a := model.NewAsset("/project/src/modules/home/home.js", model.ModuleScript, "home", nil)
	assert.Equal(t, "/js/modules/home.js", URL(cfg, a))

	cfg.PublicPath = "https://cdn.example.com/site"
	v := &model.Vendor{Name: "bootstrap", Group: model.Style, Paths: []string{"css/bootstrap.css"}}
	assert.Equal(t, []string{"https://cdn.example.com/site/css/vendor/bootstrap/css/bootstrap.css"}, VendorURLs(cfg, v))
}

func TestCleanDirectories(t *testing.T) {
	t.Parallel()

	cfg := config.Default("/project")
	without := CleanDirectories(cfg, false)
	with := CleanDirectories(cfg, true)
	assert.Len(t, without, 11)
	assert.Len(t, with, 13)
	assert.Contains(t, with, filepath.FromSlash("/project/public/js/vendor"))
	assert.NotContains(t, without, filepath.FromSlash("/project/public/js/vendor"))
}

func TestRender(t *testing.T) {
	t.Parallel()

	_, g := site(t)
	m, ok := g.Module("shop-item")
	require.True(t, ok)

	page, err := New(g, nil).Render(m)
	require.NoError(t, err)

	want := `<html><head><link rel="stylesheet" href="https://fonts.example.com/css">
<link rel="stylesheet" href="/static/css/components/nav.css">
<link rel="stylesheet" href="/static/css/modules/shop-item.css"></head><body><div class="shop"><nav><img></nav><h1>item</h1></div><script src="/static/js/vendor/jquery/jquery.js"></script>
<script src="/static/js/standalone/polyfill.js"></script>
<script src="/static/js/layoutModules/shop.js"></script>
<script src="/static/js/modules/shop-item.js"></script></body></html>`
	assert.Equal(t, want, string(page))
}

func TestRunAllTasks(t *testing.T) {
	t.Parallel()

	cfg, g := site(t)
	e := New(g, nil)

	var o build.Orchestrator
	require.NoError(t, o.Run(context.Background(), CleanDirectories(cfg, true), e.Tasks(true)))

	root := cfg.ProjectDirectory
	assert.Equal(t, "console.log(1)", readFile(t, root, "public/js/modules/shop-item.js"))
	assert.Equal(t, "h1{}", readFile(t, root, "public/css/modules/shop-item.css"))
	assert.Equal(t, "nav{}", readFile(t, root, "public/css/components/nav.css"))
	assert.Equal(t, "jq", readFile(t, root, "public/js/vendor/jquery/jquery.js"))
	assert.FileExists(t, filepath.Join(root, "public", "js", "standalone", "polyfill.js"))
	assert.FileExists(t, filepath.Join(root, "public", "js", "layoutModules", "shop.js"))
	assert.Contains(t, readFile(t, root, "public/html/shop-item.html"), "<h1>item</h1>")
	assert.NoFileExists(t, filepath.Join(root, "public", "html", "nav.html"))
}

func TestProdVendorVariant(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.Default(dir)
	writeFixture(t, dir, "vendor/lib/lib.min.js", "min")
	cfg.VendorScripts = []config.VendorSource{{
		Name:            "lib",
		SourceDirectory: filepath.Join(dir, "vendor", "lib"),
		References:      []config.ReferencePath{{StandardPath: "lib.js", MinPath: "lib.min.js"}},
	}}
	g, err := graph.Construct(context.Background(), cfg, graph.Options{Prod: true})
	require.NoError(t, err)

	e := New(g, nil)
	require.NoError(t, e.Transfer(context.Background(), g.VendorScripts()[0]))
	assert.Equal(t, "min", readFile(t, dir, "public/js/vendor/lib/lib.min.js"))
}

func TestTransferMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.VendorStyles = []config.VendorSource{{
		Name:            "gone",
		SourceDirectory: filepath.Join(dir, "vendor"),
		References:      []config.ReferencePath{{StandardPath: "gone.css"}},
	}}
	g, err := graph.Construct(context.Background(), cfg, graph.Options{})
	require.NoError(t, err)

	err = New(g, nil).Transfer(context.Background(), g.VendorStyles()[0])
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorContains(t, err, "vendor gone")
}

func TestTasksForSkipsUnbuildable(t *testing.T) {
	t.Parallel()

	_, g := site(t)
	e := New(g, nil)
	nav, _ := g.Component("nav")
	tasks := e.TasksFor([]*model.Asset{nav.Markup, nav.Style})
	require.Len(t, tasks, 1)
	assert.Equal(t, "component-style nav", tasks[0].Name)
}

func TestImportedLibrariesAreEmitted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.Default(dir)
	writeFixture(t, dir, "src/templates/default.hbs", "{{content}}")
	writeFixture(t, dir, "src/modules/home/home.hbs", "<h1>home</h1>")
	writeFixture(t, dir, "src/modules/home/home.js", `import { greet } from "../../libraryScripts/util";
greet();
`)
	writeFixture(t, dir, "src/modules/home/home.scss", `@import '../../libraryStyles/base';`)
	writeFixture(t, dir, "src/libraryScripts/util.js", `import { pad } from "./text/pad";
export function greet() { pad(); }
`)
	writeFixture(t, dir, "src/libraryScripts/text/pad.js", "export function pad() {}\n")
	writeFixture(t, dir, "src/libraryStyles/base.scss", "body { margin: 0; }\n")

	g, err := graph.Construct(context.Background(), cfg, graph.Options{})
	require.NoError(t, err)

	var o build.Orchestrator
	require.NoError(t, o.Run(context.Background(), CleanDirectories(cfg, false), New(g, nil).Tasks(false)))

	assert.Equal(t, `import { greet } from "../lib/libraryScripts/util.js";
greet();
`, readFile(t, dir, "public/js/modules/home.js"))
	assert.Equal(t, `import { pad } from "./text/pad.js";
export function greet() { pad(); }
`, readFile(t, dir, "public/js/lib/libraryScripts/util.js"))
	assert.Equal(t, "export function pad() {}\n", readFile(t, dir, "public/js/lib/libraryScripts/text/pad.js"))
	assert.Equal(t, `@import '../lib/libraryStyles/base.css';`, readFile(t, dir, "public/css/modules/home.css"))
	assert.Equal(t, "body { margin: 0; }\n", readFile(t, dir, "public/css/lib/libraryStyles/base.css"))
}

func TestTasksForIncludesImportedLibraries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.Default(dir)
	writeFixture(t, dir, "src/templates/default.hbs", "{{content}}")
	writeFixture(t, dir, "src/modules/home/home.hbs", "")
	writeFixture(t, dir, "src/modules/home/home.js", `import "../../libraryScripts/util";`)
	writeFixture(t, dir, "src/libraryScripts/util.js", "")
	writeFixture(t, dir, "src/libraryScripts/unused.js", "")

	g, err := graph.Construct(context.Background(), cfg, graph.Options{})
	require.NoError(t, err)
	home, ok := g.Module("home")
	require.True(t, ok)

	var names []string
	for _, task := range New(g, nil).TasksFor([]*model.Asset{home.Script}) {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"module-script home", "library-script src/libraryScripts/util.js"}, names)
}

func TestRenderFillsData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.Default(dir)
	writeFixture(t, dir, "src/templates/default.hbs", "<title>{{title}}</title>{{content}}")
	writeFixture(t, dir, "src/layoutModules/shop/shop.hbs", "<p>{{banner}}</p>{{content}}")
	writeFixture(t, dir, "src/modules/shop/item/item.hbs", "<h1>{{title}} {{price}}</h1>")

	g, err := graph.Construct(context.Background(), cfg, graph.Options{})
	require.NoError(t, err)
	m, ok := g.Module("shop-item")
	require.True(t, ok)

	e := New(g, nil).WithData(DataProviders{
		Modules: map[string]DataProvider{
			"shop-item": func() (map[string]any, error) {
				return map[string]any{"title": "Tea & Cake", "price": 4, "content": "ignored"}, nil
			},
		},
		LayoutModules: map[string]DataProvider{
			"shop": func() (map[string]any, error) { return map[string]any{"banner": "sale"}, nil },
		},
		Templates: map[string]DataProvider{
			"default": func() (map[string]any, error) { return map[string]any{"title": "Shop"}, nil },
		},
	})
	page, err := e.Render(m)
	require.NoError(t, err)
	assert.Equal(t, "<title>Shop</title><p>sale</p><h1>Tea &amp; Cake 4</h1>", string(page))
}

func TestRenderDataError(t *testing.T) {
	t.Parallel()

	_, g := site(t)
	m, ok := g.Module("shop-item")
	require.True(t, ok)

	e := New(g, nil).WithData(DataProviders{
		LayoutModules: map[string]DataProvider{
			"shop": func() (map[string]any, error) { return nil, os.ErrPermission },
		},
	})
	_, err := e.Render(m)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.ErrorContains(t, err, "data for layout module shop")
}
