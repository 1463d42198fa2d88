package focus

import (
	"testing"

	"github.com/phobologic/sitebuild/internal/model"
)

func makeSummary() *model.Summary {
	return &model.Summary{
		Project: "site",
		Root:    "/site",
		Files: []model.FileInfo{
			{Path: "src/libraryScripts/util.js", Kind: model.LibraryScript, Rank: 0.4},
			{Path: "src/modules/shop/shop.js", Kind: model.ModuleScript, Rank: 0.2},
			{Path: "src/layoutModules/main/main.js", Kind: model.LayoutModuleScript, Rank: 0.15},
			{Path: "src/components/nav/nav.js", Kind: model.ComponentScript, Rank: 0.15},
			{Path: "src/modules/blog/blog.js", Kind: model.ModuleScript, Rank: 0.1},
		},
		Modules: []model.ModuleInfo{
			{Name: "blog", Files: []string{"src/modules/blog/blog.hbs", "src/modules/blog/blog.js"}},
			{
				Name:       "shop",
				Aliases:    []string{"store"},
				Layout:     "main",
				Files:      []string{"src/modules/shop/shop.hbs", "src/modules/shop/shop.js"},
				Components: []string{"nav"},
			},
		},
		Layouts: []model.LayoutInfo{
			{Name: "main", Files: []string{"src/layoutModules/main/main.hbs", "src/layoutModules/main/main.js"}},
			{Name: "other"},
		},
		Components: []model.ComponentInfo{
			{Name: "nav", Files: []string{"src/components/nav/nav.hbs", "src/components/nav/nav.js"}, Users: 1},
			{Name: "footer"},
		},
		Imports: []model.Import{
			{Source: "src/modules/blog/blog.js", Target: "src/libraryScripts/util.js"},
			{Source: "src/modules/shop/shop.js", Target: "src/libraryScripts/util.js"},
		},
	}
}

func TestSelectFilesAll(t *testing.T) {
	t.Parallel()

	s := makeSummary()
	for _, n := range []int{0, 5, 9} {
		if got := SelectFiles(s, n); got != s {
			t.Errorf("SelectFiles(%d) should return the original", n)
		}
	}
}

func TestSelectFilesSubset(t *testing.T) {
	t.Parallel()

	got := SelectFiles(makeSummary(), 2)
	if len(got.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(got.Files))
	}
	if len(got.Imports) != 1 || got.Imports[0].Source != "src/modules/shop/shop.js" {
		t.Errorf("unexpected imports: %+v", got.Imports)
	}
	if len(got.Modules) != 2 {
		t.Errorf("modules should be kept, got %d", len(got.Modules))
	}
}

func TestFilterByFile(t *testing.T) {
	t.Parallel()

	got := FilterByFile(makeSummary(), "UTIL")
	if len(got.Files) != 1 || got.Files[0].Path != "src/libraryScripts/util.js" {
		t.Fatalf("unexpected files: %+v", got.Files)
	}
	if len(got.Imports) != 2 {
		t.Errorf("expected both imports touching util.js, got %d", len(got.Imports))
	}

	if got := FilterByFile(makeSummary(), "nothing"); len(got.Files) != 0 || len(got.Imports) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestModules(t *testing.T) {
	t.Parallel()

	got, err := Modules(makeSummary(), []string{"store"})
	if err != nil {
		t.Fatal(err)
	}

	if len(got.Modules) != 1 || got.Modules[0].Name != "shop" {
		t.Fatalf("unexpected modules: %+v", got.Modules)
	}
	if len(got.Layouts) != 1 || got.Layouts[0].Name != "main" {
		t.Errorf("unexpected layouts: %+v", got.Layouts)
	}
	if len(got.Components) != 1 || got.Components[0].Name != "nav" {
		t.Errorf("unexpected components: %+v", got.Components)
	}

	var paths []string
	for _, f := range got.Files {
		paths = append(paths, f.Path)
	}
	want := []string{
		"src/libraryScripts/util.js",
		"src/modules/shop/shop.js",
		"src/layoutModules/main/main.js",
		"src/components/nav/nav.js",
	}
	if len(paths) != len(want) {
		t.Fatalf("files = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
	if len(got.Imports) != 1 || got.Imports[0].Source != "src/modules/shop/shop.js" {
		t.Errorf("unexpected imports: %+v", got.Imports)
	}
}

func TestModulesUnknown(t *testing.T) {
	t.Parallel()

	_, err := Modules(makeSummary(), []string{"shop", "ghost", "phantom"})
	if err == nil || err.Error() != "unknown module(s): ghost, phantom" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestModulesLayoutCycleTerminates(t *testing.T) {
	t.Parallel()

	s := makeSummary()
	s.Layouts[0].Parent = "other"
	s.Layouts[1].Parent = "main"

	got, err := Modules(s, []string{"shop"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Layouts) != 2 {
		t.Errorf("expected both layouts, got %+v", got.Layouts)
	}
}
