package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/sitebuild/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/modules/shop/item.js", "src/modules/shop/item.js"},
		{"module name", "shop-item", "shop-item"},
		{"url", "https://cdn.example.com/a.css", `"https://cdn.example.com/a.css"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	s := &model.Summary{
		Project: "shop",
		Root:    "/work/shop",
		Modules: []model.ModuleInfo{
			{Name: "index", Template: "default"},
			{Name: "shop-item", Layout: "shop", Template: "default", Aliases: []string{"product", "item"}, Components: []string{"nav"}, Vendors: []string{"jquery"}},
		},
		Layouts: []model.LayoutInfo{
			{Name: "shop"},
			{Name: "shop-cart", Parent: "shop"},
		},
		Components: []model.ComponentInfo{{Name: "nav", Users: 3}},
		Libraries: []model.LibraryInfo{
			{Name: "polyfill", Group: model.Script, Entry: "src/standaloneScriptLibraries/polyfill/index.js", Dependencies: 2},
		},
		Files: []model.FileInfo{
			{Path: "src/libraryScripts/util.js", Kind: model.LibraryScript, Rank: 0.75},
			{Path: "src/modules/shop/item/item.js", Kind: model.ModuleScript, Rank: 0.25},
		},
		Imports: []model.Import{
			{Source: "src/modules/shop/item/item.js", Target: "src/libraryScripts/util.js"},
		},
	}

	want := []string{
		"project: shop",
		"root: /work/shop",
		"modules[2]{name,layout,template,aliases,components,vendors}:",
		`  index,"",default,"","",""`,
		"  shop-item,shop,default,product item,nav,jquery",
		"layouts[2]{name,parent}:",
		`  shop,""`,
		"  shop-cart,shop",
		"components[1]{name,users}:",
		"  nav,3",
		"libraries[1]{name,group,entry,dependencies}:",
		"  polyfill,script,src/standaloneScriptLibraries/polyfill/index.js,2",
		"files[2]{path,kind,rank}:",
		"  src/libraryScripts/util.js,library-script,0.7500",
		"  src/modules/shop/item/item.js,module-script,0.2500",
		"imports[1]{source,target}:",
		"  src/modules/shop/item/item.js,src/libraryScripts/util.js",
	}
	lines := strings.Split(Encode(s), "\n")
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), strings.Join(lines, "\n"))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(&model.Summary{Project: "empty", Root: "empty"})
	for _, section := range []string{
		"modules[0]{name,layout,template,aliases,components,vendors}:",
		"layouts[0]{name,parent}:",
		"files[0]{path,kind,rank}:",
		"imports[0]{source,target}:",
	} {
		if !strings.Contains(got, section) {
			t.Errorf("expected %q, got:\n%s", section, got)
		}
	}
	if strings.Contains(got, "libraries") {
		t.Errorf("libraries section should be omitted when empty, got:\n%s", got)
	}
}
