package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkIsSymmetric(t *testing.T) {
	t.Parallel()

	a := NewAsset("/src/a.js", ModuleScript, "a", nil)
	b := NewAsset("/src/b.js", LibraryScript, "", nil)

	Link(a, b)
	assert.True(t, a.HasChild(b))
	assert.True(t, b.HasParent(a))
	assert.Equal(t, []*Asset{b}, a.Children())
	assert.Equal(t, []*Asset{a}, b.Parents())

	// Linking twice keeps a single edge.
	Link(a, b)
	assert.Len(t, a.Children(), 1)

	Unlink(a, b)
	assert.False(t, a.HasChild(b))
	assert.False(t, b.HasParent(a))
	assert.Empty(t, a.Children())
	assert.Empty(t, b.Parents())
}

func TestChildrenSortedByPath(t *testing.T) {
	t.Parallel()

	root := NewAsset("/src/root.js", ModuleScript, "root", nil)
	for _, p := range []string{"/src/c.js", "/src/a.js", "/src/b.js"} {
		Link(root, NewAsset(p, LibraryScript, "", nil))
	}

	var paths []string
	for _, c := range root.Children() {
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{"/src/a.js", "/src/b.js", "/src/c.js"}, paths)
}

func TestKindTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind      Kind
		group     Group
		role      Role
		buildable bool
	}{
		{LibraryScript, Script, Library, false},
		{ModuleScript, Script, ModuleRole, true},
		{LayoutModuleStyle, Style, LayoutModuleRole, true},
		{ComponentStyle, Style, ComponentRole, true},
		{StandaloneEntryScript, Script, StandaloneEntry, true},
		{StandaloneDependencyStyle, Style, StandaloneDependency, false},
		{ModuleMarkup, Markup, ModuleRole, true},
		{LayoutModuleMarkup, Markup, LayoutModuleRole, false},
		{ComponentMarkup, Markup, ComponentRole, false},
		{TemplateMarkup, Markup, TemplateRole, false},
		{ModuleConfig, Configuration, ModuleRole, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.group, tt.kind.Group())
			assert.Equal(t, tt.role, tt.kind.Role())
			assert.Equal(t, tt.buildable, tt.kind.Buildable())
		})
	}
}

func TestUseComponentRecordsOnce(t *testing.T) {
	t.Parallel()

	page := NewAsset("/src/modules/home/home.hbs", ModuleMarkup, "home", nil)
	header := &Component{
		Name:   "header",
		Markup: NewAsset("/src/components/header/header.hbs", ComponentMarkup, "header", nil),
	}

	require.True(t, page.UseComponent(header))
	require.False(t, page.UseComponent(header))
	assert.Equal(t, []*Component{header}, page.Components())
	assert.Equal(t, []*Asset{page}, header.Markup.Users())
}

func TestLayoutChain(t *testing.T) {
	t.Parallel()

	root := &LayoutModule{Name: "root"}
	mid := &LayoutModule{Name: "mid", Parent: root}
	leaf := &LayoutModule{Name: "leaf", Parent: mid}

	chain := leaf.Chain()
	require.Len(t, chain, 3)
	assert.Equal(t, "leaf", chain[0].Name)
	assert.Equal(t, "mid", chain[1].Name)
	assert.Equal(t, "root", chain[2].Name)
}
