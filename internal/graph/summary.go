package graph

import (
	"path/filepath"
	"sort"

	"github.com/phobologic/sitebuild/internal/model"
)

// Summary flattens g for reporting.
func (g *Graph) Summary() *model.Summary {
	root := g.Config.ProjectDirectory
	rel := func(a *model.Asset) string {
		if a == nil {
			return ""
		}
		r, err := filepath.Rel(root, a.Path)
		if err != nil {
			return filepath.ToSlash(a.Path)
		}
		return filepath.ToSlash(r)
	}
	files := func(assets ...*model.Asset) []string {
		var out []string
		for _, a := range assets {
			if a != nil {
				out = append(out, rel(a))
			}
		}
		return out
	}

	s := &model.Summary{
		Project: filepath.Base(root),
		Root:    root,
	}

	for _, r := range g.Rank() {
		s.Files = append(s.Files, model.FileInfo{
			Path: rel(r.Asset),
			Kind: r.Asset.Kind,
			Name: r.Asset.Name,
			Rank: r.Rank,
		})
	}

	for _, m := range g.moduleList {
		info := model.ModuleInfo{
			Name:    m.Name,
			Aliases: m.Aliases,
			Files:   files(m.Markup, m.Script, m.Style),
		}
		if m.Layout != nil {
			info.Layout = m.Layout.Name
		}
		if m.Template != nil {
			info.Template = m.Template.Name
		}
		for _, c := range m.Markup.Components() {
			info.Components = append(info.Components, c.Name)
		}
		for _, v := range append(append([]*model.Vendor{}, m.VendorScripts...), m.VendorStyles...) {
			info.Vendors = append(info.Vendors, v.Name)
		}
		s.Modules = append(s.Modules, info)
	}

	for _, l := range g.layoutList {
		info := model.LayoutInfo{Name: l.Name, Files: files(l.Markup, l.Script, l.Style)}
		if l.Parent != nil {
			info.Parent = l.Parent.Name
		}
		s.Layouts = append(s.Layouts, info)
	}

	for _, c := range g.Components() {
		s.Components = append(s.Components, model.ComponentInfo{
			Name:  c.Name,
			Files: files(c.Markup, c.Script, c.Style),
			Users: len(c.Markup.Users()),
		})
	}

	for _, lib := range g.libraries {
		s.Libraries = append(s.Libraries, model.LibraryInfo{
			Name:         lib.Name,
			Group:        lib.Group,
			Entry:        rel(lib.Entry),
			Dependencies: len(lib.Dependencies),
		})
	}

	for _, group := range []map[string]*model.Asset{g.scripts, g.styles} {
		for _, a := range group {
			for _, c := range a.Children() {
				s.Imports = append(s.Imports, model.Import{Source: rel(a), Target: rel(c)})
			}
		}
	}
	sort.Slice(s.Imports, func(i, j int) bool {
		if s.Imports[i].Source != s.Imports[j].Source {
			return s.Imports[i].Source < s.Imports[j].Source
		}
		return s.Imports[i].Target < s.Imports[j].Target
	})
	return s
}
