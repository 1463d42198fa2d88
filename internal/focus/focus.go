// Package focus narrows a graph summary to the part a reader asked about.
package focus

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/phobologic/sitebuild/internal/model"
)

// SelectFiles returns a summary with only the top-ranked files and the
// imports between them. If maxFiles is <= 0 or >= len(files), s is returned.
func SelectFiles(s *model.Summary, maxFiles int) *model.Summary {
	if maxFiles <= 0 || maxFiles >= len(s.Files) {
		return s
	}

	selected := s.Files[:maxFiles]
	keep := make(map[string]struct{}, maxFiles)
	for i := range selected {
		keep[selected[i].Path] = struct{}{}
	}

	out := *s
	out.Files = selected
	out.Imports = importsWithin(s.Imports, keep, true)
	return &out
}

// FilterByFile returns a summary containing only files whose path contains
// substr (case-insensitive) and every import touching them.
func FilterByFile(s *model.Summary, substr string) *model.Summary {
	lower := strings.ToLower(substr)

	keep := make(map[string]struct{})
	var files []model.FileInfo
	for i := range s.Files {
		if strings.Contains(strings.ToLower(s.Files[i].Path), lower) {
			keep[s.Files[i].Path] = struct{}{}
			files = append(files, s.Files[i])
		}
	}

	out := *s
	out.Files = files
	out.Imports = importsWithin(s.Imports, keep, false)
	return &out
}

// Modules returns a summary of the named modules (or aliases) and
// everything they reach: their layout chains, the components they use, the
// files of all of those and the files those import, transitively.
func Modules(s *model.Summary, names []string) (*model.Summary, error) {
	byName := make(map[string]*model.ModuleInfo, len(s.Modules))
	for i := range s.Modules {
		m := &s.Modules[i]
		byName[m.Name] = m
		for _, a := range m.Aliases {
			byName[a] = m
		}
	}
	layouts := make(map[string]*model.LayoutInfo, len(s.Layouts))
	for i := range s.Layouts {
		layouts[s.Layouts[i].Name] = &s.Layouts[i]
	}
	components := make(map[string]*model.ComponentInfo, len(s.Components))
	for i := range s.Components {
		components[s.Components[i].Name] = &s.Components[i]
	}

	var unknown []string
	modules := make(map[string]bool)
	keepLayouts := make(map[string]bool)
	keepComponents := make(map[string]bool)
	seeds := make(map[string]struct{})
	addFiles := func(paths []string) {
		for _, p := range paths {
			seeds[p] = struct{}{}
		}
	}

	for _, n := range names {
		m, ok := byName[n]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		modules[m.Name] = true
		addFiles(m.Files)
		for _, c := range m.Components {
			keepComponents[c] = true
		}
		for l := m.Layout; l != "" && !keepLayouts[l]; {
			keepLayouts[l] = true
			info := layouts[l]
			if info == nil {
				break
			}
			addFiles(info.Files)
			l = info.Parent
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown module(s): %s", strings.Join(unknown, ", "))
	}
	for c := range keepComponents {
		if info := components[c]; info != nil {
			addFiles(info.Files)
		}
	}

	reach := reachable(s.Imports, seeds)

	out := &model.Summary{Project: s.Project, Root: s.Root}
	for _, f := range s.Files {
		if _, ok := reach[f.Path]; ok {
			out.Files = append(out.Files, f)
		}
	}
	for _, m := range s.Modules {
		if modules[m.Name] {
			out.Modules = append(out.Modules, m)
		}
	}
	for _, l := range s.Layouts {
		if keepLayouts[l.Name] {
			out.Layouts = append(out.Layouts, l)
		}
	}
	for _, c := range s.Components {
		if keepComponents[c.Name] {
			out.Components = append(out.Components, c)
		}
	}
	for _, lib := range s.Libraries {
		if _, ok := reach[lib.Entry]; ok {
			out.Libraries = append(out.Libraries, lib)
		}
	}
	out.Imports = importsWithin(s.Imports, reach, true)
	return out, nil
}

// reachable returns seeds plus every file they import, transitively.
func reachable(imports []model.Import, seeds map[string]struct{}) map[string]struct{} {
	children := make(map[string][]string)
	for _, imp := range imports {
		children[imp.Source] = append(children[imp.Source], imp.Target)
	}

	out := make(map[string]struct{}, len(seeds))
	queue := make([]string, 0, len(seeds))
	for p := range seeds {
		queue = append(queue, p)
	}
	sort.Strings(queue)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, ok := out[p]; ok {
			continue
		}
		out[p] = struct{}{}
		queue = append(queue, children[p]...)
	}
	return out
}

// importsWithin keeps imports with both ends in keep, or either end if both
// is false.
func importsWithin(imports []model.Import, keep map[string]struct{}, both bool) []model.Import {
	var out []model.Import
	for _, imp := range imports {
		_, src := keep[imp.Source]
		_, tgt := keep[imp.Target]
		if (both && src && tgt) || (!both && (src || tgt)) {
			out = append(out, imp)
		}
	}
	return slices.Clip(out)
}
