// Package emit writes a graph's build output: script and style records are
// written to their output paths along with every library file they import,
// vendor bundles are transferred and module markup is rendered into pages.
package emit

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/phobologic/sitebuild/internal/build"
	"github.com/phobologic/sitebuild/internal/graph"
	"github.com/phobologic/sitebuild/internal/model"
	"github.com/phobologic/sitebuild/internal/parse"
)

// Emitter produces output for one graph.
type Emitter struct {
	g          *graph.Graph
	components *parse.ComponentScanner
	byExpr     map[string]*model.Component
	log        *log.Logger

	refsOnce sync.Once
	refs     *parse.Extractor
	refsErr  error

	data DataProviders
}

// DataProvider returns the values a page part substitutes for its {{key}}
// expressions.
type DataProvider func() (map[string]any, error)

// DataProviders supply page data by module, layout module and template
// name. Parts without a provider are rendered as written.
type DataProviders struct {
	Modules       map[string]DataProvider
	LayoutModules map[string]DataProvider
	Templates     map[string]DataProvider
}

// New returns an Emitter for g.
func New(g *graph.Graph, logger *log.Logger) *Emitter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	e := &Emitter{
		g:          g,
		components: parse.NewComponentScanner(g.Config.ComponentPostFix),
		byExpr:     make(map[string]*model.Component),
		log:        logger,
	}
	for _, c := range g.Components() {
		e.byExpr[c.Expression] = c
	}
	return e
}

// WithExtractor makes e reuse x for finding the specifiers it rewrites.
func (e *Emitter) WithExtractor(x *parse.Extractor) *Emitter {
	e.refsOnce.Do(func() { e.refs = x })
	return e
}

func (e *Emitter) extractor() (*parse.Extractor, error) {
	e.refsOnce.Do(func() { e.refs, e.refsErr = parse.NewExtractor(parse.DefaultCacheSize) })
	return e.refs, e.refsErr
}

// WithData makes Render fill page parts from d.
func (e *Emitter) WithData(d DataProviders) *Emitter {
	e.data = d
	return e
}

// Tasks returns a task for every buildable record and, if vendors is set,
// for every vendor bundle.
func (e *Emitter) Tasks(vendors bool) []build.Task {
	var records []*model.Asset
	for _, a := range e.g.Assets() {
		if a.Kind.Buildable() {
			records = append(records, a)
		}
	}
	tasks := e.TasksFor(records)
	if vendors {
		for _, v := range append(e.g.VendorScripts(), e.g.VendorStyles()...) {
			tasks = append(tasks, build.Task{
				Name: fmt.Sprintf("vendor-%s %s", v.Group, v.Name),
				Run:  func(ctx context.Context) error { return e.Transfer(ctx, v) },
			})
		}
	}
	return tasks
}

// TasksFor returns a task per record and per library file the records
// import, directly or not. Records that produce no output of their own are
// skipped.
func (e *Emitter) TasksFor(records []*model.Asset) []build.Task {
	tasks := make([]build.Task, 0, len(records))
	var roots []*model.Asset
	for _, a := range records {
		if !a.Kind.Buildable() {
			continue
		}
		roots = append(roots, a)
		tasks = append(tasks, build.Task{
			Name: a.Kind.String() + " " + a.Name,
			Run:  func(ctx context.Context) error { return e.Build(ctx, a) },
		})
	}
	for _, a := range libraryClosure(roots) {
		tasks = append(tasks, build.Task{
			Name: a.Kind.String() + " " + e.relative(a.Path),
			Run:  func(ctx context.Context) error { return e.Build(ctx, a) },
		})
	}
	return tasks
}

// libraryClosure returns the unbuildable records reachable from roots
// through import edges, sorted by path.
func libraryClosure(roots []*model.Asset) []*model.Asset {
	seen := make(map[*model.Asset]bool)
	var out []*model.Asset
	var visit func(a *model.Asset)
	visit = func(a *model.Asset) {
		for _, c := range a.Children() {
			if seen[c] {
				continue
			}
			seen[c] = true
			if !c.Kind.Buildable() {
				out = append(out, c)
			}
			visit(c)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (e *Emitter) relative(path string) string {
	rel, err := filepath.Rel(e.g.Config.ProjectDirectory, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// Build writes a's output.
func (e *Emitter) Build(ctx context.Context, a *model.Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, ok := OutputPath(e.g.Config, a)
	if !ok {
		return fmt.Errorf("%s: %s records have no output", a.Path, a.Kind)
	}

	if a.Kind == model.ModuleMarkup {
		m := e.g.ModuleForMarkup(a)
		if m == nil {
			return fmt.Errorf("%s: no module owns this markup", a.Path)
		}
		page, err := e.Render(m)
		if err != nil {
			return err
		}
		return writeFile(dst, page)
	}

	data, err := e.relink(a, dst)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Path, err)
	}
	return writeFile(dst, data)
}

// relink returns a's content with every file specifier pointing at where
// the record it resolves to is written, relative to dst.
func (e *Emitter) relink(a *model.Asset, dst string) ([]byte, error) {
	if len(a.Children()) == 0 {
		return a.Content, nil
	}
	x, err := e.extractor()
	if err != nil {
		return nil, err
	}
	refs, err := x.ListReferences(a)
	if err != nil {
		return nil, err
	}

	var pairs []string
	for _, r := range refs {
		c := e.g.Lookup(a.Kind.Group(), r.Path)
		if c == nil || !a.HasChild(c) {
			continue
		}
		target, ok := OutputPath(e.g.Config, c)
		if !ok {
			return nil, fmt.Errorf("%s is imported but has no output", c.Path)
		}
		spec, err := relativeSpecifier(dst, target)
		if err != nil {
			return nil, err
		}
		if spec == r.Specifier {
			continue
		}
		for _, q := range []string{`"`, `'`} {
			pairs = append(pairs, q+r.Specifier+q, q+spec+q)
		}
	}
	if len(pairs) == 0 {
		return a.Content, nil
	}
	return []byte(strings.NewReplacer(pairs...).Replace(string(a.Content))), nil
}

func relativeSpecifier(from, to string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(from), to)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel, nil
}

// Transfer copies a vendor bundle's selected files.
func (e *Emitter) Transfer(ctx context.Context, v *model.Vendor) error {
	dst := VendorDirectory(e.g.Config, v)
	for _, p := range v.Paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := filepath.FromSlash(p)
		if err := copyFile(filepath.Join(v.SourceDirectory, rel), filepath.Join(dst, rel)); err != nil {
			return fmt.Errorf("vendor %s: %w", v.Name, err)
		}
	}
	return nil
}

// Render produces m's page: the module markup wrapped by each layout module
// from nearest to outermost and then by the template, with components
// inlined, each part filled from its data provider and the script and style
// expressions replaced by tags.
func (e *Emitter) Render(m *model.Module) ([]byte, error) {
	cfg := e.g.Config
	var used []*model.Component
	seen := make(map[*model.Component]bool)
	inline := func(content []byte) []byte {
		return e.inline(content, nil, func(c *model.Component) {
			if !seen[c] {
				seen[c] = true
				used = append(used, c)
			}
		})
	}

	page, err := e.fill("module", m.Name, e.data.Modules[m.Name], inline(m.Markup.Content))
	if err != nil {
		return nil, err
	}
	var chain []*model.LayoutModule
	if m.Layout != nil {
		chain = m.Layout.Chain()
	}
	for _, l := range chain {
		part, err := e.fill("layout module", l.Name, e.data.LayoutModules[l.Name], inline(l.Markup.Content))
		if err != nil {
			return nil, err
		}
		page = wrap(part, cfg.ContentExpression, page)
	}
	if m.Template != nil {
		part, err := e.fill("template", m.Template.Name, e.data.Templates[m.Template.Name], inline(m.Template.Content))
		if err != nil {
			return nil, err
		}
		page = wrap(part, cfg.ContentExpression, page)
	} else if len(chain) == 0 {
		e.log.Debug("module has no layout or template", "module", m.Name)
	}

	scripts, styles := e.references(m, chain, used)
	page = bytes.ReplaceAll(page, []byte(cfg.ScriptExpression), []byte(scriptTags(scripts)))
	page = bytes.ReplaceAll(page, []byte(cfg.StyleExpression), []byte(styleTags(styles)))
	return page, nil
}

// fill replaces {{key}} in part with the escaped value p supplies for key.
// The content, script and style expressions are never replaced.
func (e *Emitter) fill(kind, name string, p DataProvider, part []byte) ([]byte, error) {
	if p == nil {
		return part, nil
	}
	data, err := p()
	if err != nil {
		return nil, fmt.Errorf("data for %s %s: %w", kind, name, err)
	}
	cfg := e.g.Config
	reserved := map[string]bool{
		cfg.ContentExpression: true,
		cfg.ScriptExpression:  true,
		cfg.StyleExpression:   true,
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var pairs []string
	for _, k := range keys {
		expr := "{{" + k + "}}"
		if reserved[expr] {
			continue
		}
		pairs = append(pairs, expr, html.EscapeString(fmt.Sprint(data[k])))
	}
	if len(pairs) == 0 {
		return part, nil
	}
	return []byte(strings.NewReplacer(pairs...).Replace(string(part))), nil
}

// inline expands component tags recursively. A component already being
// expanded is left as written.
func (e *Emitter) inline(content []byte, stack []*model.Component, use func(*model.Component)) []byte {
	return e.components.Inline(content, func(expr string) ([]byte, bool) {
		c := e.byExpr[expr]
		if c == nil {
			return nil, false
		}
		for _, s := range stack {
			if s == c {
				return nil, false
			}
		}
		use(c)
		return e.inline(c.Markup.Content, append(stack, c), use), true
	})
}

func wrap(outer []byte, expr string, inner []byte) []byte {
	if expr == "" || !bytes.Contains(outer, []byte(expr)) {
		return append(append([]byte{}, outer...), inner...)
	}
	return bytes.ReplaceAll(outer, []byte(expr), inner)
}

// references lists script and style URLs in load order: vendor bundles,
// static references, standalone libraries, layout modules from the
// outermost in, components and finally the module itself.
func (e *Emitter) references(m *model.Module, chain []*model.LayoutModule, used []*model.Component) (scripts, styles []string) {
	cfg := e.g.Config
	for _, v := range m.VendorScripts {
		scripts = append(scripts, VendorURLs(cfg, v)...)
	}
	for _, v := range m.VendorStyles {
		styles = append(styles, VendorURLs(cfg, v)...)
	}
	for _, r := range m.StaticScripts {
		scripts = append(scripts, r.URL)
	}
	for _, r := range m.StaticStyles {
		styles = append(styles, r.URL)
	}
	for _, a := range m.StandaloneScripts {
		scripts = append(scripts, URL(cfg, a))
	}
	for _, a := range m.StandaloneStyles {
		styles = append(styles, URL(cfg, a))
	}

	add := func(script, style *model.Asset) {
		if script != nil {
			scripts = append(scripts, URL(cfg, script))
		}
		if style != nil {
			styles = append(styles, URL(cfg, style))
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		add(chain[i].Script, chain[i].Style)
	}
	for _, c := range used {
		add(c.Script, c.Style)
	}
	add(m.Script, m.Style)
	return scripts, styles
}

func scriptTags(urls []string) string {
	var b strings.Builder
	for i, u := range urls {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, `<script src="%s"></script>`, html.EscapeString(u))
	}
	return b.String()
}

func styleTags(urls []string) string {
	var b strings.Builder
	for i, u := range urls {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, `<link rel="stylesheet" href="%s">`, html.EscapeString(u))
	}
	return b.String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

func writeFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
