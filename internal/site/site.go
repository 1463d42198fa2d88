// Package site is the entry point used by the CLI: it owns the published
// graph and drives construction, builds and watching.
package site

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/phobologic/sitebuild/internal/build"
	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/discover"
	"github.com/phobologic/sitebuild/internal/emit"
	"github.com/phobologic/sitebuild/internal/graph"
	"github.com/phobologic/sitebuild/internal/incremental"
	"github.com/phobologic/sitebuild/internal/model"
	"github.com/phobologic/sitebuild/internal/parse"
	"github.com/phobologic/sitebuild/internal/watch"
)

// ErrNotConstructed is returned by operations that need a graph before
// Construct has succeeded.
var ErrNotConstructed = errors.New("site graph has not been constructed")

// Options configures a Controller.
type Options struct {
	// Prod selects minified vendor references.
	Prod bool
	// NoVendor skips cleaning and copying vendor bundles.
	NoVendor bool
	// ConfigFile is watched for changes. Defaults to sitebuild.json in the
	// project directory.
	ConfigFile string
	// Reload re-reads the configuration before each reconstruction. Nil
	// keeps the configuration the Controller was created with.
	Reload func() (*config.Config, error)
	// Data fills module, layout module and template markup when pages are
	// rendered.
	Data   emit.DataProviders
	Logger *log.Logger
}

// Controller publishes one graph at a time. Readers always see a fully
// constructed graph; a failed construction leaves the previous one in place.
type Controller struct {
	opts      Options
	log       *log.Logger
	extractor *parse.Extractor
	orch      *build.Orchestrator

	mu  sync.Mutex // serializes construct, build and event handling
	cfg *config.Config
	g   atomic.Pointer[graph.Graph]
}

// New returns a Controller for cfg. Nothing is scanned until Construct.
func New(cfg *config.Config, opts Options) (*Controller, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = filepath.Join(cfg.ProjectDirectory, config.FileName)
	}
	e, err := parse.NewExtractor(parse.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Controller{
		opts:      opts,
		log:       opts.Logger,
		extractor: e,
		orch:      &build.Orchestrator{Logger: opts.Logger},
		cfg:       cfg,
	}, nil
}

// Graph returns the published graph, or nil before the first successful
// Construct.
func (c *Controller) Graph() *graph.Graph { return c.g.Load() }

// Construct builds a new graph and publishes it. It may be called any
// number of times.
func (c *Controller) Construct(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.construct(ctx, false)
}

func (c *Controller) construct(ctx context.Context, reload bool) error {
	cfg := c.cfg
	if reload && c.opts.Reload != nil {
		fresh, err := c.opts.Reload()
		if err != nil {
			return fmt.Errorf("reloading configuration: %w", err)
		}
		cfg = fresh
	}

	g, err := graph.Construct(ctx, cfg, graph.Options{
		Prod:    c.opts.Prod,
		Lister:  c.extractor,
		Scanner: discover.NewScanner(cfg.ProjectDirectory),
		Logger:  c.log,
	})
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.g.Store(g)
	c.log.Info("graph constructed", "modules", len(g.Modules()), "layouts", len(g.LayoutModules()), "assets", len(g.Assets()))
	return nil
}

// Build cleans the output directories and writes every output of the
// published graph.
func (c *Controller) Build(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.build(ctx)
}

func (c *Controller) build(ctx context.Context) error {
	g := c.g.Load()
	if g == nil {
		return ErrNotConstructed
	}
	vendors := !c.opts.NoVendor
	e := emit.New(g, c.log).WithExtractor(c.extractor).WithData(c.opts.Data)
	return c.orch.Run(ctx, emit.CleanDirectories(g.Config, vendors), e.Tasks(vendors))
}

// Watch constructs, builds and then rebuilds on every change under the
// project directory until ctx is cancelled. Failures while handling changes
// are logged and watching continues.
func (c *Controller) Watch(ctx context.Context) error {
	if err := c.Construct(ctx); err != nil {
		return err
	}
	if err := c.Build(ctx); err != nil {
		c.log.Error("initial build failed", "err", err)
	}

	cfg := c.Graph().Config
	w, err := watch.New(watch.Config{
		BaseDir:  cfg.ProjectDirectory,
		Ignore:   append(watchIgnores(cfg), cfg.Watch.Ignore...),
		Debounce: cfg.Watch.Debounce,
		Logger:   c.log,
		OnBatch: func(ctx context.Context, events []watch.Event) error {
			c.HandleEvents(ctx, events)
			return nil
		},
	})
	if err != nil {
		return err
	}
	c.log.Info("watching for changes", "dir", cfg.ProjectDirectory)
	return w.Run(ctx)
}

// watchIgnores keeps build output out of the watch.
func watchIgnores(cfg *config.Config) []string {
	rel := filepath.ToSlash(cfg.PublicDirectory)
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return nil
	}
	return []string{rel, rel + "/**"}
}

// HandleEvents processes one batch of changes. Any change that needs a
// reconstruction reconstructs and rebuilds everything once; otherwise each
// change is applied to the published graph and its targets are rebuilt.
func (c *Controller) HandleEvents(ctx context.Context, events []watch.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.g.Load()
	if g == nil {
		return
	}

	type pending struct {
		ev     watch.Event
		action incremental.Action
	}
	var work []pending
	reconstruct := false
	for _, ev := range events {
		action := incremental.Classify(g, ev, c.opts.ConfigFile)
		c.log.Debug("change", "file", ev.Path, "op", ev.Op, "action", action)
		switch action {
		case incremental.Ignore:
		case incremental.Reconstruct:
			reconstruct = true
		default:
			work = append(work, pending{ev, action})
		}
	}

	if !reconstruct {
		targets := make(map[*model.Asset]bool)
		for _, p := range work {
			plan, err := incremental.Apply(g, p.action, p.ev.Path, c.extractor)
			if err != nil {
				c.log.Error("updating graph", "file", p.ev.Path, "err", err)
				continue
			}
			if plan.Reconstruct {
				reconstruct = true
				break
			}
			for _, t := range plan.Targets {
				targets[t] = true
			}
		}
		if !reconstruct {
			c.rebuild(ctx, g, targets)
			return
		}
	}

	if err := c.construct(ctx, true); err != nil {
		c.log.Error("reconstructing graph", "err", err)
		return
	}
	if err := c.build(ctx); err != nil {
		c.log.Error("rebuilding", "err", err)
	}
}

func (c *Controller) rebuild(ctx context.Context, g *graph.Graph, targets map[*model.Asset]bool) {
	if len(targets) == 0 {
		return
	}
	records := make([]*model.Asset, 0, len(targets))
	for a := range targets {
		records = append(records, a)
	}
	model.SortAssets(records)

	if err := c.orch.Run(ctx, nil, emit.New(g, c.log).WithExtractor(c.extractor).WithData(c.opts.Data).TasksFor(records)); err != nil {
		c.log.Error("rebuilding", "err", err)
	}
}

// ModuleNameFromRoute derives the module serving route. The query string
// and any path parameter values are removed, then the remaining path
// segments are joined with the name separator. The empty route maps to the
// root module. It reports false if no module or alias has the derived name.
func (c *Controller) ModuleNameFromRoute(route string, params, queries map[string]string) (string, bool) {
	g := c.g.Load()
	if g == nil {
		return "", false
	}
	cfg := g.Config

	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	for _, k := range sortedKeys(queries) {
		route = strings.Replace(route, k+"="+queries[k], "", 1)
	}
	for _, k := range sortedKeys(params) {
		v := params[k]
		if v == "" {
			continue
		}
		if !strings.HasPrefix(v, "/") {
			v = "/" + v
		}
		route = strings.Replace(route, v, "", 1)
	}

	var segments []string
	for _, s := range strings.Split(route, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	name := strings.Join(segments, cfg.NameSeparator)
	if name == "" {
		name = cfg.RootModuleFileName
	}
	if _, ok := g.Module(name); !ok {
		return "", false
	}
	return name, true
}

// ModuleMarkupOutputPath returns where the named module's page is written,
// relative to the project directory or, if absolute is set, as an absolute
// path. It reports false for unknown modules.
func (c *Controller) ModuleMarkupOutputPath(name string, absolute bool) (string, bool) {
	g := c.g.Load()
	if g == nil {
		return "", false
	}
	m, ok := g.Module(name)
	if !ok {
		return "", false
	}
	rel, ok := emit.RelativeOutputPath(g.Config, model.ModuleMarkup, m.Name)
	if !ok {
		return "", false
	}
	if absolute {
		return filepath.Join(g.Config.ProjectDirectory, rel), true
	}
	return rel, true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
