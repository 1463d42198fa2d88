// sitebuild builds the scripts, styles and markup of a multi-page site from
// its module graph, and keeps them current while sources change.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/focus"
	"github.com/phobologic/sitebuild/internal/site"
	"github.com/phobologic/sitebuild/internal/toon"
)

var version = "dev"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func main() {
	// fang reports the error itself.
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	)
}

// app holds the global flags and the pieces every command shares.
type app struct {
	stdout, stderr io.Writer

	dir        string
	configFile string
	logLevel   string

	log *log.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		log:    log.NewWithOptions(stderr, log.Options{Prefix: "sitebuild"}),
	}

	root := &cobra.Command{
		Use:   "sitebuild",
		Short: "Build front-end assets from a site's module graph",
		Long: titleStyle.Render("sitebuild") + mutedStyle.Render(" - front-end asset builder for multi-page sites") + `

sitebuild scans the module, layout module, component and library
directories of a project, links every script and style to what it imports,
and writes each module's scripts, styles and rendered markup to the public
directory. In watch mode only what a change affects is rebuilt.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.dir, "dir", "C", "", "project directory (default is the working directory)")
	pf.StringVar(&a.configFile, "config", "", "config file (default is <dir>/"+config.FileName+")")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (default from config)")

	root.AddCommand(
		newBuildCmd(a),
		newWatchCmd(a),
		newGraphCmd(a),
		newRouteCmd(a),
		newInitCmd(a),
	)
	return root
}

func (a *app) loadOptions() (config.LoadOptions, error) {
	opts := config.LoadOptions{ProjectDirectory: a.dir}
	if a.configFile != "" {
		abs, err := filepath.Abs(a.configFile)
		if err != nil {
			return opts, fmt.Errorf("resolving config path: %w", err)
		}
		opts.ConfigFile = abs
	}
	return opts, nil
}

// load reads the configuration and applies its log level unless --log-level
// was given.
func (a *app) load() (*config.Config, error) {
	opts, err := a.loadOptions()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}

	level := a.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	a.log.SetLevel(lvl)
	return cfg, nil
}

// controller loads the configuration and returns a Controller that reloads
// it before every reconstruction.
func (a *app) controller(opts site.Options) (*site.Controller, error) {
	cfg, err := a.load()
	if err != nil {
		return nil, err
	}
	lo, err := a.loadOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = a.log
	opts.ConfigFile = lo.ConfigFile
	opts.Reload = func() (*config.Config, error) { return config.Load(lo) }
	return site.New(cfg, opts)
}

func newBuildCmd(a *app) *cobra.Command {
	var opts site.Options
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Construct the graph and write every output once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.controller(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := c.Construct(ctx); err != nil {
				return err
			}
			if err := c.Build(ctx); err != nil {
				return err
			}

			g := c.Graph()
			mode := "development"
			if opts.Prod {
				mode = "production"
			}
			_, _ = fmt.Fprintf(a.stdout, "%s built %d modules, %d layout modules, %d components %s\n",
				successStyle.Render("✓"),
				len(g.Modules()), len(g.LayoutModules()), len(g.Components()),
				mutedStyle.Render("("+mode+") into "+g.Config.OutputRoot()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Prod, "prod", false, "use minified vendor references")
	cmd.Flags().BoolVar(&opts.NoVendor, "no-vendor", false, "skip cleaning and copying vendor bundles")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var opts site.Options
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild affected outputs whenever sources change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.controller(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := c.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Prod, "prod", false, "use minified vendor references")
	cmd.Flags().BoolVar(&opts.NoVendor, "no-vendor", false, "skip cleaning and copying vendor bundles")
	return cmd
}

func newGraphCmd(a *app) *cobra.Command {
	var (
		modules  []string
		file     string
		maxFiles int
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the site graph in TOON format",
		Long: `Print the modules, layout modules, components, libraries and import edges
of the project. Files are ranked by how central they are to the import graph.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.controller(site.Options{})
			if err != nil {
				return err
			}
			if err := c.Construct(cmd.Context()); err != nil {
				return err
			}

			s := c.Graph().Summary()
			if len(modules) > 0 {
				if s, err = focus.Modules(s, modules); err != nil {
					return err
				}
			}
			if file != "" {
				s = focus.FilterByFile(s, file)
			}
			s = focus.SelectFiles(s, maxFiles)

			_, _ = fmt.Fprintln(a.stdout, toon.Encode(s))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&modules, "module", "m", nil, "focus on a module or alias and everything it reaches (repeatable)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "only files whose path contains this substring")
	cmd.Flags().IntVarP(&maxFiles, "max-files", "n", 0, "maximum number of files to include")
	return cmd
}

func newRouteCmd(a *app) *cobra.Command {
	var (
		params   map[string]string
		queries  map[string]string
		absolute bool
	)
	cmd := &cobra.Command{
		Use:   "route <route>",
		Short: "Print the module serving a route and its markup output path",
		Example: `  sitebuild route /shop/item/42 --param id=42
  sitebuild route '/search?q=shoes' --query q=shoes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(site.Options{})
			if err != nil {
				return err
			}
			if err := c.Construct(cmd.Context()); err != nil {
				return err
			}

			name, ok := c.ModuleNameFromRoute(args[0], params, queries)
			if !ok {
				return fmt.Errorf("no module serves route %q", args[0])
			}
			path, _ := c.ModuleMarkupOutputPath(name, absolute)
			_, _ = fmt.Fprintln(a.stdout, name)
			_, _ = fmt.Fprintln(a.stdout, filepath.ToSlash(path))
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&params, "param", nil, "route parameter value to strip, as name=value (repeatable)")
	cmd.Flags().StringToStringVar(&queries, "query", nil, "query parameter to strip, as name=value (repeatable)")
	cmd.Flags().BoolVar(&absolute, "absolute", false, "print an absolute output path")
	return cmd
}
