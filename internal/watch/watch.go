// Package watch reports file system changes under a directory tree in
// debounced batches.
//
// Every non-ignored directory below BaseDir is registered with fsnotify.
// Events whose path matches one of the configured doublestar patterns are
// collected until the tree has been quiet for the debounce period, then
// delivered together. Operations seen for the same path within one window
// are merged.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// Always excluded, in addition to Config.Ignore.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// Op is a set of file operations.
type Op uint8

const (
	Create Op = 1 << iota
	Write
	Remove
	Rename
)

// Has reports whether o includes every bit of x.
func (o Op) Has(x Op) bool { return o&x == x }

// Membership reports whether o adds or removes a path.
func (o Op) Membership() bool { return o&(Create|Remove|Rename) != 0 }

func (o Op) String() string {
	var parts []string
	for _, op := range []struct {
		bit  Op
		name string
	}{{Create, "create"}, {Write, "write"}, {Remove, "remove"}, {Rename, "rename"}} {
		if o.Has(op.bit) {
			parts = append(parts, op.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

func fromFsnotify(op fsnotify.Op) Op {
	var o Op
	if op.Has(fsnotify.Create) {
		o |= Create
	}
	if op.Has(fsnotify.Write) {
		o |= Write
	}
	if op.Has(fsnotify.Remove) {
		o |= Remove
	}
	if op.Has(fsnotify.Rename) {
		o |= Rename
	}
	return o
}

// Event is one changed path.
type Event struct {
	Path string // absolute
	Op   Op
}

// Config configures a Watcher.
type Config struct {
	// BaseDir is the watched tree. Defaults to the working directory.
	BaseDir string
	// Patterns select the paths, relative to BaseDir and slash separated, that
	// are reported. Empty reports everything not ignored.
	Patterns []string
	Ignore   []string
	Debounce time.Duration

	// OnBatch receives each batch sorted by path. Batches never overlap: a
	// window that closes while OnBatch is running is delivered after it
	// returns. A returned error is logged.
	OnBatch func(ctx context.Context, events []Event) error

	Logger *log.Logger
}

// Watcher watches a directory tree. Run may be called once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	ignores  []string
	debounce time.Duration
	baseDir  string
	log      *log.Logger
	started  atomic.Bool
}

// New validates cfg and registers the directory tree.
func New(cfg Config) (*Watcher, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  append(append([]string{}, defaultIgnores...), cfg.Ignore...),
		debounce: debounce,
		baseDir:  absBase,
		log:      logger,
	}
	if err := w.addDirectories(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers batches until ctx is cancelled. It returns nil on
// cancellation and an error if the underlying watcher fails for good.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]Op)
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			// Retry once the running batch is done.
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		batch := make([]Event, 0, len(pending))
		for p, op := range pending {
			batch = append(batch, Event{Path: p, Op: op})
		}
		clear(pending)
		mu.Unlock()

		sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
		if w.cfg.OnBatch == nil {
			return
		}
		if err := w.cfg.OnBatch(ctx, batch); err != nil {
			w.log.Error("handling changes", "err", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.log.Warn("closing watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			op := fromFsnotify(evt.Op)
			if op == 0 || !w.reported(evt.Name) {
				continue
			}

			mu.Lock()
			pending[evt.Name] |= op
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.log.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) reported(path string) bool {
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return !w.isIgnored(rel) && w.matchesPatterns(rel)
}

func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.log.Warn("skipping inaccessible path", "path", path, "err", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.baseDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk directory tree: %w", err)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup,
// including every directory below one moved in whole.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.baseDir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if w.isIgnored(rel) || w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Warn("watching new directory", "path", p, "err", err)
		}
		return nil
	})
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matchesPatterns(rel string) bool {
	return len(w.cfg.Patterns) == 0 || matchAny(w.cfg.Patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return append([]string{}, defaultIgnores...)
}
