// Package build runs output tasks: it cleans output directories, then runs
// every task concurrently and reports each failure.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Task is one independent unit of output, such as compiling a record or
// copying a vendor bundle.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Failure is a failed task.
type Failure struct {
	Task string
	Err  error
}

// Error lists every task that failed, in task order.
type Error struct {
	Failures []Failure
}

func (e *Error) Error() string {
	var b strings.Builder
	if len(e.Failures) == 1 {
		b.WriteString("1 build task failed: ")
	} else {
		fmt.Fprintf(&b, "%d build tasks failed: ", len(e.Failures))
	}
	for i, f := range e.Failures {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Task, f.Err)
	}
	return b.String()
}

// Unwrap exposes the individual task errors to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}

// Orchestrator runs builds. The zero value is ready to use.
type Orchestrator struct {
	// Limit bounds concurrently running tasks. Zero means GOMAXPROCS.
	Limit  int
	Logger *log.Logger
}

// Run removes every directory in clean, then runs tasks concurrently and
// waits for all of them. A failing task does not stop the others. Cleaning
// finishes before the first task starts.
func (o *Orchestrator) Run(ctx context.Context, clean []string, tasks []Task) error {
	logger := o.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	for _, dir := range clean {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("cleaning %s: %w", dir, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	limit := o.Limit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	// Each task writes only its own slot.
	errs := make([]error, len(tasks))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, t := range tasks {
		g.Go(func() error {
			err := t.Run(ctx)
			if err != nil {
				logger.Error("build task failed", "task", t.Name, "err", err)
			} else {
				logger.Debug("built", "task", t.Name)
			}
			errs[i] = err
			return nil
		})
	}
	// Tasks report through errs and always return nil.
	_ = g.Wait()

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, Failure{Task: tasks[i].Name, Err: err})
		}
	}
	logger.Info("build finished", "tasks", len(tasks), "failed", len(failures), "elapsed", time.Since(start).Round(time.Millisecond))
	if len(failures) > 0 {
		return &Error{Failures: failures}
	}
	return nil
}
