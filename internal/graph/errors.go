package graph

import (
	"fmt"
	"strings"

	"github.com/phobologic/sitebuild/internal/model"
)

// UnresolvedReferenceError reports a reference to a file outside the scanned set.
type UnresolvedReferenceError struct {
	File string // referencing file
	Path string // referenced path with no matching record
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s: unresolved reference to %s", e.File, e.Path)
}

// ConfigReferenceError reports a configuration directive naming an unknown
// layout module, template, library, vendor or static reference.
type ConfigReferenceError struct {
	Owner     string // module or layout module carrying the directive
	Directive string
	Name      string
}

func (e *ConfigReferenceError) Error() string {
	return fmt.Sprintf("%s: %s refers to unknown name %q", e.Owner, e.Directive, e.Name)
}

// DuplicateNameError reports two records of one kind deriving the same name.
type DuplicateNameError struct {
	Kind  model.Kind
	Name  string
	Paths []string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate %s name %q: %s", e.Kind, e.Name, strings.Join(e.Paths, ", "))
}

// CycleError reports a component or layout module reaching itself.
type CycleError struct {
	Kind  string // "component" or "layout module"
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s cycle detected: %s", e.Kind, strings.Join(e.Cycle, " -> "))
}
