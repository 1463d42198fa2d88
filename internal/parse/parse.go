// Package parse extracts file references from scripts and styles using
// tree-sitter, and component expressions from markup.
package parse

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/sitebuild/internal/lang"
	"github.com/phobologic/sitebuild/internal/model"
)

// DefaultCacheSize is the number of parsed specifier lists an Extractor keeps.
const DefaultCacheSize = 1024

// ExtractSpecifiers parses source and returns the specifiers it references,
// in source order. The parser must be created for the correct language.
func ExtractSpecifiers(l *lang.Language, parser *sitter.Parser, query *sitter.Query, source []byte) []string {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var specs []string

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		for _, c := range match.Captures {
			if query.CaptureNameForId(c.Index) != lang.ReferenceCapture {
				continue
			}
			if spec := lang.Unquote(lang.NodeText(c.Node, source)); spec != "" {
				specs = append(specs, spec)
			}
		}
	}

	if l.Supplement != nil {
		specs = append(specs, l.Supplement(source)...)
	}
	return specs
}

// Extractor lists the files a script or style references. It is safe for
// concurrent use; parsed specifiers are cached by language and content.
type Extractor struct {
	cache *lru.Cache[string, []string]

	mu      sync.Mutex
	parsers map[string]*sync.Pool
}

// NewExtractor returns an Extractor caching up to size results.
func NewExtractor(size int) (*Extractor, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("creating reference cache: %w", err)
	}
	return &Extractor{cache: cache, parsers: make(map[string]*sync.Pool)}, nil
}

// Reference is a file specifier as written and the path it resolves to.
type Reference struct {
	Specifier string
	Path      string
}

// ListReferencedPaths returns the absolute paths a's content references.
// Bare specifiers (packages, URLs) are not file references and are omitted.
// Files of unsupported languages reference nothing.
func (e *Extractor) ListReferencedPaths(a *model.Asset) ([]string, error) {
	refs, err := e.ListReferences(a)
	if err != nil {
		return nil, err
	}
	var paths []string
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		if _, dup := seen[r.Path]; dup {
			continue
		}
		seen[r.Path] = struct{}{}
		paths = append(paths, r.Path)
	}
	return paths, nil
}

// ListReferences returns each distinct file specifier in a's content with
// its resolved path, in source order.
func (e *Extractor) ListReferences(a *model.Asset) ([]Reference, error) {
	l := lang.ForPath(a.Path)
	if l == nil {
		return nil, nil
	}

	specs, err := e.specifiers(l, a.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Path, err)
	}

	// Resolution looks at the disk, so it is never cached.
	var refs []Reference
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if _, dup := seen[spec]; dup {
			continue
		}
		seen[spec] = struct{}{}
		if p, ok := ResolveSpecifier(a.Path, spec, l.Group); ok {
			refs = append(refs, Reference{Specifier: spec, Path: p})
		}
	}
	return refs, nil
}

// specifiers returns the specifiers in content, parsing only on a cache miss.
func (e *Extractor) specifiers(l *lang.Language, content []byte) ([]string, error) {
	key := cacheKey(l.Name, content)
	if specs, ok := e.cache.Get(key); ok {
		return specs, nil
	}

	query, err := l.GetReferenceQuery()
	if err != nil {
		return nil, err
	}

	pool := e.pool(l)
	parser := pool.Get().(*sitter.Parser)
	specs := ExtractSpecifiers(l, parser, query, content)
	pool.Put(parser)

	e.cache.Add(key, specs)
	return specs, nil
}

// Each goroutine must use its own parser, so parsers are pooled per language.
func (e *Extractor) pool(l *lang.Language) *sync.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.parsers[l.Name]
	if !ok {
		p = &sync.Pool{New: func() any { return l.NewParser() }}
		e.parsers[l.Name] = p
	}
	return p
}

func cacheKey(language string, content []byte) string {
	sum := sha256.Sum256(content)
	return language + "@" + hex.EncodeToString(sum[:])
}
