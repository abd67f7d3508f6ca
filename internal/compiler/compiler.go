// Package compiler drives the full pipeline: parse entity documents,
// compile their embedded expressions, match actions against the pattern
// catalog, and render per-language artifacts. Batch runs produce one
// result per document; a failing document never aborts its siblings.
package compiler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"specforge/internal/entity"
	"specforge/internal/expr"
	"specforge/internal/pattern"
	"specforge/internal/render"
	"specforge/internal/store"
	"specforge/internal/typecatalog"
)

// Document is one named DSL source, typically a file path and its text.
type Document struct {
	Name string
	Text string
}

// Artifact is one rendered output for one (entity or action, language)
// pair. Err records a per-pair failure without touching sibling pairs.
type Artifact struct {
	Language string
	Kind     string // "entity" or "action"
	Name     string
	Text     string
	Err      error
}

// DocumentResult is the full outcome for one input document.
type DocumentResult struct {
	Source string
	Entity *entity.Entity
	// Err is the parse or validation failure; when set, nothing else is
	// populated.
	Err       error
	Matches   map[string]pattern.MatchResult
	Artifacts []Artifact
}

// BatchResult aggregates a compile run.
type BatchResult struct {
	Documents []*DocumentResult
	// Cycles lists reference cycles between the batch's entities. Cycles
	// are accepted topology; these are informational.
	Cycles    []entity.CycleDiagnostic
	Discovery []pattern.DiscoveryResult
}

// Options tunes one compile run.
type Options struct {
	// Languages selects the render targets. Empty means parse and match
	// only.
	Languages []string
	// Discover records pattern suggestions for unmatched actions.
	Discover bool
}

// Compiler wires the catalog, pattern store, matcher and renderer into
// one pipeline. Safe for concurrent use.
type Compiler struct {
	catalog  *typecatalog.Catalog
	store    store.Store
	matcher  *pattern.Matcher
	renderer *render.Renderer
	disc     *pattern.Discoverer
}

// New builds a compiler. st may be nil for parse/render-only use; oracle
// may be nil for structural-only matching.
func New(catalog *typecatalog.Catalog, st store.Store, oracle pattern.Oracle, cfg pattern.Config) *Compiler {
	matcher := pattern.NewMatcher(oracle, cfg)
	c := &Compiler{
		catalog: catalog,
		store:   st,
		matcher: matcher,
	}
	var impls render.ImplementationSource
	if st != nil {
		impls = st
		c.disc = pattern.NewDiscoverer(matcher, st, cfg, nil)
	}
	c.renderer = render.New(catalog, impls, nil)
	return c
}

// Compile runs the pipeline over a batch of documents. Documents are
// processed concurrently; each result stands alone.
func (c *Compiler) Compile(ctx context.Context, docs []Document, opts Options) (*BatchResult, error) {
	candidates, err := c.candidates(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*DocumentResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			results[i] = c.compileOne(gctx, doc, candidates, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &BatchResult{Documents: results}

	var parsed []*entity.Entity
	for _, r := range results {
		if r.Err == nil && r.Entity != nil {
			parsed = append(parsed, r.Entity)
		}
	}
	batch.Cycles = entity.DetectCycles(parsed)

	if opts.Discover && c.disc != nil {
		batch.Discovery = c.disc.Run(ctx, parsed, candidates)
	}
	return batch, nil
}

// Validate parses every document and compiles every embedded expression
// without rendering anything. One result per document.
func (c *Compiler) Validate(ctx context.Context, docs []Document) *BatchResult {
	results := make([]*DocumentResult, len(docs))
	for i, doc := range docs {
		r := &DocumentResult{Source: doc.Name}
		e, err := entity.Parse(doc.Text, c.catalog)
		if err != nil {
			r.Err = err
		} else {
			r.Entity = e
			r.Err = c.checkExpressions(e)
		}
		results[i] = r
	}

	var parsed []*entity.Entity
	for _, r := range results {
		if r.Err == nil && r.Entity != nil {
			parsed = append(parsed, r.Entity)
		}
	}
	return &BatchResult{Documents: results, Cycles: entity.DetectCycles(parsed)}
}

func (c *Compiler) candidates(ctx context.Context) ([]*pattern.Pattern, error) {
	if c.store == nil {
		return nil, nil
	}
	candidates, err := c.store.ListPatterns(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern catalog: %w", err)
	}
	return candidates, nil
}

func (c *Compiler) compileOne(ctx context.Context, doc Document, candidates []*pattern.Pattern, opts Options) *DocumentResult {
	r := &DocumentResult{Source: doc.Name}

	e, err := entity.Parse(doc.Text, c.catalog)
	if err != nil {
		r.Err = err
		return r
	}
	r.Entity = e

	if err := c.checkExpressions(e); err != nil {
		r.Err = err
		return r
	}

	r.Matches = make(map[string]pattern.MatchResult, len(e.Actions))
	for _, a := range e.Actions {
		r.Matches[a.Name] = c.matcher.Match(ctx, e, a, candidates)
	}

	for _, lang := range opts.Languages {
		text, err := c.renderer.RenderEntity(e, lang)
		r.Artifacts = append(r.Artifacts, Artifact{
			Language: lang, Kind: "entity", Name: e.Name, Text: text, Err: err,
		})
		for _, a := range e.Actions {
			text, err := c.renderer.RenderAction(ctx, e, a, lang, r.Matches[a.Name])
			r.Artifacts = append(r.Artifacts, Artifact{
				Language: lang, Kind: "action", Name: e.Name + "." + a.Name, Text: text, Err: err,
			})
		}
	}
	return r
}

// checkExpressions compiles every expression embedded in the entity: field
// defaults, validate and conditional expressions, and assignment values.
func (c *Compiler) checkExpressions(e *entity.Entity) error {
	scope := expr.MapScope(e.Scope())

	for _, name := range e.FieldOrder {
		f := e.Fields[name]
		if f.Default == "" {
			continue
		}
		if _, err := expr.Compile(f.Default, scope); err != nil {
			return fmt.Errorf("field %q default: %w", name, err)
		}
	}

	for _, a := range e.Actions {
		var failed error
		a.Walk(func(s *entity.ActionStep) {
			if failed != nil {
				return
			}
			if s.Condition != "" {
				if _, err := expr.Compile(s.Condition, scope); err != nil {
					failed = fmt.Errorf("action %q: %w", a.Name, err)
					return
				}
			}
			for _, field := range s.AssignOrder {
				if _, err := expr.Compile(s.Assignments[field], scope); err != nil {
					failed = fmt.Errorf("action %q assigns %q: %w", a.Name, field, err)
					return
				}
			}
		})
		if failed != nil {
			return failed
		}
	}
	return nil
}

// Errs collects every failure in the batch: document-level errors first,
// then per-artifact errors. An empty slice means a fully clean run.
func (b *BatchResult) Errs() []error {
	var errs []error
	for _, r := range b.Documents {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Source, r.Err))
			continue
		}
		for _, a := range r.Artifacts {
			if a.Err != nil {
				errs = append(errs, fmt.Errorf("%s (%s/%s): %w", r.Source, a.Name, a.Language, a.Err))
			}
		}
	}
	return errs
}
