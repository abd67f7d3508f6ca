package pattern

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"specforge/internal/entity"
)

// SuggestionSink is the slice of suggestion storage discovery needs.
// InsertIfAbsent deduplicates by signature hash: re-running discovery over
// an unchanged action set creates no duplicates.
type SuggestionSink interface {
	InsertIfAbsent(ctx context.Context, s *Suggestion) (inserted bool, err error)
}

// Authoring produces the initial implementation a suggestion is authored
// against: a target language plus a template body. Discovery uses it so an
// approved suggestion promotes with a working implementation.
type Authoring func(e *entity.Entity, a *entity.Action) (language, template string, err error)

// Discoverer scans actions for pattern candidates.
type Discoverer struct {
	matcher *Matcher
	sink    SuggestionSink
	cfg     Config
	author  Authoring
}

// NewDiscoverer builds a discoverer. author may be nil; suggestions then
// carry a neutral slot-template derived from the action's operands.
func NewDiscoverer(matcher *Matcher, sink SuggestionSink, cfg Config, author Authoring) *Discoverer {
	return &Discoverer{matcher: matcher, sink: sink, cfg: cfg, author: author}
}

// DiscoveryResult reports one action's discovery outcome.
type DiscoveryResult struct {
	Entity    string
	Action    string
	Triggered bool
	Inserted  bool
	Reason    string
	Err       error
}

// Run examines every action of every entity independently and records at
// most one suggestion per triggering action. Actions are processed without
// a global lock; deduplication happens at insert time.
func (d *Discoverer) Run(ctx context.Context, entities []*entity.Entity, candidates []*Pattern) []DiscoveryResult {
	type job struct {
		e *entity.Entity
		a *entity.Action
	}
	var jobs []job
	for _, e := range entities {
		for _, a := range e.Actions {
			jobs = append(jobs, job{e: e, a: a})
		}
	}

	results := make([]DiscoveryResult, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			results[i] = d.runOne(ctx, j.e, j.a, candidates)
		}(i, j)
	}
	wg.Wait()
	return results
}

// runOne applies the trigger policy to a single action. One action's
// outcome never depends on another's.
func (d *Discoverer) runOne(ctx context.Context, e *entity.Entity, a *entity.Action, candidates []*Pattern) DiscoveryResult {
	res := DiscoveryResult{Entity: e.Name, Action: a.Name}

	match := d.matcher.Match(ctx, e, a, candidates)
	if match.Kind == MatchDirect {
		return res
	}

	steps := a.StepCount()
	complexity := Complexity(a)
	switch {
	case steps > d.cfg.StepCeiling:
		res.Reason = fmt.Sprintf("%d steps exceeds ceiling of %d", steps, d.cfg.StepCeiling)
	case match.Score < d.cfg.MinSimilarity:
		res.Reason = fmt.Sprintf("best similarity %.2f below %.2f", match.Score, d.cfg.MinSimilarity)
	case complexity > d.cfg.ComplexityCeiling:
		res.Reason = fmt.Sprintf("complexity %d exceeds ceiling of %d", complexity, d.cfg.ComplexityCeiling)
	default:
		return res
	}
	res.Triggered = true

	s, err := d.buildSuggestion(e, a, match.Score)
	if err != nil {
		res.Err = err
		return res
	}
	inserted, err := d.sink.InsertIfAbsent(ctx, s)
	if err != nil {
		res.Err = err
		return res
	}
	res.Inserted = inserted
	return res
}

func (d *Discoverer) buildSuggestion(e *entity.Entity, a *entity.Action, bestScore float64) (*Suggestion, error) {
	sig := Signature(a)
	s := &Suggestion{
		ID:            uuid.New().String(),
		Name:          fmt.Sprintf("%s_%s", strings.ToLower(e.Name), strings.ToLower(a.Name)),
		Category:      "discovered",
		Description:   SynthesizeDescription(e, a),
		Signature:     sig,
		SignatureHash: SignatureHash(sig),
		Complexity:    Complexity(a),
		StepCount:     a.StepCount(),
		BestScore:     bestScore,
		SourceEntity:  e.Name,
		SourceAction:  a.Name,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	if d.author != nil {
		lang, tmpl, err := d.author(e, a)
		if err != nil {
			return nil, fmt.Errorf("authoring implementation for %s.%s: %w", e.Name, a.Name, err)
		}
		s.Language = lang
		s.Template = tmpl
		return s, nil
	}

	s.Language = "postgres"
	s.Template = neutralTemplate(e, a)
	return s, nil
}

// neutralTemplate emits one substitution slot per operand so a promoted
// pattern renders deterministically even before a human tunes the body.
func neutralTemplate(e *entity.Entity, a *entity.Action) string {
	var sb strings.Builder
	sb.WriteString("-- {{.entity}}.{{.action}}\n")
	n := len(Bindings(e, a)) - 2 // minus entity/action slots
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "-- {{.op%d}}\n", i)
	}
	return sb.String()
}
