package pattern

import (
	"context"
	"log"
	"math"
	"time"

	"specforge/internal/entity"
)

// Oracle turns free text into a fixed-dimension vector. The matcher only
// needs cosine similarity over these vectors and is agnostic to how they
// were produced; tests substitute a deterministic stub.
type Oracle interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// degenerate or the dimensions disagree.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Config carries the matching and discovery policy constants. The exact
// thresholds are product tuning, never hard-coded at call sites.
type Config struct {
	// MinSimilarity is the discovery trigger floor: a best score below it
	// marks the action as novel.
	MinSimilarity float64
	// SuggestFloor/SuggestCeil bound the band in which a semantic hit is
	// reported as a candidate for human review.
	SuggestFloor float64
	SuggestCeil  float64
	// StepCeiling triggers discovery for actions with more steps.
	StepCeiling int
	// ComplexityCeiling triggers discovery above steps x branch depth.
	ComplexityCeiling int
	// OracleTimeout bounds every similarity-oracle call.
	OracleTimeout time.Duration
}

// DefaultConfig returns the observed policy constants.
func DefaultConfig() Config {
	return Config{
		MinSimilarity:     0.7,
		SuggestFloor:      0.5,
		SuggestCeil:       0.9,
		StepCeiling:       10,
		ComplexityCeiling: 24,
		OracleTimeout:     5 * time.Second,
	}
}

// MatchKind discriminates the matcher outcome.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchDirect
	MatchSuggested
)

func (k MatchKind) String() string {
	switch k {
	case MatchDirect:
		return "direct"
	case MatchSuggested:
		return "suggested"
	default:
		return "none"
	}
}

// MatchResult is the outcome of matching one action against the catalog.
type MatchResult struct {
	Kind    MatchKind
	Pattern *Pattern
	// Bindings is populated for direct matches only.
	Bindings map[string]string
	// Score is the best semantic similarity seen; 0 when matching was
	// structural-only.
	Score float64
}

// Matcher ranks actions against catalog patterns.
type Matcher struct {
	oracle Oracle
	cfg    Config
}

// NewMatcher builds a matcher. oracle may be nil, in which case matching is
// structural-only.
func NewMatcher(oracle Oracle, cfg Config) *Matcher {
	return &Matcher{oracle: oracle, cfg: cfg}
}

// Match computes the action's structural signature, looks for an exact
// structural twin among candidates, and otherwise ranks candidates by
// semantic similarity of descriptions. Oracle failures and timeouts degrade
// to structural-only: Match never fails because the oracle did.
func (m *Matcher) Match(ctx context.Context, e *entity.Entity, a *entity.Action, candidates []*Pattern) MatchResult {
	sig := Signature(a)
	for _, c := range candidates {
		if c.Signature == sig {
			return MatchResult{
				Kind:     MatchDirect,
				Pattern:  c,
				Bindings: Bindings(e, a),
			}
		}
	}

	best, score := m.rankSemantic(ctx, e, a, candidates)
	if best != nil && score >= m.cfg.SuggestFloor {
		reported := score
		if reported >= m.cfg.SuggestCeil {
			// A near-identical description with a different structure still
			// needs a reviewer; clamp into the reportable band.
			reported = math.Nextafter(m.cfg.SuggestCeil, 0)
		}
		return MatchResult{Kind: MatchSuggested, Pattern: best, Score: reported}
	}
	return MatchResult{Kind: MatchNone, Score: score}
}

// rankSemantic returns the best-scoring candidate by description cosine
// similarity, or (nil, 0) when the oracle is unavailable or errors out.
func (m *Matcher) rankSemantic(ctx context.Context, e *entity.Entity, a *entity.Action, candidates []*Pattern) (*Pattern, float64) {
	if m.oracle == nil || len(candidates) == 0 {
		return nil, 0
	}

	octx, cancel := context.WithTimeout(ctx, m.cfg.OracleTimeout)
	defer cancel()

	query, err := m.oracle.Embed(octx, SynthesizeDescription(e, a))
	if err != nil {
		log.Printf("similarity oracle unavailable, structural matching only: %v", err)
		return nil, 0
	}

	var best *Pattern
	bestScore := 0.0
	for _, c := range candidates {
		// Candidates may be matched concurrently; never write back to the
		// shared catalog entry here.
		vec := c.Embedding
		if len(vec) == 0 {
			vec, err = m.oracle.Embed(octx, c.Description)
			if err != nil {
				log.Printf("similarity oracle failed on pattern %q, skipping: %v", c.Name, err)
				continue
			}
		}
		if s := Cosine(query, vec); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}
