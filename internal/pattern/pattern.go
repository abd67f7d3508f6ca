// Package pattern implements the business-logic pattern catalog: structural
// signatures, semantic matching against catalog patterns, discovery of new
// pattern candidates, and the suggestion review state machine.
package pattern

import (
	"fmt"
	"time"
)

// Pattern is one catalogued, reusable business-logic shape.
type Pattern struct {
	Name        string  `json:"name" db:"name"`
	Category    string  `json:"category" db:"category"`
	Description string  `json:"description" db:"description"`
	Signature   string  `json:"signature" db:"signature"`
	Complexity  int     `json:"complexity" db:"complexity"`
	// Embedding caches the description vector so matching does not re-embed
	// catalog entries on every call. Empty means "embed on demand".
	Embedding []float32 `json:"-" db:"-"`
}

// Implementation binds a pattern to one target language. Unique per
// (pattern, language).
type Implementation struct {
	PatternName string `json:"pattern_name" db:"pattern_name"`
	Language    string `json:"language" db:"language"`
	Template    string `json:"template" db:"template"`
	Supported   bool   `json:"supported" db:"supported"`
	Notes       string `json:"notes" db:"notes"`
}

// SuggestionStatus is the review state of a discovered pattern candidate.
// pending is the only non-terminal state; both transitions are
// one-directional.
type SuggestionStatus string

const (
	StatusPending  SuggestionStatus = "pending"
	StatusApproved SuggestionStatus = "approved"
	StatusRejected SuggestionStatus = "rejected"
)

// Suggestion is a discovered pattern candidate awaiting human review.
type Suggestion struct {
	ID            string           `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	Category      string           `json:"category" db:"category"`
	Description   string           `json:"description" db:"description"`
	Signature     string           `json:"signature" db:"signature"`
	SignatureHash string           `json:"signature_hash" db:"signature_hash"`
	Complexity    int              `json:"complexity" db:"complexity"`
	StepCount     int              `json:"step_count" db:"step_count"`
	BestScore     float64          `json:"best_score" db:"best_score"`
	SourceEntity  string           `json:"source_entity" db:"source_entity"`
	SourceAction  string           `json:"source_action" db:"source_action"`
	Language      string           `json:"language" db:"language"`
	Template      string           `json:"template" db:"template"`
	Status        SuggestionStatus `json:"status" db:"status"`
	Reason        string           `json:"reason" db:"reason"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// Promote builds the catalog entries an approved suggestion turns into: the
// pattern itself plus exactly one implementation for the language the
// suggestion was authored against.
func (s *Suggestion) Promote() (*Pattern, *Implementation) {
	p := &Pattern{
		Name:        s.Name,
		Category:    s.Category,
		Description: s.Description,
		Signature:   s.Signature,
		Complexity:  s.Complexity,
	}
	impl := &Implementation{
		PatternName: s.Name,
		Language:    s.Language,
		Template:    s.Template,
		Supported:   true,
		Notes:       fmt.Sprintf("promoted from suggestion %s", s.ID),
	}
	return p, impl
}

// StaleSuggestionError reports a review transition attempted on a suggestion
// that already left the pending state. The first reviewer's decision stands.
type StaleSuggestionError struct {
	ID     string
	Status SuggestionStatus
}

func (e *StaleSuggestionError) Error() string {
	return fmt.Sprintf("suggestion %s is already %s", e.ID, e.Status)
}

// UnsupportedLanguageForPatternError reports a render request for a
// (pattern, language) pair with no implementation. Callers may catch this
// and fall back to direct AST rendering; the gap is never papered over here.
type UnsupportedLanguageForPatternError struct {
	Pattern  string
	Language string
}

func (e *UnsupportedLanguageForPatternError) Error() string {
	return fmt.Sprintf("pattern %q has no implementation for language %q", e.Pattern, e.Language)
}
