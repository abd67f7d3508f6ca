// Package store persists the pattern catalog and the suggestion review
// queue. Two implementations ship: PostgresStore for production and
// MemoryStore for tests and offline runs. Both enforce the same uniqueness
// invariants: pattern names are unique, implementations are unique per
// (pattern, language), and suggestions deduplicate by signature hash.
package store

import (
	"context"
	"errors"

	"specforge/internal/pattern"
)

// ErrNotFound is returned for lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Catalog is the pattern-catalog side of the store.
type Catalog interface {
	InsertPattern(ctx context.Context, p *pattern.Pattern) error
	GetPattern(ctx context.Context, name string) (*pattern.Pattern, error)
	// ListPatterns returns all patterns, optionally filtered by category
	// (empty means all).
	ListPatterns(ctx context.Context, category string) ([]*pattern.Pattern, error)
	UpsertImplementation(ctx context.Context, impl *pattern.Implementation) error
	// GetImplementation returns ErrNotFound when the (pattern, language)
	// pair has no binding.
	GetImplementation(ctx context.Context, patternName, language string) (*pattern.Implementation, error)
}

// Suggestions is the review-queue side of the store. Approve and Reject are
// compare-and-set transitions from pending; a suggestion that already left
// pending yields pattern.StaleSuggestionError.
type Suggestions interface {
	pattern.SuggestionSink
	GetSuggestion(ctx context.Context, id string) (*pattern.Suggestion, error)
	ListPending(ctx context.Context, limit int) ([]*pattern.Suggestion, error)
	CountsByStatus(ctx context.Context) (map[pattern.SuggestionStatus]int, error)
	// Approve transitions pending -> approved and promotes the generated
	// pattern and its single implementation into the catalog.
	Approve(ctx context.Context, id string) (*pattern.Pattern, error)
	// Reject transitions pending -> rejected. reason is mandatory.
	Reject(ctx context.Context, id, reason string) error
}

// Store combines both sides; Approve needs them in one transaction.
type Store interface {
	Catalog
	Suggestions
}
