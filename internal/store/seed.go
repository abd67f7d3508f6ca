package store

import (
	"context"
	"errors"
	"fmt"

	"specforge/internal/pattern"
)

// Seed loads the builtin pattern catalog. Patterns that already exist are
// left alone; implementations are upserted, so re-seeding is safe.
func Seed(ctx context.Context, c Catalog) error {
	patterns, impls := pattern.BuiltinPatterns()

	for _, p := range patterns {
		_, err := c.GetPattern(ctx, p.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to check pattern %q: %w", p.Name, err)
		}
		if err := c.InsertPattern(ctx, p); err != nil {
			return fmt.Errorf("failed to seed pattern %q: %w", p.Name, err)
		}
	}

	for _, impl := range impls {
		if err := c.UpsertImplementation(ctx, impl); err != nil {
			return fmt.Errorf("failed to seed implementation %s/%s: %w", impl.PatternName, impl.Language, err)
		}
	}
	return nil
}
