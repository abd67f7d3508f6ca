package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"specforge/internal/pattern"
)

func pendingSuggestion(id, hash string) *pattern.Suggestion {
	return &pattern.Suggestion{
		ID:            id,
		Name:          "claim_settle",
		Category:      "discovered",
		Signature:     "validate/1;update/1",
		SignatureHash: hash,
		Language:      "postgres",
		Template:      "-- {{.op0}}",
		Status:        pattern.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestMemory_InsertIfAbsentDedupes(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	inserted, err := s.InsertIfAbsent(ctx, pendingSuggestion("id-1", "hash-a"))
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	inserted, err = s.InsertIfAbsent(ctx, pendingSuggestion("id-2", "hash-a"))
	if err != nil {
		t.Fatalf("second insert errored: %v", err)
	}
	if inserted {
		t.Error("same signature hash must not insert twice")
	}

	counts, _ := s.CountsByStatus(ctx)
	if counts[pattern.StatusPending] != 1 {
		t.Errorf("expected 1 pending, got %d", counts[pattern.StatusPending])
	}
}

func TestMemory_ApprovePromotesIntoCatalog(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	if _, err := s.InsertIfAbsent(ctx, pendingSuggestion("id-1", "hash-a")); err != nil {
		t.Fatal(err)
	}

	p, err := s.Approve(ctx, "id-1")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if p.Name != "claim_settle" {
		t.Errorf("promoted pattern name = %q", p.Name)
	}

	got, err := s.GetPattern(ctx, "claim_settle")
	if err != nil {
		t.Fatalf("promoted pattern not in catalog: %v", err)
	}
	if got.Signature != "validate/1;update/1" {
		t.Errorf("promoted signature = %q", got.Signature)
	}

	impl, err := s.GetImplementation(ctx, "claim_settle", "postgres")
	if err != nil {
		t.Fatalf("promoted implementation missing: %v", err)
	}
	if !impl.Supported {
		t.Error("promoted implementation should be supported")
	}

	// Only the authored language is bound.
	if _, err := s.GetImplementation(ctx, "claim_settle", "typescript"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unbound language, got %v", err)
	}
}

func TestMemory_TransitionsAreTerminal(t *testing.T) {
	ctx := context.Background()

	s := NewMemory()
	_, _ = s.InsertIfAbsent(ctx, pendingSuggestion("id-1", "hash-a"))
	if _, err := s.Approve(ctx, "id-1"); err != nil {
		t.Fatal(err)
	}
	var stale *pattern.StaleSuggestionError
	if _, err := s.Approve(ctx, "id-1"); !errors.As(err, &stale) {
		t.Errorf("second approve should be stale, got %v", err)
	}
	if err := s.Reject(ctx, "id-1", "changed my mind"); !errors.As(err, &stale) {
		t.Errorf("reject after approve should be stale, got %v", err)
	}

	s = NewMemory()
	_, _ = s.InsertIfAbsent(ctx, pendingSuggestion("id-2", "hash-b"))
	if err := s.Reject(ctx, "id-2", "not reusable"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Approve(ctx, "id-2"); !errors.As(err, &stale) {
		t.Errorf("approve after reject should be stale, got %v", err)
	}

	sg, _ := s.GetSuggestion(ctx, "id-2")
	if sg.Status != pattern.StatusRejected || sg.Reason != "not reusable" {
		t.Errorf("rejection not recorded: %+v", sg)
	}
}

func TestMemory_RejectRequiresReason(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_, _ = s.InsertIfAbsent(ctx, pendingSuggestion("id-1", "hash-a"))
	if err := s.Reject(ctx, "id-1", ""); err == nil {
		t.Error("empty rejection reason must be refused")
	}
}

func TestMemory_ConcurrentReviewersSingleWinner(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_, _ = s.InsertIfAbsent(ctx, pendingSuggestion("id-1", "hash-a"))

	const reviewers = 8
	var wg sync.WaitGroup
	errs := make([]error, reviewers)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = s.Approve(ctx, "id-1")
			} else {
				errs[i] = s.Reject(ctx, "id-1", "race loser")
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var stale *pattern.StaleSuggestionError
		if !errors.As(err, &stale) {
			t.Errorf("loser should fail with StaleSuggestionError, got %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("exactly one reviewer must win, got %d", winners)
	}
}

func TestMemory_ListPendingOrderedAndLimited(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	old := pendingSuggestion("id-1", "hash-a")
	old.CreatedAt = time.Now().Add(-time.Hour)
	_, _ = s.InsertIfAbsent(ctx, old)
	_, _ = s.InsertIfAbsent(ctx, pendingSuggestion("id-2", "hash-b"))

	pending, err := s.ListPending(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "id-1" {
		t.Errorf("expected oldest pending first, got %+v", pending)
	}
}
