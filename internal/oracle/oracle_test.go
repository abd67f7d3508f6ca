package oracle

import (
	"context"
	"testing"

	"specforge/internal/pattern"
)

func TestHashOracle_Deterministic(t *testing.T) {
	o := HashOracle{}
	a, err := o.Embed(context.Background(), "guarded state transition")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, _ := o.Embed(context.Background(), "  Guarded State Transition ")

	if pattern.Cosine(a, b) < 0.999 {
		t.Error("normalized-identical texts should embed identically")
	}
	if len(a) != 32 {
		t.Errorf("expected 32 dimensions, got %d", len(a))
	}
}

func TestHashOracle_DistinctTextsDiffer(t *testing.T) {
	o := HashOracle{}
	a, _ := o.Embed(context.Background(), "approve a pending record")
	b, _ := o.Embed(context.Background(), "soft delete with audit trail")
	if pattern.Cosine(a, b) > 0.99 {
		t.Error("unrelated texts should not embed identically")
	}
}

func TestNewGemini_EmptyKeyReturnsNil(t *testing.T) {
	o, err := NewGemini(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o != nil {
		t.Error("empty API key should yield a nil oracle")
	}
}
