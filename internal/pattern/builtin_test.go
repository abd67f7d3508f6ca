package pattern

import (
	"testing"

	"specforge/internal/entity"
	"specforge/internal/typecatalog"
)

func TestBuiltinSignaturesMatchRealActions(t *testing.T) {
	doc := `
entity: Order
fields:
  state: enum(open, shipped)
actions:
  - name: ship
    steps:
      - validate: "state == 'open'"
      - update:
          state: "'shipped'"
`
	e, err := entity.Parse(doc, typecatalog.New())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sig := Signature(e.Actions[0])
	patterns, _ := BuiltinPatterns()
	found := false
	for _, p := range patterns {
		if p.Signature == sig {
			found = true
			if p.Name != "state_transition" {
				t.Errorf("expected state_transition, matched %s", p.Name)
			}
		}
	}
	if !found {
		t.Fatalf("no builtin pattern matches signature %q", sig)
	}
}

func TestBuiltinPatternsReturnsCopies(t *testing.T) {
	first, firstImpls := BuiltinPatterns()
	first[0].Name = "mutated"
	firstImpls[0].Template = "mutated"

	second, secondImpls := BuiltinPatterns()
	if second[0].Name == "mutated" {
		t.Error("pattern copies share memory with the builtin table")
	}
	if secondImpls[0].Template == "mutated" {
		t.Error("implementation copies share memory with the builtin table")
	}
}

func TestEveryBuiltinPatternHasAnImplementation(t *testing.T) {
	patterns, impls := BuiltinPatterns()
	byPattern := make(map[string]int)
	for _, impl := range impls {
		byPattern[impl.PatternName]++
	}
	for _, p := range patterns {
		if byPattern[p.Name] == 0 {
			t.Errorf("builtin pattern %q ships no implementation", p.Name)
		}
	}
}
