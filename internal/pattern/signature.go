package pattern

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"specforge/internal/entity"
)

// Signature computes the normalized structural signature of an action: the
// step-type sequence with branching shape and per-step operand arity,
// independent of literal names. Two differently-named but structurally
// identical actions produce the same signature.
func Signature(a *entity.Action) string {
	return signatureOf(a.Steps)
}

func signatureOf(steps []*entity.ActionStep) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		switch s.Type {
		case entity.StepConditional:
			token := fmt.Sprintf("if/1{%s", signatureOf(s.Then))
			if len(s.Else) > 0 {
				token += "|" + signatureOf(s.Else)
			}
			parts = append(parts, token+"}")
		case entity.StepUpdate, entity.StepInsert:
			parts = append(parts, fmt.Sprintf("%s/%d", s.Type, len(s.AssignOrder)))
		case entity.StepValidate:
			parts = append(parts, "validate/1")
		default:
			parts = append(parts, s.Type.String()+"/0")
		}
	}
	return strings.Join(parts, ";")
}

// SignatureHash returns the dedupe key for a signature: a sha256 hex digest.
func SignatureHash(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])
}

// Complexity scores an action as total steps times (1 + branch depth).
func Complexity(a *entity.Action) int {
	return a.StepCount() * (1 + a.BranchDepth())
}

// Bindings derives the slot-name to operand mapping for a structurally
// matched action. Operands are enumerated positionally, depth-first, so a
// pattern template authored against the shared signature addresses the same
// slots for every matching action.
func Bindings(e *entity.Entity, a *entity.Action) map[string]string {
	b := map[string]string{
		"entity": e.Name,
		"action": a.Name,
	}
	i := 0
	a.Walk(func(s *entity.ActionStep) {
		for _, operand := range stepOperands(s) {
			b[fmt.Sprintf("op%d", i)] = operand
			i++
		}
	})
	return b
}

func stepOperands(s *entity.ActionStep) []string {
	switch s.Type {
	case entity.StepValidate, entity.StepConditional:
		return []string{s.Condition}
	case entity.StepUpdate:
		return assignmentOperands(s)
	case entity.StepInsert:
		return append([]string{s.Target}, assignmentOperands(s)...)
	case entity.StepLog:
		return []string{s.Message}
	case entity.StepCall:
		return []string{s.Target}
	}
	return nil
}

func assignmentOperands(s *entity.ActionStep) []string {
	out := make([]string, 0, len(s.AssignOrder))
	for _, field := range s.AssignOrder {
		out = append(out, fmt.Sprintf("%s = %s", field, s.Assignments[field]))
	}
	return out
}

// SynthesizeDescription builds a matching description for actions that carry
// no free text, from the step shapes and the fields they touch.
func SynthesizeDescription(e *entity.Entity, a *entity.Action) string {
	if a.Description != "" {
		return a.Description
	}

	verbs := make([]string, 0)
	fields := make(map[string]bool)
	a.Walk(func(s *entity.ActionStep) {
		verbs = append(verbs, s.Type.String())
		for _, f := range s.AssignOrder {
			fields[f] = true
		}
	})

	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	desc := fmt.Sprintf("%s %s: %s", e.Name, a.Name, strings.Join(verbs, " "))
	if len(names) > 0 {
		desc += " on " + strings.Join(names, ", ")
	}
	return desc
}
