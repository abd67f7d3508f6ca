// Package entity defines the parsed entity AST and the DSL document parser.
//
// One DSL document declares one entity: its fields, its business actions and
// their steps. Parsing is pure; repeated calls with identical input produce
// structurally identical trees. Entity-to-entity references stay as names
// (never in-memory pointers) so mutually referencing entities are
// representable without ownership cycles.
package entity

import (
	"fmt"

	"specforge/internal/typecatalog"
)

// Entity is one parsed DSL document.
type Entity struct {
	Name        string
	Schema      string
	Description string
	// FieldOrder preserves declaration order; Fields indexes by name.
	FieldOrder []string
	Fields     map[string]*FieldDefinition
	Actions    []*Action
}

// FieldDefinition is one declared field.
type FieldDefinition struct {
	Name         string
	DeclaredType string
	Type         *typecatalog.TypeExpr
	Nullable     bool
	// Default holds the default-value expression text, if declared.
	Default string
}

// Action is one business operation on the entity.
type Action struct {
	Name        string
	Description string
	Steps       []*ActionStep
}

// StepType tags the ActionStep variants.
type StepType int

const (
	StepValidate StepType = iota
	StepInsert
	StepUpdate
	StepConditional
	StepLog
	StepCall
)

func (t StepType) String() string {
	switch t {
	case StepValidate:
		return "validate"
	case StepInsert:
		return "insert"
	case StepUpdate:
		return "update"
	case StepConditional:
		return "conditional"
	case StepLog:
		return "log"
	case StepCall:
		return "call"
	default:
		return "unknown"
	}
}

// ActionStep is a tagged variant. Conditional steps own their branches, so
// the structure is a strictly hierarchical tree; traversal is plain
// recursion with no cycle risk.
type ActionStep struct {
	Type StepType

	// Condition holds the expression text for validate and conditional
	// steps.
	Condition string

	// Target names the entity for insert steps and the operation for call
	// steps.
	Target string

	// Assignments maps field name to expression text for insert and update
	// steps, with AssignOrder preserving declaration order.
	AssignOrder []string
	Assignments map[string]string

	// Message is the log step payload.
	Message string

	Then []*ActionStep
	Else []*ActionStep
}

// RefTargets returns the names of entities referenced by ref() fields, in
// field declaration order.
func (e *Entity) RefTargets() []string {
	out := make([]string, 0)
	for _, name := range e.FieldOrder {
		f := e.Fields[name]
		if f.Type != nil && f.Type.Kind == typecatalog.KindRef {
			out = append(out, f.Type.Name)
		}
	}
	return out
}

// Scope builds the expression-compilation scope for actions on this entity:
// every field by its bare name plus input.- and old.-prefixed aliases for
// action payloads and prior state.
func (e *Entity) Scope() map[string]string {
	scope := make(map[string]string, len(e.Fields)*3)
	for name, f := range e.Fields {
		scope[name] = f.DeclaredType
		scope["input."+name] = f.DeclaredType
		scope["old."+name] = f.DeclaredType
	}
	return scope
}

// Action returns the named action, or nil.
func (e *Entity) Action(name string) *Action {
	for _, a := range e.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Walk visits every step of the action depth-first, branches after their
// owner.
func (a *Action) Walk(visit func(*ActionStep)) {
	var rec func(steps []*ActionStep)
	rec = func(steps []*ActionStep) {
		for _, s := range steps {
			visit(s)
			rec(s.Then)
			rec(s.Else)
		}
	}
	rec(a.Steps)
}

// StepCount returns the total number of steps including nested branches.
func (a *Action) StepCount() int {
	n := 0
	a.Walk(func(*ActionStep) { n++ })
	return n
}

// BranchDepth returns the maximum conditional nesting depth of the action.
func (a *Action) BranchDepth() int {
	var rec func(steps []*ActionStep) int
	rec = func(steps []*ActionStep) int {
		max := 0
		for _, s := range steps {
			if s.Type != StepConditional {
				continue
			}
			d := 1
			if t := rec(s.Then); t+1 > d {
				d = t + 1
			}
			if e := rec(s.Else); e+1 > d {
				d = e + 1
			}
			if d > max {
				max = d
			}
		}
		return max
	}
	return rec(a.Steps)
}

// StructuralError reports a malformed document shape with a locator.
type StructuralError struct {
	Line   int
	Column int
	Msg    string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// DuplicateFieldError reports a field name declared twice in one entity.
type DuplicateFieldError struct {
	Entity string
	Field  string
	Line   int
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate field %q in entity %q (line %d)", e.Field, e.Entity, e.Line)
}
