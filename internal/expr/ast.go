// Package expr compiles business-rule expression strings into a small
// target-neutral AST.
//
// The grammar covers field references (dotted paths), comparison operators,
// membership tests (IN [...]), named pattern tests (MATCHES name), boolean
// combinators (AND, OR, NOT) and literals. The AST embeds no target syntax;
// per-language serialization is the renderer's job, which is what lets one
// compiled expression back many targets.
package expr

import "fmt"

// Op is a binary or unary operator.
type Op string

const (
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpAnd Op = "AND"
	OpOr  Op = "OR"
	OpNot Op = "NOT"
)

// LiteralKind discriminates literal values.
type LiteralKind int

const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBool
	LiteralNull
)

func (k LiteralKind) String() string {
	switch k {
	case LiteralNumber:
		return "number"
	case LiteralString:
		return "string"
	case LiteralBool:
		return "boolean"
	case LiteralNull:
		return "null"
	default:
		return "unknown"
	}
}

// Node is one node of the expression AST.
type Node interface {
	// exprNode restricts implementations to this package.
	exprNode()
}

// Literal is a constant value. Value holds the source text with quotes
// stripped; escape sequences in quoted text are preserved verbatim.
type Literal struct {
	Kind  LiteralKind
	Value string
	Line  int
	Col   int
}

// FieldRef is a dotted field reference resolved against the enclosing scope.
// TypeName records the declared type of the resolved field.
type FieldRef struct {
	Path     string
	TypeName string
	Line     int
	Col      int
}

// BinaryOp applies a comparison or boolean combinator to two operands.
type BinaryOp struct {
	Op    Op
	Left  Node
	Right Node
}

// UnaryOp applies NOT to one operand.
type UnaryOp struct {
	Op      Op
	Operand Node
}

// MembershipTest is `operand IN [v1, v2, ...]`.
type MembershipTest struct {
	Operand Node
	Values  []*Literal
}

// NamedPatternTest is `operand MATCHES pattern-name`. The pattern name
// refers to a validation pattern registered in the type catalog mapping for
// the target language; the compiler only records the name.
type NamedPatternTest struct {
	Operand Node
	Pattern string
}

func (*Literal) exprNode()          {}
func (*FieldRef) exprNode()         {}
func (*BinaryOp) exprNode()         {}
func (*UnaryOp) exprNode()          {}
func (*MembershipTest) exprNode()   {}
func (*NamedPatternTest) exprNode() {}

// FieldScope resolves dotted field paths for compilation. The enclosing
// entity's fields plus any action-scoped names (input.*, old.*) back it.
type FieldScope interface {
	// ResolveField returns the declared type name for a dotted path and
	// whether the path is known.
	ResolveField(path string) (typeName string, ok bool)
}

// MapScope is a FieldScope over a plain map, used by tests and by callers
// that assemble scopes by hand.
type MapScope map[string]string

func (m MapScope) ResolveField(path string) (string, bool) {
	t, ok := m[path]
	return t, ok
}

// UnknownFieldError reports a field reference that did not resolve in the
// compilation scope.
type UnknownFieldError struct {
	Name string
	Line int
	Col  int
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q at line %d, column %d", e.Name, e.Line, e.Col)
}

// TypeMismatchError reports a comparison between operands whose inferred
// types are incompatible. No implicit coercion is performed.
type TypeMismatchError struct {
	Op    Op
	Left  string
	Right string
	Line  int
	Col   int
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch at line %d, column %d: cannot apply %s to %s and %s",
		e.Line, e.Col, e.Op, e.Left, e.Right)
}
