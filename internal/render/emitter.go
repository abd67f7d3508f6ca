package render

import (
	"fmt"
	"strings"

	"specforge/internal/expr"
	"specforge/internal/typecatalog"
)

// syntax holds the token-level differences between target languages. The
// expression AST carries no target syntax, so everything language-specific
// lives here.
type syntax struct {
	eq, neq   string
	and, or   string
	not       string
	trueLit   string
	falseLit  string
	nullLit   string
	quoteRune string
	// membership renders `operand IN [...]`. The shape differs per target:
	// SQL has IN, python has the in operator, but javascript's `in` tests
	// object keys, so typescript needs Array.includes.
	membership func(operand, values string) string
}

var syntaxes = map[string]syntax{
	"postgres": {
		eq: "=", neq: "<>", and: "AND", or: "OR", not: "NOT ",
		trueLit: "TRUE", falseLit: "FALSE", nullLit: "NULL", quoteRune: "'",
		membership: func(operand, values string) string {
			return fmt.Sprintf("%s IN (%s)", operand, values)
		},
	},
	"python": {
		eq: "==", neq: "!=", and: "and", or: "or", not: "not ",
		trueLit: "True", falseLit: "False", nullLit: "None", quoteRune: "\"",
		membership: func(operand, values string) string {
			return fmt.Sprintf("%s in [%s]", operand, values)
		},
	},
	"typescript": {
		eq: "===", neq: "!==", and: "&&", or: "||", not: "!",
		trueLit: "true", falseLit: "false", nullLit: "null", quoteRune: "\"",
		membership: func(operand, values string) string {
			return fmt.Sprintf("[%s].includes(%s)", values, operand)
		},
	},
}

// emitter serializes expression ASTs into one target language. Named
// pattern tests resolve through the type catalog's validation rules.
type emitter struct {
	lang    string
	syn     syntax
	catalog *typecatalog.Catalog
}

func newEmitter(lang string, catalog *typecatalog.Catalog) (*emitter, error) {
	syn, ok := syntaxes[lang]
	if !ok {
		return nil, fmt.Errorf("no expression emitter for language %q", lang)
	}
	return &emitter{lang: lang, syn: syn, catalog: catalog}, nil
}

func (em *emitter) emit(n expr.Node) (string, error) {
	switch node := n.(type) {
	case *expr.Literal:
		return em.literal(node), nil

	case *expr.FieldRef:
		return node.Path, nil

	case *expr.BinaryOp:
		left, err := em.emit(node.Left)
		if err != nil {
			return "", err
		}
		right, err := em.emit(node.Right)
		if err != nil {
			return "", err
		}
		op, err := em.operator(node.Op)
		if err != nil {
			return "", err
		}
		if node.Op == expr.OpAnd || node.Op == expr.OpOr {
			return fmt.Sprintf("(%s %s %s)", left, op, right), nil
		}
		return fmt.Sprintf("%s %s %s", left, op, right), nil

	case *expr.UnaryOp:
		operand, err := em.emit(node.Operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", em.syn.not, operand), nil

	case *expr.MembershipTest:
		operand, err := em.emit(node.Operand)
		if err != nil {
			return "", err
		}
		values := make([]string, len(node.Values))
		for i, v := range node.Values {
			values[i] = em.literal(v)
		}
		return em.syn.membership(operand, strings.Join(values, ", ")), nil

	case *expr.NamedPatternTest:
		return em.patternTest(node)

	default:
		return "", fmt.Errorf("unhandled expression node %T", n)
	}
}

func (em *emitter) operator(op expr.Op) (string, error) {
	switch op {
	case expr.OpEq:
		return em.syn.eq, nil
	case expr.OpNeq:
		return em.syn.neq, nil
	case expr.OpLt, expr.OpLte, expr.OpGt, expr.OpGte:
		return string(op), nil
	case expr.OpAnd:
		return em.syn.and, nil
	case expr.OpOr:
		return em.syn.or, nil
	default:
		return "", fmt.Errorf("unhandled operator %s", op)
	}
}

func (em *emitter) literal(l *expr.Literal) string {
	switch l.Kind {
	case expr.LiteralString:
		return em.syn.quoteRune + l.Value + em.syn.quoteRune
	case expr.LiteralBool:
		if l.Value == "true" {
			return em.syn.trueLit
		}
		return em.syn.falseLit
	case expr.LiteralNull:
		return em.syn.nullLit
	default:
		return l.Value
	}
}

// patternTest expands `operand MATCHES name` into the named type's
// validation rule for the target language, substituting the operand for
// the rule's `value` placeholder.
func (em *emitter) patternTest(n *expr.NamedPatternTest) (string, error) {
	operand, err := em.emit(n.Operand)
	if err != nil {
		return "", err
	}
	mapping, err := em.catalog.MappingFor(n.Pattern, em.lang)
	if err != nil {
		return "", err
	}
	if mapping.ValidationRule == "" {
		return "", fmt.Errorf("type %q has no validation rule for language %q", n.Pattern, em.lang)
	}
	return strings.ReplaceAll(mapping.ValidationRule, "value", operand), nil
}
