package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Compile parses and type-checks a business-rule expression against scope.
func Compile(input string, scope FieldScope) (Node, error) {
	p := &parser{input: input, scope: scope, line: 1, column: 1}
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if !p.isEOF() {
		return nil, p.errorf("unexpected trailing input %q", p.rest())
	}
	return node, nil
}

type parser struct {
	input  string
	scope  FieldScope
	pos    int
	line   int
	column int
}

// parseExpression handles the lowest-precedence combinator: OR.
func (p *parser) parseExpression() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchKeyword("OR") {
		right, rErr := p.parseAnd()
		if rErr != nil {
			return nil, rErr
		}
		left = &BinaryOp{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.matchKeyword("AND") {
		right, rErr := p.parseNot()
		if rErr != nil {
			return nil, rErr
		}
		left = &BinaryOp{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.matchKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

// parseComparison parses `operand [op operand | IN [...] | MATCHES name]`.
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	p.skipWhitespace()
	line, col := p.line, p.column

	if op, ok := p.matchComparisonOp(); ok {
		right, rErr := p.parseOperand()
		if rErr != nil {
			return nil, rErr
		}
		if mErr := p.checkComparable(op, left, right, line, col); mErr != nil {
			return nil, mErr
		}
		return &BinaryOp{Op: op, Left: left, Right: right}, nil
	}

	if p.matchKeyword("IN") {
		values, lErr := p.parseLiteralList()
		if lErr != nil {
			return nil, lErr
		}
		for _, v := range values {
			if mErr := p.checkComparable(OpEq, left, v, line, col); mErr != nil {
				return nil, mErr
			}
		}
		return &MembershipTest{Operand: left, Values: values}, nil
	}

	if p.matchKeyword("MATCHES") {
		p.skipWhitespace()
		name := p.readIdentifier()
		if name == "" {
			return nil, p.errorf("expected pattern name after MATCHES")
		}
		return &NamedPatternTest{Operand: left, Pattern: name}, nil
	}

	return left, nil
}

// parseOperand parses a literal, a field reference, or a parenthesized
// expression.
func (p *parser) parseOperand() (Node, error) {
	p.skipWhitespace()
	if p.isEOF() {
		return nil, p.errorf("unexpected end of expression")
	}

	line, col := p.line, p.column

	if p.match('(') {
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if !p.match(')') {
			return nil, p.errorf("expected ')' to close group")
		}
		p.advance()
		return inner, nil
	}

	if p.match('\'') || p.match('"') {
		return p.parseString()
	}

	if p.isDigit(p.peek()) || (p.peek() == '-' && p.isDigit(p.peekAt(1))) {
		return p.parseNumber()
	}

	word := p.readIdentifier()
	if word == "" {
		return nil, p.errorf("expected operand")
	}

	switch strings.ToLower(word) {
	case "true", "false":
		return &Literal{Kind: LiteralBool, Value: strings.ToLower(word), Line: line, Col: col}, nil
	case "null":
		return &Literal{Kind: LiteralNull, Value: "null", Line: line, Col: col}, nil
	}

	typeName, ok := p.scope.ResolveField(word)
	if !ok {
		return nil, &UnknownFieldError{Name: word, Line: line, Col: col}
	}
	return &FieldRef{Path: word, TypeName: typeName, Line: line, Col: col}, nil
}

// parseString parses a quoted string literal. Escape sequences are kept
// verbatim in the collected value.
func (p *parser) parseString() (*Literal, error) {
	line, col := p.line, p.column
	quote := p.peek()
	p.advance()

	var sb strings.Builder
	for !p.isEOF() && !p.match(quote) {
		if p.match('\\') {
			sb.WriteRune('\\')
			p.advance()
			if p.isEOF() {
				return nil, p.errorf("unexpected end of input in string escape")
			}
		}
		sb.WriteRune(p.peek())
		p.advance()
	}
	if !p.match(quote) {
		return nil, p.errorf("unterminated string literal")
	}
	p.advance()

	return &Literal{Kind: LiteralString, Value: sb.String(), Line: line, Col: col}, nil
}

func (p *parser) parseNumber() (*Literal, error) {
	line, col := p.line, p.column
	start := p.pos
	if p.match('-') {
		p.advance()
	}
	for !p.isEOF() && p.isDigit(p.peek()) {
		p.advance()
	}
	if p.match('.') {
		p.advance()
		if !p.isDigit(p.peek()) {
			return nil, p.errorf("malformed decimal literal")
		}
		for !p.isEOF() && p.isDigit(p.peek()) {
			p.advance()
		}
	}
	return &Literal{Kind: LiteralNumber, Value: p.input[start:p.pos], Line: line, Col: col}, nil
}

// parseLiteralList parses `[ lit, lit, ... ]` for membership tests.
func (p *parser) parseLiteralList() ([]*Literal, error) {
	p.skipWhitespace()
	if !p.match('[') {
		return nil, p.errorf("expected '[' after IN")
	}
	p.advance()

	values := make([]*Literal, 0)
	for {
		p.skipWhitespace()
		if p.match(']') {
			p.advance()
			break
		}
		if p.isEOF() {
			return nil, p.errorf("unterminated membership list")
		}
		if len(values) > 0 {
			if !p.match(',') {
				return nil, p.errorf("expected ',' in membership list")
			}
			p.advance()
			p.skipWhitespace()
		}

		operand, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		lit, ok := operand.(*Literal)
		if !ok {
			return nil, p.errorf("membership lists may only contain literal values")
		}
		values = append(values, lit)
	}
	if len(values) == 0 {
		return nil, p.errorf("membership list must not be empty")
	}
	return values, nil
}

// ---------- Type inference ----------

// typeClass buckets declared and literal types for comparability checks.
// Dates and timestamps compare against string literals (ISO dates), so they
// share the string bucket.
type typeClass int

const (
	classUnknown typeClass = iota
	classNumber
	classString
	classBool
)

func classOfDeclared(typeName string) typeClass {
	switch typeName {
	case "integer", "bigint", "decimal", "currency":
		return classNumber
	case "boolean":
		return classBool
	case "text", "email", "uuid", "date", "timestamp":
		return classString
	}
	if strings.HasPrefix(typeName, "enum(") || typeName == "enum" {
		return classString
	}
	return classUnknown
}

func classOf(n Node) typeClass {
	switch v := n.(type) {
	case *Literal:
		switch v.Kind {
		case LiteralNumber:
			return classNumber
		case LiteralString:
			return classString
		case LiteralBool:
			return classBool
		}
		return classUnknown
	case *FieldRef:
		return classOfDeclared(v.TypeName)
	}
	return classUnknown
}

func className(c typeClass) string {
	switch c {
	case classNumber:
		return "number"
	case classString:
		return "string"
	case classBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// checkComparable rejects comparisons between operands of incompatible
// inferred types. Operands of unknown class (ref fields, null, nested
// expressions) are left to the target runtime.
func (p *parser) checkComparable(op Op, left, right Node, line, col int) error {
	lc, rc := classOf(left), classOf(right)
	if lc == classUnknown || rc == classUnknown {
		return nil
	}
	if lc != rc {
		return &TypeMismatchError{Op: op, Left: className(lc), Right: className(rc), Line: line, Col: col}
	}
	return nil
}

// ---------- Low-level scanning ----------

func (p *parser) matchComparisonOp() (Op, bool) {
	two := map[string]Op{"==": OpEq, "!=": OpNeq, "<=": OpLte, ">=": OpGte}
	if p.pos+2 <= len(p.input) {
		if op, ok := two[p.input[p.pos:p.pos+2]]; ok {
			p.advance()
			p.advance()
			return op, true
		}
	}
	switch p.peek() {
	case '<':
		p.advance()
		return OpLt, true
	case '>':
		p.advance()
		return OpGt, true
	}
	return "", false
}

// matchKeyword consumes a case-insensitive keyword if it appears at the
// current position followed by a non-identifier character.
func (p *parser) matchKeyword(kw string) bool {
	p.skipWhitespace()
	end := p.pos + len(kw)
	if end > len(p.input) {
		return false
	}
	if !strings.EqualFold(p.input[p.pos:end], kw) {
		return false
	}
	if end < len(p.input) {
		next, _ := utf8.DecodeRuneInString(p.input[end:])
		if p.isIdentifierChar(next) {
			return false
		}
	}
	for i := 0; i < len(kw); i++ {
		p.advance()
	}
	return true
}

func (p *parser) readIdentifier() string {
	start := p.pos
	for !p.isEOF() && p.isIdentifierChar(p.peek()) {
		p.advance()
	}
	return p.input[start:p.pos]
}

func (p *parser) isIdentifierChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_'
}

func (p *parser) isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func (p *parser) skipWhitespace() {
	for !p.isEOF() && unicode.IsSpace(p.peek()) {
		p.advance()
	}
}

// peek decodes the rune at the current position. The position is tracked in
// bytes; advance moves it by the decoded rune's width so multi-byte input
// never splits.
func (p *parser) peek() rune {
	if p.isEOF() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(p.input[p.pos:])
	return r
}

// peekAt looks ahead by whole runes, not bytes.
func (p *parser) peekAt(offset int) rune {
	pos := p.pos
	for i := 0; i < offset; i++ {
		if pos >= len(p.input) {
			return 0
		}
		_, w := utf8.DecodeRuneInString(p.input[pos:])
		pos += w
	}
	if pos >= len(p.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(p.input[pos:])
	return r
}

func (p *parser) advance() {
	if p.isEOF() {
		return
	}
	r, w := utf8.DecodeRuneInString(p.input[p.pos:])
	if r == '\n' {
		p.line++
		p.column = 1
	} else {
		p.column++
	}
	p.pos += w
}

func (p *parser) match(r rune) bool {
	return p.peek() == r
}

func (p *parser) isEOF() bool {
	return p.pos >= len(p.input)
}

func (p *parser) rest() string {
	if p.pos >= len(p.input) {
		return ""
	}
	return p.input[p.pos:]
}

func (p *parser) errorf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("expression error at line %d, column %d: %s", p.line, p.column, msg)
}
