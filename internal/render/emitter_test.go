package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specforge/internal/expr"
	"specforge/internal/typecatalog"
)

var emitterScope = expr.MapScope{
	"status":   "text",
	"total":    "decimal",
	"filed_by": "email",
	"closed":   "boolean",
	"note":     "text",
}

func emit(t *testing.T, lang, input string) (string, error) {
	t.Helper()
	catalog := typecatalog.New()
	em, err := newEmitter(lang, catalog)
	require.NoError(t, err)
	node, err := expr.Compile(input, emitterScope)
	require.NoError(t, err)
	return em.emit(node)
}

func TestEmitComparisonSyntaxPerLanguage(t *testing.T) {
	tests := []struct {
		lang  string
		input string
		want  string
	}{
		{"postgres", "status == 'open'", "status = 'open'"},
		{"postgres", "status != 'open'", "status <> 'open'"},
		{"python", "status == 'open'", `status == "open"`},
		{"typescript", "status == 'open'", `status === "open"`},
		{"typescript", "status != 'open'", `status !== "open"`},
		{"postgres", "total >= 100", "total >= 100"},
		{"python", "total < -12.50", "total < -12.50"},
	}
	for _, tt := range tests {
		got, err := emit(t, tt.lang, tt.input)
		require.NoError(t, err, "%s: %s", tt.lang, tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestEmitBooleanCombinators(t *testing.T) {
	got, err := emit(t, "postgres", "status == 'open' AND NOT (closed == true)")
	require.NoError(t, err)
	assert.Equal(t, "(status = 'open' AND NOT (closed = TRUE))", got)

	got, err = emit(t, "python", "status == 'open' OR closed == false")
	require.NoError(t, err)
	assert.Equal(t, `(status == "open" or closed == False)`, got)

	got, err = emit(t, "typescript", "status == 'open' AND closed == true")
	require.NoError(t, err)
	assert.Equal(t, `(status === "open" && closed === true)`, got)
}

func TestEmitNullLiteral(t *testing.T) {
	got, err := emit(t, "postgres", "note == null")
	require.NoError(t, err)
	assert.Equal(t, "note = NULL", got)

	got, err = emit(t, "python", "note == null")
	require.NoError(t, err)
	assert.Equal(t, "note == None", got)
}

func TestEmitMembership(t *testing.T) {
	got, err := emit(t, "postgres", "status IN ['open', 'closed']")
	require.NoError(t, err)
	assert.Equal(t, "status IN ('open', 'closed')", got)

	got, err = emit(t, "python", "status IN ['open', 'closed']")
	require.NoError(t, err)
	assert.Equal(t, `status in ["open", "closed"]`, got)

	// javascript's in operator tests object keys, never array membership
	got, err = emit(t, "typescript", "status IN ['open', 'closed']")
	require.NoError(t, err)
	assert.Equal(t, `["open", "closed"].includes(status)`, got)
}

func TestEmitMatchesExpandsValidationRule(t *testing.T) {
	got, err := emit(t, "postgres", "filed_by MATCHES email")
	require.NoError(t, err)
	assert.Equal(t, `filed_by ~ '^[^@\s]+@[^@\s]+\.[^@\s]+$'`, got)

	got, err = emit(t, "python", "filed_by MATCHES email")
	require.NoError(t, err)
	assert.Contains(t, got, "re.match(")
	assert.Contains(t, got, "filed_by)")
}

func TestEmitMatchesWithoutRuleFails(t *testing.T) {
	// the typescript email mapping carries no validation rule
	_, err := emit(t, "typescript", "filed_by MATCHES email")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation rule")
}

func TestEmitMatchesUnknownTypeFails(t *testing.T) {
	catalog := typecatalog.New()
	em, err := newEmitter("postgres", catalog)
	require.NoError(t, err)

	node, err := expr.Compile("status MATCHES nonesuch", emitterScope)
	require.NoError(t, err)
	_, err = em.emit(node)
	require.Error(t, err)
}
