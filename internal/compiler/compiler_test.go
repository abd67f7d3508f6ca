package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specforge/internal/entity"
	"specforge/internal/expr"
	"specforge/internal/pattern"
	"specforge/internal/store"
	"specforge/internal/typecatalog"
)

const claimDoc = `
entity: Claim
schema: claims
fields:
  id: uuid
  status: enum(new, approved, denied)
  amount: currency
actions:
  - name: approve
    description: approve a pending claim
    steps:
      - validate: "status == 'new'"
      - update:
          status: "'approved'"
      - log: claim approved
`

const contactDoc = `
entity: Contact
schema: crm
fields:
  id: uuid
  company: ref(Company)
`

const companyDoc = `
entity: Company
schema: crm
fields:
  id: uuid
  primary_contact: ref(Contact)?
`

func newCompiler(t *testing.T, st store.Store) *Compiler {
	t.Helper()
	return New(typecatalog.New(), st, nil, pattern.DefaultConfig())
}

func TestCompileRendersArtifactsPerLanguage(t *testing.T) {
	c := newCompiler(t, nil)

	batch, err := c.Compile(context.Background(), []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{
		Languages: []string{"postgres", "python"},
	})
	require.NoError(t, err)
	require.Len(t, batch.Documents, 1)

	r := batch.Documents[0]
	require.NoError(t, r.Err)
	// entity + action artifacts for each of the two languages
	require.Len(t, r.Artifacts, 4)
	for _, a := range r.Artifacts {
		assert.NoError(t, a.Err, "%s/%s", a.Name, a.Language)
		assert.NotEmpty(t, a.Text)
	}
}

func TestCompileIsolatesFailingDocuments(t *testing.T) {
	c := newCompiler(t, nil)

	batch, err := c.Compile(context.Background(), []Document{
		{Name: "bad.yaml", Text: "entity: Broken\nfields:\n  id: nonesuch\n"},
		{Name: "claim.yaml", Text: claimDoc},
	}, Options{Languages: []string{"postgres"}})
	require.NoError(t, err)
	require.Len(t, batch.Documents, 2)

	var unknown *typecatalog.UnknownTypeError
	require.ErrorAs(t, batch.Documents[0].Err, &unknown)
	require.NoError(t, batch.Documents[1].Err)
	assert.NotEmpty(t, batch.Documents[1].Artifacts)
}

func TestCompileIsolatesFailingArtifacts(t *testing.T) {
	c := newCompiler(t, nil)

	// currency has no typescript mapping, so only that artifact fails
	batch, err := c.Compile(context.Background(), []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{
		Languages: []string{"postgres", "typescript"},
	})
	require.NoError(t, err)

	r := batch.Documents[0]
	require.NoError(t, r.Err)
	byKey := make(map[string]Artifact)
	for _, a := range r.Artifacts {
		byKey[a.Language+"/"+a.Kind] = a
	}
	assert.NoError(t, byKey["postgres/entity"].Err)
	var unmapped *typecatalog.UnmappedTypeError
	assert.ErrorAs(t, byKey["typescript/entity"].Err, &unmapped)

	errs := batch.Errs()
	require.Len(t, errs, 1)
}

func TestCompileReportsReferenceCycles(t *testing.T) {
	c := newCompiler(t, nil)

	batch, err := c.Compile(context.Background(), []Document{
		{Name: "contact.yaml", Text: contactDoc},
		{Name: "company.yaml", Text: companyDoc},
	}, Options{Languages: []string{"postgres"}})
	require.NoError(t, err)

	// both documents compile; the cycle is reported, not rejected
	for _, r := range batch.Documents {
		require.NoError(t, r.Err)
	}
	require.Len(t, batch.Cycles, 1)
	assert.ElementsMatch(t, []string{"Company", "Contact"}, batch.Cycles[0].Entities)
}

func TestCompileMatchesCatalogPatterns(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.InsertPattern(ctx, &pattern.Pattern{
		Name:      "state_transition",
		Category:  "workflow",
		Signature: "validate/1;update/1;log/0",
	}))
	require.NoError(t, st.UpsertImplementation(ctx, &pattern.Implementation{
		PatternName: "state_transition",
		Language:    "postgres",
		Template:    "-- {{.entity}}.{{.action}} via state_transition",
		Supported:   true,
	}))

	c := newCompiler(t, st)
	batch, err := c.Compile(ctx, []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{
		Languages: []string{"postgres"},
	})
	require.NoError(t, err)

	r := batch.Documents[0]
	require.NoError(t, r.Err)
	require.Equal(t, pattern.MatchDirect, r.Matches["approve"].Kind)

	var action Artifact
	for _, a := range r.Artifacts {
		if a.Kind == "action" {
			action = a
		}
	}
	require.NoError(t, action.Err)
	assert.Equal(t, "-- Claim.approve via state_transition", action.Text)
}

func TestCompileDiscoversUnmatchedActions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	c := newCompiler(t, st)

	batch, err := c.Compile(ctx, []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{Discover: true})
	require.NoError(t, err)
	require.Len(t, batch.Discovery, 1)
	assert.True(t, batch.Discovery[0].Triggered)
	assert.True(t, batch.Discovery[0].Inserted)

	pending, err := st.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, pattern.StatusPending, pending[0].Status)

	// a second run over the same input creates no duplicates
	batch, err = c.Compile(ctx, []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{Discover: true})
	require.NoError(t, err)
	assert.False(t, batch.Discovery[0].Inserted)
	pending, err = st.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestApprovedSuggestionBacksLaterRuns(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	c := newCompiler(t, st)

	_, err := c.Compile(ctx, []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{Discover: true})
	require.NoError(t, err)
	pending, err := st.ListPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	promoted, err := st.Approve(ctx, pending[0].ID)
	require.NoError(t, err)

	// the promoted pattern now matches the same action structurally
	batch, err := c.Compile(ctx, []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{
		Languages: []string{"postgres"},
	})
	require.NoError(t, err)
	r := batch.Documents[0]
	require.Equal(t, pattern.MatchDirect, r.Matches["approve"].Kind)
	assert.Equal(t, promoted.Name, r.Matches["approve"].Pattern.Name)

	// rendering for a language the promotion never bound is an explicit gap
	batch, err = c.Compile(ctx, []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{
		Languages: []string{"python"},
	})
	require.NoError(t, err)
	var unbound *pattern.UnsupportedLanguageForPatternError
	require.ErrorAs(t, batch.Documents[0].Artifacts[1].Err, &unbound)
	assert.Equal(t, "python", unbound.Language)
}

func TestValidateCatchesExpressionErrors(t *testing.T) {
	c := newCompiler(t, nil)

	batch := c.Validate(context.Background(), []Document{
		{Name: "bad.yaml", Text: `
entity: Claim
fields:
  status: text
actions:
  - name: approve
    steps:
      - validate: "stattus == 'new'"
`},
		{Name: "claim.yaml", Text: claimDoc},
	})

	var unknown *expr.UnknownFieldError
	require.ErrorAs(t, batch.Documents[0].Err, &unknown)
	assert.Equal(t, "stattus", unknown.Name)
	require.NoError(t, batch.Documents[1].Err)
}

func TestValidateChecksDefaultsAndAssignments(t *testing.T) {
	c := newCompiler(t, nil)

	batch := c.Validate(context.Background(), []Document{{Name: "bad.yaml", Text: `
entity: Claim
fields:
  status: text
  opened:
    type: date
    default: "openned"
`}})
	var unknown *expr.UnknownFieldError
	require.ErrorAs(t, batch.Documents[0].Err, &unknown)

	batch = c.Validate(context.Background(), []Document{{Name: "bad.yaml", Text: `
entity: Claim
fields:
  status: text
actions:
  - name: close
    steps:
      - update:
          status: "missing_field"
`}})
	require.ErrorAs(t, batch.Documents[0].Err, &unknown)
	assert.Equal(t, "missing_field", unknown.Name)
}

func TestCompileDeterministicParse(t *testing.T) {
	c := newCompiler(t, nil)
	ctx := context.Background()

	first, err := c.Compile(ctx, []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{})
	require.NoError(t, err)
	second, err := c.Compile(ctx, []Document{{Name: "claim.yaml", Text: claimDoc}}, Options{})
	require.NoError(t, err)

	var a, b *entity.Entity = first.Documents[0].Entity, second.Documents[0].Entity
	assert.Equal(t, a, b)
}
