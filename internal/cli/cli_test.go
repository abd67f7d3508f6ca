package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const claimDoc = `
entity: Claim
schema: claims
fields:
  id: uuid
  status: enum(new, approved, denied)
actions:
  - name: approve
    steps:
      - validate: "status == 'new'"
      - update:
          status: "'approved'"
`

func writeDoc(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SPECFORGE_STORE_TYPE", "memory")
	t.Setenv("SPECFORGE_DB_CONN", "")
	t.Setenv("SPECFORGE_API_KEY", "")

	var out, errOut bytes.Buffer
	root := RootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := writeDoc(t, "claim.yaml", claimDoc)

	out, _, err := execute(t, "validate", path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "ok (Claim, 2 fields, 1 actions)") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestValidateCommandReportsBadDocuments(t *testing.T) {
	good := writeDoc(t, "claim.yaml", claimDoc)
	bad := writeDoc(t, "bad.yaml", "entity: Broken\nfields:\n  id: nonesuch\n")

	out, errOut, err := execute(t, "validate", bad, good)
	if err == nil {
		t.Fatal("expected a validation failure")
	}
	if !strings.Contains(errOut, "bad.yaml") {
		t.Errorf("stderr should name the failing document: %q", errOut)
	}
	// the good document still validates
	if !strings.Contains(out, "ok (Claim") {
		t.Errorf("sibling document should still validate: %q", out)
	}
}

func TestCompileCommandWritesArtifacts(t *testing.T) {
	path := writeDoc(t, "claim.yaml", claimDoc)
	outDir := t.TempDir()

	out, _, err := execute(t, "compile", path, "--lang", "postgres", "--out", outDir)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !strings.Contains(out, "wrote ") {
		t.Errorf("unexpected output: %q", out)
	}

	table, err := os.ReadFile(filepath.Join(outDir, "postgres", "claim.sql"))
	if err != nil {
		t.Fatalf("entity artifact missing: %v", err)
	}
	if !strings.Contains(string(table), "CREATE TABLE claims.claim") {
		t.Errorf("unexpected artifact: %q", table)
	}
	if _, err := os.Stat(filepath.Join(outDir, "postgres", "claim_approve.sql")); err != nil {
		t.Fatalf("action artifact missing: %v", err)
	}
}

func TestCompileCommandReportsCycles(t *testing.T) {
	contact := writeDoc(t, "contact.yaml", "entity: Contact\nfields:\n  id: uuid\n  company: ref(Company)\n")
	company := writeDoc(t, "company.yaml", "entity: Company\nfields:\n  id: uuid\n  owner: ref(Contact)\n")

	out, _, err := execute(t, "compile", contact, company, "--lang", "postgres", "--out", t.TempDir())
	if err != nil {
		t.Fatalf("cycles must not fail compilation: %v", err)
	}
	if !strings.Contains(out, "reference cycle") {
		t.Errorf("cycle note missing from output: %q", out)
	}
}

func TestCompileCommandDiscovers(t *testing.T) {
	path := writeDoc(t, "claim.yaml", claimDoc)

	out, _, err := execute(t, "compile", path, "--discover", "--out", t.TempDir())
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !strings.Contains(out, "suggestion recorded for Claim.approve") {
		t.Errorf("discovery note missing: %q", out)
	}
}

func TestPatternsListEmptyCatalog(t *testing.T) {
	out, _, err := execute(t, "patterns", "list")
	if err != nil {
		t.Fatalf("patterns list failed: %v", err)
	}
	if !strings.Contains(out, "no patterns in the catalog") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestPatternsRejectRequiresReason(t *testing.T) {
	_, _, err := execute(t, "patterns", "reject", "some-id")
	if err == nil || !strings.Contains(err.Error(), "--reason is required") {
		t.Fatalf("expected missing-reason error, got %v", err)
	}
}

func TestInitDBRequiresPostgres(t *testing.T) {
	_, _, err := execute(t, "init-db")
	if err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("expected postgres requirement error, got %v", err)
	}
}
