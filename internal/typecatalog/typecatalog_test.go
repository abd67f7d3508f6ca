package typecatalog

import (
	"errors"
	"testing"
)

func TestLookupBuiltin(t *testing.T) {
	c := New()

	ut, err := c.Lookup("decimal")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if ut.Category != CategoryScalar {
		t.Errorf("decimal category = %s", ut.Category)
	}
	if ut.Mappings["python"].Import != "from decimal import Decimal" {
		t.Errorf("unexpected python import %q", ut.Mappings["python"].Import)
	}
}

func TestLookupUnknownType(t *testing.T) {
	c := New()

	_, err := c.Lookup("nonesuch")
	var unknown *UnknownTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTypeError, got %v", err)
	}
	if unknown.TypeName != "nonesuch" {
		t.Errorf("error names %q", unknown.TypeName)
	}
}

func TestMappingForUnmappedLanguage(t *testing.T) {
	c := New()

	_, err := c.MappingFor("currency", "typescript")
	var unmapped *UnmappedTypeError
	if !errors.As(err, &unmapped) {
		t.Fatalf("expected UnmappedTypeError, got %v", err)
	}
	if unmapped.TypeName != "currency" || unmapped.Language != "typescript" {
		t.Errorf("error carries %q/%q", unmapped.TypeName, unmapped.Language)
	}
}

func TestRegisterAndLanguages(t *testing.T) {
	c := NewEmpty()
	c.Register(&UniversalType{
		Name:     "money",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"rust":     {NativeType: "Decimal"},
			"postgres": {NativeType: "NUMERIC(19,4)"},
		},
	})

	if !c.Has("money") {
		t.Fatal("registered type not found")
	}
	langs := c.Languages("money")
	if len(langs) != 2 || langs[0] != "postgres" || langs[1] != "rust" {
		t.Errorf("Languages not sorted: %v", langs)
	}
}

func TestEveryScalarBuiltinHasAMapping(t *testing.T) {
	c := New()
	for _, ut := range c.ListByCategory(CategoryScalar) {
		if len(ut.Mappings) == 0 {
			t.Errorf("scalar type %q has no language mapping", ut.Name)
		}
	}
}

func TestParseTypeExpr(t *testing.T) {
	c := New()

	tests := []struct {
		decl string
		kind TypeKind
		name string
		vals int
	}{
		{"text", KindCatalog, "text", 0},
		{"ref(Company)", KindRef, "Company", 0},
		{"ref( Company )", KindRef, "Company", 0},
		{"enum(new, approved, denied)", KindEnum, "", 3},
	}
	for _, tt := range tests {
		got, err := c.ParseTypeExpr(tt.decl)
		if err != nil {
			t.Fatalf("ParseTypeExpr(%q) failed: %v", tt.decl, err)
		}
		if got.Kind != tt.kind || got.Name != tt.name || len(got.Values) != tt.vals {
			t.Errorf("ParseTypeExpr(%q) = %+v", tt.decl, got)
		}
	}
}

func TestParseTypeExprRejectsUnknown(t *testing.T) {
	c := New()
	_, err := c.ParseTypeExpr("varchar")
	var unknown *UnknownTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTypeError, got %v", err)
	}
}
