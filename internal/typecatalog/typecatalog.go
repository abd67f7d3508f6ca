// Package typecatalog holds the registry of universal types and their
// per-language mappings.
//
// A universal type is language-agnostic: the catalog records, for each target
// language, the native type name, any import/declaration the emitted code
// needs, and an optional validation-rule expression. Rendering never guesses
// a mapping; a missing (type, language) pair is a reportable error.
package typecatalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Category classifies a universal type.
type Category string

const (
	CategoryScalar     Category = "scalar"
	CategoryComposite  Category = "composite"
	CategoryCollection Category = "collection"
)

// LanguageMapping describes how one universal type materializes in one
// target language.
type LanguageMapping struct {
	NativeType     string `json:"native_type"`
	Import         string `json:"import,omitempty"`
	ValidationRule string `json:"validation_rule,omitempty"`
}

// UniversalType is a catalog entry.
type UniversalType struct {
	Name     string                     `json:"name"`
	Category Category                   `json:"category"`
	Mappings map[string]LanguageMapping `json:"mappings"`
}

// UnmappedTypeError reports a type that has no mapping for the requested
// target language.
type UnmappedTypeError struct {
	TypeName string
	Language string
}

func (e *UnmappedTypeError) Error() string {
	return fmt.Sprintf("type %q has no mapping for language %q", e.TypeName, e.Language)
}

// UnknownTypeError reports a type name that does not exist in the catalog
// and is not a recognized parametric constructor.
type UnknownTypeError struct {
	TypeName string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q", e.TypeName)
}

// Catalog is the universal type registry. The zero value is not usable;
// construct with New (builtins seeded) or NewEmpty.
type Catalog struct {
	types map[string]*UniversalType
}

// NewEmpty returns a catalog with no entries.
func NewEmpty() *Catalog {
	return &Catalog{types: make(map[string]*UniversalType)}
}

// New returns a catalog seeded with the builtin scalar and collection types.
func New() *Catalog {
	c := NewEmpty()
	for i := range builtinTypes {
		c.Register(&builtinTypes[i])
	}
	return c
}

// Register adds or replaces a type entry.
func (c *Catalog) Register(t *UniversalType) {
	c.types[t.Name] = t
}

// Lookup returns the entry for name, or an UnknownTypeError.
func (c *Catalog) Lookup(name string) (*UniversalType, error) {
	t, ok := c.types[name]
	if !ok {
		return nil, &UnknownTypeError{TypeName: name}
	}
	return t, nil
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	_, ok := c.types[name]
	return ok
}

// ListByCategory returns all entries of the given category, sorted by name.
func (c *Catalog) ListByCategory(cat Category) []*UniversalType {
	out := make([]*UniversalType, 0)
	for _, t := range c.types {
		if t.Category == cat {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MappingFor resolves the (type, language) mapping. A missing type or a
// missing language mapping both surface as errors; rendering must not fall
// back silently.
func (c *Catalog) MappingFor(typeName, language string) (LanguageMapping, error) {
	t, ok := c.types[typeName]
	if !ok {
		return LanguageMapping{}, &UnmappedTypeError{TypeName: typeName, Language: language}
	}
	m, ok := t.Mappings[language]
	if !ok {
		return LanguageMapping{}, &UnmappedTypeError{TypeName: typeName, Language: language}
	}
	return m, nil
}

// Languages returns the sorted set of languages for which typeName has a
// mapping.
func (c *Catalog) Languages(typeName string) []string {
	t, ok := c.types[typeName]
	if !ok {
		return nil
	}
	langs := make([]string, 0, len(t.Mappings))
	for l := range t.Mappings {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// ---------- Parametric type expressions ----------

// TypeKind discriminates a parsed field type expression.
type TypeKind int

const (
	// KindCatalog is a plain catalog type name.
	KindCatalog TypeKind = iota
	// KindRef is ref(Entity): a named reference to another entity.
	KindRef
	// KindEnum is enum(v1, v2, ...): an inline enumerated type.
	KindEnum
)

// TypeExpr is a parsed field type declaration.
type TypeExpr struct {
	Kind TypeKind
	// Name is the catalog type name (KindCatalog) or the referenced entity
	// name (KindRef).
	Name string
	// Values holds the enum members for KindEnum, in declaration order.
	Values []string
}

var (
	refRe  = regexp.MustCompile(`^ref\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)$`)
	enumRe = regexp.MustCompile(`^enum\(\s*(.+?)\s*\)$`)
)

// ParseTypeExpr parses a declared field type: a catalog name, ref(Entity),
// or enum(a, b, c). Catalog names are validated against c; ref targets are
// resolved lazily by the entity catalog, never here.
func (c *Catalog) ParseTypeExpr(decl string) (*TypeExpr, error) {
	decl = strings.TrimSpace(decl)

	if m := refRe.FindStringSubmatch(decl); m != nil {
		return &TypeExpr{Kind: KindRef, Name: m[1]}, nil
	}
	if m := enumRe.FindStringSubmatch(decl); m != nil {
		parts := strings.Split(m[1], ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			v := strings.Trim(strings.TrimSpace(p), `'"`)
			if v == "" {
				return nil, fmt.Errorf("enum declaration %q has an empty member", decl)
			}
			values = append(values, v)
		}
		return &TypeExpr{Kind: KindEnum, Values: values}, nil
	}
	if !c.Has(decl) {
		return nil, &UnknownTypeError{TypeName: decl}
	}
	return &TypeExpr{Kind: KindCatalog, Name: decl}, nil
}
