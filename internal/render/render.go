// Package render emits per-language artifacts from parsed entities and
// actions. Scalar types resolve through the type catalog, matched actions
// render through catalog pattern templates, and unmatched actions fall
// back to direct structural rendering of their steps.
package render

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"specforge/internal/entity"
	"specforge/internal/expr"
	"specforge/internal/pattern"
	"specforge/internal/store"
	"specforge/internal/typecatalog"
)

// ImplementationSource resolves (pattern, language) render templates.
// store.Catalog satisfies it.
type ImplementationSource interface {
	GetImplementation(ctx context.Context, patternName, language string) (*pattern.Implementation, error)
}

// Renderer turns entity and action ASTs into target-language text.
type Renderer struct {
	catalog *typecatalog.Catalog
	impls   ImplementationSource
	caps    CapabilityMatrix
}

// New builds a renderer. impls may be nil when only direct rendering is
// needed; caps nil falls back to DefaultCapabilities.
func New(catalog *typecatalog.Catalog, impls ImplementationSource, caps CapabilityMatrix) *Renderer {
	if caps == nil {
		caps = DefaultCapabilities()
	}
	return &Renderer{catalog: catalog, impls: impls, caps: caps}
}

// RenderEntity renders the entity's declaration form for one target
// language: a CREATE TABLE for postgres, a dataclass for python, an
// interface for typescript. A field whose type lacks a mapping for the
// language fails with UnmappedTypeError; nothing is dropped or guessed.
func (r *Renderer) RenderEntity(e *entity.Entity, lang string) (string, error) {
	em, err := newEmitter(lang, r.catalog)
	if err != nil {
		return "", err
	}
	switch lang {
	case "postgres":
		return r.renderTablePostgres(e, em)
	case "python":
		return r.renderClassPython(e, em)
	case "typescript":
		return r.renderInterfaceTypescript(e, em)
	default:
		return "", fmt.Errorf("no entity renderer for language %q", lang)
	}
}

// RenderAction renders one action. A direct match renders through the
// pattern's implementation template with the bound operands substituted;
// a missing (pattern, language) implementation is reported, never papered
// over. Everything else renders the steps structurally.
func (r *Renderer) RenderAction(ctx context.Context, e *entity.Entity, a *entity.Action, lang string, match pattern.MatchResult) (string, error) {
	if match.Kind == pattern.MatchDirect {
		return r.renderPattern(ctx, match, lang)
	}
	return r.RenderActionDirect(e, a, lang)
}

// renderPattern executes the (pattern, language) implementation template
// over the match's binding map.
func (r *Renderer) renderPattern(ctx context.Context, match pattern.MatchResult, lang string) (string, error) {
	if r.impls == nil {
		return "", &pattern.UnsupportedLanguageForPatternError{Pattern: match.Pattern.Name, Language: lang}
	}
	impl, err := r.impls.GetImplementation(ctx, match.Pattern.Name, lang)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", &pattern.UnsupportedLanguageForPatternError{Pattern: match.Pattern.Name, Language: lang}
		}
		return "", fmt.Errorf("failed to load implementation %s/%s: %w", match.Pattern.Name, lang, err)
	}
	if !impl.Supported {
		return "", &pattern.UnsupportedLanguageForPatternError{Pattern: match.Pattern.Name, Language: lang}
	}

	tmpl, err := template.New(impl.PatternName).Option("missingkey=error").Parse(impl.Template)
	if err != nil {
		return "", fmt.Errorf("invalid template for %s/%s: %w", impl.PatternName, lang, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, match.Bindings); err != nil {
		return "", fmt.Errorf("failed to render %s/%s: %w", impl.PatternName, lang, err)
	}
	return sb.String(), nil
}

// RenderActionDirect renders an action by structural recursion over its
// steps, with every embedded expression compiled against the entity scope
// and re-emitted in the target syntax.
func (r *Renderer) RenderActionDirect(e *entity.Entity, a *entity.Action, lang string) (string, error) {
	em, err := newEmitter(lang, r.catalog)
	if err != nil {
		return "", err
	}
	scope := expr.MapScope(e.Scope())
	switch lang {
	case "postgres":
		return r.renderActionPostgres(e, a, em, scope)
	case "python":
		return r.renderActionPython(a, em, scope)
	case "typescript":
		return r.renderActionTypescript(a, em, scope)
	default:
		return "", fmt.Errorf("no action renderer for language %q", lang)
	}
}

// compileEmit compiles one embedded expression string and serializes it
// for the emitter's language.
func compileEmit(em *emitter, input string, scope expr.FieldScope) (string, error) {
	node, err := expr.Compile(input, scope)
	if err != nil {
		return "", err
	}
	return em.emit(node)
}

// workaround executes a capability workaround template over its data map.
func workaround(body string, data map[string]string) (string, error) {
	tmpl, err := template.New("workaround").Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("invalid workaround template: %w", err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render workaround: %w", err)
	}
	return sb.String(), nil
}

func tableName(e *entity.Entity) string {
	name := strings.ToLower(e.Name)
	if e.Schema != "" {
		return e.Schema + "." + name
	}
	return name
}

func quotedList(values []string, quote string) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = quote + v + quote
	}
	return strings.Join(out, ", ")
}

func (r *Renderer) renderTablePostgres(e *entity.Entity, em *emitter) (string, error) {
	scope := expr.MapScope(e.Scope())
	cols := make([]string, 0, len(e.FieldOrder))
	for _, name := range e.FieldOrder {
		f := e.Fields[name]
		col, err := r.columnPostgres(e, f, em, scope)
		if err != nil {
			return "", err
		}
		cols = append(cols, "    "+col)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %s (\n", tableName(e))
	sb.WriteString(strings.Join(cols, ",\n"))
	sb.WriteString("\n);\n")
	return sb.String(), nil
}

func (r *Renderer) columnPostgres(e *entity.Entity, f *entity.FieldDefinition, em *emitter, scope expr.FieldScope) (string, error) {
	var col strings.Builder
	col.WriteString(f.Name)

	switch f.Type.Kind {
	case typecatalog.KindCatalog:
		mapping, err := r.catalog.MappingFor(f.Type.Name, em.lang)
		if err != nil {
			return "", err
		}
		col.WriteString(" " + mapping.NativeType)
		if !f.Nullable {
			col.WriteString(" NOT NULL")
		}
		if f.Default != "" {
			def, err := compileEmit(em, f.Default, scope)
			if err != nil {
				return "", err
			}
			col.WriteString(" DEFAULT " + def)
		}
		if mapping.ValidationRule != "" {
			cap := r.caps.Lookup(em.lang, CapCheckConstraint)
			if !cap.Supported {
				return "", &MissingCapabilityError{Language: em.lang, Capability: CapCheckConstraint}
			}
			rule := strings.ReplaceAll(mapping.ValidationRule, "value", f.Name)
			col.WriteString(" CHECK (" + rule + ")")
		}

	case typecatalog.KindEnum:
		cap := r.caps.Lookup(em.lang, CapEnumType)
		if !cap.Supported && cap.Workaround == "" {
			return "", &MissingCapabilityError{Language: em.lang, Capability: CapEnumType}
		}
		col.WriteString(" TEXT")
		if !f.Nullable {
			col.WriteString(" NOT NULL")
		}
		if f.Default != "" {
			def, err := compileEmit(em, f.Default, scope)
			if err != nil {
				return "", err
			}
			col.WriteString(" DEFAULT " + def)
		}
		fmt.Fprintf(&col, " CHECK (%s IN (%s))", f.Name, quotedList(f.Type.Values, "'"))

	case typecatalog.KindRef:
		if f.Type.Name == e.Name {
			cap := r.caps.Lookup(em.lang, CapSelfReference)
			if !cap.Supported && cap.Workaround == "" {
				return "", &MissingCapabilityError{Language: em.lang, Capability: CapSelfReference}
			}
		}
		target := strings.ToLower(f.Type.Name)
		if e.Schema != "" {
			target = e.Schema + "." + target
		}
		col.WriteString(" UUID")
		if !f.Nullable {
			col.WriteString(" NOT NULL")
		}
		fmt.Fprintf(&col, " REFERENCES %s (id)", target)
	}
	return col.String(), nil
}

func (r *Renderer) renderClassPython(e *entity.Entity, em *emitter) (string, error) {
	scope := expr.MapScope(e.Scope())
	imports := map[string]bool{"from dataclasses import dataclass": true}
	var fields []string

	for _, name := range e.FieldOrder {
		f := e.Fields[name]
		var typeText string
		var trailing []string

		switch f.Type.Kind {
		case typecatalog.KindCatalog:
			mapping, err := r.catalog.MappingFor(f.Type.Name, em.lang)
			if err != nil {
				return "", err
			}
			typeText = mapping.NativeType
			if mapping.Import != "" {
				imports[mapping.Import] = true
			}
			if mapping.ValidationRule != "" {
				cap := r.caps.Lookup(em.lang, CapCheckConstraint)
				if !cap.Supported {
					if cap.Workaround == "" {
						return "", &MissingCapabilityError{Language: em.lang, Capability: CapCheckConstraint}
					}
					note, err := workaround(cap.Workaround, map[string]string{
						"field": f.Name,
						"rule":  mapping.ValidationRule,
					})
					if err != nil {
						return "", err
					}
					trailing = append(trailing, "    "+note)
				}
			}

		case typecatalog.KindEnum:
			cap := r.caps.Lookup(em.lang, CapEnumType)
			if cap.Supported {
				typeText = quotedList(f.Type.Values, "\"")
			} else {
				if cap.Workaround == "" {
					return "", &MissingCapabilityError{Language: em.lang, Capability: CapEnumType}
				}
				body, err := workaround(cap.Workaround, map[string]string{
					"values": quotedList(f.Type.Values, "\""),
				})
				if err != nil {
					return "", err
				}
				typeText = body
			}

		case typecatalog.KindRef:
			typeText = f.Type.Name
			if f.Type.Name == e.Name {
				cap := r.caps.Lookup(em.lang, CapSelfReference)
				if !cap.Supported {
					if cap.Workaround == "" {
						return "", &MissingCapabilityError{Language: em.lang, Capability: CapSelfReference}
					}
					body, err := workaround(cap.Workaround, map[string]string{"target": f.Type.Name})
					if err != nil {
						return "", err
					}
					typeText = body
				}
			}
		}

		// a workaround may carry an inline comment; defaults go before it
		comment := ""
		if idx := strings.Index(typeText, "  #"); idx >= 0 {
			comment = typeText[idx:]
			typeText = typeText[:idx]
		}

		line := fmt.Sprintf("    %s: %s", f.Name, typeText)
		if f.Nullable {
			line = fmt.Sprintf("    %s: %s | None = None", f.Name, typeText)
		} else if f.Default != "" {
			def, err := compileEmit(em, f.Default, scope)
			if err != nil {
				return "", err
			}
			line += " = " + def
		}
		line += comment
		fields = append(fields, line)
		fields = append(fields, trailing...)
	}

	importLines := make([]string, 0, len(imports))
	for imp := range imports {
		importLines = append(importLines, imp)
	}
	sort.Strings(importLines)

	var sb strings.Builder
	sb.WriteString(strings.Join(importLines, "\n"))
	sb.WriteString("\n\n\n@dataclass\n")
	fmt.Fprintf(&sb, "class %s:\n", e.Name)
	if e.Description != "" {
		fmt.Fprintf(&sb, "    \"\"\"%s\"\"\"\n", e.Description)
	}
	sb.WriteString(strings.Join(fields, "\n"))
	sb.WriteString("\n")
	return sb.String(), nil
}

func (r *Renderer) renderInterfaceTypescript(e *entity.Entity, em *emitter) (string, error) {
	scope := expr.MapScope(e.Scope())
	var lines []string

	for _, name := range e.FieldOrder {
		f := e.Fields[name]
		var typeText string
		var trailing []string

		switch f.Type.Kind {
		case typecatalog.KindCatalog:
			mapping, err := r.catalog.MappingFor(f.Type.Name, em.lang)
			if err != nil {
				return "", err
			}
			typeText = mapping.NativeType
			if mapping.ValidationRule != "" {
				cap := r.caps.Lookup(em.lang, CapCheckConstraint)
				if !cap.Supported {
					if cap.Workaround == "" {
						return "", &MissingCapabilityError{Language: em.lang, Capability: CapCheckConstraint}
					}
					note, err := workaround(cap.Workaround, map[string]string{
						"field": f.Name,
						"rule":  mapping.ValidationRule,
					})
					if err != nil {
						return "", err
					}
					trailing = append(trailing, "  "+note)
				}
			}

		case typecatalog.KindEnum:
			cap := r.caps.Lookup(em.lang, CapEnumType)
			if !cap.Supported && cap.Workaround == "" {
				return "", &MissingCapabilityError{Language: em.lang, Capability: CapEnumType}
			}
			quoted := make([]string, len(f.Type.Values))
			for i, v := range f.Type.Values {
				quoted[i] = "\"" + v + "\""
			}
			typeText = strings.Join(quoted, " | ")

		case typecatalog.KindRef:
			if f.Type.Name == e.Name {
				cap := r.caps.Lookup(em.lang, CapSelfReference)
				if !cap.Supported && cap.Workaround == "" {
					return "", &MissingCapabilityError{Language: em.lang, Capability: CapSelfReference}
				}
			}
			typeText = f.Type.Name
		}

		sep := ": "
		if f.Nullable {
			sep = "?: "
		}
		line := "  " + f.Name + sep + typeText + ";"
		if f.Default != "" {
			def, err := compileEmit(em, f.Default, scope)
			if err != nil {
				return "", err
			}
			line += " // default: " + def
		}
		lines = append(lines, line)
		lines = append(lines, trailing...)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "export interface %s {\n", e.Name)
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n}\n")
	return sb.String(), nil
}
