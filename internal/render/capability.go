package render

import "fmt"

// Capability names consulted while rendering gated constructs.
const (
	CapEnumType        = "enum_type"
	CapCheckConstraint = "check_constraint"
	CapSelfReference   = "self_reference"
)

// Capability records whether a target language expresses one abstract
// construct natively, and the workaround template to substitute when it
// does not. An unsupported capability with an empty workaround is a hard
// rendering failure.
type Capability struct {
	Supported  bool
	Workaround string
}

// CapabilityMatrix is the per-language capability table.
type CapabilityMatrix map[string]map[string]Capability

// Lookup returns the capability entry, defaulting to supported for
// languages or capabilities the matrix does not mention.
func (m CapabilityMatrix) Lookup(language, name string) Capability {
	caps, ok := m[language]
	if !ok {
		return Capability{Supported: true}
	}
	c, ok := caps[name]
	if !ok {
		return Capability{Supported: true}
	}
	return c
}

// MissingCapabilityError reports a construct the target language cannot
// express and for which no workaround template is registered.
type MissingCapabilityError struct {
	Language   string
	Capability string
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("language %q does not support %q and no workaround is registered", e.Language, e.Capability)
}

// DefaultCapabilities covers the three shipped target languages. Python
// renders enum fields through a workaround because the generated
// dataclasses stay import-light; validation checks become comments on the
// targets that cannot carry them in a declaration.
func DefaultCapabilities() CapabilityMatrix {
	return CapabilityMatrix{
		"postgres": {
			CapEnumType:        {Supported: true},
			CapCheckConstraint: {Supported: true},
			CapSelfReference:   {Supported: true},
		},
		"python": {
			CapEnumType:        {Supported: false, Workaround: "str  # one of: {{.values}}"},
			CapCheckConstraint: {Supported: false, Workaround: "# validate {{.field}}: {{.rule}}"},
			CapSelfReference:   {Supported: false, Workaround: `"{{.target}}"`},
		},
		"typescript": {
			CapEnumType:        {Supported: true},
			CapCheckConstraint: {Supported: false, Workaround: "// validate {{.field}}: {{.rule}}"},
			CapSelfReference:   {Supported: true},
		},
	}
}
