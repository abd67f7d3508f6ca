package pattern

// Builtin catalog patterns. These cover the action shapes that recur in
// entity definitions; discovery grows the catalog beyond them over time.
// Template slots follow the positional operand enumeration of Bindings.

var builtinPatterns = []*Pattern{
	{
		Name:        "state_transition",
		Category:    "workflow",
		Description: "guard a precondition then move the entity to a new state",
		Signature:   "validate/1;update/1",
		Complexity:  2,
	},
	{
		Name:        "audited_state_transition",
		Category:    "workflow",
		Description: "guarded state change that records an audit message",
		Signature:   "validate/1;update/1;log/0",
		Complexity:  3,
	},
	{
		Name:        "conditional_update",
		Category:    "workflow",
		Description: "branch on a condition and apply one of two updates",
		Signature:   "if/1{update/1|update/1}",
		Complexity:  6,
	},
	{
		Name:        "notify_after_update",
		Category:    "integration",
		Description: "update the entity then call a follow-up operation",
		Signature:   "update/1;call/0",
		Complexity:  2,
	},
}

var builtinImplementations = []*Implementation{
	{
		PatternName: "state_transition",
		Language:    "postgres",
		Template: `-- {{.entity}}.{{.action}}: state transition
-- guard: {{.op0}}
-- apply: {{.op1}}`,
		Supported: true,
	},
	{
		PatternName: "state_transition",
		Language:    "python",
		Template: `# {{.entity}}.{{.action}}: state transition
# guard: {{.op0}}
# apply: {{.op1}}`,
		Supported: true,
	},
	{
		PatternName: "audited_state_transition",
		Language:    "postgres",
		Template: `-- {{.entity}}.{{.action}}: audited state transition
-- guard: {{.op0}}
-- apply: {{.op1}}
-- audit: {{.op2}}`,
		Supported: true,
	},
	{
		PatternName: "conditional_update",
		Language:    "postgres",
		Template: `-- {{.entity}}.{{.action}}: conditional update
-- when {{.op0}}: {{.op1}}
-- otherwise: {{.op2}}`,
		Supported: true,
	},
	{
		PatternName: "notify_after_update",
		Language:    "postgres",
		Template: `-- {{.entity}}.{{.action}}: update then notify
-- apply: {{.op0}}
-- call: {{.op1}}`,
		Supported: true,
	},
}

// BuiltinPatterns returns the seed catalog: the patterns and their shipped
// implementations. Callers own the copies.
func BuiltinPatterns() ([]*Pattern, []*Implementation) {
	patterns := make([]*Pattern, len(builtinPatterns))
	for i, p := range builtinPatterns {
		cp := *p
		patterns[i] = &cp
	}
	impls := make([]*Implementation, len(builtinImplementations))
	for i, impl := range builtinImplementations {
		cp := *impl
		impls[i] = &cp
	}
	return patterns, impls
}
