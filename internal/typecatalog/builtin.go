package typecatalog

// Builtin universal types. Mappings cover the three target languages the
// renderer ships emitters for; additional languages are registered by
// callers before rendering.
//
// "currency" deliberately carries no typescript mapping: amounts need a
// decimal library on that target and the choice is left to the caller.
var builtinTypes = []UniversalType{
	{
		Name:     "text",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "TEXT"},
			"python":     {NativeType: "str"},
			"typescript": {NativeType: "string"},
		},
	},
	{
		Name:     "integer",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "INTEGER"},
			"python":     {NativeType: "int"},
			"typescript": {NativeType: "number"},
		},
	},
	{
		Name:     "bigint",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "BIGINT"},
			"python":     {NativeType: "int"},
			"typescript": {NativeType: "bigint"},
		},
	},
	{
		Name:     "decimal",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "NUMERIC"},
			"python":     {NativeType: "Decimal", Import: "from decimal import Decimal"},
			"typescript": {NativeType: "number"},
		},
	},
	{
		Name:     "boolean",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "BOOLEAN"},
			"python":     {NativeType: "bool"},
			"typescript": {NativeType: "boolean"},
		},
	},
	{
		Name:     "date",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "DATE"},
			"python":     {NativeType: "date", Import: "from datetime import date"},
			"typescript": {NativeType: "Date"},
		},
	},
	{
		Name:     "timestamp",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "TIMESTAMPTZ"},
			"python":     {NativeType: "datetime", Import: "from datetime import datetime"},
			"typescript": {NativeType: "Date"},
		},
	},
	{
		Name:     "uuid",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "UUID"},
			"python":     {NativeType: "UUID", Import: "from uuid import UUID"},
			"typescript": {NativeType: "string"},
		},
	},
	{
		Name:     "email",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "TEXT", ValidationRule: `value ~ '^[^@\s]+@[^@\s]+\.[^@\s]+$'`},
			"python":     {NativeType: "str", ValidationRule: `re.match(r"^[^@\s]+@[^@\s]+\.[^@\s]+$", value)`},
			"typescript": {NativeType: "string"},
		},
	},
	{
		Name:     "currency",
		Category: CategoryScalar,
		Mappings: map[string]LanguageMapping{
			"postgres": {NativeType: "NUMERIC(19,4)"},
			"python":   {NativeType: "Decimal", Import: "from decimal import Decimal"},
		},
	},
	{
		Name:     "json",
		Category: CategoryComposite,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "JSONB"},
			"python":     {NativeType: "dict"},
			"typescript": {NativeType: "Record<string, unknown>"},
		},
	},
	{
		Name:     "list",
		Category: CategoryCollection,
		Mappings: map[string]LanguageMapping{
			"postgres":   {NativeType: "JSONB"},
			"python":     {NativeType: "list"},
			"typescript": {NativeType: "unknown[]"},
		},
	},
}
