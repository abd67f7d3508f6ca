package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"specforge/internal/typecatalog"
)

// yamlLineRe pulls the line locator out of yaml.v3's own error text so even
// unparseable documents report a position.
var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// Parse parses one DSL document into an Entity, validating structure and
// field types against the catalog. Parsing has no side effects.
func Parse(document string, catalog *typecatalog.Catalog) (*Entity, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(document), &root); err != nil {
		line := 0
		if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
		return nil, &StructuralError{Line: line, Column: 1, Msg: err.Error()}
	}
	if len(root.Content) == 0 {
		return nil, &StructuralError{Line: 1, Column: 1, Msg: "empty document"}
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, structErr(doc, "document must be a mapping")
	}

	p := &docParser{catalog: catalog}
	return p.parseEntity(doc)
}

type docParser struct {
	catalog *typecatalog.Catalog
}

func (p *docParser) parseEntity(doc *yaml.Node) (*Entity, error) {
	e := &Entity{Fields: make(map[string]*FieldDefinition)}

	var fieldsNode, actionsNode *yaml.Node
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		switch key.Value {
		case "entity":
			e.Name = val.Value
		case "schema":
			e.Schema = val.Value
		case "description":
			e.Description = val.Value
		case "fields":
			fieldsNode = val
		case "actions":
			actionsNode = val
		default:
			return nil, structErr(key, fmt.Sprintf("unknown top-level key %q", key.Value))
		}
	}

	if e.Name == "" {
		return nil, structErr(doc, "missing required key 'entity'")
	}
	if fieldsNode == nil {
		return nil, structErr(doc, "missing required key 'fields'")
	}
	if fieldsNode.Kind != yaml.MappingNode {
		return nil, structErr(fieldsNode, "'fields' must be a mapping of name to type")
	}

	for i := 0; i+1 < len(fieldsNode.Content); i += 2 {
		key, val := fieldsNode.Content[i], fieldsNode.Content[i+1]
		if _, dup := e.Fields[key.Value]; dup {
			return nil, &DuplicateFieldError{Entity: e.Name, Field: key.Value, Line: key.Line}
		}
		field, err := p.parseField(key.Value, val)
		if err != nil {
			return nil, err
		}
		e.FieldOrder = append(e.FieldOrder, field.Name)
		e.Fields[field.Name] = field
	}
	if len(e.FieldOrder) == 0 {
		return nil, structErr(fieldsNode, "'fields' must declare at least one field")
	}

	if actionsNode != nil {
		if actionsNode.Kind != yaml.SequenceNode {
			return nil, structErr(actionsNode, "'actions' must be a sequence")
		}
		seen := make(map[string]bool)
		for _, item := range actionsNode.Content {
			action, err := p.parseAction(item)
			if err != nil {
				return nil, err
			}
			if seen[action.Name] {
				return nil, structErr(item, fmt.Sprintf("duplicate action %q", action.Name))
			}
			seen[action.Name] = true
			e.Actions = append(e.Actions, action)
		}
	}

	return e, nil
}

// parseField accepts either the short form `name: typeexpr` or the long form
// `name: {type: ..., nullable: ..., default: ...}`. A trailing '?' on the
// short form marks the field nullable.
func (p *docParser) parseField(name string, val *yaml.Node) (*FieldDefinition, error) {
	f := &FieldDefinition{Name: name}

	switch val.Kind {
	case yaml.ScalarNode:
		decl := strings.TrimSpace(val.Value)
		if strings.HasSuffix(decl, "?") {
			f.Nullable = true
			decl = strings.TrimSpace(strings.TrimSuffix(decl, "?"))
		}
		f.DeclaredType = decl
	case yaml.MappingNode:
		for i := 0; i+1 < len(val.Content); i += 2 {
			key, v := val.Content[i], val.Content[i+1]
			switch key.Value {
			case "type":
				f.DeclaredType = strings.TrimSpace(v.Value)
			case "nullable":
				f.Nullable = v.Value == "true"
			case "default":
				f.Default = v.Value
			default:
				return nil, structErr(key, fmt.Sprintf("unknown field option %q", key.Value))
			}
		}
	default:
		return nil, structErr(val, fmt.Sprintf("field %q must be a type name or a mapping", name))
	}

	if f.DeclaredType == "" {
		return nil, structErr(val, fmt.Sprintf("field %q is missing a type", name))
	}

	typeExpr, err := p.catalog.ParseTypeExpr(f.DeclaredType)
	if err != nil {
		return nil, fmt.Errorf("field %q (line %d): %w", name, val.Line, err)
	}
	f.Type = typeExpr
	return f, nil
}

func (p *docParser) parseAction(node *yaml.Node) (*Action, error) {
	if node.Kind != yaml.MappingNode {
		return nil, structErr(node, "action must be a mapping")
	}

	a := &Action{}
	var stepsNode *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "name":
			a.Name = val.Value
		case "description":
			a.Description = val.Value
		case "steps":
			stepsNode = val
		default:
			return nil, structErr(key, fmt.Sprintf("unknown action key %q", key.Value))
		}
	}

	if a.Name == "" {
		return nil, structErr(node, "action is missing 'name'")
	}
	if stepsNode == nil {
		return nil, structErr(node, fmt.Sprintf("action %q is missing 'steps'", a.Name))
	}

	steps, err := p.parseSteps(stepsNode)
	if err != nil {
		return nil, err
	}
	a.Steps = steps
	return a, nil
}

func (p *docParser) parseSteps(node *yaml.Node) ([]*ActionStep, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, structErr(node, "'steps' must be a sequence")
	}
	steps := make([]*ActionStep, 0, len(node.Content))
	for _, item := range node.Content {
		step, err := p.parseStep(item)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// parseStep dispatches on the step's head key: validate, insert, update,
// if (conditional), log, call.
func (p *docParser) parseStep(node *yaml.Node) (*ActionStep, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) < 2 {
		return nil, structErr(node, "step must be a single-key mapping")
	}

	head := node.Content[0].Value
	val := node.Content[1]

	// Conditional steps own their sibling then/else keys; every other step
	// type is a single-key mapping and stray siblings are malformed.
	if head != "if" && len(node.Content) > 2 {
		extra := node.Content[2]
		return nil, structErr(extra, fmt.Sprintf("unexpected key %q in %s step", extra.Value, head))
	}

	switch head {
	case "validate":
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return nil, structErr(val, "validate step requires an expression")
		}
		return &ActionStep{Type: StepValidate, Condition: val.Value}, nil

	case "insert":
		return p.parseInsertStep(val)

	case "update":
		if val.Kind != yaml.MappingNode {
			return nil, structErr(val, "update step requires field assignments")
		}
		order, assigns, err := p.parseAssignments(val)
		if err != nil {
			return nil, err
		}
		return &ActionStep{Type: StepUpdate, AssignOrder: order, Assignments: assigns}, nil

	case "if":
		return p.parseConditionalStep(node)

	case "log":
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return nil, structErr(val, "log step requires a message")
		}
		return &ActionStep{Type: StepLog, Message: val.Value}, nil

	case "call":
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return nil, structErr(val, "call step requires an operation name")
		}
		return &ActionStep{Type: StepCall, Target: val.Value}, nil

	default:
		return nil, structErr(node.Content[0], fmt.Sprintf("unknown step type %q", head))
	}
}

func (p *docParser) parseInsertStep(val *yaml.Node) (*ActionStep, error) {
	step := &ActionStep{Type: StepInsert}
	switch val.Kind {
	case yaml.ScalarNode:
		step.Target = val.Value
	case yaml.MappingNode:
		for i := 0; i+1 < len(val.Content); i += 2 {
			key, v := val.Content[i], val.Content[i+1]
			switch key.Value {
			case "entity":
				step.Target = v.Value
			case "fields":
				if v.Kind != yaml.MappingNode {
					return nil, structErr(v, "insert 'fields' must be a mapping")
				}
				order, assigns, err := p.parseAssignments(v)
				if err != nil {
					return nil, err
				}
				step.AssignOrder = order
				step.Assignments = assigns
			default:
				return nil, structErr(key, fmt.Sprintf("unknown insert key %q", key.Value))
			}
		}
	default:
		return nil, structErr(val, "insert step requires an entity name or mapping")
	}
	if step.Target == "" {
		return nil, structErr(val, "insert step requires a target entity")
	}
	return step, nil
}

// parseConditionalStep parses `if:` with its sibling `then:`/`else:` keys.
// The branches are owned by the step; there are no back-references.
func (p *docParser) parseConditionalStep(node *yaml.Node) (*ActionStep, error) {
	step := &ActionStep{Type: StepConditional}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "if":
			if val.Kind != yaml.ScalarNode || val.Value == "" {
				return nil, structErr(val, "conditional step requires a condition expression")
			}
			step.Condition = val.Value
		case "then":
			branch, err := p.parseSteps(val)
			if err != nil {
				return nil, err
			}
			step.Then = branch
		case "else":
			branch, err := p.parseSteps(val)
			if err != nil {
				return nil, err
			}
			step.Else = branch
		default:
			return nil, structErr(key, fmt.Sprintf("unknown conditional key %q", key.Value))
		}
	}
	if step.Condition == "" {
		return nil, structErr(node, "conditional step requires 'if'")
	}
	if len(step.Then) == 0 {
		return nil, structErr(node, "conditional step requires 'then' steps")
	}
	return step, nil
}

func (p *docParser) parseAssignments(node *yaml.Node) ([]string, map[string]string, error) {
	order := make([]string, 0, len(node.Content)/2)
	assigns := make(map[string]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, nil, structErr(val, fmt.Sprintf("assignment %q must be an expression", key.Value))
		}
		if _, dup := assigns[key.Value]; dup {
			return nil, nil, structErr(key, fmt.Sprintf("duplicate assignment %q", key.Value))
		}
		order = append(order, key.Value)
		assigns[key.Value] = val.Value
	}
	return order, assigns, nil
}

func structErr(node *yaml.Node, msg string) *StructuralError {
	return &StructuralError{Line: node.Line, Column: node.Column, Msg: msg}
}
