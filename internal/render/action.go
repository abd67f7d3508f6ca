package render

import (
	"fmt"
	"strings"

	"specforge/internal/entity"
	"specforge/internal/expr"
)

// The direct action renderers walk the step tree once, writing one block
// per step. Conditional branches recurse with a deeper indent.

func pgQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (r *Renderer) renderActionPostgres(e *entity.Entity, a *entity.Action, em *emitter, scope expr.FieldScope) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE OR REPLACE FUNCTION %s_%s() RETURNS void AS $$\nBEGIN\n", tableName(e), strings.ToLower(a.Name))
	if err := r.stepsPostgres(&sb, e, a, a.Steps, em, scope, 1); err != nil {
		return "", err
	}
	sb.WriteString("END;\n$$ LANGUAGE plpgsql;\n")
	return sb.String(), nil
}

func (r *Renderer) stepsPostgres(sb *strings.Builder, e *entity.Entity, a *entity.Action, steps []*entity.ActionStep, em *emitter, scope expr.FieldScope, depth int) error {
	pad := strings.Repeat("    ", depth)
	for _, s := range steps {
		switch s.Type {
		case entity.StepValidate:
			cond, err := compileEmit(em, s.Condition, scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(sb, "%sIF NOT (%s) THEN\n", pad, cond)
			fmt.Fprintf(sb, "%s    RAISE EXCEPTION '%s: validation failed: %s';\n", pad, a.Name, pgQuote(s.Condition))
			fmt.Fprintf(sb, "%sEND IF;\n", pad)

		case entity.StepUpdate:
			assigns := make([]string, 0, len(s.AssignOrder))
			for _, field := range s.AssignOrder {
				value, err := compileEmit(em, s.Assignments[field], scope)
				if err != nil {
					return err
				}
				assigns = append(assigns, field+" = "+value)
			}
			fmt.Fprintf(sb, "%sUPDATE %s SET %s;\n", pad, tableName(e), strings.Join(assigns, ", "))

		case entity.StepInsert:
			cols := make([]string, 0, len(s.AssignOrder))
			values := make([]string, 0, len(s.AssignOrder))
			for _, field := range s.AssignOrder {
				value, err := compileEmit(em, s.Assignments[field], scope)
				if err != nil {
					return err
				}
				cols = append(cols, field)
				values = append(values, value)
			}
			target := strings.ToLower(s.Target)
			if e.Schema != "" {
				target = e.Schema + "." + target
			}
			fmt.Fprintf(sb, "%sINSERT INTO %s (%s) VALUES (%s);\n", pad, target, strings.Join(cols, ", "), strings.Join(values, ", "))

		case entity.StepConditional:
			cond, err := compileEmit(em, s.Condition, scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(sb, "%sIF %s THEN\n", pad, cond)
			if err := r.stepsPostgres(sb, e, a, s.Then, em, scope, depth+1); err != nil {
				return err
			}
			if len(s.Else) > 0 {
				fmt.Fprintf(sb, "%sELSE\n", pad)
				if err := r.stepsPostgres(sb, e, a, s.Else, em, scope, depth+1); err != nil {
					return err
				}
			}
			fmt.Fprintf(sb, "%sEND IF;\n", pad)

		case entity.StepLog:
			fmt.Fprintf(sb, "%sRAISE NOTICE '%s';\n", pad, pgQuote(s.Message))

		case entity.StepCall:
			fmt.Fprintf(sb, "%sPERFORM %s_%s();\n", pad, tableName(e), strings.ToLower(s.Target))
		}
	}
	return nil
}

func (r *Renderer) renderActionPython(a *entity.Action, em *emitter, scope expr.FieldScope) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "def %s(self):\n", strings.ToLower(a.Name))
	if err := r.stepsPython(&sb, a, a.Steps, em, scope, 1); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *Renderer) stepsPython(sb *strings.Builder, a *entity.Action, steps []*entity.ActionStep, em *emitter, scope expr.FieldScope, depth int) error {
	pad := strings.Repeat("    ", depth)
	for _, s := range steps {
		switch s.Type {
		case entity.StepValidate:
			cond, err := compileEmit(em, s.Condition, scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(sb, "%sif not (%s):\n", pad, cond)
			fmt.Fprintf(sb, "%s    raise ValueError(\"%s: validation failed\")\n", pad, a.Name)

		case entity.StepUpdate:
			for _, field := range s.AssignOrder {
				value, err := compileEmit(em, s.Assignments[field], scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(sb, "%sself.%s = %s\n", pad, field, value)
			}

		case entity.StepInsert:
			args := make([]string, 0, len(s.AssignOrder))
			for _, field := range s.AssignOrder {
				value, err := compileEmit(em, s.Assignments[field], scope)
				if err != nil {
					return err
				}
				args = append(args, field+"="+value)
			}
			fmt.Fprintf(sb, "%s%s(%s)\n", pad, s.Target, strings.Join(args, ", "))

		case entity.StepConditional:
			cond, err := compileEmit(em, s.Condition, scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(sb, "%sif %s:\n", pad, cond)
			if err := r.stepsPython(sb, a, s.Then, em, scope, depth+1); err != nil {
				return err
			}
			if len(s.Else) > 0 {
				fmt.Fprintf(sb, "%selse:\n", pad)
				if err := r.stepsPython(sb, a, s.Else, em, scope, depth+1); err != nil {
					return err
				}
			}

		case entity.StepLog:
			fmt.Fprintf(sb, "%slogger.info(%q)\n", pad, s.Message)

		case entity.StepCall:
			fmt.Fprintf(sb, "%sself.%s()\n", pad, strings.ToLower(s.Target))
		}
	}
	return nil
}

func (r *Renderer) renderActionTypescript(a *entity.Action, em *emitter, scope expr.FieldScope) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(): void {\n", strings.ToLower(a.Name))
	if err := r.stepsTypescript(&sb, a, a.Steps, em, scope, 1); err != nil {
		return "", err
	}
	sb.WriteString("}\n")
	return sb.String(), nil
}

func (r *Renderer) stepsTypescript(sb *strings.Builder, a *entity.Action, steps []*entity.ActionStep, em *emitter, scope expr.FieldScope, depth int) error {
	pad := strings.Repeat("  ", depth)
	for _, s := range steps {
		switch s.Type {
		case entity.StepValidate:
			cond, err := compileEmit(em, s.Condition, scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(sb, "%sif (!(%s)) {\n", pad, cond)
			fmt.Fprintf(sb, "%s  throw new Error(%q);\n", pad, a.Name+": validation failed")
			fmt.Fprintf(sb, "%s}\n", pad)

		case entity.StepUpdate:
			for _, field := range s.AssignOrder {
				value, err := compileEmit(em, s.Assignments[field], scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(sb, "%sthis.%s = %s;\n", pad, field, value)
			}

		case entity.StepInsert:
			props := make([]string, 0, len(s.AssignOrder))
			for _, field := range s.AssignOrder {
				value, err := compileEmit(em, s.Assignments[field], scope)
				if err != nil {
					return err
				}
				props = append(props, field+": "+value)
			}
			fmt.Fprintf(sb, "%snew %s({ %s });\n", pad, s.Target, strings.Join(props, ", "))

		case entity.StepConditional:
			cond, err := compileEmit(em, s.Condition, scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(sb, "%sif (%s) {\n", pad, cond)
			if err := r.stepsTypescript(sb, a, s.Then, em, scope, depth+1); err != nil {
				return err
			}
			if len(s.Else) > 0 {
				fmt.Fprintf(sb, "%s} else {\n", pad)
				if err := r.stepsTypescript(sb, a, s.Else, em, scope, depth+1); err != nil {
					return err
				}
			}
			fmt.Fprintf(sb, "%s}\n", pad)

		case entity.StepLog:
			fmt.Fprintf(sb, "%sconsole.log(%q);\n", pad, s.Message)

		case entity.StepCall:
			fmt.Fprintf(sb, "%sthis.%s();\n", pad, strings.ToLower(s.Target))
		}
	}
	return nil
}
