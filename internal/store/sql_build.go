package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/aidanlsb/promptvars/internal/dates"
	"github.com/aidanlsb/promptvars/internal/entity"
	"github.com/aidanlsb/promptvars/internal/filter"
	"github.com/aidanlsb/promptvars/internal/sqlutil"
)

const entityAlias = "e"

var scopeColumns = map[string]bool{
	"id":           true,
	"project_id":   true,
	"workspace_id": true,
}

// buildWhere builds the WHERE clause for a compiled predicate. Field names are
// checked against the registry again so only allowlisted paths reach SQL.
func buildWhere(p filter.Predicate) (string, []any, error) {
	conditions := []string{entityAlias + ".entity_type = ?"}
	args := []any{string(p.Entity)}

	if p.Scope.Column != "" {
		if !scopeColumns[p.Scope.Column] {
			return "", nil, fmt.Errorf("invalid scope column %q", p.Scope.Column)
		}
		conditions = append(conditions, fmt.Sprintf("%s.%s = ?", entityAlias, p.Scope.Column))
		args = append(args, p.Scope.Value)
	}

	for _, fp := range p.Fields() {
		expr, exprArgs, err := fieldExpr(p, fp.Field, entityAlias)
		if err != nil {
			return "", nil, err
		}
		conds, condArgs := fragmentSQL(expr, exprArgs, fp.Fragment)
		conditions = append(conditions, conds...)
		args = append(args, condArgs...)
	}

	if p.ActiveSprint {
		e, ok := entity.Get(p.Entity)
		if ok && e.SprintField != "" {
			conditions = append(conditions, fmt.Sprintf(`EXISTS (
				SELECT 1 FROM entities s
				WHERE s.entity_type = 'SPRINT'
				  AND s.id = json_extract(%s.fields, ?)
				  AND json_extract(s.fields, '$.status') = ?
			)`, entityAlias))
			args = append(args, jsonFieldPath(e.SprintField), filter.ActiveStatus)
		}
	}

	return strings.Join(conditions, " AND "), args, nil
}

// fieldExpr returns the SQL expression addressing field on alias, plus the
// args its placeholders need.
func fieldExpr(p filter.Predicate, field, alias string) (string, []any, error) {
	leaf, rel, ok := entity.Lookup(p.Entity, field)
	if !ok {
		return "", nil, fmt.Errorf("field %q is not allowed on %s", field, p.Entity)
	}
	if rel == nil {
		return leafExpr(leaf, alias)
	}

	// One-level relation: evaluate the leaf on the related record.
	inner, innerArgs, err := leafExpr(leaf, "r")
	if err != nil {
		return "", nil, err
	}
	expr := fmt.Sprintf(
		"(SELECT %s FROM entities r WHERE r.entity_type = ? AND r.id = json_extract(%s.fields, ?))",
		inner, alias,
	)
	args := append(innerArgs, string(rel.Target), jsonFieldPath(rel.ForeignKey))
	return expr, args, nil
}

func leafExpr(f entity.Field, alias string) (string, []any, error) {
	if f.Column != "" {
		return fmt.Sprintf("%s.%s", alias, f.Column), nil, nil
	}
	if f.Kind == entity.KindRelation {
		return "", nil, fmt.Errorf("relation %q needs a sub-field", f.Name)
	}
	return fmt.Sprintf("json_extract(%s.fields, ?)", alias), []any{jsonFieldPath(f.Name)}, nil
}

func jsonFieldPath(field string) string {
	// Field names come from the registry; keep it simple and parameterize the path.
	return "$." + field
}

// fragmentSQL renders every set property of frag as its own condition.
func fragmentSQL(expr string, exprArgs []any, frag *filter.Fragment) ([]string, []any) {
	var conds []string
	var args []any

	add := func(cond string, condArgs ...any) {
		conds = append(conds, cond)
		args = append(args, exprArgs...)
		args = append(args, condArgs...)
	}

	if frag.Equals != nil {
		if frag.Equals.Value == nil {
			add(expr + " IS NULL")
		} else {
			c, v := operandCond(expr, "=", frag.Equals)
			add(c, v)
		}
	}
	if frag.NotEquals != nil {
		if frag.NotEquals.Value == nil {
			add(expr + " IS NOT NULL")
		} else {
			c, v := operandCond(expr, "!=", frag.NotEquals)
			add(c, v)
		}
	}
	for _, cmp := range []struct {
		op  string
		opd *filter.Operand
	}{
		{">", frag.Gt}, {">=", frag.Gte}, {"<", frag.Lt}, {"<=", frag.Lte},
	} {
		if cmp.opd != nil {
			c, v := operandCond(expr, cmp.op, cmp.opd)
			add(c, v)
		}
	}

	if frag.Contains != nil {
		add(likeCond(expr), sqlutil.LikePattern(*frag.Contains, sqlutil.MatchContains))
	}
	if frag.StartsWith != nil {
		add(likeCond(expr), sqlutil.LikePattern(*frag.StartsWith, sqlutil.MatchPrefix))
	}
	if frag.EndsWith != nil {
		add(likeCond(expr), sqlutil.LikePattern(*frag.EndsWith, sqlutil.MatchSuffix))
	}

	if frag.HasIn() {
		ph, inArgs := sqlutil.InList(sqlValues(frag.In))
		add(fmt.Sprintf("%s IN (%s)", expr, ph), inArgs...)
	}
	// An empty NOT IN list excludes nothing.
	if frag.HasNotIn() && len(frag.NotIn) > 0 {
		ph, inArgs := sqlutil.InList(sqlValues(frag.NotIn))
		add(fmt.Sprintf("%s NOT IN (%s)", expr, ph), inArgs...)
	}

	return conds, args
}

// operandCond renders "expr op ?" with the comparison semantics of opd.
func operandCond(expr, op string, opd *filter.Operand) (string, any) {
	switch opd.Mode {
	case filter.CompareDate:
		return fmt.Sprintf("julianday(%s) %s julianday(?)", expr, op), sqlValue(opd.Value)
	case filter.CompareDay:
		return fmt.Sprintf("date(%s) %s date(?)", expr, op), sqlValue(opd.Value)
	case filter.CompareNumber:
		return fmt.Sprintf("CAST(%s AS REAL) %s ?", expr, op), sqlValue(opd.Value)
	default:
		return fmt.Sprintf("%s %s ?", expr, op), sqlValue(opd.Value)
	}
}

func likeCond(expr string) string {
	// Always include ESCAPE so callers can safely escape % and _.
	return fmt.Sprintf("LOWER(%s) LIKE LOWER(?) ESCAPE '\\'", expr)
}

// sqlValue converts an operand value to a driver argument. JSON booleans
// extract as 1/0 in SQLite.
func sqlValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return dates.FormatISO(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return v
	}
}

func sqlValues(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = sqlValue(v)
	}
	return out
}
