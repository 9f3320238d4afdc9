package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aidanlsb/promptvars/internal/dates"
	"github.com/aidanlsb/promptvars/internal/entity"
	"github.com/aidanlsb/promptvars/internal/source"
)

// ActiveStatus is the sprint status injected for ACTIVE_SPRINT conditions.
const ActiveStatus = "ACTIVE"

// Compiler turns ordered filter conditions into a Predicate.
type Compiler struct {
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithClock overrides the clock used for TODAY and NOW.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// WithLogger sets the logger used to report dropped conditions.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// NewCompiler creates a compiler.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ScopeFor derives the mandatory scoping fragment for entity t.
func ScopeFor(t source.EntityType, ctx source.Context) Scope {
	e, ok := entity.Get(t)
	if !ok {
		return Scope{}
	}
	switch e.Scope {
	case entity.ScopeProject:
		return Scope{Column: "project_id", Value: ctx.ProjectID}
	case entity.ScopeSelfProject:
		return Scope{Column: "id", Value: ctx.ProjectID}
	case entity.ScopeSelfWorkspace:
		return Scope{Column: "id", Value: ctx.WorkspaceID}
	case entity.ScopeSelfUser:
		return Scope{Column: "id", Value: ctx.UserID}
	default:
		return Scope{}
	}
}

// Compile builds the composite predicate for filters on entity t.
// Conditions on fields outside the entity's allowlist are dropped.
func (c *Compiler) Compile(t source.EntityType, filters []source.FilterCondition, ctx source.Context) Predicate {
	p := NewPredicate(t, ScopeFor(t, ctx))
	e, ok := entity.Get(t)
	if !ok {
		return p
	}

	for _, cond := range filters {
		if !entity.IsAllowed(t, cond.Field) {
			c.logger.Debug("dropping filter on disallowed field",
				zap.String("entity", string(t)),
				zap.String("field", cond.Field))
			continue
		}

		value := cond.Value
		if cond.SpecialValue != source.SpecialNone {
			special, known := ResolveSpecial(cond.SpecialValue, ctx, c.now())
			if !known {
				c.logger.Debug("dropping filter with unknown special value",
					zap.String("field", cond.Field),
					zap.String("special_value", string(cond.SpecialValue)))
				continue
			}
			if special.ActiveSprint {
				c.applyActiveSprint(&p, e)
				continue
			}
			value = special.Value
		}

		value = normalizeValue(value)
		if entity.IsCategorical(t, cond.Field) {
			value = upperStrings(value)
		}

		frag, ok := translate(cond.Operator, value, fieldKind(t, cond.Field))
		if !ok {
			c.logger.Debug("dropping filter with unsupported operator or value",
				zap.String("field", cond.Field),
				zap.String("operator", string(cond.Operator)))
			continue
		}
		p.Add(cond.Field, frag)
	}

	return p
}

func (c *Compiler) applyActiveSprint(p *Predicate, e *entity.Entity) {
	switch {
	case e.Type == source.EntitySprint:
		p.Add("status", &Fragment{Equals: &Operand{Mode: CompareString, Value: ActiveStatus}})
	case e.SprintField != "":
		p.ActiveSprint = true
	default:
		c.logger.Debug("ACTIVE_SPRINT has no effect on entity", zap.String("entity", string(e.Type)))
	}
}

func fieldKind(t source.EntityType, field string) entity.Kind {
	f, _, _ := entity.Lookup(t, field)
	return f.Kind
}

// translate converts one operator/value pair to a fragment.
func translate(op source.Operator, value any, kind entity.Kind) (*Fragment, bool) {
	switch op {
	case source.OpEq:
		return &Fragment{Equals: equalityOperand(value, kind)}, true
	case source.OpNeq:
		return &Fragment{NotEquals: equalityOperand(value, kind)}, true
	case source.OpGt:
		return &Fragment{Gt: orderingOperand(value)}, value != nil
	case source.OpGte:
		return &Fragment{Gte: orderingOperand(value)}, value != nil
	case source.OpLt:
		return &Fragment{Lt: orderingOperand(value)}, value != nil
	case source.OpLte:
		return &Fragment{Lte: orderingOperand(value)}, value != nil
	case source.OpContains, source.OpStartsWith, source.OpEndsWith:
		if value == nil {
			return nil, false
		}
		s := Stringify(value)
		switch op {
		case source.OpContains:
			return &Fragment{Contains: &s}, true
		case source.OpStartsWith:
			return &Fragment{StartsWith: &s}, true
		default:
			return &Fragment{EndsWith: &s}, true
		}
	case source.OpInList:
		return &Fragment{In: listValues(value), hasIn: true}, true
	case source.OpNotIn:
		return &Fragment{NotIn: listValues(value), hasNotIn: true}, true
	default:
		return nil, false
	}
}

// equalityOperand keeps literal equality, except that numeric strings compared
// against number fields are compared as numbers and dates compared against
// date fields are compared as dates.
func equalityOperand(value any, kind entity.Kind) *Operand {
	if kind == entity.KindDate {
		if opd, ok := dateEquality(value); ok {
			return opd
		}
	}
	switch v := value.(type) {
	case nil:
		return &Operand{Mode: CompareString, Value: nil}
	case time.Time:
		return &Operand{Mode: CompareDate, Value: v}
	case float64:
		return &Operand{Mode: CompareNumber, Value: v}
	case bool:
		return &Operand{Mode: CompareString, Value: v}
	case string:
		if kind == entity.KindNumber {
			if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return &Operand{Mode: CompareNumber, Value: n}
			}
		}
		return &Operand{Mode: CompareString, Value: v}
	default:
		return &Operand{Mode: CompareString, Value: Stringify(v)}
	}
}

// dateEquality matches a time or a date-only string by calendar day, and a
// datetime string by instant.
func dateEquality(value any) (*Operand, bool) {
	switch v := value.(type) {
	case time.Time:
		return &Operand{Mode: CompareDay, Value: v}, true
	case string:
		s := strings.TrimSpace(v)
		if dates.IsValidDate(s) {
			t, _ := dates.ParseDate(s)
			return &Operand{Mode: CompareDay, Value: t}, true
		}
		if dates.LooksLikeDate(s) {
			t, _ := dates.Parse(s)
			return &Operand{Mode: CompareDate, Value: t}, true
		}
	}
	return nil, false
}

// orderingOperand picks comparison semantics for GT/GTE/LT/LTE. Precedence:
// a time value compares as a date; a string that parses as a date and is not
// a plain number compares as a date; anything numeric-coercible compares as a
// number; everything else compares as a string.
func orderingOperand(value any) *Operand {
	if t, ok := value.(time.Time); ok {
		return &Operand{Mode: CompareDate, Value: t}
	}
	if s, ok := value.(string); ok && dates.LooksLikeDate(s) {
		t, _ := dates.Parse(s)
		return &Operand{Mode: CompareDate, Value: t}
	}
	if n, ok := ToNumber(value); ok {
		return &Operand{Mode: CompareNumber, Value: n}
	}
	return &Operand{Mode: CompareString, Value: Stringify(value)}
}

// ToNumber coerces numeric values and numeric strings to float64.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		n = strings.TrimSpace(n)
		if n == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Stringify renders a scalar value as text. Times render in ISO form and
// whole floats render without a fractional part.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return dates.FormatISO(x)
	case json.Number:
		return x.String()
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}

// normalizeValue folds integer kinds into float64 so the store sees one
// numeric representation.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = item
		}
		return out
	}
	return v
}

func upperStrings(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToUpper(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			if s, ok := item.(string); ok {
				out[i] = strings.ToUpper(s)
			} else {
				out[i] = item
			}
		}
		return out
	}
	return v
}

// listValues accepts a list or a comma-separated string.
func listValues(v any) []any {
	switch x := v.(type) {
	case nil:
		return []any{}
	case []any:
		out := make([]any, 0, len(x))
		for _, item := range x {
			if item != nil {
				out = append(out, item)
			}
		}
		return out
	case string:
		parts := strings.Split(x, ",")
		out := make([]any, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return []any{x}
	}
}
