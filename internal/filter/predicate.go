// Package filter compiles variable-source filter conditions into a composite
// predicate the store can execute.
package filter

import (
	"github.com/aidanlsb/promptvars/internal/source"
)

// CompareMode selects the comparison semantics for an ordering operand.
type CompareMode int

const (
	CompareString CompareMode = iota
	CompareNumber
	CompareDate
	// CompareDay compares calendar days, ignoring the time of day.
	CompareDay
)

func (m CompareMode) String() string {
	switch m {
	case CompareNumber:
		return "number"
	case CompareDate:
		return "date"
	case CompareDay:
		return "day"
	default:
		return "string"
	}
}

// Operand is a comparison value tagged with how it compares. Value is a
// string, float64, bool or time.Time.
type Operand struct {
	Mode  CompareMode
	Value any
}

// Fragment is the predicate for a single field. Unset properties do not
// constrain the field; set properties are ANDed together.
type Fragment struct {
	Equals     *Operand
	NotEquals  *Operand
	Gt         *Operand
	Gte        *Operand
	Lt         *Operand
	Lte        *Operand
	Contains   *string
	StartsWith *string
	EndsWith   *string
	In         []any
	NotIn      []any
	// hasIn distinguishes an empty IN list (matches nothing) from no IN list.
	hasIn    bool
	hasNotIn bool
}

// HasIn reports whether an IN_LIST condition was applied.
func (f *Fragment) HasIn() bool { return f.hasIn }

// HasNotIn reports whether a NOT_IN condition was applied.
func (f *Fragment) HasNotIn() bool { return f.hasNotIn }

// Merge copies every property set on other onto f. Properties already on f
// that other leaves unset are kept, so GT and LT on one field form a range.
func (f *Fragment) Merge(other *Fragment) {
	if other.Equals != nil {
		f.Equals = other.Equals
	}
	if other.NotEquals != nil {
		f.NotEquals = other.NotEquals
	}
	if other.Gt != nil {
		f.Gt = other.Gt
	}
	if other.Gte != nil {
		f.Gte = other.Gte
	}
	if other.Lt != nil {
		f.Lt = other.Lt
	}
	if other.Lte != nil {
		f.Lte = other.Lte
	}
	if other.Contains != nil {
		f.Contains = other.Contains
	}
	if other.StartsWith != nil {
		f.StartsWith = other.StartsWith
	}
	if other.EndsWith != nil {
		f.EndsWith = other.EndsWith
	}
	if other.hasIn {
		f.In, f.hasIn = other.In, true
	}
	if other.hasNotIn {
		f.NotIn, f.hasNotIn = other.NotIn, true
	}
}

// Scope is the mandatory entity-scoping fragment: Column = Value.
type Scope struct {
	Column string
	Value  string
}

// FieldPredicate pairs a field path with its fragment.
type FieldPredicate struct {
	Field    string
	Fragment *Fragment
}

// Predicate is the logical AND of its scope, field fragments and optional
// active-sprint restriction.
type Predicate struct {
	Entity source.EntityType
	Scope  Scope
	// ActiveSprint restricts records to those whose related sprint is ACTIVE.
	ActiveSprint bool

	fields []FieldPredicate
	index  map[string]int
}

// NewPredicate returns an empty predicate for entity t.
func NewPredicate(t source.EntityType, scope Scope) Predicate {
	return Predicate{Entity: t, Scope: scope}
}

// Add merges frag into the predicate under field.
func (p *Predicate) Add(field string, frag *Fragment) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[field]; ok {
		p.fields[i].Fragment.Merge(frag)
		return
	}
	p.index[field] = len(p.fields)
	p.fields = append(p.fields, FieldPredicate{Field: field, Fragment: frag})
}

// Fields returns the field fragments in first-seen order.
func (p Predicate) Fields() []FieldPredicate {
	return p.fields
}

// Fragment returns the fragment for field, if any.
func (p Predicate) Fragment(field string) (*Fragment, bool) {
	i, ok := p.index[field]
	if !ok {
		return nil, false
	}
	return p.fields[i].Fragment, true
}
