package filter

import (
	"time"

	"github.com/aidanlsb/promptvars/internal/source"
)

// Special is the outcome of resolving a special value.
type Special struct {
	Value any
	// ActiveSprint means no value is substituted; the compiler injects the
	// active-sprint predicate and ignores the condition's field and operator.
	ActiveSprint bool
}

// ResolveSpecial maps a special value to a concrete value for ctx.
func ResolveSpecial(sv source.SpecialValue, ctx source.Context, now time.Time) (Special, bool) {
	switch sv {
	case source.SpecialCurrentUser:
		return Special{Value: ctx.UserID}, true
	case source.SpecialCurrentProjectID:
		return Special{Value: ctx.ProjectID}, true
	case source.SpecialToday, source.SpecialNow:
		return Special{Value: now}, true
	case source.SpecialActiveSprint:
		return Special{ActiveSprint: true}, true
	default:
		return Special{}, false
	}
}
