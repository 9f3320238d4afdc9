package dates

import (
	"strconv"
	"strings"
	"time"
)

// Function names accepted by DATE_FUNCTION sources.
const (
	FuncToday     = "today"
	FuncNow       = "now"
	FuncTomorrow  = "tomorrow"
	FuncYesterday = "yesterday"
	FuncWeekday   = "weekday"
	FuncMonth     = "month"
	FuncYear      = "year"
	FuncWeekStart = "week_start"
	FuncWeekEnd   = "week_end"
)

var functionNames = []string{
	FuncToday, FuncNow, FuncTomorrow, FuncYesterday,
	FuncWeekday, FuncMonth, FuncYear, FuncWeekStart, FuncWeekEnd,
}

// FunctionNames lists the supported date functions in display order.
func FunctionNames() []string {
	out := make([]string, len(functionNames))
	copy(out, functionNames)
	return out
}

// NormalizeFunction lower-cases and trims a date-function name.
// An empty name means today.
func NormalizeFunction(name string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return FuncToday, true
	}
	for _, fn := range functionNames {
		if fn == normalized {
			return fn, true
		}
	}
	return "", false
}

// EvalFunction resolves a date function against now.
func EvalFunction(name string, now time.Time) (string, bool) {
	fn, ok := NormalizeFunction(name)
	if !ok {
		return "", false
	}

	switch fn {
	case FuncToday:
		return now.Format(DateLayout), true
	case FuncNow:
		return FormatISO(now), true
	case FuncTomorrow:
		return now.AddDate(0, 0, 1).Format(DateLayout), true
	case FuncYesterday:
		return now.AddDate(0, 0, -1).Format(DateLayout), true
	case FuncWeekday:
		return now.Weekday().String(), true
	case FuncMonth:
		return now.Month().String(), true
	case FuncYear:
		return strconv.Itoa(now.Year()), true
	case FuncWeekStart:
		return StartOfWeek(now).Format(DateLayout), true
	case FuncWeekEnd:
		return EndOfWeek(now).Format(DateLayout), true
	}
	return "", false
}
