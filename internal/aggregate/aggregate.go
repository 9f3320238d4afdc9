// Package aggregate reduces fetched record values to a single variable value.
package aggregate

import (
	"strconv"

	"github.com/aidanlsb/promptvars/internal/filter"
	"github.com/aidanlsb/promptvars/internal/source"
)

// Marker is a soft failure rendered verbatim as the variable's value.
type Marker struct {
	text string
}

func (m *Marker) Error() string { return m.text }

// Text returns the marker string.
func (m *Marker) Text() string { return m.text }

var (
	ErrMissingAggregationField = &Marker{"N/A (Aggregation field not specified)"}
	ErrNoNumericData           = &Marker{"N/A (No numeric data to aggregate)"}
	ErrUnsupportedAggregation  = &Marker{"N/A (Unsupported aggregation)"}
)

// Input is what the query executor produced for an aggregation.
type Input struct {
	// Field is the aggregation field; empty when the source named none.
	Field string
	// Count is set for COUNT.
	Count int64
	// Sum is set for SUM; nil when no record had a numeric value.
	Sum *float64
	// Values is the recency-ordered window of projected values, already
	// stringified, with nil entries for records lacking the field.
	Values []*string
}

// Output is either a single string or a list for the output formatter.
type Output struct {
	Text   string
	List   []*string
	IsList bool
}

// Apply reduces in according to kind. Soft failures are returned as *Marker
// errors.
func Apply(kind source.Aggregation, in Input) (Output, error) {
	switch kind {
	case source.AggregationCount:
		return Output{Text: strconv.FormatInt(in.Count, 10)}, nil

	case source.AggregationSum:
		if in.Field == "" {
			return Output{}, ErrMissingAggregationField
		}
		if in.Sum == nil {
			return Output{}, ErrNoNumericData
		}
		return Output{Text: FormatNumber(*in.Sum)}, nil

	case source.AggregationAverage:
		if in.Field == "" {
			return Output{}, ErrMissingAggregationField
		}
		return average(in.Values)

	case source.AggregationList:
		return Output{List: in.Values, IsList: true}, nil

	// The window holds at most the entity's window limit (50), newest first,
	// so LAST_UPDATED is exact while FIRST_CREATED is the oldest record of the
	// window rather than of the whole table.
	case source.AggregationLastUpdated:
		if len(in.Values) == 0 {
			return Output{}, nil
		}
		return Output{Text: deref(in.Values[0])}, nil

	case source.AggregationFirstCreated:
		if len(in.Values) == 0 {
			return Output{}, nil
		}
		return Output{Text: deref(in.Values[len(in.Values)-1])}, nil

	case source.AggregationMostCommon:
		return Output{Text: mostCommon(in.Values)}, nil

	default:
		return Output{}, ErrUnsupportedAggregation
	}
}

func average(values []*string) (Output, error) {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil {
			continue
		}
		f, ok := filter.ToNumber(*v)
		if !ok {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return Output{}, ErrNoNumericData
	}
	return Output{Text: FormatNumber(sum / float64(n))}, nil
}

// mostCommon returns the most frequent non-nil value; ties go to the value
// seen first, which is the most recently updated.
func mostCommon(values []*string) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, v := range values {
		if v == nil {
			continue
		}
		counts[*v]++
	}
	for _, v := range values {
		if v == nil {
			continue
		}
		if c := counts[*v]; c > bestCount {
			best, bestCount = *v, c
		}
	}
	return best
}

// FormatNumber renders f without a trailing ".0" for whole numbers.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
