// Package format renders lists of resolved values into prompt text.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aidanlsb/promptvars/internal/source"
)

// Render joins values according to f. Nil entries are dropped first; an
// empty list renders as "".
func Render(values []*string, f source.Format) string {
	items := Compact(values)
	if len(items) == 0 {
		return ""
	}

	switch f {
	case source.FormatBulletPoints:
		lines := make([]string, len(items))
		for i, v := range items {
			lines[i] = "- " + v
		}
		return strings.Join(lines, "\n")
	case source.FormatCommaSeparated:
		return strings.Join(items, ", ")
	case source.FormatJSONArray:
		return jsonArray(items)
	case source.FormatNumberedList:
		lines := make([]string, len(items))
		for i, v := range items {
			lines[i] = fmt.Sprintf("%d. %s", i+1, v)
		}
		return strings.Join(lines, "\n")
	default:
		return strings.Join(items, "\n\n")
	}
}

// Compact returns the non-nil values in order.
func Compact(values []*string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func jsonArray(items []string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
