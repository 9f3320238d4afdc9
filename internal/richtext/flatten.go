// Package richtext flattens block-structured rich-text documents into plain
// text suitable for prompt injection.
package richtext

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxDecodeDepth bounds repeated JSON decoding of string-encoded documents.
const MaxDecodeDepth = 5

var mediaTypes = map[string]bool{
	"image": true,
	"video": true,
	"audio": true,
	"file":  true,
}

// Flatten converts a document value to flat text. The value may be a plain
// string, a JSON-encoded string (possibly encoded several times), a list of
// blocks, or a single block.
func Flatten(doc any) string {
	v := decode(doc)

	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		return flattenBlocks(x)
	case map[string]any:
		return flattenBlocks([]any{x})
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// decode unwraps JSON-encoded strings until the value is no longer a JSON
// string or MaxDecodeDepth is reached.
func decode(v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	for i := 0; i < MaxDecodeDepth; i++ {
		s, ok := v.(string)
		if !ok {
			return v
		}
		trimmed := strings.TrimSpace(s)
		if trimmed == "" || !json.Valid([]byte(trimmed)) {
			return v
		}
		var next any
		if err := json.Unmarshal([]byte(trimmed), &next); err != nil {
			return v
		}
		// A bare JSON number or boolean is still just text.
		switch next.(type) {
		case float64, bool:
			return v
		}
		v = next
	}
	return v
}

func flattenBlocks(blocks []any) string {
	parts := make([]string, 0, len(blocks))
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			if s, isString := raw.(string); isString && strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
			continue
		}
		if text := renderBlock(block); strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
		if children, ok := block["children"].([]any); ok && len(children) > 0 {
			if text := flattenBlocks(children); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

func renderBlock(block map[string]any) string {
	blockType, _ := block["type"].(string)
	props, _ := block["props"].(map[string]any)

	if blockType == "table" {
		return renderTable(block["content"])
	}
	if mediaTypes[blockType] {
		return renderMedia(blockType, props)
	}

	text := InlineText(block["content"])
	if strings.TrimSpace(text) == "" {
		return ""
	}
	switch blockType {
	case "heading":
		level := min(max(intProp(props, "level", 1), 1), maxHeadingLevel)
		return strings.Repeat("#", level) + " " + text
	case "bulletListItem":
		return "• " + text
	case "numberedListItem":
		return fmt.Sprintf("%d. %s", intProp(props, "start", 1), text)
	case "checkListItem":
		if checked, _ := props["checked"].(bool); checked {
			return "[x] " + text
		}
		return "[ ] " + text
	case "codeBlock":
		language, _ := props["language"].(string)
		return "```" + language + "\n" + text + "\n```"
	default:
		return text
	}
}

func renderMedia(blockType string, props map[string]any) string {
	name := stringProp(props, "caption")
	if name == "" {
		name = stringProp(props, "name")
	}
	if name == "" {
		name = blockType
	}
	return fmt.Sprintf("[%s: %s](%s)", strings.ToUpper(blockType), name, stringProp(props, "url"))
}

// renderTable renders table content as one "| a | b |" line per row. Content
// is either {rows: [...]} or a bare row list; a row is {cells: [...]} or a
// bare cell list; a cell is an inline list or {content: inline list}.
func renderTable(content any) string {
	var rows []any
	switch c := content.(type) {
	case map[string]any:
		rows, _ = c["rows"].([]any)
	case []any:
		rows = c
	}

	lines := make([]string, 0, len(rows))
	for _, rawRow := range rows {
		var cells []any
		switch r := rawRow.(type) {
		case map[string]any:
			cells, _ = r["cells"].([]any)
		case []any:
			cells = r
		}

		texts := make([]string, len(cells))
		for i, cell := range cells {
			if m, ok := cell.(map[string]any); ok {
				if inner, has := m["content"]; has {
					texts[i] = InlineText(inner)
					continue
				}
			}
			texts[i] = InlineText(cell)
		}
		lines = append(lines, "| "+strings.Join(texts, " | ")+" |")
	}
	return strings.Join(lines, "\n")
}

// InlineText concatenates the text of inline content. Link items contribute
// their href rather than their display text.
func InlineText(content any) string {
	switch c := content.(type) {
	case nil:
		return ""
	case string:
		return c
	case map[string]any:
		return inlineItem(c)
	case []any:
		var sb strings.Builder
		for _, item := range c {
			switch it := item.(type) {
			case string:
				sb.WriteString(it)
			case map[string]any:
				sb.WriteString(inlineItem(it))
			}
		}
		return sb.String()
	default:
		return ""
	}
}

func inlineItem(item map[string]any) string {
	if t, _ := item["type"].(string); t == "link" {
		href, _ := item["href"].(string)
		return href
	}
	text, _ := item["text"].(string)
	return text
}

func stringProp(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}

// maxHeadingLevel bounds the "#" prefix of a heading.
const maxHeadingLevel = 6

func intProp(props map[string]any, key string, def int) int {
	if props == nil {
		return def
	}
	switch v := props[key].(type) {
	case float64:
		return int(max(min(v, math.MaxInt32), math.MinInt32))
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}
