// Package template loads prompt templates and substitutes resolved variables.
package template

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	goslug "github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/promptvars/internal/source"
)

// Template is a prompt with named variable sources.
type Template struct {
	Name      string                           `yaml:"name"`
	Prompt    string                           `yaml:"prompt"`
	Variables map[string]source.VariableSource `yaml:"variables"`
}

// Resolver resolves a batch of variable sources.
type Resolver interface {
	ResolveAll(ctx context.Context, rc source.Context, sources map[string]source.VariableSource, limit int) (map[string]*string, error)
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

const (
	escOpen  = "«PVAR_ESC_OPEN»"
	escClose = "«PVAR_ESC_CLOSE»"
)

// Key normalizes a variable name so "Open Tasks", "open-tasks" and
// "OPEN TASKS" address the same variable.
func Key(name string) string {
	k := goslug.Make(name)
	if k == "" {
		k = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
	}
	return k
}

// Parse decodes a template document. Variable names are normalized with Key.
func Parse(data []byte) (*Template, error) {
	var raw Template
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	t := &Template{Name: raw.Name, Prompt: raw.Prompt, Variables: make(map[string]source.VariableSource, len(raw.Variables))}
	names := make([]string, 0, len(raw.Variables))
	for name := range raw.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := raw.Variables[name]
		key := Key(name)
		if key == "" {
			return nil, fmt.Errorf("variable name %q is empty after normalization", name)
		}
		if _, dup := t.Variables[key]; dup {
			return nil, fmt.Errorf("variable %q collides with another variable named %q", name, key)
		}
		if strings.TrimSpace(string(src.EntityType)) == "" {
			return nil, fmt.Errorf("variable %q is missing entityType", name)
		}
		t.Variables[key] = src.Normalize()
	}
	return t, nil
}

// Load reads and parses a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template file not found: %s", path)
		}
		return nil, err
	}
	return Parse(data)
}

// Placeholders returns the normalized keys referenced by content, in order of
// first appearance. Escaped placeholders are skipped.
func Placeholders(content string) []string {
	content = strings.ReplaceAll(content, `\{{`, escOpen)

	var keys []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(content, -1) {
		key := Key(m[1])
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// Referenced returns the variables the prompt actually uses.
func (t *Template) Referenced() map[string]source.VariableSource {
	out := make(map[string]source.VariableSource)
	for _, key := range Placeholders(t.Prompt) {
		if src, ok := t.Variables[key]; ok {
			out[key] = src
		}
	}
	return out
}

// Render resolves the referenced variables through r and substitutes them
// into the prompt.
func (t *Template) Render(ctx context.Context, r Resolver, rc source.Context, limit int) (string, error) {
	rendered, _, err := t.RenderValues(ctx, r, rc, limit)
	return rendered, err
}

// RenderValues is Render that also returns the resolved values by key.
func (t *Template) RenderValues(ctx context.Context, r Resolver, rc source.Context, limit int) (string, map[string]*string, error) {
	values, err := r.ResolveAll(ctx, rc, t.Referenced(), limit)
	if err != nil {
		return "", nil, err
	}
	return Apply(t.Prompt, values), values, nil
}

// Unknown returns placeholders in the prompt that name no variable.
func (t *Template) Unknown() []string {
	var out []string
	for _, key := range Placeholders(t.Prompt) {
		if _, ok := t.Variables[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

// Unused returns variables the prompt never references, sorted.
func (t *Template) Unused() []string {
	used := make(map[string]bool)
	for _, key := range Placeholders(t.Prompt) {
		used[key] = true
	}
	var out []string
	for key := range t.Variables {
		if !used[key] {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Apply substitutes {{name}} placeholders with values. Names are matched
// through Key. A nil value renders as empty; unknown placeholders are left
// as-is; \{{ and \}} produce literal braces.
func Apply(content string, values map[string]*string) string {
	if content == "" {
		return content
	}

	content = strings.ReplaceAll(content, `\{{`, escOpen)
	content = strings.ReplaceAll(content, `\}}`, escClose)

	content = placeholderRe.ReplaceAllStringFunc(content, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := values[Key(name)]
		if !ok {
			return m
		}
		if v == nil {
			return ""
		}
		return *v
	})

	content = strings.ReplaceAll(content, escOpen, "{{")
	content = strings.ReplaceAll(content, escClose, "}}")
	return content
}
