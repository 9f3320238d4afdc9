package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/promptvars/internal/engine"
	"github.com/aidanlsb/promptvars/internal/template"
	"github.com/aidanlsb/promptvars/internal/ui"
	"github.com/aidanlsb/promptvars/internal/watcher"
)

var (
	renderWatch  bool
	renderPretty bool
)

type renderResult struct {
	Name      string             `json:"name,omitempty"`
	Prompt    string             `json:"prompt"`
	Variables map[string]*string `json:"variables"`
}

var renderCmd = &cobra.Command{
	Use:   "render <template-file>",
	Short: "Render a prompt template",
	Long: `Render a prompt template, resolving every {{variable}} it references.

A template is a YAML document:

  name: standup
  prompt: |
    Open work for {{me}}:
    {{open tasks}}
  variables:
    me: {entityType: USER, field: firstName}
    open tasks:
      entityType: TASK
      field: title
      format: BULLET_POINTS
      filters: [{field: status, operator: NEQ, value: DONE}]

Variable names are matched case-insensitively with spaces and dashes
treated alike. Use \{{ for a literal brace pair.

Examples:
  pvar render standup.yaml --user U1 --project P1
  pvar render standup.yaml --pretty
  pvar render standup.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if renderWatch && isJSONOutput() {
			return handleErrorMsg(ErrInvalidInput, "--watch cannot be combined with --json", "")
		}

		s, err := openExistingStore()
		if err != nil {
			return storeError(err)
		}
		defer s.Close()
		eng := newEngine(s)

		if !renderWatch {
			return renderOnce(commandContext(cmd), eng, path)
		}
		return renderWatching(commandContext(cmd), eng, path)
	},
}

func renderOnce(ctx context.Context, eng *engine.Engine, path string) error {
	tpl, err := template.Load(path)
	if err != nil {
		return handleError(ErrTemplateInvalid, err, "")
	}

	rendered, values, err := tpl.RenderValues(ctx, eng, resolutionContext(), getConfig().Workers())
	if err != nil {
		if errors.Is(err, engine.ErrAuthenticationMissing) {
			return handleError(ErrAuthMissing, err, authSuggestion)
		}
		return handleError(ErrInternal, err, "")
	}

	if isJSONOutput() {
		result := renderResult{Name: tpl.Name, Prompt: rendered, Variables: values}
		outputSuccess(result, &Meta{Count: len(values)}, templateWarnings(tpl)...)
		return nil
	}

	for _, w := range templateWarnings(tpl) {
		fmt.Fprintln(os.Stderr, ui.Warning(w.Message))
	}
	return printPrompt(rendered)
}

func templateWarnings(tpl *template.Template) []Warning {
	var warnings []Warning
	for _, key := range tpl.Unknown() {
		warnings = append(warnings, Warning{
			Code:    WarnUnknownPlaceholder,
			Message: fmt.Sprintf("placeholder {{%s}} has no variable source and was left as-is", key),
			Ref:     key,
		})
	}
	for _, key := range tpl.Unused() {
		warnings = append(warnings, Warning{
			Code:    WarnUnusedVariable,
			Message: fmt.Sprintf("variable %q is not referenced by the prompt", key),
			Ref:     key,
		})
	}
	return warnings
}

func printPrompt(rendered string) error {
	display := ui.NewDisplayContext()
	if renderPretty && display.IsTTY {
		out, err := ui.RenderMarkdown(rendered, display.MarkdownWidth())
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		fmt.Print(out)
		return nil
	}
	fmt.Print(rendered)
	if !strings.HasSuffix(rendered, "\n") {
		fmt.Println()
	}
	return nil
}

// renderWatching renders once, then again whenever the template or the
// database changes, until interrupted.
func renderWatching(ctx context.Context, eng *engine.Engine, path string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	render := func() {
		if err := renderOnce(ctx, eng, path); err != nil {
			fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
		}
	}
	render()

	w, err := watcher.New(watcher.Config{
		Paths:  []string{path, databasePath()},
		Logger: logger,
		OnChange: func(ctx context.Context, changed string) {
			fmt.Fprintln(os.Stderr, ui.Hint("── "+changed+" changed, re-rendering"))
			render()
		},
	})
	if err != nil {
		return handleError(ErrInternal, err, "")
	}

	fmt.Fprintln(os.Stderr, ui.Hint("Watching "+path+" (Ctrl+C to stop)"))
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return handleError(ErrInternal, err, "")
	}
	return nil
}

func init() {
	renderCmd.Flags().BoolVarP(&renderWatch, "watch", "w", false, "Re-render when the template or database changes")
	renderCmd.Flags().BoolVar(&renderPretty, "pretty", false, "Render the prompt as markdown when writing to a terminal")
	rootCmd.AddCommand(renderCmd)
}
