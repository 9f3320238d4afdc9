package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/promptvars/internal/engine"
	"github.com/aidanlsb/promptvars/internal/source"
	"github.com/aidanlsb/promptvars/internal/ui"
)

var resolveSourceFlag string

type resolveResult struct {
	EntityType source.EntityType `json:"entity_type"`
	Value      *string           `json:"value"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [source-file]",
	Short: "Resolve a single variable source",
	Long: `Resolve one variable source document (JSON or YAML) to its text value.

The source is read from a file, from stdin with "-", or inline with --source.

Examples:
  pvar resolve open-tasks.yaml --project P1 --user U1
  pvar resolve --source '{"entityType":"TASK","aggregation":"COUNT"}'
  cat source.json | pvar resolve - --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		switch {
		case resolveSourceFlag != "" && len(args) > 0:
			return handleErrorMsg(ErrInvalidInput, "pass either a source file or --source, not both", "")
		case resolveSourceFlag != "":
			data = []byte(resolveSourceFlag)
		case len(args) == 1:
			var err error
			if data, err = readInput(args[0]); err != nil {
				return handleError(ErrSourceInvalid, err, "")
			}
		default:
			return handleErrorMsg(ErrMissingArgument, "a source file or --source is required", "Run 'pvar resolve --help' for examples")
		}

		src, err := source.Parse(data)
		if err != nil {
			return handleError(ErrSourceInvalid, err, "A source needs at least an entityType, e.g. {\"entityType\":\"TASK\",\"aggregation\":\"COUNT\"}")
		}

		s, err := openExistingStore()
		if err != nil {
			return storeError(err)
		}
		defer s.Close()

		start := time.Now()
		value, err := newEngine(s).ResolveVariable(commandContext(cmd), resolutionContext(), src)
		if err != nil {
			if errors.Is(err, engine.ErrAuthenticationMissing) {
				return handleError(ErrAuthMissing, err, authSuggestion)
			}
			return handleError(ErrInternal, err, "")
		}
		elapsed := time.Since(start).Milliseconds()

		if isJSONOutput() {
			result := resolveResult{EntityType: src.EntityType, Value: value}
			var warnings []Warning
			if value == nil {
				warnings = append(warnings, Warning{
					Code:    WarnNoValue,
					Message: fmt.Sprintf("entity type %q produced no value", src.EntityType),
				})
			}
			outputSuccess(result, &Meta{QueryTimeMs: elapsed}, warnings...)
			return nil
		}

		if value == nil {
			fmt.Fprintln(os.Stderr, ui.Hint(ui.NoValue))
			return nil
		}
		if ui.NewDisplayContext().IsTTY {
			fmt.Println(ui.Value(value))
			return nil
		}
		fmt.Println(*value)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveSourceFlag, "source", "", "Inline variable source (JSON or YAML)")
	rootCmd.AddCommand(resolveCmd)
}
