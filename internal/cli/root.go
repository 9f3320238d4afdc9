// Package cli implements the command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aidanlsb/promptvars/internal/config"
	"github.com/aidanlsb/promptvars/internal/ui"
)

var (
	// Global flags
	configPath    string
	dbPathFlag    string
	verbose       bool
	userFlag      string
	projectFlag   string
	workspaceFlag string

	// Resolved values
	cfg    *config.Config
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pvar",
	Short: "pvar - resolve prompt template variables against project data",
	Long: `pvar resolves declarative variable sources (counts, sums, lists and
field values over tasks, documents, sprints and members) into text, and
renders prompt templates whose {{placeholders}} name those sources.

Values are read from a local SQLite database populated with 'pvar seed'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands that must work with a broken or missing config.
		switch cmd.Name() {
		case "completion", "help", "version", "path", "init":
			cfg = &config.Config{}
			return initLogger(zapcore.InfoLevel)
		}

		var err error
		cfg, err = loadConfig()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "Fix the config file or pass --config")
		}
		ui.ConfigureTheme(cfg.UI.Accent)
		ui.ConfigureMarkdownCodeTheme(cfg.UI.CodeTheme)

		level, err := cfg.Level()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		return initLogger(level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "Path to the SQLite database (overrides database in config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for agent/script use)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Current user id (overrides [context] user_id)")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Current project id (overrides [context] project_id)")
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "", "Current workspace id (overrides [context] workspace_id)")
}

// initLogger builds the process logger: JSON to stderr at level, or debug
// with --verbose.
func initLogger(level zapcore.Level) error {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	built, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = built
	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// getConfig returns the loaded config.
func getConfig() *config.Config {
	if cfg == nil {
		return &config.Config{}
	}
	return cfg
}
