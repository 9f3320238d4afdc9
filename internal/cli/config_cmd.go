package cli

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/promptvars/internal/config"
	"github.com/aidanlsb/promptvars/internal/source"
	"github.com/aidanlsb/promptvars/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the global configuration",
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a commented default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultAt(resolvedConfigPath())
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		if isJSONOutput() {
			outputSuccess(map[string]string{"path": path}, nil)
			return nil
		}
		fmt.Println(ui.Successf("Config ready at %s", ui.FilePath(path)))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedConfigPath()
		if isJSONOutput() {
			outputSuccess(map[string]string{"path": path}, nil)
			return nil
		}
		fmt.Println(path)
		return nil
	},
}

type effectiveConfig struct {
	Database    string          `toml:"database" json:"database"`
	LogLevel    string          `toml:"log_level" json:"log_level"`
	Concurrency int             `toml:"concurrency" json:"concurrency"`
	Context     source.Context  `toml:"context" json:"context"`
	UI          config.UIConfig `toml:"ui" json:"ui"`
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration, with flags applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getConfig()
		level, _ := c.Level()

		eff := effectiveConfig{
			Database:    databasePath(),
			LogLevel:    level.String(),
			Concurrency: c.Workers(),
			Context:     resolutionContext(),
			UI:          c.UI,
		}

		if isJSONOutput() {
			outputSuccess(eff, nil)
			return nil
		}

		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(eff); err != nil {
			return handleError(ErrInternal, err, "")
		}
		fmt.Print(buf.String())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configPathCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
