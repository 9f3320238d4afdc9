package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/promptvars/internal/engine"
	"github.com/aidanlsb/promptvars/internal/source"
	"github.com/aidanlsb/promptvars/internal/store"
)

const authSuggestion = "Pass --user <id> or set user_id under [context] in config.toml"

// resolutionContext merges the configured context with flag overrides.
func resolutionContext() source.Context {
	rc := getConfig().Context
	if v := strings.TrimSpace(userFlag); v != "" {
		rc.UserID = v
	}
	if v := strings.TrimSpace(projectFlag); v != "" {
		rc.ProjectID = v
	}
	if v := strings.TrimSpace(workspaceFlag); v != "" {
		rc.WorkspaceID = v
	}
	return rc
}

// databasePath returns --db or the configured database.
func databasePath() string {
	if dbPathFlag != "" {
		return dbPathFlag
	}
	return getConfig().DatabasePath()
}

var errDatabaseMissing = errors.New("database not found")

// openExistingStore opens the database for reading. A missing file is an
// error rather than a fresh empty database.
func openExistingStore() (*store.Store, error) {
	path := databasePath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errDatabaseMissing, path)
		}
		return nil, err
	}
	return store.Open(path, store.WithLogger(logger))
}

// storeError maps a failure from openExistingStore onto the JSON envelope.
func storeError(err error) error {
	if errors.Is(err, errDatabaseMissing) {
		return handleError(ErrDatabaseNotFound, err, "Run 'pvar seed <fixture.yaml>' to create it, or pass --db")
	}
	return handleError(ErrDatabaseError, err, "")
}

var _ engine.Store = (*store.Store)(nil)

func newEngine(s engine.Store) *engine.Engine {
	return engine.New(s, engine.WithLogger(logger))
}

// readInput reads a file argument, with "-" meaning stdin.
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}
	return data, nil
}

// commandContext returns the command context, which is nil when a command's
// RunE is invoked directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
