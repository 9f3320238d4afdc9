package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/promptvars/internal/source"
	"github.com/aidanlsb/promptvars/internal/store"
	"github.com/aidanlsb/promptvars/internal/ui"
)

var seedReset bool

type seedResult struct {
	Database string                    `json:"database"`
	Written  int                       `json:"written"`
	Counts   map[source.EntityType]int `json:"counts"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <fixture-file>",
	Short: "Load entities from a YAML fixture into the database",
	Long: `Load entities from a YAML fixture into the database, creating it if needed.

A fixture lists entities with their type, id, scope and fields:

  entities:
    - type: TASK
      id: t1
      projectId: P1
      updatedAt: 2026-02-01T09:00:00Z
      fields: {title: Fix bug, status: DONE, points: 3}

Entities with an existing id are replaced. Missing ids are generated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		data, err := readInput(args[0])
		if err != nil {
			return handleError(ErrFixtureInvalid, err, "")
		}
		entities, err := store.ParseFixture(data)
		if err != nil {
			return handleError(ErrFixtureInvalid, err, "")
		}

		path := databasePath()
		s, err := store.Open(path, store.WithLogger(logger))
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		defer s.Close()

		if seedReset {
			if err := s.Reset(ctx); err != nil {
				return handleError(ErrDatabaseError, err, "")
			}
		}
		if err := s.PutAll(ctx, entities); err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		counts, err := s.Stats(ctx)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(seedResult{Database: path, Written: len(entities), Counts: counts}, &Meta{Count: len(entities)})
			return nil
		}

		fmt.Println(ui.Successf("Seeded %d entities into %s", len(entities), ui.FilePath(path)))
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, string(t))
		}
		sort.Strings(types)
		tbl := ui.NewTable("ENTITY", "RECORDS")
		for _, t := range types {
			tbl.AddRow(t, fmt.Sprint(counts[source.EntityType(t)]))
		}
		fmt.Print(tbl.String())
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "Delete all existing records first")
	rootCmd.AddCommand(seedCmd)
}
