package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/promptvars/internal/dates"
	"github.com/aidanlsb/promptvars/internal/entity"
	"github.com/aidanlsb/promptvars/internal/source"
	"github.com/aidanlsb/promptvars/internal/ui"
)

type fieldInfo struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
}

type entityInfo struct {
	Type         source.EntityType `json:"type"`
	WindowLimit  int               `json:"window_limit,omitempty"`
	DisplayField string            `json:"display_field,omitempty"`
	Fields       []fieldInfo       `json:"fields,omitempty"`
	Functions    []string          `json:"functions,omitempty"`
}

var fieldsCmd = &cobra.Command{
	Use:   "fields [ENTITY]",
	Short: "List the fields each entity type allows for filtering and selection",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		types := source.EntityTypes
		if len(args) == 1 {
			t := source.EntityType(strings.ToUpper(strings.TrimSpace(args[0])))
			if !t.Known() {
				return handleErrorMsg(ErrEntityUnknown, fmt.Sprintf("unknown entity type %q", args[0]),
					"Known types: "+joinTypes(source.EntityTypes))
			}
			types = []source.EntityType{t}
		}

		infos := make([]entityInfo, 0, len(types))
		for _, t := range types {
			infos = append(infos, describeEntity(t))
		}

		if isJSONOutput() {
			outputSuccess(infos, &Meta{Count: len(infos)})
			return nil
		}

		for i, info := range infos {
			if i > 0 {
				fmt.Println()
			}
			fmt.Println(ui.Header(string(info.Type)) + " " + ui.Hint(entitySummary(info)))
			if len(info.Functions) > 0 {
				fmt.Println("  functions: " + strings.Join(info.Functions, ", "))
				continue
			}
			tbl := ui.NewTable("FIELD", "KIND", "TARGET")
			for _, f := range info.Fields {
				tbl.AddRow(f.Name, f.Kind, f.Target)
			}
			fmt.Print(tbl.String())
		}
		return nil
	},
}

func describeEntity(t source.EntityType) entityInfo {
	info := entityInfo{Type: t}
	if t == source.EntityDateFunction {
		info.Functions = dates.FunctionNames()
		return info
	}

	e, ok := entity.Get(t)
	if !ok {
		return info
	}
	info.WindowLimit = e.WindowLimit
	info.DisplayField = e.DisplayField
	for _, name := range e.FieldNames() {
		f, _ := e.Field(name)
		fi := fieldInfo{Name: name, Kind: f.Kind.String()}
		if f.Kind == entity.KindRelation {
			fi.Target = string(f.Target)
		}
		info.Fields = append(info.Fields, fi)
	}
	return info
}

func entitySummary(info entityInfo) string {
	if len(info.Functions) > 0 {
		return "(resolved without the database)"
	}
	return fmt.Sprintf("%s window %d, default field %s", ui.Count(len(info.Fields), "field", "fields"), info.WindowLimit, info.DisplayField)
}

func joinTypes(types []source.EntityType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}
