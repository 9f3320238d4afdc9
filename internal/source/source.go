// Package source defines variable sources: the declarative documents that say
// where a prompt-template variable gets its value.
package source

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntityType names a queryable class of project entities.
type EntityType string

const (
	EntityProject      EntityType = "PROJECT"
	EntityWorkspace    EntityType = "WORKSPACE"
	EntityUser         EntityType = "USER"
	EntityTask         EntityType = "TASK"
	EntityDocument     EntityType = "DOCUMENT"
	EntitySprint       EntityType = "SPRINT"
	EntityMember       EntityType = "MEMBER"
	EntityDateFunction EntityType = "DATE_FUNCTION"
)

// EntityTypes lists every known entity type.
var EntityTypes = []EntityType{
	EntityProject, EntityWorkspace, EntityUser, EntityTask,
	EntityDocument, EntitySprint, EntityMember, EntityDateFunction,
}

// Known reports whether t is one of EntityTypes.
func (t EntityType) Known() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Aggregation is a reduction applied across matching records.
type Aggregation string

const (
	AggregationNone         Aggregation = ""
	AggregationCount        Aggregation = "COUNT"
	AggregationSum          Aggregation = "SUM"
	AggregationAverage      Aggregation = "AVERAGE"
	AggregationList         Aggregation = "LIST_FIELD_VALUES"
	AggregationLastUpdated  Aggregation = "LAST_UPDATED_FIELD_VALUE"
	AggregationFirstCreated Aggregation = "FIRST_CREATED_FIELD_VALUE"
	AggregationMostCommon   Aggregation = "MOST_COMMON_FIELD_VALUE"
)

// Format is the textual shape of a multi-valued result.
type Format string

const (
	FormatBulletPoints   Format = "BULLET_POINTS"
	FormatCommaSeparated Format = "COMMA_SEPARATED"
	FormatPlainText      Format = "PLAIN_TEXT"
	FormatJSONArray      Format = "JSON_ARRAY"
	FormatNumberedList   Format = "NUMBERED_LIST"
)

// Operator is a filter comparison.
type Operator string

const (
	OpEq         Operator = "EQ"
	OpNeq        Operator = "NEQ"
	OpGt         Operator = "GT"
	OpGte        Operator = "GTE"
	OpLt         Operator = "LT"
	OpLte        Operator = "LTE"
	OpContains   Operator = "CONTAINS"
	OpStartsWith Operator = "STARTS_WITH"
	OpEndsWith   Operator = "ENDS_WITH"
	OpInList     Operator = "IN_LIST"
	OpNotIn      Operator = "NOT_IN"
)

// SpecialValue is a context-dependent placeholder resolved at evaluation time.
type SpecialValue string

const (
	SpecialNone             SpecialValue = ""
	SpecialCurrentUser      SpecialValue = "CURRENT_USER"
	SpecialCurrentProjectID SpecialValue = "CURRENT_PROJECT_ID"
	SpecialActiveSprint     SpecialValue = "ACTIVE_SPRINT"
	SpecialToday            SpecialValue = "TODAY"
	SpecialNow              SpecialValue = "NOW"
)

// FilterCondition is one user-authored filter clause.
type FilterCondition struct {
	Field        string       `json:"field" yaml:"field"`
	Operator     Operator     `json:"operator" yaml:"operator"`
	Value        any          `json:"value,omitempty" yaml:"value,omitempty"`
	SpecialValue SpecialValue `json:"specialValue,omitempty" yaml:"specialValue,omitempty"`
}

// VariableSource describes where a template variable's value comes from.
type VariableSource struct {
	EntityType       EntityType        `json:"entityType" yaml:"entityType"`
	Field            string            `json:"field,omitempty" yaml:"field,omitempty"`
	Aggregation      Aggregation       `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	AggregationField string            `json:"aggregationField,omitempty" yaml:"aggregationField,omitempty"`
	Filters          []FilterCondition `json:"filters,omitempty" yaml:"filters,omitempty"`
	Format           Format            `json:"format,omitempty" yaml:"format,omitempty"`
}

// OutputFormat returns the source format, defaulting to PLAIN_TEXT.
func (s VariableSource) OutputFormat() Format {
	if s.Format == "" {
		return FormatPlainText
	}
	return s.Format
}

// TargetField is the field the source projects: the aggregation field when an
// aggregation names one, otherwise Field.
func (s VariableSource) TargetField() string {
	if s.Aggregation != AggregationNone && s.AggregationField != "" {
		return s.AggregationField
	}
	return s.Field
}

// Normalize upper-cases enum values and trims field names.
func (s VariableSource) Normalize() VariableSource {
	s.EntityType = EntityType(upper(string(s.EntityType)))
	s.Aggregation = Aggregation(upper(string(s.Aggregation)))
	s.Format = Format(upper(string(s.Format)))
	s.Field = strings.TrimSpace(s.Field)
	s.AggregationField = strings.TrimSpace(s.AggregationField)

	if len(s.Filters) > 0 {
		filters := make([]FilterCondition, len(s.Filters))
		for i, f := range s.Filters {
			f.Field = strings.TrimSpace(f.Field)
			f.Operator = Operator(upper(string(f.Operator)))
			f.SpecialValue = SpecialValue(upper(string(f.SpecialValue)))
			filters[i] = f
		}
		s.Filters = filters
	}
	return s
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Parse decodes a variable source from JSON or YAML.
// Unknown entity types are not rejected here; they resolve to no value.
func Parse(data []byte) (VariableSource, error) {
	var src VariableSource
	if err := yaml.Unmarshal(data, &src); err != nil {
		return VariableSource{}, fmt.Errorf("failed to parse variable source: %w", err)
	}
	if strings.TrimSpace(string(src.EntityType)) == "" {
		return VariableSource{}, fmt.Errorf("variable source is missing entityType")
	}
	return src.Normalize(), nil
}

// ParseFile reads and decodes a variable source file.
func ParseFile(path string) (VariableSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return VariableSource{}, fmt.Errorf("source file not found: %s", path)
		}
		return VariableSource{}, err
	}
	return Parse(data)
}
