package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseJSON(t *testing.T) {
	data := []byte(`{
    "entityType": "task",
    "field": "title",
    "filters": [
      {"field": "status", "operator": "eq", "value": "DONE"},
      {"field": "points", "operator": "GTE", "value": 3},
      {"field": "assigneeId", "operator": "EQ", "specialValue": "current_user"}
    ],
    "format": "bullet_points"
	}`)

	src, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	want := VariableSource{
		EntityType: EntityTask,
		Field:      "title",
		Filters: []FilterCondition{
			{Field: "status", Operator: OpEq, Value: "DONE"},
			{Field: "points", Operator: OpGte, Value: 3},
			{Field: "assigneeId", Operator: OpEq, SpecialValue: SpecialCurrentUser},
		},
		Format: FormatBulletPoints,
	}
	if diff := cmp.Diff(want, src); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
entityType: SPRINT
aggregation: count
filters:
  - field: status
    operator: IN_LIST
    value: [active, planned]
`)
	src, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if src.Aggregation != AggregationCount {
		t.Errorf("Aggregation = %q, want COUNT", src.Aggregation)
	}
	if got := src.OutputFormat(); got != FormatPlainText {
		t.Errorf("OutputFormat() = %q, want PLAIN_TEXT", got)
	}
	list, ok := src.Filters[0].Value.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected list value, got %#v", src.Filters[0].Value)
	}
}

func TestParseRejectsMissingEntityType(t *testing.T) {
	if _, err := Parse([]byte(`{"field": "title"}`)); err == nil {
		t.Fatal("expected error for missing entityType")
	}
	if _, err := Parse([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed document")
	}
}

func TestParseKeepsUnknownEntityType(t *testing.T) {
	src, err := Parse([]byte(`{"entityType": "INVOICE"}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if src.EntityType.Known() {
		t.Fatalf("expected INVOICE to be unknown")
	}
}

func TestTargetField(t *testing.T) {
	tests := []struct {
		name string
		src  VariableSource
		want string
	}{
		{"plain projection", VariableSource{Field: "title"}, "title"},
		{"aggregation field wins", VariableSource{Field: "title", Aggregation: AggregationAverage, AggregationField: "points"}, "points"},
		{"aggregation without field", VariableSource{Field: "title", Aggregation: AggregationList}, "title"},
		{"aggregation field without aggregation", VariableSource{Field: "title", AggregationField: "points"}, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.src.TargetField(); got != tt.want {
				t.Errorf("TargetField() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "open-tasks.yaml")
	if err := os.WriteFile(path, []byte("entityType: TASK\naggregation: COUNT\n"), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if src.EntityType != EntityTask {
		t.Errorf("EntityType = %q, want TASK", src.EntityType)
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
