package filter

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aidanlsb/promptvars/internal/source"
)

var (
	testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	testCtx = source.Context{UserID: "U1", ProjectID: "P1", WorkspaceID: "W1"}
)

func newTestCompiler() *Compiler {
	return NewCompiler(WithClock(func() time.Time { return testNow }))
}

func strPtr(s string) *string { return &s }

func TestCompileDropsDisallowedFields(t *testing.T) {
	c := newTestCompiler()
	p := c.Compile(source.EntityTask, []source.FilterCondition{
		{Field: "secretColumn", Operator: source.OpEq, Value: "x"},
		{Field: "status", Operator: source.OpEq, Value: "DONE"},
	}, testCtx)

	fields := p.Fields()
	if len(fields) != 1 || fields[0].Field != "status" {
		t.Fatalf("expected only status fragment, got %+v", fields)
	}
	if _, ok := p.Fragment("secretColumn"); ok {
		t.Fatal("disallowed field should not be compiled")
	}
}

func TestCompileScope(t *testing.T) {
	tests := []struct {
		entity source.EntityType
		want   Scope
	}{
		{source.EntityTask, Scope{Column: "project_id", Value: "P1"}},
		{source.EntityDocument, Scope{Column: "project_id", Value: "P1"}},
		{source.EntitySprint, Scope{Column: "project_id", Value: "P1"}},
		{source.EntityMember, Scope{Column: "project_id", Value: "P1"}},
		{source.EntityProject, Scope{Column: "id", Value: "P1"}},
		{source.EntityWorkspace, Scope{Column: "id", Value: "W1"}},
		{source.EntityUser, Scope{Column: "id", Value: "U1"}},
		{source.EntityType("INVOICE"), Scope{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.entity), func(t *testing.T) {
			p := newTestCompiler().Compile(tt.entity, nil, testCtx)
			if p.Scope != tt.want {
				t.Errorf("scope = %+v, want %+v", p.Scope, tt.want)
			}
		})
	}
}

func TestSpecialValueOverridesLiteral(t *testing.T) {
	p := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
		{Field: "assigneeId", Operator: source.OpEq, Value: "someone-else", SpecialValue: source.SpecialCurrentUser},
	}, testCtx)

	frag, ok := p.Fragment("assigneeId")
	if !ok {
		t.Fatal("expected assigneeId fragment")
	}
	want := &Operand{Mode: CompareString, Value: "U1"}
	if diff := cmp.Diff(want, frag.Equals); diff != "" {
		t.Errorf("Equals mismatch (-want +got):\n%s", diff)
	}
}

func TestSpecialTodayComparesAsDate(t *testing.T) {
	p := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
		{Field: "dueDate", Operator: source.OpLt, SpecialValue: source.SpecialToday},
	}, testCtx)

	frag, _ := p.Fragment("dueDate")
	if frag == nil || frag.Lt == nil {
		t.Fatal("expected dueDate LT fragment")
	}
	if frag.Lt.Mode != CompareDate {
		t.Errorf("mode = %s, want date", frag.Lt.Mode)
	}
	if got, ok := frag.Lt.Value.(time.Time); !ok || !got.Equal(testNow) {
		t.Errorf("value = %v, want %v", frag.Lt.Value, testNow)
	}
}

func TestActiveSprint(t *testing.T) {
	sprint := newTestCompiler().Compile(source.EntitySprint, []source.FilterCondition{
		{Field: "name", Operator: source.OpContains, Value: "ignored", SpecialValue: source.SpecialActiveSprint},
	}, testCtx)
	if _, ok := sprint.Fragment("name"); ok {
		t.Error("ACTIVE_SPRINT should ignore the condition's own field")
	}
	status, ok := sprint.Fragment("status")
	if !ok || status.Equals == nil || status.Equals.Value != ActiveStatus {
		t.Fatalf("expected status = ACTIVE on sprint query, got %+v", status)
	}

	task := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
		{Field: "sprintId", Operator: source.OpEq, Value: "S9", SpecialValue: source.SpecialActiveSprint},
	}, testCtx)
	if !task.ActiveSprint {
		t.Error("expected task predicate to restrict to the active sprint")
	}
	if len(task.Fields()) != 0 {
		t.Errorf("expected no field fragments, got %+v", task.Fields())
	}

	doc := newTestCompiler().Compile(source.EntityDocument, []source.FilterCondition{
		{Field: "title", Operator: source.OpEq, SpecialValue: source.SpecialActiveSprint},
	}, testCtx)
	if doc.ActiveSprint || len(doc.Fields()) != 0 {
		t.Errorf("ACTIVE_SPRINT on DOCUMENT should be a no-op, got %+v", doc)
	}
}

func TestCategoricalNormalization(t *testing.T) {
	p := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
		{Field: "status", Operator: source.OpEq, Value: "done"},
		{Field: "priority", Operator: source.OpInList, Value: []any{"high", "urgent"}},
		{Field: "title", Operator: source.OpEq, Value: "lower case"},
	}, testCtx)

	status, _ := p.Fragment("status")
	if status.Equals.Value != "DONE" {
		t.Errorf("status = %v, want DONE", status.Equals.Value)
	}
	priority, _ := p.Fragment("priority")
	if diff := cmp.Diff([]any{"HIGH", "URGENT"}, priority.In); diff != "" {
		t.Errorf("priority IN mismatch (-want +got):\n%s", diff)
	}
	title, _ := p.Fragment("title")
	if title.Equals.Value != "lower case" {
		t.Errorf("title should keep case, got %v", title.Equals.Value)
	}
}

func TestOrderingOperandPrecedence(t *testing.T) {
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value any
		want  Operand
	}{
		{"time value", day, Operand{Mode: CompareDate, Value: day}},
		{"iso date string", "2025-01-15", Operand{Mode: CompareDate, Value: day}},
		{"iso datetime string", "2025-01-15T00:00:00Z", Operand{Mode: CompareDate, Value: day}},
		{"numeric string", "2025", Operand{Mode: CompareNumber, Value: 2025.0}},
		{"float", 3.5, Operand{Mode: CompareNumber, Value: 3.5}},
		{"int", 7, Operand{Mode: CompareNumber, Value: 7.0}},
		{"plain string", "medium", Operand{Mode: CompareString, Value: "medium"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orderingOperand(tt.value)
			if got.Mode != tt.want.Mode {
				t.Fatalf("mode = %s, want %s", got.Mode, tt.want.Mode)
			}
			if gt, ok := got.Value.(time.Time); ok {
				if !gt.Equal(tt.want.Value.(time.Time)) {
					t.Errorf("value = %v, want %v", got.Value, tt.want.Value)
				}
				return
			}
			if got.Value != tt.want.Value {
				t.Errorf("value = %#v, want %#v", got.Value, tt.want.Value)
			}
		})
	}
}

func TestRangeMerge(t *testing.T) {
	p := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
		{Field: "points", Operator: source.OpGt, Value: 2},
		{Field: "points", Operator: source.OpLte, Value: "8"},
	}, testCtx)

	frag, ok := p.Fragment("points")
	if !ok {
		t.Fatal("expected points fragment")
	}
	if frag.Gt == nil || frag.Gt.Value != 2.0 {
		t.Errorf("Gt = %+v, want 2", frag.Gt)
	}
	if frag.Lte == nil || frag.Lte.Value != 8.0 || frag.Lte.Mode != CompareNumber {
		t.Errorf("Lte = %+v, want numeric 8", frag.Lte)
	}
	if len(p.Fields()) != 1 {
		t.Errorf("expected a single merged fragment, got %d", len(p.Fields()))
	}
}

func TestStringOperators(t *testing.T) {
	p := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
		{Field: "title", Operator: source.OpContains, Value: "bug"},
		{Field: "title", Operator: source.OpStartsWith, Value: "Fix"},
		{Field: "labels", Operator: source.OpEndsWith, Value: "ui"},
	}, testCtx)

	title, _ := p.Fragment("title")
	want := &Fragment{Contains: strPtr("bug"), StartsWith: strPtr("Fix")}
	if diff := cmp.Diff(want, title, cmp.AllowUnexported(Fragment{})); diff != "" {
		t.Errorf("title fragment mismatch (-want +got):\n%s", diff)
	}
	labels, _ := p.Fragment("labels")
	if labels.EndsWith == nil || *labels.EndsWith != "ui" {
		t.Errorf("labels EndsWith = %v", labels.EndsWith)
	}
}

func TestListOperators(t *testing.T) {
	p := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
		{Field: "assigneeId", Operator: source.OpInList, Value: "U1, U2,,"},
		{Field: "reporterId", Operator: source.OpNotIn, Value: []any{"U3"}},
		{Field: "sprintId", Operator: source.OpInList, Value: []any{}},
	}, testCtx)

	assignee, _ := p.Fragment("assigneeId")
	if diff := cmp.Diff([]any{"U1", "U2"}, assignee.In); diff != "" {
		t.Errorf("IN mismatch (-want +got):\n%s", diff)
	}
	reporter, _ := p.Fragment("reporterId")
	if !reporter.HasNotIn() || len(reporter.NotIn) != 1 {
		t.Errorf("unexpected NOT_IN fragment: %+v", reporter)
	}
	sprint, _ := p.Fragment("sprintId")
	if !sprint.HasIn() || len(sprint.In) != 0 {
		t.Errorf("empty IN list should still be applied: %+v", sprint)
	}
}

func TestNumericEqualityOnNumberField(t *testing.T) {
	p := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
		{Field: "points", Operator: source.OpEq, Value: "5"},
	}, testCtx)
	frag, _ := p.Fragment("points")
	if frag.Equals.Mode != CompareNumber || frag.Equals.Value != 5.0 {
		t.Errorf("Equals = %+v, want numeric 5", frag.Equals)
	}
}

func TestDateEqualityOnDateField(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		field string
		value any
		want  Operand
	}{
		{"date string", "dueDate", "2026-01-10", Operand{Mode: CompareDay, Value: day}},
		{"time value", "dueDate", day, Operand{Mode: CompareDay, Value: day}},
		{"datetime string", "dueDate", "2026-01-10T00:00:00Z", Operand{Mode: CompareDate, Value: day}},
		{"plain text on date field", "dueDate", "soon", Operand{Mode: CompareString, Value: "soon"}},
		{"date string on text field", "title", "2026-01-10", Operand{Mode: CompareString, Value: "2026-01-10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
				{Field: tt.field, Operator: source.OpEq, Value: tt.value},
			}, testCtx)
			frag, ok := p.Fragment(tt.field)
			if !ok {
				t.Fatalf("expected %s fragment", tt.field)
			}
			if diff := cmp.Diff(&tt.want, frag.Equals); diff != "" {
				t.Errorf("Equals mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnknownOperatorDropped(t *testing.T) {
	p := newTestCompiler().Compile(source.EntityTask, []source.FilterCondition{
		{Field: "title", Operator: source.Operator("LIKE"), Value: "x"},
	}, testCtx)
	if len(p.Fields()) != 0 {
		t.Errorf("expected unknown operator to be dropped, got %+v", p.Fields())
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{3.0, "3"},
		{2.5, "2.5"},
		{true, "true"},
		{time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "2026-01-02T03:04:05.000Z"},
		{[]any{"a", 1.0}, `["a",1]`},
	}
	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
