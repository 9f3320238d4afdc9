package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aidanlsb/promptvars/internal/aggregate"
	"github.com/aidanlsb/promptvars/internal/filter"
	"github.com/aidanlsb/promptvars/internal/source"
)

var (
	fixedNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	ctxP1    = source.Context{UserID: "U1", ProjectID: "P1", WorkspaceID: "W1"}
)

type findCall struct {
	pred  filter.Predicate
	proj  filter.Projection
	limit int
}

type fakeStore struct {
	mu      sync.Mutex
	count   int64
	sum     *float64
	records []source.Record
	err     error

	counts    int
	countArgs []filter.Predicate
	sums      []string
	finds     []findCall
}

func (f *fakeStore) Count(ctx context.Context, p filter.Predicate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	f.countArgs = append(f.countArgs, p)
	return f.count, f.err
}

func (f *fakeStore) Sum(ctx context.Context, p filter.Predicate, field string) (*float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sums = append(f.sums, field)
	return f.sum, f.err
}

func (f *fakeStore) FindMany(ctx context.Context, p filter.Predicate, proj filter.Projection, order filter.Order, limit int) ([]source.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds = append(f.finds, findCall{pred: p, proj: proj, limit: limit})
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts + len(f.sums) + len(f.finds)
}

func newTestEngine(s Store) *Engine {
	return New(s, WithClock(func() time.Time { return fixedNow }))
}

func resolve(t *testing.T, e *Engine, src source.VariableSource) *string {
	t.Helper()
	v, err := e.ResolveVariable(context.Background(), ctxP1, src)
	if err != nil {
		t.Fatalf("ResolveVariable() error = %v", err)
	}
	return v
}

func mustText(t *testing.T, v *string) string {
	t.Helper()
	if v == nil {
		t.Fatal("ResolveVariable() = nil, want a value")
	}
	return *v
}

func titleRecords(titles ...any) []source.Record {
	out := make([]source.Record, len(titles))
	for i, title := range titles {
		out[i] = source.Record{"title": title}
	}
	return out
}

func TestUnknownEntityTypeResolvesToNil(t *testing.T) {
	fs := &fakeStore{}
	e := newTestEngine(fs)

	for _, et := range []string{"INVOICE", "", "tasks"} {
		v := resolve(t, e, source.VariableSource{EntityType: source.EntityType(et), Aggregation: source.AggregationCount})
		if v != nil {
			t.Errorf("entity %q: got %q, want nil", et, *v)
		}
	}
	if fs.calls() != 0 {
		t.Errorf("store called %d times for unknown entities", fs.calls())
	}
}

func TestMissingUserIsHardFailure(t *testing.T) {
	e := newTestEngine(&fakeStore{})
	src := source.VariableSource{EntityType: source.EntityTask, Aggregation: source.AggregationCount}

	_, err := e.ResolveVariable(context.Background(), source.Context{ProjectID: "P1"}, src)
	if !errors.Is(err, ErrAuthenticationMissing) {
		t.Fatalf("ResolveVariable() error = %v, want ErrAuthenticationMissing", err)
	}
	_, err = e.ResolveAll(context.Background(), source.Context{ProjectID: "P1"}, map[string]source.VariableSource{"n": src}, 2)
	if !errors.Is(err, ErrAuthenticationMissing) {
		t.Fatalf("ResolveAll() error = %v, want ErrAuthenticationMissing", err)
	}
}

func TestCountScopedToProject(t *testing.T) {
	fs := &fakeStore{count: 12}
	e := newTestEngine(fs)

	got := mustText(t, resolve(t, e, source.VariableSource{EntityType: "task", Aggregation: "count"}))
	if got != "12" {
		t.Errorf("COUNT = %q, want 12", got)
	}
	if fs.counts != 1 {
		t.Errorf("Count called %d times, want 1", fs.counts)
	}
}

func TestSumMarkers(t *testing.T) {
	t.Run("no numeric data", func(t *testing.T) {
		fs := &fakeStore{}
		e := newTestEngine(fs)
		got := mustText(t, resolve(t, e, source.VariableSource{
			EntityType: source.EntityTask, Aggregation: source.AggregationSum, AggregationField: "points",
		}))
		if got != aggregate.ErrNoNumericData.Text() {
			t.Errorf("SUM = %q, want %q", got, aggregate.ErrNoNumericData.Text())
		}
		if diff := cmp.Diff([]string{"points"}, fs.sums); diff != "" {
			t.Errorf("Sum fields (-want +got):\n%s", diff)
		}
	})

	t.Run("missing field skips store", func(t *testing.T) {
		fs := &fakeStore{}
		e := newTestEngine(fs)
		got := mustText(t, resolve(t, e, source.VariableSource{EntityType: source.EntityTask, Aggregation: source.AggregationSum}))
		if got != aggregate.ErrMissingAggregationField.Text() {
			t.Errorf("SUM = %q", got)
		}
		if fs.calls() != 0 {
			t.Errorf("store called %d times", fs.calls())
		}
	})

	t.Run("value", func(t *testing.T) {
		sum := 13.5
		e := newTestEngine(&fakeStore{sum: &sum})
		got := mustText(t, resolve(t, e, source.VariableSource{
			EntityType: source.EntityTask, Aggregation: source.AggregationSum, AggregationField: "points",
		}))
		if got != "13.5" {
			t.Errorf("SUM = %q, want 13.5", got)
		}
	})
}

func TestPersistenceErrorRenderedAsText(t *testing.T) {
	e := newTestEngine(&fakeStore{err: errors.New("database is locked")})

	got := mustText(t, resolve(t, e, source.VariableSource{EntityType: source.EntityTask, Field: "title"}))
	if got != "Error: database is locked" {
		t.Errorf("got %q", got)
	}

	outcome := e.Evaluate(context.Background(), ctxP1, source.VariableSource{EntityType: source.EntityTask, Aggregation: source.AggregationCount})
	var pe *PersistenceError
	if outcome.Kind != OutcomeError || !errors.As(outcome.Err, &pe) {
		t.Fatalf("Evaluate() = %+v, want persistence error", outcome)
	}
	if pe.Op != "count" || pe.Entity != source.EntityTask {
		t.Errorf("PersistenceError = %+v", pe)
	}
}

func TestCurrentUserOverridesLiteral(t *testing.T) {
	fs := &fakeStore{records: titleRecords("Fix bug")}
	e := newTestEngine(fs)

	resolve(t, e, source.VariableSource{
		EntityType: source.EntityTask,
		Field:      "title",
		Filters: []source.FilterCondition{
			{Field: "assigneeId", Operator: source.OpEq, Value: "someone-else", SpecialValue: source.SpecialCurrentUser},
		},
	})

	if len(fs.finds) != 1 {
		t.Fatalf("FindMany called %d times", len(fs.finds))
	}
	frag, ok := fs.finds[0].pred.Fragment("assigneeId")
	if !ok || frag.Equals == nil {
		t.Fatal("assigneeId fragment missing")
	}
	if frag.Equals.Value != "U1" {
		t.Errorf("assigneeId = %v, want U1", frag.Equals.Value)
	}
}

func TestDisallowedFilterIgnored(t *testing.T) {
	fs := &fakeStore{records: titleRecords("a")}
	e := newTestEngine(fs)
	base := source.VariableSource{EntityType: source.EntityTask, Field: "title"}
	withSecret := base
	withSecret.Filters = []source.FilterCondition{{Field: "secretColumn", Operator: source.OpEq, Value: "x"}}

	resolve(t, e, base)
	resolve(t, e, withSecret)

	opts := cmp.AllowUnexported(filter.Predicate{}, filter.Fragment{})
	if diff := cmp.Diff(fs.finds[0].pred, fs.finds[1].pred, opts); diff != "" {
		t.Errorf("predicates differ (-base +secret):\n%s", diff)
	}
}

func TestWindowFetch(t *testing.T) {
	tests := []struct {
		name      string
		src       source.VariableSource
		records   []source.Record
		want      string
		wantField string
		wantLimit int
	}{
		{
			name:      "bullets",
			src:       source.VariableSource{EntityType: source.EntityTask, Field: "title", Format: source.FormatBulletPoints},
			records:   titleRecords("Fix bug", nil, "Ship release"),
			want:      "- Fix bug\n- Ship release",
			wantField: "title",
			wantLimit: 50,
		},
		{
			name:      "display field default",
			src:       source.VariableSource{EntityType: source.EntityTask, Format: source.FormatCommaSeparated},
			records:   titleRecords("a", "b"),
			want:      "a, b",
			wantField: "title",
			wantLimit: 50,
		},
		{
			name:      "project window of one",
			src:       source.VariableSource{EntityType: source.EntityProject, Field: "name"},
			records:   []source.Record{{"name": "Apollo"}},
			want:      "Apollo",
			wantField: "name",
			wantLimit: 1,
		},
		{
			name:      "numbers stringified",
			src:       source.VariableSource{EntityType: source.EntityTask, Field: "points", Format: source.FormatJSONArray},
			records:   []source.Record{{"points": 3.0}, {"points": 2.5}},
			want:      `["3","2.5"]`,
			wantField: "points",
			wantLimit: 50,
		},
		{
			name:      "bool field",
			src:       source.VariableSource{EntityType: source.EntityDocument, Field: "isPublished", Format: source.FormatCommaSeparated},
			records:   []source.Record{{"isPublished": 1.0}, {"isPublished": 0.0}},
			want:      "true, false",
			wantField: "isPublished",
			wantLimit: 50,
		},
		{
			name:      "member relation",
			src:       source.VariableSource{EntityType: source.EntityMember, Field: "user.firstName", Format: source.FormatCommaSeparated},
			records:   []source.Record{{"user": map[string]any{"firstName": "Ada"}}, {"user": nil}, {"user": map[string]any{"firstName": "Grace"}}},
			want:      "Ada, Grace",
			wantField: "user.firstName",
			wantLimit: 50,
		},
		{
			name: "rich text flattened",
			src:  source.VariableSource{EntityType: source.EntityDocument, Field: "content"},
			records: []source.Record{
				{"content": `[{"type":"heading","props":{"level":2},"content":[{"type":"text","text":"Plan"}]}]`},
				{"content": "plain notes"},
			},
			want:      "## Plan\n\nplain notes",
			wantField: "content",
			wantLimit: 50,
		},
		{
			name:      "list aggregation uses aggregation field",
			src:       source.VariableSource{EntityType: source.EntityTask, Field: "title", Aggregation: source.AggregationList, AggregationField: "status", Format: source.FormatNumberedList},
			records:   []source.Record{{"status": "DONE"}, {"status": "TODO"}},
			want:      "1. DONE\n2. TODO",
			wantField: "status",
			wantLimit: 50,
		},
		{
			name:      "last updated",
			src:       source.VariableSource{EntityType: source.EntityTask, Field: "title", Aggregation: source.AggregationLastUpdated},
			records:   titleRecords("newest", "older", "oldest"),
			want:      "newest",
			wantField: "title",
			wantLimit: 50,
		},
		{
			name:      "first created within window",
			src:       source.VariableSource{EntityType: source.EntityTask, Field: "title", Aggregation: source.AggregationFirstCreated},
			records:   titleRecords("newest", "older", "oldest"),
			want:      "oldest",
			wantField: "title",
			wantLimit: 50,
		},
		{
			name:      "average",
			src:       source.VariableSource{EntityType: source.EntityTask, Aggregation: source.AggregationAverage, AggregationField: "points"},
			records:   []source.Record{{"points": 2.0}, {"points": nil}, {"points": 4.0}},
			want:      "3",
			wantField: "points",
			wantLimit: 50,
		},
		{
			name:      "most common",
			src:       source.VariableSource{EntityType: source.EntityTask, Aggregation: source.AggregationMostCommon, AggregationField: "status"},
			records:   []source.Record{{"status": "TODO"}, {"status": "DONE"}, {"status": "DONE"}},
			want:      "DONE",
			wantField: "status",
			wantLimit: 50,
		},
		{
			name:      "unsupported aggregation",
			src:       source.VariableSource{EntityType: source.EntityTask, Field: "title", Aggregation: "MEDIAN"},
			records:   titleRecords("a"),
			want:      "N/A (Unsupported aggregation)",
			wantField: "title",
			wantLimit: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{records: tt.records}
			e := newTestEngine(fs)

			got := mustText(t, resolve(t, e, tt.src))
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if len(fs.finds) != 1 {
				t.Fatalf("FindMany called %d times, want 1", len(fs.finds))
			}
			if fs.finds[0].proj.Field != tt.wantField {
				t.Errorf("projection = %q, want %q", fs.finds[0].proj.Field, tt.wantField)
			}
			if fs.finds[0].limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", fs.finds[0].limit, tt.wantLimit)
			}
		})
	}
}

func TestDisallowedProjectionSkipsStore(t *testing.T) {
	fs := &fakeStore{records: titleRecords("a")}
	e := newTestEngine(fs)

	got := mustText(t, resolve(t, e, source.VariableSource{EntityType: source.EntityTask, Field: "passwordHash"}))
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if fs.calls() != 0 {
		t.Errorf("store called %d times", fs.calls())
	}
}

func TestUserIgnoresFilters(t *testing.T) {
	fs := &fakeStore{records: []source.Record{{"firstName": "Ada"}}}
	e := newTestEngine(fs)

	got := mustText(t, resolve(t, e, source.VariableSource{
		EntityType: source.EntityUser,
		Field:      "firstName",
		Filters:    []source.FilterCondition{{Field: "firstName", Operator: source.OpEq, Value: "Grace"}},
	}))
	if got != "Ada" {
		t.Errorf("got %q, want Ada", got)
	}

	call := fs.finds[0]
	if len(call.pred.Fields()) != 0 {
		t.Errorf("USER predicate has %d field filters, want 0", len(call.pred.Fields()))
	}
	if diff := cmp.Diff(filter.Scope{Column: "id", Value: "U1"}, call.pred.Scope); diff != "" {
		t.Errorf("scope (-want +got):\n%s", diff)
	}
	if call.limit != 1 {
		t.Errorf("limit = %d, want 1", call.limit)
	}
}

func TestUserCountIgnoresFilters(t *testing.T) {
	fs := &fakeStore{count: 1}
	e := newTestEngine(fs)

	got := mustText(t, resolve(t, e, source.VariableSource{
		EntityType:  source.EntityUser,
		Aggregation: source.AggregationCount,
		Filters:     []source.FilterCondition{{Field: "firstName", Operator: source.OpEq, Value: "Nobody"}},
	}))
	if got != "1" {
		t.Errorf("got %q, want 1", got)
	}

	want := filter.NewPredicate(source.EntityUser, filter.Scope{Column: "id", Value: "U1"})
	if diff := cmp.Diff(want, fs.countArgs[0], cmp.AllowUnexported(filter.Predicate{}, filter.Fragment{})); diff != "" {
		t.Errorf("count predicate (-want +got):\n%s", diff)
	}
}

func TestDateFunction(t *testing.T) {
	fs := &fakeStore{}
	e := newTestEngine(fs)

	tests := map[string]string{
		"":          "2026-03-04",
		"today":     "2026-03-04",
		"TOMORROW":  "2026-03-05",
		"yesterday": "2026-03-03",
		"weekday":   "Wednesday",
		"month":     "March",
		"year":      "2026",
	}
	for fn, want := range tests {
		got := mustText(t, resolve(t, e, source.VariableSource{EntityType: source.EntityDateFunction, Field: fn}))
		if got != want {
			t.Errorf("date function %q = %q, want %q", fn, got, want)
		}
	}

	if v := resolve(t, e, source.VariableSource{EntityType: source.EntityDateFunction, Field: "fortnight"}); v != nil {
		t.Errorf("unknown date function = %q, want nil", *v)
	}
	if fs.calls() != 0 {
		t.Errorf("store called %d times", fs.calls())
	}
}

func TestOutcomeText(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
		wantOK  bool
	}{
		{"none", Outcome{Kind: OutcomeNone}, "", false},
		{"value", Outcome{Kind: OutcomeValue, Value: "x"}, "x", true},
		{"marker", Outcome{Kind: OutcomeError, Err: aggregate.ErrUnsupportedAggregation}, "N/A (Unsupported aggregation)", true},
		{"persistence", Outcome{Kind: OutcomeError, Err: &PersistenceError{Entity: source.EntityTask, Op: "find", Err: errors.New("disk I/O error")}}, "Error: disk I/O error", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.outcome.Text()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Text() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
