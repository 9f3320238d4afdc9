// Package entity is the schema registry of queryable entities: for each
// entity type, the fields callers may filter or select on and how they map
// onto the store.
package entity

import (
	"sort"
	"strings"

	"github.com/aidanlsb/promptvars/internal/source"
)

// Kind is the value kind of a field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
	KindBool
	// KindCategorical values are upper-cased before comparison (status, priority, role).
	KindCategorical
	// KindRichText values are block documents that are flattened to text.
	KindRichText
	// KindRelation fields point at a record of another entity type.
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	case KindCategorical:
		return "categorical"
	case KindRichText:
		return "richtext"
	case KindRelation:
		return "relation"
	default:
		return "string"
	}
}

// Field describes one allowlisted field.
type Field struct {
	Name string
	Kind Kind
	// Column is the physical column for fields stored outside the JSON document.
	Column string
	// Target and ForeignKey are set for relations: the related entity type and
	// the JSON field holding the related record id.
	Target     source.EntityType
	ForeignKey string
}

// ScopeKind says how a query for an entity is narrowed to the caller's context.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeProject
	// ScopeSelfProject and friends match the record whose own id is the context id.
	ScopeSelfProject
	ScopeSelfWorkspace
	ScopeSelfUser
)

// DefaultWindowLimit caps list fetches.
const DefaultWindowLimit = 50

// Entity is the registry entry for one entity type.
type Entity struct {
	Type        source.EntityType
	Scope       ScopeKind
	WindowLimit int
	// SprintField names the JSON field linking records to a sprint, if any.
	SprintField string
	// DisplayField is projected when a source names no field.
	DisplayField string
	fields      map[string]Field
}

// Field returns the named top-level field.
func (e *Entity) Field(name string) (Field, bool) {
	f, ok := e.fields[name]
	return f, ok
}

// FieldNames returns the allowlisted field names in sorted order.
func (e *Entity) FieldNames() []string {
	names := make([]string, 0, len(e.fields))
	for name := range e.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	idField        = Field{Name: "id", Kind: KindString, Column: "id"}
	createdAtField = Field{Name: "createdAt", Kind: KindDate, Column: "created_at"}
	updatedAtField = Field{Name: "updatedAt", Kind: KindDate, Column: "updated_at"}
)

func newEntity(t source.EntityType, scope ScopeKind, limit int, fields ...Field) *Entity {
	e := &Entity{Type: t, Scope: scope, WindowLimit: limit, fields: make(map[string]Field)}
	for _, f := range append([]Field{idField, createdAtField, updatedAtField}, fields...) {
		e.fields[f.Name] = f
	}
	return e
}

var registry = map[source.EntityType]*Entity{
	source.EntityProject: newEntity(source.EntityProject, ScopeSelfProject, 1,
		Field{Name: "name"},
		Field{Name: "description", Kind: KindRichText},
		Field{Name: "status", Kind: KindCategorical},
		Field{Name: "ownerId"},
		Field{Name: "workspaceId"},
		Field{Name: "startDate", Kind: KindDate},
		Field{Name: "endDate", Kind: KindDate},
	),
	source.EntityWorkspace: newEntity(source.EntityWorkspace, ScopeSelfWorkspace, 1,
		Field{Name: "name"},
		Field{Name: "description"},
		Field{Name: "slug"},
	),
	source.EntityUser: newEntity(source.EntityUser, ScopeSelfUser, 1,
		Field{Name: "firstName"},
		Field{Name: "lastName"},
		Field{Name: "email"},
		Field{Name: "role", Kind: KindCategorical},
		Field{Name: "timezone"},
	),
	source.EntityTask: withSprint(newEntity(source.EntityTask, ScopeProject, DefaultWindowLimit,
		Field{Name: "title"},
		Field{Name: "description", Kind: KindRichText},
		Field{Name: "status", Kind: KindCategorical},
		Field{Name: "priority", Kind: KindCategorical},
		Field{Name: "points", Kind: KindNumber},
		Field{Name: "dueDate", Kind: KindDate},
		Field{Name: "completedAt", Kind: KindDate},
		Field{Name: "assigneeId"},
		Field{Name: "reporterId"},
		Field{Name: "sprintId"},
		Field{Name: "labels"},
	), "sprintId"),
	source.EntityDocument: newEntity(source.EntityDocument, ScopeProject, DefaultWindowLimit,
		Field{Name: "title"},
		Field{Name: "content", Kind: KindRichText},
		Field{Name: "createdById"},
		Field{Name: "isPublished", Kind: KindBool},
	),
	source.EntitySprint: newEntity(source.EntitySprint, ScopeProject, DefaultWindowLimit,
		Field{Name: "name"},
		Field{Name: "goal"},
		Field{Name: "status", Kind: KindCategorical},
		Field{Name: "startDate", Kind: KindDate},
		Field{Name: "endDate", Kind: KindDate},
	),
	source.EntityMember: newEntity(source.EntityMember, ScopeProject, DefaultWindowLimit,
		Field{Name: "role", Kind: KindCategorical},
		Field{Name: "userId"},
		Field{Name: "user", Kind: KindRelation, Target: source.EntityUser, ForeignKey: "userId"},
		Field{Name: "joinedAt", Kind: KindDate},
	),
	// DATE_FUNCTION sources never reach the store; their field names a date function.
	source.EntityDateFunction: {Type: source.EntityDateFunction, fields: map[string]Field{}},
}

func withSprint(e *Entity, field string) *Entity {
	e.SprintField = field
	return e
}

var displayFields = map[source.EntityType]string{
	source.EntityProject:   "name",
	source.EntityWorkspace: "name",
	source.EntityUser:      "firstName",
	source.EntityTask:      "title",
	source.EntityDocument:  "title",
	source.EntitySprint:    "name",
	source.EntityMember:    "user.firstName",
}

func init() {
	for t, field := range displayFields {
		registry[t].DisplayField = field
	}
}

// Get returns the registry entry for t.
func Get(t source.EntityType) (*Entity, bool) {
	e, ok := registry[t]
	return e, ok
}

// Lookup resolves a possibly dotted field path for t. One level of relation
// traversal is supported: "user.firstName" resolves firstName on the related
// USER entity. The returned Field is the leaf; rel is the relation field when
// the path traversed one.
func Lookup(t source.EntityType, path string) (leaf Field, rel *Field, ok bool) {
	e, found := registry[t]
	if !found || path == "" {
		return Field{}, nil, false
	}

	head, rest, dotted := strings.Cut(path, ".")
	f, found := e.fields[head]
	if !found {
		return Field{}, nil, false
	}
	if !dotted {
		return f, nil, true
	}
	if f.Kind != KindRelation || strings.Contains(rest, ".") {
		return Field{}, nil, false
	}
	target, found := registry[f.Target]
	if !found {
		return Field{}, nil, false
	}
	sub, found := target.fields[rest]
	if !found || sub.Kind == KindRelation {
		return Field{}, nil, false
	}
	return sub, &f, true
}

// IsAllowed reports whether field may be filtered on or selected for t.
func IsAllowed(t source.EntityType, field string) bool {
	_, _, ok := Lookup(t, field)
	return ok
}

// IsCategorical reports whether values of field are normalized to upper case.
func IsCategorical(t source.EntityType, field string) bool {
	f, _, ok := Lookup(t, field)
	return ok && f.Kind == KindCategorical
}

// IsRichText reports whether field holds a block document.
func IsRichText(t source.EntityType, field string) bool {
	f, _, ok := Lookup(t, field)
	return ok && f.Kind == KindRichText
}
