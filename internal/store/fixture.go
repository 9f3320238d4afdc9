package store

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/promptvars/internal/dates"
	"github.com/aidanlsb/promptvars/internal/source"
)

// Fixture is a YAML document of entities used to seed a store.
type Fixture struct {
	Entities []FixtureEntity `yaml:"entities"`
}

// FixtureEntity is one entity in a fixture document.
type FixtureEntity struct {
	Type        string         `yaml:"type"`
	ID          string         `yaml:"id"`
	ProjectID   string         `yaml:"projectId"`
	WorkspaceID string         `yaml:"workspaceId"`
	CreatedAt   string         `yaml:"createdAt"`
	UpdatedAt   string         `yaml:"updatedAt"`
	Fields      map[string]any `yaml:"fields"`
}

// ParseFixture decodes a fixture document. Entities without an id get a
// random UUID; timestamps accept dates or datetimes.
func ParseFixture(data []byte) ([]Entity, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	out := make([]Entity, 0, len(fx.Entities))
	for i, fe := range fx.Entities {
		t := source.EntityType(strings.ToUpper(strings.TrimSpace(fe.Type)))
		if !t.Known() || t == source.EntityDateFunction {
			return nil, fmt.Errorf("entity %d: unsupported type %q", i, fe.Type)
		}

		created, err := parseTimestamp(fe.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("entity %d: createdAt: %w", i, err)
		}
		updated, err := parseTimestamp(fe.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("entity %d: updatedAt: %w", i, err)
		}

		id := strings.TrimSpace(fe.ID)
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, Entity{
			ID:          id,
			Type:        t,
			ProjectID:   fe.ProjectID,
			WorkspaceID: fe.WorkspaceID,
			Fields:      fe.Fields,
			CreatedAt:   created,
			UpdatedAt:   updated,
		})
	}
	return out, nil
}

// LoadFixture reads and decodes a fixture file.
func LoadFixture(path string) ([]Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFixture(data)
}

func parseTimestamp(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, ok := dates.Parse(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t, nil
}
