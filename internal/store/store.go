// Package store is the SQLite-backed entity store the resolution engine reads
// from. Every entity lives in one table; entity-specific fields are kept in a
// JSON document column and addressed with json_extract.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/aidanlsb/promptvars/internal/dates"
	"github.com/aidanlsb/promptvars/internal/source"
)

// Store is the SQLite database handle.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var (
	// ErrInvalidEntity indicates a record that cannot be written.
	ErrInvalidEntity = errors.New("invalid entity")
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStore(db, opts)
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory(opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newStore(db, opts)
}

func newStore(db *sql.DB, opts []Option) (*Store, error) {
	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CurrentDBVersion is the current database schema version.
const CurrentDBVersion = 1

func (s *Store) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entities (
			id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			project_id TEXT,
			workspace_id TEXT,
			fields TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (entity_type, id)
		);

		CREATE INDEX IF NOT EXISTS idx_entities_project ON entities(entity_type, project_id);
		CREATE INDEX IF NOT EXISTS idx_entities_workspace ON entities(entity_type, workspace_id);
		CREATE INDEX IF NOT EXISTS idx_entities_recency ON entities(entity_type, updated_at DESC, created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := s.db.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)",
		fmt.Sprint(CurrentDBVersion),
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	s.logger.Debug("store initialized", zap.Int("version", CurrentDBVersion))
	return nil
}

// Entity is a record as written to the store.
type Entity struct {
	ID          string
	Type        source.EntityType
	ProjectID   string
	WorkspaceID string
	Fields      map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Put inserts or replaces an entity. It is used for seeding; the resolution
// engine only reads.
func (s *Store) Put(ctx context.Context, e Entity) error {
	return putEntity(ctx, s.db, e)
}

// PutAll writes entities in a single transaction.
func (s *Store) PutAll(ctx context.Context, entities []Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, e := range entities {
		if err := putEntity(ctx, tx, e); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Debug("entities written", zap.Int("count", len(entities)))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putEntity(ctx context.Context, ex execer, e Entity) error {
	if e.ID == "" || e.Type == "" {
		return fmt.Errorf("%w: id and type are required", ErrInvalidEntity)
	}
	if !e.Type.Known() || e.Type == source.EntityDateFunction {
		return fmt.Errorf("%w: unsupported entity type %q", ErrInvalidEntity, e.Type)
	}

	fields := e.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields for %s %s: %w", e.Type, e.ID, err)
	}

	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err = ex.ExecContext(ctx, `
		INSERT OR REPLACE INTO entities
			(id, entity_type, project_id, workspace_id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), nullString(e.ProjectID), nullString(e.WorkspaceID),
		string(fieldsJSON), dates.FormatISO(created), dates.FormatISO(updated),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", e.Type, e.ID, err)
	}
	return nil
}

// Reset deletes every stored record.
func (s *Store) Reset(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM entities")
	if err != nil {
		return fmt.Errorf("failed to reset entities: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("entities deleted", zap.Int64("count", n))
	return nil
}

// Stats returns the number of stored records per entity type.
func (s *Store) Stats(ctx context.Context) (map[source.EntityType]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type")
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	defer rows.Close()

	out := make(map[source.EntityType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[source.EntityType(t)] = n
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
