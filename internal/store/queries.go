package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aidanlsb/promptvars/internal/entity"
	"github.com/aidanlsb/promptvars/internal/filter"
	"github.com/aidanlsb/promptvars/internal/source"
	"github.com/aidanlsb/promptvars/internal/sqlutil"
)

// Count returns the number of records matching p.
func (s *Store) Count(ctx context.Context, p filter.Predicate) (int64, error) {
	where, args, err := buildWhere(p)
	if err != nil {
		return 0, err
	}

	sqlStr := fmt.Sprintf("SELECT COUNT(*) FROM entities %s WHERE %s", entityAlias, where)
	var n int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s failed: %w", p.Entity, err)
	}
	return n, nil
}

// Sum returns the numeric sum of field over records matching p, or nil when
// no matching record has a value for field.
func (s *Store) Sum(ctx context.Context, p filter.Predicate, field string) (*float64, error) {
	where, args, err := buildWhere(p)
	if err != nil {
		return nil, err
	}
	expr, exprArgs, err := fieldExpr(p, field, entityAlias)
	if err != nil {
		return nil, err
	}

	sqlStr := fmt.Sprintf("SELECT SUM(CAST(%s AS REAL)) FROM entities %s WHERE %s", expr, entityAlias, where)
	var sum sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, sqlStr, append(exprArgs, args...)...).Scan(&sum); err != nil {
		return nil, fmt.Errorf("sum %s.%s failed: %w", p.Entity, field, err)
	}
	if !sum.Valid {
		return nil, nil
	}
	return &sum.Float64, nil
}

// FindMany returns up to limit records matching p, each holding only the
// projected field. A relation projection ("user.firstName") returns the whole
// related record under the relation name ("user").
func (s *Store) FindMany(ctx context.Context, p filter.Predicate, proj filter.Projection, order filter.Order, limit int) ([]source.Record, error) {
	where, args, err := buildWhere(p)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = entity.DefaultWindowLimit
	}

	leaf, rel, ok := entity.Lookup(p.Entity, proj.Field)
	if !ok {
		return nil, fmt.Errorf("field %q is not allowed on %s", proj.Field, p.Entity)
	}

	orderBy := orderSQL(order)
	if rel != nil {
		return s.findWithRelation(ctx, p, *rel, where, args, orderBy, limit)
	}

	expr, exprArgs, err := leafExpr(leaf, entityAlias)
	if err != nil {
		return nil, err
	}
	sqlStr := fmt.Sprintf(`
		SELECT %s
		FROM entities %s
		WHERE %s
		ORDER BY %s
		LIMIT ?
	`, expr, entityAlias, where, orderBy)

	queryArgs := append(append(exprArgs, args...), limit)
	rows, err := s.db.QueryContext(ctx, sqlStr, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", p.Entity, err)
	}
	return sqlutil.Collect(rows, func(rows *sql.Rows) (source.Record, error) {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		return source.Record{proj.Field: normalizeScanned(v)}, nil
	})
}

func (s *Store) findWithRelation(ctx context.Context, p filter.Predicate, rel entity.Field, where string, args []any, orderBy string, limit int) ([]source.Record, error) {
	sqlStr := fmt.Sprintf(`
		SELECT r.id, r.fields, r.created_at, r.updated_at
		FROM entities %s
		LEFT JOIN entities r ON r.entity_type = ? AND r.id = json_extract(%s.fields, ?)
		WHERE %s
		ORDER BY %s
		LIMIT ?
	`, entityAlias, entityAlias, where, orderBy)

	queryArgs := append([]any{string(rel.Target), jsonFieldPath(rel.ForeignKey)}, args...)
	queryArgs = append(queryArgs, limit)

	rows, err := s.db.QueryContext(ctx, sqlStr, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("query %s with %s failed: %w", p.Entity, rel.Name, err)
	}
	return sqlutil.Collect(rows, func(rows *sql.Rows) (source.Record, error) {
		var id, fieldsJSON, createdAt, updatedAt sql.NullString
		if err := rows.Scan(&id, &fieldsJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if !id.Valid {
			return source.Record{rel.Name: nil}, nil
		}
		related := map[string]any{}
		if err := json.Unmarshal([]byte(fieldsJSON.String), &related); err != nil {
			related = map[string]any{}
		}
		related["id"] = id.String
		related["createdAt"] = createdAt.String
		related["updatedAt"] = updatedAt.String
		return source.Record{rel.Name: related}, nil
	})
}

func orderSQL(order filter.Order) string {
	switch order {
	case filter.OrderRecentFirst:
		return entityAlias + ".updated_at DESC, " + entityAlias + ".created_at DESC, " + entityAlias + ".id"
	default:
		return entityAlias + ".id"
	}
}

// normalizeScanned folds driver values into the shapes the engine expects.
func normalizeScanned(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int64:
		return float64(x)
	default:
		return v
	}
}
