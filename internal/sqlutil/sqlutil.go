// Package sqlutil holds small helpers shared by SQL-building code.
package sqlutil

import (
	"database/sql"
	"strings"
)

// Match selects where a LIKE pattern anchors its literal.
type Match int

const (
	MatchContains Match = iota
	MatchPrefix
	MatchSuffix
)

// InList renders the placeholder list for an IN clause. An empty list renders
// as NULL, so "x IN (NULL)" matches no row.
func InList(values []any) (string, []any) {
	if len(values) == 0 {
		return "NULL", nil
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), values
}

// LikePattern escapes s and wraps it in wildcards for m. The result must be
// used with ESCAPE '\'.
func LikePattern(s string, m Match) string {
	lit := likeEscaper.Replace(s)
	switch m {
	case MatchPrefix:
		return lit + "%"
	case MatchSuffix:
		return "%" + lit
	default:
		return "%" + lit + "%"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Collect drains rows through scan and closes them.
func Collect[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
