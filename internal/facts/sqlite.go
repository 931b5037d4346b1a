package facts

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	set_prefix TEXT NOT NULL DEFAULT '',
	set_index INTEGER NOT NULL DEFAULT 0,
	collection_index INTEGER NOT NULL DEFAULT 0,
	value_text TEXT NOT NULL DEFAULT '',
	option_text TEXT NOT NULL DEFAULT '',
	unit TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_facts_path ON facts(path, set_prefix, set_index);

CREATE TABLE IF NOT EXISTS project (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
) WITHOUT ROWID;
`

// SQLiteStore reads facts from a database built by SQLiteWriter.
// The connection is opened read-only.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens the fact database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open fact db: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection, so the pragma below applies to every query.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set query_only on %s: %w", path, err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Project(ctx context.Context) (Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM project")
	if err != nil {
		return Project{}, fmt.Errorf("query project from %s: %w", s.path, err)
	}
	defer func() { _ = rows.Close() }()

	var p Project
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Project{}, fmt.Errorf("scan project: %w", err)
		}
		switch k {
		case "title":
			p.Title = v
		case "description":
			p.Description = v
		}
	}
	return p, rows.Err()
}

func (s *SQLiteStore) Values(ctx context.Context, path string, q Query) ([]Value, error) {
	query := `SELECT path, set_prefix, set_index, collection_index, value_text, option_text, unit
		FROM facts WHERE path = ? AND set_prefix = ?`
	args := []any{path, q.SetPrefix}
	if q.SetIndex != AnyIndex {
		query += " AND set_index = ?"
		args = append(args, q.SetIndex)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts %s: %w", path, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Value
	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.Path, &v.SetPrefix, &v.SetIndex, &v.CollectionIndex, &v.Text, &v.Option, &v.Unit); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
