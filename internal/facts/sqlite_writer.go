package facts

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteWriter builds a fact database in batched transactions.
type SQLiteWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
	mu        sync.Mutex
}

// NewSQLiteWriter creates (or appends to) the database at dbPath.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Bulk-load tuning; the file is only useful once Close commits.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &SQLiteWriter{db: db, batchSize: 5000}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.Prepare(`
		INSERT INTO facts (path, set_prefix, set_index, collection_index, value_text, option_text, unit)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	return err
}

func (w *SQLiteWriter) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	return w.tx.Commit()
}

// SetProject records the project fields.
func (w *SQLiteWriter) SetProject(p Project) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, v := range map[string]string{"title": p.Title, "description": p.Description} {
		if _, err := w.tx.Exec("INSERT OR REPLACE INTO project (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("write project %s: %w", k, err)
		}
	}
	return nil
}

// Add writes a value, committing every batchSize rows.
func (w *SQLiteWriter) Add(v Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.stmt.Exec(v.Path, v.SetPrefix, v.SetIndex, v.CollectionIndex, v.Text, v.Option, v.Unit); err != nil {
		return fmt.Errorf("insert fact %s: %w", v.Path, err)
	}
	w.count++
	if w.count%w.batchSize == 0 {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
	}
	return nil
}

// Count returns the number of values written so far.
func (w *SQLiteWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close commits the pending batch and closes the database.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return fmt.Errorf("commit: %w", err)
	}
	return w.db.Close()
}
