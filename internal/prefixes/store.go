package prefixes

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"prefixhider/internal/logging"
)

// Store keeps the prefix list in SQLite. The list is always replaced wholesale.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewStore opens or creates the database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers; sqlite would otherwise return SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("opened prefix store at %s", path)
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prefixes (
		position INTEGER PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Load returns the stored list in order. A store that was never written returns an empty list.
func (s *Store) Load(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT value FROM prefixes ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prefixes: %w", err)
	}
	defer rows.Close()

	list := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan prefix: %w", err)
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// Save replaces the stored list with list.
func (s *Store) Save(ctx context.Context, list []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM prefixes`); err != nil {
		return fmt.Errorf("failed to clear prefixes: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO prefixes (position, value) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range list {
		if _, err := stmt.ExecContext(ctx, i, v); err != nil {
			return fmt.Errorf("failed to insert prefix %q: %w", v, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prefixes: %w", err)
	}
	logging.Store("saved %d prefixes", len(list))
	return nil
}

// Prefixes implements labels.PrefixSource.
func (s *Store) Prefixes(ctx context.Context) ([]string, error) {
	return s.Load(ctx)
}
