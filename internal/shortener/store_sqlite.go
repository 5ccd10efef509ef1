package shortener

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/nkemjika/shortlinks/internal/errx"
)

// SQLiteStore persists links in an embedded SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the SQLite database at path and
// idempotently ensures the links schema, so repeated restarts against an
// existing file never fail and never drop data.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "db.sqlite"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection is the serialization point for all store
	// operations; SQLite's own primary key constraint remains the
	// uniqueness arbiter if another process opens the same file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS links (
			key TEXT PRIMARY KEY,
			uri TEXT NOT NULL
		)
	`
	_, err := s.db.Exec(query)
	return err
}

// CreateLink inserts the link. The primary key constraint rejects an
// existing key; the insert is never turned into an overwrite.
func (s *SQLiteStore) CreateLink(ctx context.Context, link Link) error {
	const op = "shortener.sqlite.CreateLink"

	query := "INSERT INTO links (key, uri) VALUES (?, ?)"
	if _, err := s.db.ExecContext(ctx, query, link.Key, link.URI); err != nil {
		if isSQLiteConstraintViolation(err) {
			return errx.E(op, errx.Conflict, err)
		}
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

// ResolveLink looks up the link stored under key.
func (s *SQLiteStore) ResolveLink(ctx context.Context, key string) (Link, error) {
	const op = "shortener.sqlite.ResolveLink"

	query := "SELECT key, uri FROM links WHERE key = ?"

	var link Link
	err := s.db.QueryRowContext(ctx, query, key).Scan(&link.Key, &link.URI)
	if errors.Is(err, sql.ErrNoRows) {
		return Link{}, errx.E(op, errx.NotFound, err)
	}
	if err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}
	return link, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
