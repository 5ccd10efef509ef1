package shortener

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkemjika/shortlinks/internal/errx"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint
// violation, raised here by the links primary key.
const uniqueViolation = "23505"

// PostgresStore persists links in PostgreSQL through a pgx connection pool.
// The pool is owned by the caller; the store never closes it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a store backed by the given pool. Call EnsureSchema
// before serving traffic.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema idempotently creates the links table.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS links (
			key TEXT PRIMARY KEY,
			uri TEXT NOT NULL
		)
	`
	_, err := s.pool.Exec(ctx, query)
	return err
}

// CreateLink inserts the link, relying on the primary key constraint to
// reject duplicates.
func (s *PostgresStore) CreateLink(ctx context.Context, link Link) error {
	const op = "shortener.postgres.CreateLink"

	query := "INSERT INTO links (key, uri) VALUES ($1, $2)"
	if _, err := s.pool.Exec(ctx, query, link.Key, link.URI); err != nil {
		if isPgUniqueViolation(err) {
			return errx.E(op, errx.Conflict, err)
		}
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

// ResolveLink looks up the link stored under key.
func (s *PostgresStore) ResolveLink(ctx context.Context, key string) (Link, error) {
	const op = "shortener.postgres.ResolveLink"

	query := "SELECT key, uri FROM links WHERE key = $1"

	var link Link
	err := s.pool.QueryRow(ctx, query, key).Scan(&link.Key, &link.URI)
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, errx.E(op, errx.NotFound, err)
	}
	if err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}
	return link, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation
}
