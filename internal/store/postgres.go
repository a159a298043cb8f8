package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalog reads the marketplace catalog from PostgreSQL.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog connects to the catalog database with a connection pool.
func NewPostgresCatalog(ctx context.Context, databaseURL string) (*PostgresCatalog, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresCatalog{pool: pool}, nil
}

// Close closes the connection pool.
func (c *PostgresCatalog) Close() {
	c.pool.Close()
}

// Ping checks the database connection.
func (c *PostgresCatalog) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// SubjectExists reports whether a product id is still present in the catalog.
func (c *PostgresCatalog) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
	`, subjectID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
