package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCatalog reads the catalog from a local SQLite file, for development
// setups without a PostgreSQL instance.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens the catalog database.
// If dbPath is empty, defaults to "./data/catalog.db".
func NewSQLiteCatalog(ctx context.Context, dbPath string) (*SQLiteCatalog, error) {
	if dbPath == "" {
		dbPath = "./data/catalog.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteCatalog{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates the products table if the catalog service has not run
// its own migrations against this file yet.
func (c *SQLiteCatalog) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		seller_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() {
	c.db.Close()
}

// Ping checks the database connection.
func (c *SQLiteCatalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// SubjectExists reports whether a product id is still present in the catalog.
func (c *SQLiteCatalog) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `
		SELECT 1 FROM products WHERE id = ?
	`, subjectID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
