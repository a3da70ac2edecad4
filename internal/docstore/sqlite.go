package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/halvard/tally/internal/apperr"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	database_id   TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	document_id   TEXT NOT NULL,
	data          TEXT NOT NULL DEFAULT '',
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (database_id, collection_id, document_id)
);
`

// SQLite is a Provider backed by a local SQLite file, for self-hosted
// deployments that have no remote document backend.
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sqlx.Connect("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("docstore: open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Provision inserts an empty document if it does not already exist.
func (s *SQLite) Provision(ctx context.Context, ref Ref) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO documents (database_id, collection_id, document_id, data)
		VALUES (?, ?, ?, '')
	`, ref.Database, ref.Collection, ref.Document)
	if err != nil {
		return fmt.Errorf("docstore: provision: %w", err)
	}
	return nil
}

// Get implements Provider.
func (s *SQLite) Get(ctx context.Context, ref Ref) (Document, error) {
	var data string
	err := s.db.GetContext(ctx, &data, `
		SELECT data FROM documents
		WHERE database_id = ? AND collection_id = ? AND document_id = ?
	`, ref.Database, ref.Collection, ref.Document)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("docstore: get %s: %w", ref.Document, apperr.ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: get %s: %w", ref.Document, err)
	}
	return Document{Data: data}, nil
}

// Update implements Provider.
func (s *SQLite) Update(ctx context.Context, ref Ref, doc Document) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET data = ?, updated_at = CURRENT_TIMESTAMP
		WHERE database_id = ? AND collection_id = ? AND document_id = ?
	`, doc.Data, ref.Database, ref.Collection, ref.Document)
	if err != nil {
		return fmt.Errorf("docstore: update %s: %w", ref.Document, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("docstore: update %s: rows affected: %w", ref.Document, err)
	}
	if n == 0 {
		return fmt.Errorf("docstore: update %s: %w", ref.Document, apperr.ErrNotFound)
	}
	return nil
}

var _ Provider = (*SQLite)(nil)
