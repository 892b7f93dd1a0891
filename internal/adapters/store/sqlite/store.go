// Package sqlite implements ports.DocumentStore on a local SQLite
// database. It backs development and single-host deployments where the
// managed document store is not available.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
)

// Store is a SQLite implementation of ports.DocumentStore.
type Store struct {
	db *sqlx.DB
}

var _ ports.DocumentStore = (*Store)(nil)

// New opens (creating if needed) the database at dbPath. Use ":memory:"
// for tests.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			fields TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (collection, doc_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get fetches collection/id.
func (s *Store) Get(ctx context.Context, collection, id string) (map[string]string, bool, error) {
	var raw string
	err := s.db.QueryRowxContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get document: %w", err)
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal document fields: %w", err)
	}
	return fields, true, nil
}

// Set writes fields to collection/id, merging with any existing fields
// when merge is true.
func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]string, merge bool) error {
	write := fields
	if merge {
		existing, found, err := s.Get(ctx, collection, id)
		if err != nil {
			return err
		}
		if found {
			merged := make(map[string]string, len(existing)+len(fields))
			for k, v := range existing {
				merged[k] = v
			}
			for k, v := range fields {
				merged[k] = v
			}
			write = merged
		}
	}

	raw, err := json.Marshal(write)
	if err != nil {
		return fmt.Errorf("failed to marshal document fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, doc_id, fields, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, doc_id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		collection, id, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
