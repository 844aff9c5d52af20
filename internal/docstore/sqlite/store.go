// Package sqlite persists the document set to an embedded SQLite file, one
// row per document, while delegating query semantics to the in-memory store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"stockledger/internal/docstore/memory"
	"stockledger/pkg/document"
)

// Compile-time contract assertion.
var _ document.Store = (*Store)(nil)

// Store hydrates an in-memory store from the documents table at open and
// upserts the full stored form of each document after every accepted write.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if needed) a SQLite-backed document store at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "stockledger.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Driver reports the sqlite driver.
func (s *Store) Driver() document.Driver { return document.DriverSQLite }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Put writes through the in-memory store, then persists the accepted
// document before acknowledging the write.
func (s *Store) Put(ctx context.Context, doc document.Document) (document.Document, error) {
	stored, err := s.Store.Put(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, stored.ID()); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT id, payload FROM documents`)
	if err != nil {
		return fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := make(map[string]document.Document)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		var doc document.Document
		if err := json.Unmarshal(payload, &doc); err != nil {
			return fmt.Errorf("decode document %s: %w", id, err)
		}
		snapshot[id] = doc
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate documents: %w", err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.ExportDoc(id)
	if !ok {
		return fmt.Errorf("persist %s: document vanished", id)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(id, payload) VALUES(?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`, id, payload); err != nil {
		return &document.TransportError{Op: "persist", ID: id, Err: err}
	}
	return nil
}
