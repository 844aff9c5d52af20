// Package postgres persists the document set to a PostgreSQL table as JSONB,
// one row per document, delegating query semantics to the in-memory store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"stockledger/internal/docstore/memory"
	"stockledger/pkg/document"
)

// Compile-time contract assertion.
var _ document.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/stockledger?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store hydrates an in-memory store from the documents table at open and
// upserts each accepted write before acknowledging it.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed document store using the provided DSN
// (falls back to a local default). It ensures the documents table exists and
// hydrates from any existing rows.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, &document.TransportError{Op: "ping", Err: err}
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure documents table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Driver reports the postgres driver.
func (s *Store) Driver() document.Driver { return document.DriverPostgres }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

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

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM documents`)
	if err != nil {
		return &document.TransportError{Op: "load", Err: err}
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
		`INSERT INTO documents(id, payload) VALUES($1, $2)
		 ON CONFLICT(id) DO UPDATE SET payload = EXCLUDED.payload`, id, payload); err != nil {
		return &document.TransportError{Op: "persist", ID: id, Err: err}
	}
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
