package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"stockledger/pkg/document"
)

// openStub routes the postgres store at an embedded sqlite database. The
// store only issues portable SQL (CREATE TABLE, upsert, SELECT), so sqlite
// stands in for a real server in unit tests.
func openStub(t *testing.T) (func(), string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub.db")
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return sql.Open("sqlite", path)
	})
	return restore, path
}

func TestPutPersistsRow(t *testing.T) {
	restore, path := openStub(t)
	defer restore()
	ctx := context.Background()

	store, err := NewStore(ctx, "postgres://ignored")
	require.NoError(t, err)

	_, err = store.Put(ctx, document.Document{
		document.FieldID:   "item:1",
		document.FieldType: "item",
		"name":             "crate",
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var payload []byte
	require.NoError(t, db.QueryRow(`SELECT payload FROM documents WHERE id = ?`, "item:1").Scan(&payload))
	var doc document.Document
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "crate", doc["name"])
}

func TestNewStoreHydratesFromRows(t *testing.T) {
	restore, _ := openStub(t)
	defer restore()
	ctx := context.Background()

	first, err := NewStore(ctx, "")
	require.NoError(t, err)
	_, err = first.Put(ctx, document.Document{document.FieldID: "item:1", "name": "crate"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(ctx, "")
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	doc, err := second.Get(ctx, "item:1")
	require.NoError(t, err)
	assert.Equal(t, "crate", doc["name"])
	assert.Equal(t, document.DriverPostgres, second.Driver())
}

func TestNewStorePingFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return nil, errors.New("refused")
	})
	defer restore()

	_, err := NewStore(context.Background(), "postgres://nowhere")
	require.Error(t, err)
}
