package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/pkg/document"
)

func TestPutPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "ledger.db")

	store, err := NewStore(path)
	require.NoError(t, err)

	stored, err := store.Put(ctx, document.Document{
		document.FieldID:   "item:1",
		document.FieldType: "item",
		"name":             "crate",
		document.FieldAttachments: map[string]any{
			"label.png": document.EncodeAttachment("image/png", []byte("bytes")),
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	doc, err := reopened.Get(ctx, "item:1")
	require.NoError(t, err)
	assert.Equal(t, "crate", doc["name"])
	assert.Equal(t, stored.Rev(), doc.Rev())

	// Attachment payloads survive the snapshot round trip.
	att, err := reopened.GetAttachment(ctx, "item:1", "label.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), att.Data)
}

func TestConflictLeavesSnapshotUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	store, err := NewStore(path)
	require.NoError(t, err)

	first, err := store.Put(ctx, document.Document{document.FieldID: "item:1", "name": "v1"})
	require.NoError(t, err)

	_, err = store.Put(ctx, document.Document{
		document.FieldID:  "item:1",
		document.FieldRev: "9-stale",
		"name":            "v2",
	})
	var conflict *document.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	doc, err := reopened.Get(ctx, "item:1")
	require.NoError(t, err)
	assert.Equal(t, "v1", doc["name"])
	assert.Equal(t, first.Rev(), doc.Rev())
}

func TestDriverReportsSQLite(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	assert.Equal(t, document.DriverSQLite, store.Driver())
}
