package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/pkg/document"
)

func TestPutRevisionChain(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	stored, err := store.Put(ctx, document.Document{
		document.FieldID: "item:1",
		"name":           "crate",
	})
	require.NoError(t, err)
	require.Equal(t, 1, document.RevGeneration(stored.Rev()))

	// Writing a new document with a revision is a conflict.
	_, err = store.Put(ctx, document.Document{
		document.FieldID:  "item:2",
		document.FieldRev: "1-bogus",
	})
	var conflict *document.ConflictError
	require.ErrorAs(t, err, &conflict)

	// Stale revision is a conflict.
	_, err = store.Put(ctx, document.Document{
		document.FieldID:  "item:1",
		document.FieldRev: "1-stale",
		"name":            "crate 2",
	})
	require.ErrorAs(t, err, &conflict)

	// Matching revision advances the generation.
	updated, err := store.Put(ctx, document.Document{
		document.FieldID:  "item:1",
		document.FieldRev: stored.Rev(),
		"name":            "crate 2",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, document.RevGeneration(updated.Rev()))
}

func TestPutRejectsMissingID(t *testing.T) {
	_, err := NewStore().Put(context.Background(), document.Document{"name": "anon"})
	var shape *document.ShapeError
	require.ErrorAs(t, err, &shape)
}

func TestGetNotFound(t *testing.T) {
	_, err := NewStore().Get(context.Background(), "item:missing")
	var notFound *document.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func seedItems(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	docs := []document.Document{
		{document.FieldID: "item:a", document.FieldType: "item", "name": "anvil", "quantity": float64(3)},
		{document.FieldID: "item:b", document.FieldType: "item", "name": "bolt", "quantity": float64(10)},
		{document.FieldID: "item:c", document.FieldType: "item", "name": "crate", "quantity": float64(5), "epc": "urn:epc:1"},
		{document.FieldID: "collection:x", document.FieldType: "collection", "name": "tools"},
	}
	for _, doc := range docs {
		_, err := store.Put(ctx, doc)
		require.NoError(t, err)
	}
}

func TestFindSelectors(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedItems(t, store)

	byType, err := store.Find(ctx, document.FindRequest{
		Selector: document.Selector{document.FieldType: "item"},
	})
	require.NoError(t, err)
	assert.Len(t, byType, 3)

	gt, err := store.Find(ctx, document.FindRequest{
		Selector: document.Selector{
			document.FieldType: "item",
			"quantity":         map[string]any{document.OpGte: float64(5)},
		},
	})
	require.NoError(t, err)
	assert.Len(t, gt, 2)

	in, err := store.Find(ctx, document.FindRequest{
		Selector: document.Selector{"name": map[string]any{document.OpIn: []any{"anvil", "crate"}}},
	})
	require.NoError(t, err)
	assert.Len(t, in, 2)

	exists, err := store.Find(ctx, document.FindRequest{
		Selector: document.Selector{"epc": map[string]any{document.OpExists: true}},
	})
	require.NoError(t, err)
	require.Len(t, exists, 1)
	assert.Equal(t, "item:c", exists[0].ID())

	absent, err := store.Find(ctx, document.FindRequest{
		Selector: document.Selector{
			document.FieldType: "item",
			"epc":              map[string]any{document.OpExists: false},
		},
	})
	require.NoError(t, err)
	assert.Len(t, absent, 2)

	_, err = store.Find(ctx, document.FindRequest{
		Selector: document.Selector{"name": map[string]any{"$regex": "a"}},
	})
	var shape *document.ShapeError
	require.ErrorAs(t, err, &shape)
}

func TestFindSortSkipLimit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedItems(t, store)

	sorted, err := store.Find(ctx, document.FindRequest{
		Selector: document.Selector{document.FieldType: "item"},
		Sort:     []document.SortField{{Field: "quantity", Order: document.Descending}},
	})
	require.NoError(t, err)
	require.Len(t, sorted, 3)
	assert.Equal(t, "bolt", sorted[0]["name"])
	assert.Equal(t, "anvil", sorted[2]["name"])

	page, err := store.Find(ctx, document.FindRequest{
		Selector: document.Selector{document.FieldType: "item"},
		Sort:     []document.SortField{{Field: "name", Order: document.Ascending}},
		Skip:     1,
		Limit:    1,
	})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "bolt", page[0]["name"])

	// Without an explicit sort results are ordered by id.
	defaultOrder, err := store.Find(ctx, document.FindRequest{
		Selector: document.Selector{document.FieldType: "item"},
	})
	require.NoError(t, err)
	assert.Equal(t, "item:a", defaultOrder[0].ID())
	assert.Equal(t, "item:c", defaultOrder[2].ID())
}

func TestCountIgnoresPagination(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedItems(t, store)

	count, err := store.Count(ctx, document.FindRequest{
		Selector: document.Selector{document.FieldType: "item"},
		Limit:    1,
		Skip:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAttachmentLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	payload := []byte("label bytes")

	stored, err := store.Put(ctx, document.Document{
		document.FieldID: "item:1",
		"name":           "crate",
		document.FieldAttachments: map[string]any{
			"label.png": document.EncodeAttachment("image/png", payload),
		},
	})
	require.NoError(t, err)

	// Reads carry stubs only.
	entry := stored.Attachments()["label.png"].(map[string]any)
	assert.Equal(t, true, entry[document.AttachmentStub])
	assert.NotContains(t, entry, document.AttachmentData)

	got, err := store.Get(ctx, "item:1")
	require.NoError(t, err)
	entry = got.Attachments()["label.png"].(map[string]any)
	assert.Equal(t, true, entry[document.AttachmentStub])

	// Writing back the stubbed document keeps the stored payload.
	got["name"] = "crate 2"
	updated, err := store.Put(ctx, got)
	require.NoError(t, err)
	require.NotNil(t, updated.Attachments()["label.png"])

	att, err := store.GetAttachment(ctx, "item:1", "label.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.ContentType)
	assert.Equal(t, payload, att.Data)

	_, err = store.GetAttachment(ctx, "item:1", "missing.png")
	var notFound *document.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestPutRejectsStubWithoutStoredPayload(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, err := store.Put(ctx, document.Document{
		document.FieldID: "item:1",
		document.FieldAttachments: map[string]any{
			"ghost.png": map[string]any{document.AttachmentStub: true},
		},
	})
	var shape *document.ShapeError
	require.ErrorAs(t, err, &shape)
}

func TestCreateIndexIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	idx := document.Index{Name: "idx-test", Fields: []string{"name"}}

	require.NoError(t, store.CreateIndex(ctx, idx))
	require.NoError(t, store.CreateIndex(ctx, idx))
	assert.Len(t, store.Indexes(), 1)

	err := store.CreateIndex(ctx, document.Index{Name: "broken"})
	var shape *document.ShapeError
	require.ErrorAs(t, err, &shape)
}

func TestExportImportState(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedItems(t, store)

	snapshot := store.ExportState()
	require.Len(t, snapshot, 4)

	fresh := NewStore()
	fresh.ImportState(snapshot)
	doc, err := fresh.Get(ctx, "item:a")
	require.NoError(t, err)
	assert.Equal(t, "anvil", doc["name"])

	// Snapshot copies are independent of the store.
	snapshot["item:a"]["name"] = "mutated"
	doc, err = fresh.Get(ctx, "item:a")
	require.NoError(t, err)
	assert.Equal(t, "anvil", doc["name"])
}
