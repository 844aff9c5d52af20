package domain

import (
	"testing"

	"stockledger/pkg/document"
)

func TestHistoryDocRoundTrip(t *testing.T) {
	batch := int64(4)
	entry := HistoryEntry{
		CreatedBy:    "alice",
		Batch:        &batch,
		EventName:    EventUpdate,
		DataType:     TypeItem,
		DataID:       "abc",
		Timestamp:    1700000000000,
		OriginalData: map[string]any{"quantity": float64(1)},
		NewData:      map[string]any{"quantity": float64(2)},
	}
	_, entry.ID, _ = ParseDocID(NewHistoryDocID())

	doc, err := DocFromHistory(entry)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if doc.ID() != DocID(HistoryDocType, entry.ID) {
		t.Fatalf("unexpected doc id %q", doc.ID())
	}

	decoded, err := HistoryFromDoc(doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.CreatedBy != "alice" || decoded.EventName != EventUpdate {
		t.Fatalf("attribution mismatch: %+v", decoded)
	}
	if decoded.Batch == nil || *decoded.Batch != 4 {
		t.Fatalf("batch mismatch: %+v", decoded.Batch)
	}
	if decoded.OriginalData["quantity"] != float64(1) || decoded.NewData["quantity"] != float64(2) {
		t.Fatalf("diff payload mismatch: %+v", decoded)
	}
}

func TestDocFromHistoryRequiresID(t *testing.T) {
	if _, err := DocFromHistory(HistoryEntry{DataType: TypeItem, DataID: "x"}); err == nil {
		t.Fatalf("expected error for entry without id")
	}
}

func TestHistoryFromDocShapeErrors(t *testing.T) {
	base := func() document.Document {
		return document.Document{
			document.FieldID:   DocID(HistoryDocType, "h1"),
			document.FieldType: HistoryDocType,
			"data_type":        TypeItem,
			"data_id":          "abc",
			"timestamp":        float64(1),
			"original_data":    map[string]any{},
			"new_data":         map[string]any{},
		}
	}

	breakages := []func(document.Document){
		func(d document.Document) { d[document.FieldType] = "item" },
		func(d document.Document) { delete(d, "data_type") },
		func(d document.Document) { delete(d, "data_id") },
		func(d document.Document) { d["timestamp"] = "yesterday" },
		func(d document.Document) { d["original_data"] = "not a map" },
		func(d document.Document) { delete(d, "new_data") },
	}
	for i, breakit := range breakages {
		doc := base()
		breakit(doc)
		if _, err := HistoryFromDoc(doc); err == nil {
			t.Fatalf("case %d: expected shape error", i)
		} else if _, ok := err.(*document.ShapeError); !ok {
			t.Fatalf("case %d: expected *ShapeError, got %T", i, err)
		}
	}
}
