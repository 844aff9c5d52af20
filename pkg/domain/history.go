package domain

import (
	"fmt"

	"github.com/google/uuid"

	"stockledger/pkg/document"
)

// HistoryDocType tags history documents in the store.
const HistoryDocType = "_history"

// Well-known history event names.
const (
	EventCreate  = "create"
	EventUpdate  = "update"
	EventDelete  = "delete"
	EventRestore = "history_restore"
)

// HistoryEntry is an immutable record of one accepted field-level change.
// OriginalData and NewData hold the minimal diff, not full documents: a key
// present on only one side means the field was added or removed.
type HistoryEntry struct {
	ID           string         `json:"id"`
	CreatedBy    string         `json:"created_by,omitempty"`
	Batch        *int64         `json:"batch,omitempty"`
	EventName    string         `json:"event_name,omitempty"`
	DataType     string         `json:"data_type"`
	DataID       string         `json:"data_id"`
	Timestamp    int64          `json:"timestamp"`
	OriginalData map[string]any `json:"original_data"`
	NewData      map[string]any `json:"new_data"`
}

// NewHistoryDocID mints a document id for a fresh history entry.
func NewHistoryDocID() string {
	return DocID(HistoryDocType, uuid.NewString())
}

// HistoryFromDoc validates and decodes a history document. Documents that do
// not satisfy the history shape yield a ShapeError; list operations skip
// such records while single fetches propagate the error.
func HistoryFromDoc(doc document.Document) (HistoryEntry, error) {
	if t, _ := doc[document.FieldType].(string); t != HistoryDocType {
		return HistoryEntry{}, &document.ShapeError{Doc: doc.ID(), Reason: "not a history document"}
	}
	dataType, _ := doc["data_type"].(string)
	dataID, _ := doc["data_id"].(string)
	if dataType == "" || dataID == "" {
		return HistoryEntry{}, &document.ShapeError{Doc: doc.ID(), Reason: "missing data_type or data_id"}
	}
	ts, ok := doc["timestamp"].(float64)
	if !ok {
		return HistoryEntry{}, &document.ShapeError{Doc: doc.ID(), Reason: "missing numeric timestamp"}
	}
	original, ok := doc["original_data"].(map[string]any)
	if !ok {
		return HistoryEntry{}, &document.ShapeError{Doc: doc.ID(), Reason: "original_data is not an object"}
	}
	updated, ok := doc["new_data"].(map[string]any)
	if !ok {
		return HistoryEntry{}, &document.ShapeError{Doc: doc.ID(), Reason: "new_data is not an object"}
	}

	_, id, _ := ParseDocID(doc.ID())
	entry := HistoryEntry{
		ID:           id,
		DataType:     dataType,
		DataID:       dataID,
		Timestamp:    int64(ts),
		OriginalData: original,
		NewData:      updated,
	}
	entry.CreatedBy, _ = doc["created_by"].(string)
	entry.EventName, _ = doc["event_name"].(string)
	if batch, ok := doc["batch"].(float64); ok {
		b := int64(batch)
		entry.Batch = &b
	}
	return entry, nil
}

// DocFromHistory encodes a history entry into its document form. The entry
// must carry an id already (see NewHistoryDocID).
func DocFromHistory(entry HistoryEntry) (document.Document, error) {
	if entry.ID == "" {
		return nil, fmt.Errorf("history entry has no id")
	}
	doc := document.Document{
		document.FieldID:   DocID(HistoryDocType, entry.ID),
		document.FieldType: HistoryDocType,
		"data_type":        entry.DataType,
		"data_id":          entry.DataID,
		"timestamp":        float64(entry.Timestamp),
		"original_data":    entry.OriginalData,
		"new_data":         entry.NewData,
	}
	if entry.CreatedBy != "" {
		doc["created_by"] = entry.CreatedBy
	}
	if entry.EventName != "" {
		doc["event_name"] = entry.EventName
	}
	if entry.Batch != nil {
		doc["batch"] = float64(*entry.Batch)
	}
	return doc, nil
}
