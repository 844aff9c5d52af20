package document

import (
	"encoding/base64"
	"testing"
)

func TestNextRevIncrementsGeneration(t *testing.T) {
	first := NextRev("")
	if RevGeneration(first) != 1 {
		t.Fatalf("expected generation 1, got %q", first)
	}
	second := NextRev(first)
	if RevGeneration(second) != 2 {
		t.Fatalf("expected generation 2, got %q", second)
	}
	if first == second {
		t.Fatalf("revisions should differ")
	}
}

func TestRevGenerationTolerance(t *testing.T) {
	cases := map[string]int{
		"":        0,
		"-abc":    0,
		"junk":    0,
		"3-9af01": 3,
		"x-9af01": 0,
	}
	for rev, want := range cases {
		if got := RevGeneration(rev); got != want {
			t.Fatalf("RevGeneration(%q) = %d, want %d", rev, got, want)
		}
	}
}

func TestEncodeDecodeAttachment(t *testing.T) {
	payload := []byte("inventory label payload")
	entry := EncodeAttachment("image/png", payload)

	encoded, _ := entry[AttachmentData].(string)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if string(raw) != string(payload) {
		t.Fatalf("payload round trip mismatch")
	}

	info, err := DecodeAttachmentInfo("label.png", entry)
	if err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Name != "label.png" || info.ContentType != "image/png" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Length != int64(len(payload)) {
		t.Fatalf("expected length %d, got %d", len(payload), info.Length)
	}
	if info.Digest == "" {
		t.Fatalf("expected digest")
	}
}

func TestDecodeAttachmentInfoRejectsNonObject(t *testing.T) {
	if _, err := DecodeAttachmentInfo("x", "not an object"); err == nil {
		t.Fatalf("expected shape error")
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	doc := Document{
		FieldID: "item:1",
		"nested": map[string]any{
			"list": []any{"a", "b"},
		},
	}
	clone := doc.Clone()
	clone["nested"].(map[string]any)["list"].([]any)[0] = "mutated"
	if doc["nested"].(map[string]any)["list"].([]any)[0] != "a" {
		t.Fatalf("clone mutation leaked into original")
	}
}

func TestDocumentAccessors(t *testing.T) {
	doc := Document{FieldID: "item:1", FieldRev: "2-ff", FieldDeleted: true}
	if doc.ID() != "item:1" || doc.Rev() != "2-ff" || !doc.Deleted() {
		t.Fatalf("unexpected accessors: %v %v %v", doc.ID(), doc.Rev(), doc.Deleted())
	}
	var empty Document
	if empty.ID() != "" || empty.Rev() != "" || empty.Deleted() {
		t.Fatalf("zero document accessors should be zero values")
	}
}
