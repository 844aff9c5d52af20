package blob

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	info, err := store.Put(ctx, "item/1/label.png", bytes.NewReader([]byte("payload")), PutOptions{
		ContentType: "image/png",
		Metadata:    map[string]string{"data_id": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ContentType != "image/png" {
		t.Fatalf("unexpected info: %+v", info)
	}

	got, rc, err := store.Get(ctx, "item/1/label.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "payload" || got.Metadata["data_id"] != "1" {
		t.Fatalf("get mismatch: %q %+v", data, got)
	}

	head, err := store.Head(ctx, "item/1/label.png")
	if err != nil || head.Size != 7 {
		t.Fatalf("head: %+v %v", head, err)
	}

	// Re-putting the same key replaces the content.
	if _, err := store.Put(ctx, "item/1/label.png", bytes.NewReader([]byte("replaced")), PutOptions{}); err != nil {
		t.Fatalf("replace put: %v", err)
	}
	head, _ = store.Head(ctx, "item/1/label.png")
	if head.Size != 8 {
		t.Fatalf("expected replaced payload size, got %d", head.Size)
	}

	if _, err := store.PresignURL(ctx, "item/1/label.png", SignedURLOptions{}); err != ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	existed, err := store.Delete(ctx, "item/1/label.png")
	if err != nil || !existed {
		t.Fatalf("delete: %v %v", existed, err)
	}
	existed, _ = store.Delete(ctx, "item/1/label.png")
	if existed {
		t.Fatalf("second delete should report missing")
	}
	if _, _, err := store.Get(ctx, "item/1/label.png"); err == nil {
		t.Fatalf("expected not found after delete")
	}
}

func TestMemoryStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	for _, key := range []string{"item/1/a", "item/1/b", "item/2/a", "collection/1/a"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "item/1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "item/1/a" || infos[1].Key != "item/1/b" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
	all, _ := store.List(ctx, "")
	if len(all) != 4 {
		t.Fatalf("expected 4 blobs, got %d", len(all))
	}
}
