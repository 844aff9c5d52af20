package core

import (
	"context"
	"path/filepath"
	"testing"

	"stockledger/internal/config"
	"stockledger/pkg/document"
)

func TestOpenDocumentStore(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenDocumentStore(ctx, config.Config{Storage: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if mem.Driver() != document.DriverMemory {
		t.Fatalf("unexpected driver %s", mem.Driver())
	}

	lite, err := OpenDocumentStore(ctx, config.Config{
		Storage:    "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer lite.Close()
	if lite.Driver() != document.DriverSQLite {
		t.Fatalf("unexpected driver %s", lite.Driver())
	}

	if _, err := OpenDocumentStore(ctx, config.Config{Storage: "etcd"}); err == nil {
		t.Fatalf("unknown driver must error")
	}
}
