package core

import (
	"context"
	"fmt"

	"stockledger/internal/config"
	"stockledger/internal/docstore/memory"
	"stockledger/internal/docstore/postgres"
	"stockledger/internal/docstore/sqlite"
	"stockledger/pkg/document"
)

// OpenDocumentStore selects a document store backend from the loaded
// configuration.
func OpenDocumentStore(ctx context.Context, cfg config.Config) (document.Store, error) {
	switch document.Driver(cfg.Storage) {
	case document.DriverMemory:
		return memory.NewStore(), nil
	case document.DriverSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case document.DriverPostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Storage)
	}
}
