package document

import "context"

// Driver identifies a concrete document store backend implementation.
type Driver string

const (
	// DriverMemory is the in-memory reference implementation (tests, ephemeral).
	DriverMemory Driver = "memory"
	// DriverSQLite snapshots documents into an embedded SQLite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres snapshots documents into a PostgreSQL server.
	DriverPostgres Driver = "postgres"
)

// Store is the minimal abstraction over a replicating document database that
// the inventory core builds on: per-document atomic writes guarded by
// revision tokens, selector queries, named secondary indexes, and inline
// attachments. Implementations must be safe for concurrent use.
type Store interface {
	// Get fetches a document by id. Tombstoned documents are returned with
	// their deleted flag set; a missing id yields *NotFoundError.
	Get(ctx context.Context, id string) (Document, error)

	// Put writes a document. A document with no _rev must not exist yet;
	// otherwise _rev must match the stored revision or *ConflictError is
	// returned. The stored document, carrying its new revision, is returned.
	Put(ctx context.Context, doc Document) (Document, error)

	// Find executes a selector query. Attachment entries in results are
	// stubbed: metadata only, no payload bytes.
	Find(ctx context.Context, req FindRequest) ([]Document, error)

	// Count returns the number of documents matching the request's selector,
	// ignoring Limit and Skip.
	Count(ctx context.Context, req FindRequest) (int, error)

	// CreateIndex declares a secondary index. Redeclaring an identical index
	// is a no-op success.
	CreateIndex(ctx context.Context, idx Index) error

	// GetAttachment fetches one attachment payload by document id and name.
	GetAttachment(ctx context.Context, id, name string) (Attachment, error)

	// Driver reports which backend implementation is in use.
	Driver() Driver

	// Close releases backend resources.
	Close() error
}
