package blob

import (
	"context"
	"fmt"
	"os"
)

// Open selects a blob Store implementation using environment variables.
//
//	STOCKLEDGER_BLOB_DRIVER: fs|s3|memory (default fs)
//	STOCKLEDGER_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in s3.go)
func Open(ctx context.Context) (Store, error) {
	return OpenDriver(ctx, Driver(os.Getenv("STOCKLEDGER_BLOB_DRIVER")))
}

// OpenDriver selects a blob Store implementation for an explicit driver. An
// empty driver falls back to the filesystem default.
func OpenDriver(ctx context.Context, driver Driver) (Store, error) {
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("STOCKLEDGER_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
