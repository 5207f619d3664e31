package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to a blob store.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// SettlementArchiver exports settlement reports for resolved markets.
type SettlementArchiver interface {
	// ArchiveResolved archives every market resolved strictly before the
	// cutoff and returns the number of markets archived.
	ArchiveResolved(ctx context.Context, before time.Time) (int64, error)
}
