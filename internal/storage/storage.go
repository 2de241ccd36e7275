package storage

import (
	"context"
	"io"
)

// ObjectStore keeps exported ledger files in remote object storage.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) (string, error)
}
