package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"bank-ledger/internal/domain"
	"bank-ledger/internal/storage"
)

const s3Scheme = "s3://"

// ErrNoObjectStore is returned for s3:// destinations when no bucket is configured.
var ErrNoObjectStore = errors.New("object storage not configured")

// Exporter writes transaction histories to a local file or to object storage.
type Exporter struct {
	dir    string
	store  storage.ObjectStore
	bucket string
}

// NewExporter resolves relative file destinations against dir. store may be nil; bucket is
// used for s3:// destinations that omit one (s3:///key).
func NewExporter(dir string, store storage.ObjectStore, bucket string) *Exporter {
	return &Exporter{dir: dir, store: store, bucket: bucket}
}

// Export serialises transactions to destination and returns where they were written.
func (e *Exporter) Export(ctx context.Context, username, destination string, transactions []domain.Transaction) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", fmt.Errorf("destination is required")
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, transactions); err != nil {
		return "", err
	}

	if strings.HasPrefix(destination, s3Scheme) {
		return e.exportObject(ctx, username, destination, &buf)
	}
	return e.exportFile(destination, buf.Bytes())
}

// exportFile writes to a sibling temp file and renames it so a failed write never truncates an old export.
func (e *Exporter) exportFile(destination string, data []byte) (string, error) {
	target := destination
	if !filepath.IsAbs(target) && e.dir != "" {
		target = filepath.Join(e.dir, target)
	}
	target = filepath.Clean(target)

	tmp, err := os.CreateTemp(filepath.Dir(target), ".export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename to %s: %w", target, err)
	}
	return target, nil
}

func (e *Exporter) exportObject(ctx context.Context, username, destination string, buf *bytes.Buffer) (string, error) {
	if e.store == nil {
		return "", ErrNoObjectStore
	}
	bucket, key, err := ParseObjectDestination(destination)
	if err != nil {
		return "", err
	}
	if bucket == "" {
		bucket = e.bucket
	}
	if bucket == "" {
		return "", fmt.Errorf("invalid s3 location %q: bucket missing", destination)
	}
	if key == "" || strings.HasSuffix(key, "/") {
		key = path.Join(key, fmt.Sprintf("%s-%s.csv", username, uuid.NewString()))
	}
	return e.store.PutObject(ctx, bucket, key, "text/csv", buf)
}

// ParseObjectDestination splits s3://bucket/key into its bucket and key. Either may be empty
// (s3:///key, s3://bucket/); the key may end in "/".
func ParseObjectDestination(location string) (string, string, error) {
	if !strings.HasPrefix(location, s3Scheme) {
		return "", "", fmt.Errorf("invalid s3 location")
	}
	rest := strings.TrimPrefix(location, s3Scheme)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], strings.TrimPrefix(parts[1], "/"), nil
}
