package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrBlobNotFound is returned when a blob does not exist in the backing store.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore persists the working and pristine PDF copies of a document.
type BlobStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// OriginalKey returns the key of the untouched copy stored next to a working file.
// "docs/abc.pdf" becomes "docs/abc-original.pdf".
func OriginalKey(key string) string {
	if strings.HasSuffix(strings.ToLower(key), ".pdf") {
		return key[:len(key)-4] + "-original.pdf"
	}
	return key + "-original"
}
