// Package storage provides the pluggable object store that both caches
// and serves transformed artifacts.
package storage

import (
	"context"
	"strings"
)

// Store is the capability set every backend implements. Artifacts are
// immutable: Put for an existing key may rewrite the object, but every
// candidate byte sequence for a key satisfies the same fingerprint, so
// last-writer-wins is safe.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (data []byte, contentType string, err error)
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// ContentTypeForKey derives the MIME type from an artifact key's
// extension.
func ContentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
