package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"imagegate/internal/apperr"
)

// Local stores artifacts as flat files under a root directory. Writes
// go to a temp file in the same directory and are renamed into place,
// so concurrent puts for the same key never expose partial bytes.
type Local struct {
	root       string
	cdnBaseURL string
}

// NewLocal creates the root directory if needed.
func NewLocal(root, cdnBaseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", root, err)
	}
	return &Local{root: root, cdnBaseURL: cdnBaseURL}, nil
}

func (l *Local) path(key string) (string, error) {
	// Dot names survive Base/Clean unchanged and would resolve to the
	// root or its parent.
	clean := filepath.Base(filepath.Clean(key))
	if clean != key || clean == "." || clean == ".." || strings.Contains(key, "/") {
		return "", apperr.E(apperr.KindInvalidRequest, "local.key",
			fmt.Errorf("malformed artifact key"))
	}
	return filepath.Join(l.root, clean), nil
}

func (l *Local) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return apperr.E(apperr.KindStoreTransport, "local.put", err)
	}
	path, err := l.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(l.root, key+".tmp-*")
	if err != nil {
		return apperr.E(apperr.KindStoreTransport, "local.put.temp", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.E(apperr.KindStoreTransport, "local.put.write", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.E(apperr.KindStoreTransport, "local.put.close", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperr.E(apperr.KindStoreTransport, "local.put.rename", err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", apperr.E(apperr.KindStoreTransport, "local.get", err)
	}
	path, err := l.path(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", apperr.E(apperr.KindNotFound, "local.get", err)
		}
		return nil, "", apperr.E(apperr.KindStoreTransport, "local.get", err)
	}
	return data, ContentTypeForKey(key), nil
}

func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperr.E(apperr.KindStoreTransport, "local.exists", err)
	}
	path, err := l.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperr.E(apperr.KindStoreTransport, "local.exists", err)
}

func (l *Local) PublicURL(key string) string {
	return joinURL(l.cdnBaseURL, key)
}
