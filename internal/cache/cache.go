// Package cache is the process-local result cache in front of the
// object store, with a single-flight guard so concurrent requests for
// one fingerprint perform the pipeline exactly once.
package cache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"imagegate/internal/storage"
)

// Entry maps an artifact key to its public location.
type Entry struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// EntryStore persists cache entries. Implemented by the in-memory map
// (always present) and optionally Redis for multi-node deployments.
type EntryStore interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
}

// FillFunc runs the full pipeline for a cold key and returns the entry
// for the stored artifact.
type FillFunc func(ctx context.Context) (Entry, error)

// Resolver answers "where does the artifact for this key live",
// running the pipeline at most once per key per process at any instant.
type Resolver struct {
	entries EntryStore
	store   storage.Store
	group   singleflight.Group
}

func NewResolver(entries EntryStore, store storage.Store) *Resolver {
	return &Resolver{entries: entries, store: store}
}

// Resolve implements the hit / cold-hit / miss protocol:
//
//  1. entry present            -> return it (HIT)
//  2. another caller in flight -> await its result (SHARED-WAIT)
//  3. artifact already stored  -> synthesize entry (COLD-HIT)
//  4. otherwise run fill       -> store entry (MISS-FILLED)
//
// A leader failure propagates the same error to every waiter of that
// attempt and caches nothing, so the next call starts fresh.
func (r *Resolver) Resolve(ctx context.Context, key, contentType string, fill FillFunc) (Entry, error) {
	if e, ok, err := r.entries.Get(ctx, key); err == nil && ok {
		return e, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Re-check under the flight: a previous leader may have
		// installed the entry while this caller was queueing.
		if e, ok, err := r.entries.Get(ctx, key); err == nil && ok {
			return e, nil
		}

		ok, err := r.store.Exists(ctx, key)
		if err != nil {
			return Entry{}, err
		}
		if ok {
			e := Entry{URL: r.store.PublicURL(key), ContentType: contentType}
			_ = r.entries.Set(ctx, key, e)
			return e, nil
		}

		e, err := fill(ctx)
		if err != nil {
			return Entry{}, err
		}
		_ = r.entries.Set(ctx, key, e)
		return e, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}
