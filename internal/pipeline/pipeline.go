// Package pipeline binds fingerprinting, fetching, transcoding, the
// result cache and the object store into the two public operations:
// Resize and Download.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"imagegate/internal/cache"
	"imagegate/internal/metrics"
	"imagegate/internal/storage"
	"imagegate/internal/transcode"
	"imagegate/internal/transform"
	"imagegate/pkg/logging/logging"
)

// Fetcher downloads a source image into memory.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Transcoder converts a source buffer per the request parameters.
type Transcoder interface {
	Transcode(ctx context.Context, src []byte, req transform.Request) (transcode.Result, error)
}

// Pipeline serves resize and download requests.
type Pipeline struct {
	fetcher    Fetcher
	transcoder Transcoder
	store      storage.Store
	resolver   *cache.Resolver
}

func New(fetcher Fetcher, transcoder Transcoder, store storage.Store, resolver *cache.Resolver) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		transcoder: transcoder,
		store:      store,
		resolver:   resolver,
	}
}

// Resize resolves the request to a public artifact URL, running
// fetch -> transcode -> put only when neither the cache nor the object
// store already has the artifact. Concurrent calls for one fingerprint
// share a single pipeline run.
func (p *Pipeline) Resize(ctx context.Context, req transform.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	key := transform.ArtifactKey(req)
	metrics.ResizeRequestsTotal.Inc()

	entry, err := p.resolver.Resolve(ctx, key, req.Format.ContentType(), func(ctx context.Context) (cache.Entry, error) {
		return p.fill(ctx, key, req)
	})
	if err != nil {
		return "", err
	}
	return entry.URL, nil
}

// fill is the leader-only path: it produces and stores the artifact.
func (p *Pipeline) fill(ctx context.Context, key string, req transform.Request) (cache.Entry, error) {
	start := time.Now()
	logger := logging.L(ctx).With(zap.String("artifact_key", key))

	src, err := p.fetcher.Fetch(ctx, req.SourceURL)
	if err != nil {
		return cache.Entry{}, err
	}
	fetched := time.Now()

	res, err := p.transcoder.Transcode(ctx, src, req)
	if err != nil {
		return cache.Entry{}, err
	}
	transcoded := time.Now()

	if err := p.store.Put(ctx, key, res.Data, res.ContentType); err != nil {
		return cache.Entry{}, err
	}
	metrics.ArtifactPutsTotal.Inc()

	logger.Info("artifact published",
		zap.String("source_url", req.SourceURL),
		zap.Int("bytes", len(res.Data)),
		zap.Duration("fetch", fetched.Sub(start)),
		zap.Duration("transcode", transcoded.Sub(fetched)),
		zap.Duration("store", time.Since(transcoded)),
	)
	return cache.Entry{
		URL:         p.store.PublicURL(key),
		ContentType: res.ContentType,
		Size:        len(res.Data),
	}, nil
}

// Download returns the stored artifact bytes for a key.
func (p *Pipeline) Download(ctx context.Context, key string) ([]byte, string, error) {
	return p.store.Get(ctx, key)
}
