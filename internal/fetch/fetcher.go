// Package fetch downloads source images over HTTP with a shared,
// pooled client, a process-wide concurrency cap and a hard size bound.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"imagegate/internal/apperr"
	"imagegate/internal/config"
	"imagegate/internal/metrics"
	"imagegate/pkg/logging/logging"
)

// Fetcher downloads source images. It is safe for concurrent use; the
// embedded http.Client is immutable after construction.
type Fetcher struct {
	client   *http.Client
	sem      *semaphore.Weighted
	maxBytes int64
}

// New builds a Fetcher from the performance configuration. The
// transport keeps ConnectionPoolSize idle connections per origin,
// recycles them after KeepAliveTimeout and negotiates HTTP/2 only when
// enabled.
func New(perf config.Performance) *Fetcher {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        perf.ConnectionPoolSize * 2,
		MaxIdleConnsPerHost: perf.ConnectionPoolSize,
		IdleConnTimeout:     perf.KeepAliveTimeout,
		ForceAttemptHTTP2:   perf.EnableHTTP2,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: perf.KeepAliveTimeout,
		}).DialContext,
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   perf.HTTPTimeout,
		},
		sem:      semaphore.NewWeighted(int64(perf.MaxConcurrentDownloads)),
		maxBytes: perf.MaxImageSize,
	}
}

// Fetch downloads rawURL into memory. The transfer aborts as soon as
// either the declared Content-Length or the streamed byte count exceeds
// the configured maximum. Exactly one attempt is made; retries belong
// to a higher layer.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, apperr.E(apperr.KindInvalidRequest, "fetch",
			fmt.Errorf("source url must use http or https"))
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, classifyTransport("fetch.acquire", err)
	}
	defer f.sem.Release(1)
	metrics.ActiveDownloads.Inc()
	defer metrics.ActiveDownloads.Dec()

	start := time.Now()
	// Accept-Encoding is left to the transport so gzip responses are
	// decompressed before the size check and the decoder see them.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.E(apperr.KindInvalidRequest, "fetch.request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport("fetch.do", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Unavailable("fetch.status", resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, apperr.E(apperr.KindSourceTooLarge, "fetch.length",
			fmt.Errorf("declared %d bytes, limit %d", resp.ContentLength, f.maxBytes))
	}

	// Read one byte past the limit so a lying or absent Content-Length
	// still trips the bound before the transfer completes.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, classifyTransport("fetch.read", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, apperr.E(apperr.KindSourceTooLarge, "fetch.read",
			fmt.Errorf("streamed bytes exceed limit %d", f.maxBytes))
	}

	metrics.SourceFetchesTotal.Inc()
	logging.L(ctx).Debug("source fetched",
		zap.String("url", rawURL),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return data, nil
}

// classifyTransport separates timeouts and cancellation from other
// transport failures.
func classifyTransport(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.E(apperr.KindSourceTimeout, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return apperr.E(apperr.KindSourceTransport, op, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return apperr.E(apperr.KindSourceTimeout, op, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return apperr.E(apperr.KindSourceTimeout, op, err)
	}
	return apperr.E(apperr.KindSourceTransport, op, err)
}
