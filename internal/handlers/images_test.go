package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"

	"imagegate/internal/apperr"
	"imagegate/internal/cache"
	"imagegate/internal/config"
	"imagegate/internal/pipeline"
	"imagegate/internal/storage"
	"imagegate/internal/transcode"
)

var keyPattern = regexp.MustCompile(`([0-9a-f]{64})\.(jpg|png|webp)$`)

// stubFetcher serves a real PNG so the full transcoder runs.
type stubFetcher struct {
	data  []byte
	err   error
	calls int32
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func sourcePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

type testGateway struct {
	router  *chi.Mux
	fetcher *stubFetcher
	store   *storage.Memory
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	fetcher := &stubFetcher{data: sourcePNG(t)}
	store := storage.NewMemory("http://cdn.local/files")
	resolver := cache.NewResolver(cache.NewMemoryEntryStore(), store)
	transcoder := transcode.New(config.Performance{CPUThreadPoolSize: 2, MaxConcurrentProcessing: 4})
	t.Cleanup(transcoder.Close)

	pipe := pipeline.New(fetcher, transcoder, store, resolver)
	h := NewImagesHandler(pipe)

	r := chi.NewRouter()
	r.Get("/api/images/resize", h.Resize)
	r.Get("/api/images/files/{key}", h.Download)

	return &testGateway{router: r, fetcher: fetcher, store: store}
}

func (g *testGateway) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	g.router.ServeHTTP(rr, req)
	return rr
}

func resizeTarget(params map[string]string) string {
	q := url.Values{"url": {"https://ex.com/a.jpg"}}
	for k, v := range params {
		q.Set(k, v)
	}
	return "/api/images/resize?" + q.Encode()
}

func TestResizeFreshMissRedirects(t *testing.T) {
	g := newTestGateway(t)

	rr := g.get(t, resizeTarget(map[string]string{
		"width": "200", "height": "200", "format": "jpg",
	}))
	if rr.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301: %s", rr.Code, rr.Body.String())
	}
	loc := rr.Header().Get("Location")
	if !strings.HasSuffix(loc, ".jpg") {
		t.Errorf("Location %q does not end with .jpg", loc)
	}
	if !keyPattern.MatchString(loc) {
		t.Errorf("Location %q does not contain a 64-hex fingerprint key", loc)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("redirect body should be empty, got %q", rr.Body.String())
	}
}

func TestResizeWarmHitSkipsFetcher(t *testing.T) {
	g := newTestGateway(t)
	target := resizeTarget(map[string]string{"width": "200", "height": "200"})

	first := g.get(t, target)
	if first.Code != http.StatusMovedPermanently {
		t.Fatalf("first status = %d", first.Code)
	}
	second := g.get(t, target)
	if second.Code != http.StatusMovedPermanently {
		t.Fatalf("second status = %d", second.Code)
	}
	if first.Header().Get("Location") != second.Header().Get("Location") {
		t.Error("warm hit returned a different Location")
	}
	if n := atomic.LoadInt32(&g.fetcher.calls); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
}

func TestResizeFormatSwitchChangesKey(t *testing.T) {
	g := newTestGateway(t)

	jpg := g.get(t, resizeTarget(map[string]string{"width": "100", "format": "jpg"}))
	webp := g.get(t, resizeTarget(map[string]string{"width": "100", "format": "webp"}))
	if jpg.Code != http.StatusMovedPermanently || webp.Code != http.StatusMovedPermanently {
		t.Fatalf("statuses = %d, %d", jpg.Code, webp.Code)
	}
	jpgLoc, webpLoc := jpg.Header().Get("Location"), webp.Header().Get("Location")
	if jpgLoc == webpLoc {
		t.Error("format switch must produce a different key")
	}
	if !strings.HasSuffix(webpLoc, ".webp") {
		t.Errorf("webp Location = %q", webpLoc)
	}

	// the stored webp artifact carries RIFF....WEBP magic bytes
	key := keyPattern.FindString(webpLoc)
	data, contentType, err := g.store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get webp artifact: %v", err)
	}
	if contentType != "image/webp" {
		t.Errorf("content type = %q", contentType)
	}
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Error("stored artifact is not valid WEBP")
	}
}

func TestResizeValidationErrors(t *testing.T) {
	g := newTestGateway(t)

	cases := []struct {
		name   string
		target string
	}{
		{"missing url", "/api/images/resize"},
		{"relative url", resizeTarget(map[string]string{"url": "not-a-url"})},
		{"width below range", resizeTarget(map[string]string{"width": "5"})},
		{"explicit zero width", resizeTarget(map[string]string{"width": "0"})},
		{"explicit zero height", resizeTarget(map[string]string{"height": "0"})},
		{"width above range", resizeTarget(map[string]string{"width": "5000"})},
		{"width not a number", resizeTarget(map[string]string{"width": "abc"})},
		{"bad format", resizeTarget(map[string]string{"format": "gif"})},
		{"blur out of range", resizeTarget(map[string]string{"blur_sigma": "200"})},
		{"blur not a number", resizeTarget(map[string]string{"blur_sigma": "NaN"})},
		{"bad grayscale", resizeTarget(map[string]string{"grayscale": "maybe"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := g.get(t, tc.target)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			var envelope struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if envelope.Error.Code != string(apperr.KindInvalidRequest) {
				t.Errorf("code = %q, want INVALID_REQUEST", envelope.Error.Code)
			}
		})
	}
	if n := atomic.LoadInt32(&g.fetcher.calls); n != 0 {
		t.Errorf("fetcher called %d times for invalid requests, want 0", n)
	}
}

func TestResizeOversizeSourceMapsTo413(t *testing.T) {
	g := newTestGateway(t)
	g.fetcher.err = apperr.E(apperr.KindSourceTooLarge, "fetch.read", nil)

	rr := g.get(t, resizeTarget(map[string]string{"width": "200"}))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
	if g.store.Len() != 0 {
		t.Error("no artifact may be stored for an oversize source")
	}
}

func TestResizeSourceErrorsMapped(t *testing.T) {
	cases := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindSourceUnavailable, http.StatusBadGateway},
		{apperr.KindSourceTimeout, http.StatusGatewayTimeout},
		{apperr.KindSourceTransport, http.StatusBadGateway},
		{apperr.KindStoreTransport, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			g := newTestGateway(t)
			g.fetcher.err = apperr.E(tc.kind, "fetch", nil)
			rr := g.get(t, resizeTarget(nil))
			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestResizeGarbageSourceMapsTo422(t *testing.T) {
	g := newTestGateway(t)
	g.fetcher.data = []byte("this is not an image")

	rr := g.get(t, resizeTarget(map[string]string{"width": "100"}))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestDownloadPath(t *testing.T) {
	g := newTestGateway(t)

	// publish an artifact first, then follow its Location
	rr := g.get(t, resizeTarget(map[string]string{"width": "200", "format": "jpg"}))
	if rr.Code != http.StatusMovedPermanently {
		t.Fatalf("resize status = %d", rr.Code)
	}
	key := keyPattern.FindString(rr.Header().Get("Location"))

	dl := g.get(t, "/api/images/files/"+key)
	if dl.Code != http.StatusOK {
		t.Fatalf("download status = %d", dl.Code)
	}
	if ct := dl.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	if cc := dl.Header().Get("Cache-Control"); cc != "public, max-age=31536000, immutable" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if body := dl.Body.Bytes(); len(body) < 3 || body[0] != 0xFF || body[1] != 0xD8 || body[2] != 0xFF {
		t.Error("download body is not a JPEG")
	}
}

func TestDownloadMissingKey(t *testing.T) {
	g := newTestGateway(t)
	rr := g.get(t, "/api/images/files/"+strings.Repeat("ab", 32)+".jpg")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
