package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"imagegate/internal/apperr"
	"imagegate/internal/pipeline"
	"imagegate/internal/storage"
	"imagegate/internal/transform"
	"imagegate/pkg/logging/logging"
)

// Artifacts are content-addressed and immutable, so downloads are
// cacheable forever.
const downloadCacheControl = "public, max-age=31536000, immutable"

// ImagesHandler holds dependencies for the /api/images endpoints.
type ImagesHandler struct {
	Pipeline *pipeline.Pipeline
}

func NewImagesHandler(p *pipeline.Pipeline) *ImagesHandler {
	return &ImagesHandler{Pipeline: p}
}

// Resize handles GET /api/images/resize. On success it redirects with
// 301 to the artifact's public URL; 301 rather than 302 because the
// target is content-addressed and never changes.
func (h *ImagesHandler) Resize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	req, err := parseResizeQuery(r)
	if err != nil {
		logger.Warn("invalid resize request", zap.Error(err))
		writeError(w, err)
		return
	}

	url, err := h.Pipeline.Resize(ctx, req)
	if err != nil {
		logger.Warn("resize failed",
			zap.String("source_url", req.SourceURL),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	logger.Info("resize redirect",
		zap.String("source_url", req.SourceURL),
		zap.String("location", url),
		zap.Duration("total_latency", time.Since(start)),
	)
	w.Header().Set("Location", url)
	w.WriteHeader(http.StatusMovedPermanently)
}

// Download handles GET /api/images/files/{key}.
func (h *ImagesHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	data, contentType, err := h.Pipeline.Download(ctx, key)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			logging.L(ctx).Error("download failed",
				zap.String("artifact_key", key), zap.Error(err))
		}
		writeError(w, err)
		return
	}

	if contentType == "" {
		contentType = storage.ContentTypeForKey(key)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", downloadCacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// parseResizeQuery validates the query parameters and builds the
// normalized request.
func parseResizeQuery(r *http.Request) (transform.Request, error) {
	q := r.URL.Query()

	rawURL := q.Get("url")
	if rawURL == "" {
		return transform.Request{}, apperr.E(apperr.KindInvalidRequest, "parse",
			fmt.Errorf("url query parameter is required"))
	}

	width, err := parseDim(q.Get("width"), "width")
	if err != nil {
		return transform.Request{}, err
	}
	height, err := parseDim(q.Get("height"), "height")
	if err != nil {
		return transform.Request{}, err
	}

	format, err := transform.ParseFormat(q.Get("format"))
	if err != nil {
		return transform.Request{}, apperr.E(apperr.KindInvalidRequest, "parse", err)
	}

	var blurSigma float64
	if v := q.Get("blur_sigma"); v != "" {
		blurSigma, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return transform.Request{}, apperr.E(apperr.KindInvalidRequest, "parse",
				fmt.Errorf("blur_sigma must be a number"))
		}
	}

	var grayscale bool
	if v := q.Get("grayscale"); v != "" {
		grayscale, err = strconv.ParseBool(v)
		if err != nil {
			return transform.Request{}, apperr.E(apperr.KindInvalidRequest, "parse",
				fmt.Errorf("grayscale must be a boolean"))
		}
	}

	req := transform.Request{
		SourceURL: rawURL,
		Width:     width,
		Height:    height,
		Format:    format,
		BlurSigma: blurSigma,
		Grayscale: grayscale,
	}
	if err := req.Validate(); err != nil {
		return transform.Request{}, err
	}
	return req, nil
}

func parseDim(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.E(apperr.KindInvalidRequest, "parse",
			fmt.Errorf("%s must be an integer", name))
	}
	// 0 is the internal sentinel for an absent dimension; a literal 0
	// in the query is present and out of range.
	if n == 0 {
		return 0, apperr.E(apperr.KindInvalidRequest, "parse",
			fmt.Errorf("%s must be between %d and %d", name, transform.MinDimension, transform.MaxDimension))
	}
	return n, nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeError maps an error to its HTTP status and the JSON envelope
// {"error":{"code","message"}}.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorBody{
			Code:    string(apperr.KindOf(err)),
			Message: apperr.Message(err),
		},
	})
}
