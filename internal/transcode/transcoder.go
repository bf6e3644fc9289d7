// Package transcode decodes, resizes and re-encodes source images on a
// dedicated CPU worker pool.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	xwebp "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"

	"imagegate/internal/apperr"
	"imagegate/internal/config"
	"imagegate/internal/metrics"
	"imagegate/internal/transform"
	"imagegate/pkg/logging/logging"
)

// smallTargetEdge is the cutoff below which the cheaper triangle filter
// replaces Lanczos resampling.
const smallTargetEdge = 300

const jpegQuality = 85

// Result is an encoded artifact and its MIME type.
type Result struct {
	Data        []byte
	ContentType string
}

// Transcoder runs the decode/resize/encode sequence. Admission is
// bounded separately from pool size so queued work cannot pile up
// without limit.
type Transcoder struct {
	pool *Pool
	sem  *semaphore.Weighted
}

// New builds a Transcoder with a worker pool sized by
// CPUThreadPoolSize and an admission cap of MaxConcurrentProcessing.
func New(perf config.Performance) *Transcoder {
	return &Transcoder{
		pool: NewPool(perf.CPUThreadPoolSize),
		sem:  semaphore.NewWeighted(int64(max(1, perf.MaxConcurrentProcessing))),
	}
}

// Close stops the worker pool.
func (t *Transcoder) Close() { t.pool.Close() }

// Transcode converts src according to req and returns the encoded
// artifact. The CPU-bound stages run on the worker pool; the calling
// goroutine blocks until they complete or ctx is done.
func (t *Transcoder) Transcode(ctx context.Context, src []byte, req transform.Request) (Result, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return Result{}, apperr.E(apperr.KindTranscodeFailed, "transcode.acquire", err)
	}
	defer t.sem.Release(1)
	metrics.ActiveProcessing.Inc()
	defer metrics.ActiveProcessing.Dec()

	start := time.Now()
	var res Result
	err := t.pool.Run(ctx, func() error {
		var err error
		res, err = transcode(src, req)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, apperr.E(apperr.KindTranscodeFailed, "transcode", ctxErr)
		}
		return Result{}, err
	}
	logging.L(ctx).Debug("image transcoded",
		zap.String("format", string(req.Format)),
		zap.Int("bytes", len(res.Data)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// transcode is the synchronous pipeline executed on a pool worker.
func transcode(src []byte, req transform.Request) (Result, error) {
	img, err := decode(src)
	if err != nil {
		return Result{}, apperr.E(apperr.KindDecodeFailed, "transcode.decode", err)
	}

	bounds := img.Bounds()
	w, h := targetSize(bounds.Dx(), bounds.Dy(), req.Width, req.Height)
	if (w != bounds.Dx() || h != bounds.Dy()) && (req.Width != 0 || req.Height != 0) {
		img = imaging.Resize(img, w, h, filterFor(w, h))
	}
	if req.Grayscale {
		img = imaging.Grayscale(img)
	}
	if req.BlurSigma > 0 {
		img = imaging.Blur(img, req.BlurSigma)
	}

	data, err := encode(img, req.Format)
	if err != nil {
		return Result{}, apperr.E(apperr.KindTranscodeFailed, "transcode.encode", err)
	}
	return Result{Data: data, ContentType: req.Format.ContentType()}, nil
}

// decode sniffs the magic bytes and dispatches to the matching decoder,
// falling back to generic detection for anything unrecognized.
func decode(src []byte) (image.Image, error) {
	switch sniff(src) {
	case transform.FormatJPEG:
		return jpeg.Decode(bytes.NewReader(src))
	case transform.FormatPNG:
		return png.Decode(bytes.NewReader(src))
	case transform.FormatWEBP:
		return xwebp.Decode(bytes.NewReader(src))
	default:
		img, _, err := image.Decode(bytes.NewReader(src))
		return img, err
	}
}

// sniff identifies the source format from its magic bytes. Returns ""
// when unknown.
func sniff(src []byte) transform.Format {
	switch {
	case len(src) >= 3 && src[0] == 0xFF && src[1] == 0xD8 && src[2] == 0xFF:
		return transform.FormatJPEG
	case len(src) >= 4 && bytes.Equal(src[:4], []byte{0x89, 'P', 'N', 'G'}):
		return transform.FormatPNG
	case len(src) >= 12 && bytes.Equal(src[:4], []byte("RIFF")) && bytes.Equal(src[8:12], []byte("WEBP")):
		return transform.FormatWEBP
	default:
		return ""
	}
}

// targetSize resolves the requested extents against the source size.
// With both extents given the image is resized to exactly that box;
// with one, the other is derived preserving aspect ratio; with none,
// the source size is kept.
func targetSize(srcW, srcH, reqW, reqH int) (int, int) {
	switch {
	case reqW == 0 && reqH == 0:
		return srcW, srcH
	case reqW != 0 && reqH != 0:
		return reqW, reqH
	case reqW != 0:
		return reqW, max(1, srcH*reqW/srcW)
	default:
		return max(1, srcW*reqH/srcH), reqH
	}
}

// filterFor selects the resampling filter: triangle for small targets,
// Lanczos for everything else.
func filterFor(w, h int) imaging.ResampleFilter {
	if max(w, h) <= smallTargetEdge {
		return imaging.Linear
	}
	return imaging.Lanczos
}

// encode writes img in the requested format. The buffer is pre-grown
// to a pixel-count hint to avoid repeated reallocation on large images.
func encode(img image.Image, format transform.Format) ([]byte, error) {
	bounds := img.Bounds()
	buf := bytes.NewBuffer(make([]byte, 0, bounds.Dx()*bounds.Dy()*4))
	var err error
	switch format {
	case transform.FormatJPEG:
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality})
	case transform.FormatPNG:
		err = png.Encode(buf, img)
	case transform.FormatWEBP:
		err = webp.Encode(buf, img, &webp.Options{Quality: 80})
	default:
		err = fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
