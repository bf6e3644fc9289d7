// Package transform defines the normalized transformation request and
// its deterministic fingerprint, which addresses artifacts in the
// object store.
package transform

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"imagegate/internal/apperr"
)

// Format is the requested output encoding.
type Format string

const (
	FormatJPEG Format = "jpg"
	FormatPNG  Format = "png"
	FormatWEBP Format = "webp"
)

// Dimension bounds accepted for width and height.
const (
	MinDimension = 10
	MaxDimension = 4096
)

// MaxBlurSigma is the largest accepted gaussian blur strength.
const MaxBlurSigma = 100

// ParseFormat maps a query-parameter value to a Format. Empty input
// selects the default (JPEG).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWEBP, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// ContentType returns the MIME type produced by the encoder for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatWEBP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Extension returns the artifact key extension for f.
func (f Format) Extension() string { return string(f) }

// Request is an immutable, normalized transformation request. Width and
// Height are 0 when absent; BlurSigma 0 means no blur.
type Request struct {
	SourceURL string
	Width     int
	Height    int
	Format    Format
	BlurSigma float64
	Grayscale bool
}

// Validate checks the request against the accepted parameter ranges.
func (r Request) Validate() error {
	u, err := url.Parse(r.SourceURL)
	if err != nil || !u.IsAbs() {
		return apperr.E(apperr.KindInvalidRequest, "transform.validate",
			fmt.Errorf("url must be an absolute URI"))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.E(apperr.KindInvalidRequest, "transform.validate",
			fmt.Errorf("unsupported url scheme %q", u.Scheme))
	}
	for name, v := range map[string]int{"width": r.Width, "height": r.Height} {
		if v != 0 && (v < MinDimension || v > MaxDimension) {
			return apperr.E(apperr.KindInvalidRequest, "transform.validate",
				fmt.Errorf("%s must be between %d and %d", name, MinDimension, MaxDimension))
		}
	}
	// NaN slips past both range comparisons and would corrupt the
	// canonical blur encoding.
	if math.IsNaN(r.BlurSigma) || r.BlurSigma < 0 || r.BlurSigma > MaxBlurSigma {
		return apperr.E(apperr.KindInvalidRequest, "transform.validate",
			fmt.Errorf("blur_sigma must be between 0 and %d", MaxBlurSigma))
	}
	switch r.Format {
	case FormatJPEG, FormatPNG, FormatWEBP:
	default:
		return apperr.E(apperr.KindInvalidRequest, "transform.validate",
			fmt.Errorf("unsupported format %q", r.Format))
	}
	return nil
}
