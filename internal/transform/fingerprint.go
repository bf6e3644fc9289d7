package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Fingerprint hashes the canonical serialization of a normalized
// request with SHA-256 and returns it as 64 lowercase hex characters.
// Identical normalized requests always produce identical fingerprints.
func Fingerprint(r Request) string {
	sum := sha256.Sum256([]byte(canonicalString(r)))
	return hex.EncodeToString(sum[:])
}

// ArtifactKey is the object-store key for the artifact a request
// produces: the fingerprint hex plus the format extension.
func ArtifactKey(r Request) string {
	return Fingerprint(r) + "." + r.Format.Extension()
}

// canonicalString serializes a request into the stable form that is
// hashed. Fields are joined by '|' in fixed order: url|w|h|fmt|blur|gray.
// The URL is lowercased and otherwise treated as opaque; query
// parameters are never reordered.
func canonicalString(r Request) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(r.SourceURL))
	b.WriteByte('|')
	b.WriteString(dimField(r.Width))
	b.WriteByte('|')
	b.WriteString(dimField(r.Height))
	b.WriteByte('|')
	b.WriteString(string(r.Format))
	b.WriteByte('|')
	b.WriteString(blurField(r.BlurSigma))
	b.WriteByte('|')
	if r.Grayscale {
		b.WriteByte('1')
	} else {
		b.WriteByte('0')
	}
	return b.String()
}

// dimField encodes an absent dimension as the sentinel '-', present
// values as plain decimal.
func dimField(v int) string {
	if v == 0 {
		return "-"
	}
	return strconv.Itoa(v)
}

// blurField encodes sigma with up to six fractional digits, trailing
// zeros trimmed. Zero (no blur) encodes as "0".
func blurField(sigma float64) string {
	if sigma == 0 {
		return "0"
	}
	s := strconv.FormatFloat(sigma, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
