// Package validator classifies a tile payload as valid, empty, or invalid,
// using type-specific rules for raster and vector tiles. It is pure and
// deterministic: the same bytes always produce the same classification.
package validator

import "bytes"

// Outcome is the result of validating a tile payload.
type Outcome int

const (
	Valid Outcome = iota
	Empty
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Empty:
		return "empty"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

const (
	minRasterBytes = 16
	minVectorBytes = 8
)

// Validator holds the configurable table of known-blank tile fingerprints;
// the exact set is left to configuration rather than hardcoded.
type Validator struct {
	emptyFingerprints [][]byte
}

// New builds a Validator with the given empty-tile fingerprint table.
func New(emptyFingerprints [][]byte) *Validator {
	return &Validator{emptyFingerprints: emptyFingerprints}
}

// ValidateRaster classifies a raster tile payload.
func (v *Validator) ValidateRaster(b []byte) Outcome {
	if len(b) < minRasterBytes {
		return Invalid
	}
	if isAllZero(b) || v.matchesKnownEmpty(b) {
		return Empty
	}
	if !looksLikeRasterImage(b) {
		return Invalid
	}
	return Valid
}

// ValidateVector classifies a (already gzip-decompressed) vector tile
// payload. Full protobuf decoding is not required; a minimal structural
// probe for a top-level "layers" field is sufficient.
func (v *Validator) ValidateVector(b []byte) Outcome {
	if len(b) < minVectorBytes {
		return Invalid
	}
	if isAllZero(b) || v.matchesKnownEmpty(b) {
		return Empty
	}
	if !looksLikeMVT(b) {
		return Invalid
	}
	return Valid
}

func (v *Validator) matchesKnownEmpty(b []byte) bool {
	for _, fp := range v.emptyFingerprints {
		if bytes.Equal(b, fp) {
			return true
		}
	}
	return false
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

var (
	pngMagic  = []byte{0x89, 0x50, 0x4e, 0x47}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	gifMagic  = []byte("GIF8")
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// looksLikeRasterImage checks magic bytes for PNG, JPEG, WebP, and GIF.
func looksLikeRasterImage(b []byte) bool {
	switch {
	case bytes.HasPrefix(b, pngMagic):
		return true
	case bytes.HasPrefix(b, jpegMagic):
		return true
	case bytes.HasPrefix(b, gifMagic):
		return true
	case len(b) >= 12 && bytes.HasPrefix(b, riffMagic) && bytes.Equal(b[8:12], webpMagic):
		return true
	}
	return false
}
