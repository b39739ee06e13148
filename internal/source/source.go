// Package source implements the uniform Fetch(z,x,y) -> TileResult façade
// over remote HTTP tile servers and local tile archives.
package source

import (
	"context"
	"time"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

// Declared describes what a source claims to be able to serve, so the
// pipeline can prefilter work items instead of issuing doomed requests.
type Declared struct {
	TileKind config.TileKind
	MinZoom  uint8
	MaxZoom  uint8
	Bounds   *geometry.BBox // nil means unbounded
}

// Accepts reports whether the source's declared range/bounds could
// possibly serve tile t.
func (d Declared) Accepts(t geometry.TileCoord) bool {
	if t.Z < d.MinZoom || t.Z > d.MaxZoom {
		return false
	}
	if d.Bounds == nil {
		return true
	}
	tb := geometry.TileToBounds(t.Z, t.X, t.Y)
	return d.Bounds.Intersects(tb)
}

// Source is the uniform façade over a remote HTTP server or local archive.
type Source interface {
	Name() string
	Declared() Declared
	Fetch(ctx context.Context, t geometry.TileCoord) Result
	Close() error
}

// New constructs the concrete Source for a SourceSpec. emptyFingerprints
// is forwarded to the adapter's Validator so known-blank tiles classify as
// Empty regardless of which source answered.
func New(spec config.SourceSpec, userAgent string, workersPerSource int, timeout time.Duration, emptyFingerprints [][]byte) (Source, error) {
	switch spec.Kind {
	case config.SourceHTTP:
		return NewHTTPSource(spec, userAgent, workersPerSource, timeout, emptyFingerprints), nil
	case config.SourceLocal:
		return NewLocalSource(spec, emptyFingerprints)
	default:
		return nil, errUnknownKind(spec.Kind)
	}
}

type errUnknownKind config.SourceKind

func (e errUnknownKind) Error() string { return "source: unknown kind " + string(e) }
