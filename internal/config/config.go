// Package config loads and validates the immutable run configuration:
// regions, sources (remote HTTP and local archive), and run-wide tunables.
// Loading follows a viper-based pattern (defaults + Unmarshal) over a
// nested JSON document rather than flat TOML.
package config

import (
	"fmt"
	"time"

	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

// SourceKind distinguishes a remote HTTP tile server from a local archive.
type SourceKind string

const (
	SourceHTTP  SourceKind = "http"
	SourceLocal SourceKind = "local"
)

// TileKind distinguishes raster imagery from vector (MVT/PBF) data.
type TileKind string

const (
	TileRaster TileKind = "raster"
	TileVector TileKind = "vector"
)

// SourceSpec describes one configured tile source, remote or local.
type SourceSpec struct {
	Name        string
	Kind        SourceKind
	TileKind    TileKind
	URLTemplate string // http: template containing {z} {x} {y}
	Path        string // local: path to the archive file
	Headers     map[string]string
	MinZoom     *uint8 // nil means unbounded below geometry.MinZoom
	MaxZoom     *uint8 // nil means unbounded above geometry.MaxZoom
}

// AcceptsZoom reports whether the source declares support for zoom z.
func (s SourceSpec) AcceptsZoom(z uint8) bool {
	if s.MinZoom != nil && z < *s.MinZoom {
		return false
	}
	if s.MaxZoom != nil && z > *s.MaxZoom {
		return false
	}
	return true
}

// RegionSpec describes one named downloadable region.
type RegionSpec struct {
	Name        string
	BBox        geometry.BBox
	MinZoom     uint8
	MaxZoom     uint8
	Description string
}

// Config is the immutable, run-wide configuration. Once loaded it is only
// ever read, never mutated, and may be shared freely across goroutines.
type Config struct {
	Regions  map[string]RegionSpec
	Sources  []SourceSpec
	Gazetteer string

	OutputDir        string
	WorkersPerSource int
	RetryAttempts    int
	Timeout          time.Duration
	UserAgent        string

	// VectorFirst controls whether vector sources are tried before raster
	// sources within the fallback chain. Defaults to true.
	VectorFirst bool

	// EmptyTileFingerprints is a set of exact byte-for-byte blobs that are
	// classified Empty rather than Valid even though they pass the
	// magic-byte check (e.g. a known 1x1 transparent PNG).
	EmptyTileFingerprints [][]byte
}

// Region looks up a region by name.
func (c *Config) Region(name string) (RegionSpec, error) {
	r, ok := c.Regions[name]
	if !ok {
		return RegionSpec{}, fmt.Errorf("region %q not found in configuration", name)
	}
	return r, nil
}

// SourcesByName filters c.Sources to the given names, preserving the
// configured order. An empty/nil filter returns every source unchanged.
func (c *Config) SourcesByName(names []string) []SourceSpec {
	if len(names) == 0 {
		return c.Sources
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	var out []SourceSpec
	for _, s := range c.Sources {
		if _, ok := want[s.Name]; ok {
			out = append(out, s)
		}
	}
	return out
}
