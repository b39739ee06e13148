package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// rawRegion/rawSource mirror the on-disk JSON shape; they are decoded by
// viper/mapstructure and then converted into the domain Config the rest
// of the program consumes.
type rawRegion struct {
	BBox        []float64 `mapstructure:"bbox"`
	MinZoom     int       `mapstructure:"min_zoom"`
	MaxZoom     int       `mapstructure:"max_zoom"`
	Description string    `mapstructure:"description"`
}

type rawSource struct {
	Name        string            `mapstructure:"name"`
	Kind        string            `mapstructure:"kind"`
	TileKind    string            `mapstructure:"tile_kind"`
	URLTemplate string            `mapstructure:"url_template"`
	Path        string            `mapstructure:"path"`
	Headers     map[string]string `mapstructure:"headers"`
	MinZoom     *int              `mapstructure:"min_zoom"`
	MaxZoom     *int              `mapstructure:"max_zoom"`
}

type rawConfig struct {
	Regions               map[string]rawRegion `mapstructure:"regions"`
	Sources               []rawSource          `mapstructure:"sources"`
	OutputDir             string                `mapstructure:"output_dir"`
	WorkersPerSource      int                   `mapstructure:"workers_per_source"`
	RetryAttempts         int                   `mapstructure:"retry_attempts"`
	TimeoutSeconds        int                   `mapstructure:"timeout_seconds"`
	UserAgent             string                `mapstructure:"user_agent"`
	VectorFirst           bool                  `mapstructure:"vector_first"`
	EmptyTileFingerprints []string              `mapstructure:"empty_tile_fingerprints_base64"`
}

// knownTransparentPNG is the 1x1 fully-transparent PNG fingerprint most
// raster tile servers fall back to for out-of-bounds tiles. It is always
// the first member of Config.EmptyTileFingerprints.
var knownTransparentPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// Load reads and validates a JSON config file, applying the defaults the
// spec mandates (workersPerSource=8, retryAttempts=3, timeout=30s).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %q not found", path)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigFile(path)
	v.SetDefault("output_dir", "map_tiles")
	v.SetDefault("workers_per_source", 8)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("timeout_seconds", 30)
	v.SetDefault("user_agent", "map-tile-downloader/1.0")
	v.SetDefault("vector_first", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	return fromRaw(raw)
}

func fromRaw(raw rawConfig) (*Config, error) {
	if len(raw.Regions) == 0 && len(raw.Sources) == 0 {
		return nil, fmt.Errorf("configuration defines neither regions nor sources")
	}

	cfg := &Config{
		Regions:               make(map[string]RegionSpec, len(raw.Regions)),
		OutputDir:             raw.OutputDir,
		WorkersPerSource:      raw.WorkersPerSource,
		RetryAttempts:         raw.RetryAttempts,
		Timeout:               time.Duration(raw.TimeoutSeconds) * time.Second,
		UserAgent:             raw.UserAgent,
		VectorFirst:           raw.VectorFirst,
		EmptyTileFingerprints: [][]byte{knownTransparentPNG},
	}

	for name, r := range raw.Regions {
		if len(r.BBox) != 4 {
			return nil, fmt.Errorf("region %q: bbox must have 4 elements, got %d", name, len(r.BBox))
		}
		cfg.Regions[name] = RegionSpec{
			Name: name,
			BBox: geometry.BBox{
				MinLng: r.BBox[0], MinLat: r.BBox[1],
				MaxLng: r.BBox[2], MaxLat: r.BBox[3],
			},
			MinZoom:     uint8(r.MinZoom),
			MaxZoom:     uint8(r.MaxZoom),
			Description: r.Description,
		}
	}

	for _, rs := range raw.Sources {
		s, err := sourceFromRaw(rs)
		if err != nil {
			return nil, err
		}
		cfg.Sources = append(cfg.Sources, s)
	}

	for _, fp := range raw.EmptyTileFingerprints {
		decoded, err := decodeBase64(fp)
		if err != nil {
			return nil, fmt.Errorf("invalid empty_tile_fingerprints_base64 entry: %w", err)
		}
		cfg.EmptyTileFingerprints = append(cfg.EmptyTileFingerprints, decoded)
	}

	return cfg, nil
}

func sourceFromRaw(rs rawSource) (SourceSpec, error) {
	if rs.Name == "" {
		return SourceSpec{}, fmt.Errorf("source entry missing name")
	}

	var kind SourceKind
	switch rs.Kind {
	case string(SourceHTTP):
		kind = SourceHTTP
		if rs.URLTemplate == "" {
			return SourceSpec{}, fmt.Errorf("source %q: http sources require url_template", rs.Name)
		}
	case string(SourceLocal):
		kind = SourceLocal
		if rs.Path == "" {
			return SourceSpec{}, fmt.Errorf("source %q: local sources require path", rs.Name)
		}
	default:
		return SourceSpec{}, fmt.Errorf("source %q: kind must be %q or %q, got %q", rs.Name, SourceHTTP, SourceLocal, rs.Kind)
	}

	tileKind := TileKind(rs.TileKind)
	if tileKind != TileRaster && tileKind != TileVector {
		return SourceSpec{}, fmt.Errorf("source %q: tile_kind must be %q or %q, got %q", rs.Name, TileRaster, TileVector, rs.TileKind)
	}

	spec := SourceSpec{
		Name:        rs.Name,
		Kind:        kind,
		TileKind:    tileKind,
		URLTemplate: rs.URLTemplate,
		Path:        rs.Path,
		Headers:     rs.Headers,
	}
	if rs.MinZoom != nil {
		z := uint8(*rs.MinZoom)
		spec.MinZoom = &z
	}
	if rs.MaxZoom != nil {
		z := uint8(*rs.MaxZoom)
		spec.MaxZoom = &z
	}
	return spec, nil
}
