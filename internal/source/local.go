package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/shaxbee/go-spatialite" // registers the "spatialite" database/sql driver

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
	"github.com/osmansahan/map-tile-downloader/internal/validator"
)

// LocalSource reads tiles from a local MBTiles (SQLite) archive, opened
// once per run and shared: database/sql pools its own connections, so
// concurrent reads across worker goroutines are safe. The "spatialite"
// driver is reused here purely as a SQLite driver — MBTiles needs no
// spatial index, just the standard tiles table.
type LocalSource struct {
	spec     config.SourceSpec
	db       *sql.DB
	declared Declared
	validate *validator.Validator
}

// NewLocalSource opens the archive and resolves its declared bounds/zoom
// range, preferring explicit config values and falling back to the
// archive's own metadata table.
func NewLocalSource(spec config.SourceSpec, emptyFingerprints [][]byte) (*LocalSource, error) {
	db, err := sql.Open("spatialite", spec.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", spec.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive %s: %w", spec.Path, err)
	}

	ls := &LocalSource{spec: spec, db: db, validate: validator.New(emptyFingerprints)}
	ls.declared = ls.loadDeclared()
	return ls, nil
}

func (l *LocalSource) Name() string       { return l.spec.Name }
func (l *LocalSource) Declared() Declared { return l.declared }
func (l *LocalSource) Close() error       { return l.db.Close() }

func (l *LocalSource) loadDeclared() Declared {
	d := Declared{TileKind: l.spec.TileKind, MinZoom: geometry.MinZoom, MaxZoom: geometry.MaxZoom}
	if l.spec.MinZoom != nil {
		d.MinZoom = *l.spec.MinZoom
	}
	if l.spec.MaxZoom != nil {
		d.MaxZoom = *l.spec.MaxZoom
	}

	if b, ok := l.metadataBounds(); ok {
		d.Bounds = &b
	}
	if l.spec.MinZoom == nil {
		if v, ok := l.metadataZoom("minzoom"); ok {
			d.MinZoom = v
		}
	}
	if l.spec.MaxZoom == nil {
		if v, ok := l.metadataZoom("maxzoom"); ok {
			d.MaxZoom = v
		}
	}
	return d
}

func (l *LocalSource) metadataValue(name string) (string, bool) {
	row := l.db.QueryRow(`SELECT value FROM metadata WHERE name = ?`, name)
	var s string
	if err := row.Scan(&s); err != nil {
		return "", false
	}
	return s, true
}

func (l *LocalSource) metadataZoom(name string) (uint8, bool) {
	s, ok := l.metadataValue(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 255 {
		return 0, false
	}
	return uint8(n), true
}

func (l *LocalSource) metadataBounds() (geometry.BBox, bool) {
	s, ok := l.metadataValue("bounds")
	if !ok {
		return geometry.BBox{}, false
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.BBox{}, false
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.BBox{}, false
		}
		vals[i] = v
	}
	return geometry.BBox{MinLng: vals[0], MinLat: vals[1], MaxLng: vals[2], MaxLat: vals[3]}, true
}

// tmsRow converts an XYZ row to the TMS row MBTiles stores tiles under:
// TMS numbers rows bottom-to-top, XYZ numbers them top-to-bottom.
func tmsRow(z uint8, y uint32) uint32 {
	n := uint32(1) << z
	return n - 1 - y
}

// Fetch looks up a tile by (z, x, tms-flipped-y).
func (l *LocalSource) Fetch(ctx context.Context, t geometry.TileCoord) Result {
	row := tmsRow(t.Z, t.Y)
	var data []byte
	err := l.db.QueryRowContext(ctx,
		`SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`,
		t.Z, t.X, row,
	).Scan(&data)

	switch {
	case err == sql.ErrNoRows:
		return NotFound()
	case err != nil:
		return Transient(err.Error())
	case len(data) == 0:
		return Empty()
	}

	var outcome validator.Outcome
	if l.spec.TileKind == config.TileVector {
		outcome = l.validate.ValidateVector(data)
	} else {
		outcome = l.validate.ValidateRaster(data)
	}

	switch outcome {
	case validator.Valid:
		ct := ""
		if l.spec.TileKind == config.TileRaster {
			ct = "image/png"
		}
		return Got(data, ct, l.spec.Name)
	case validator.Empty:
		return Empty()
	default:
		return Invalid("failed validation")
	}
}

// vectorLayersMetadata mirrors the "json" metadata row MBTiles archives use
// to declare their vector_layers, per the MBTiles spec.
type vectorLayersMetadata struct {
	VectorLayers []struct {
		ID string `json:"id"`
	} `json:"vector_layers"`
}

// LayerNames reports the vector layer names declared in the archive's
// metadata table, or nil for a raster archive.
func (l *LocalSource) LayerNames() []string {
	raw, ok := l.metadataValue("json")
	if !ok {
		return nil
	}
	var meta vectorLayersMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil
	}
	names := make([]string, 0, len(meta.VectorLayers))
	for _, layer := range meta.VectorLayers {
		names = append(names, layer.ID)
	}
	return names
}
