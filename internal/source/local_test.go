package source

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

func newTestArchive(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/test.mbtiles"

	db, err := sql.Open("spatialite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE metadata (name TEXT, value TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO metadata (name, value) VALUES (?, ?)`, "bounds", "28.5,40.8,29.5,41.2")
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO metadata (name, value) VALUES (?, ?)`, "minzoom", "0")
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO metadata (name, value) VALUES (?, ?)`, "maxzoom", "14")
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO metadata (name, value) VALUES (?, ?)`,
		"json", `{"vector_layers":[{"id":"water"},{"id":"roads"}]}`)
	require.NoError(t, err)

	// z=10, x=585, y=386 stored TMS-flipped: row = (1<<10)-1-386 = 637
	_, err = db.Exec(`INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`,
		10, 585, 637, []byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)

	return path
}

func TestLocalSourceFetchHit(t *testing.T) {
	path := newTestArchive(t)
	spec := config.SourceSpec{Name: "archive", Kind: config.SourceLocal, TileKind: config.TileRaster, Path: path}

	src, err := NewLocalSource(spec, nil)
	require.NoError(t, err)
	defer src.Close()

	result := src.Fetch(context.Background(), geometry.TileCoord{Z: 10, X: 585, Y: 386})
	require.Equal(t, KindGot, result.Kind)
}

func TestLocalSourceFetchMiss(t *testing.T) {
	path := newTestArchive(t)
	spec := config.SourceSpec{Name: "archive", Kind: config.SourceLocal, TileKind: config.TileRaster, Path: path}

	src, err := NewLocalSource(spec, nil)
	require.NoError(t, err)
	defer src.Close()

	result := src.Fetch(context.Background(), geometry.TileCoord{Z: 10, X: 999, Y: 999})
	require.Equal(t, KindNotFound, result.Kind)
}

func TestLocalSourceDeclaredFromMetadata(t *testing.T) {
	path := newTestArchive(t)
	spec := config.SourceSpec{Name: "archive", Kind: config.SourceLocal, TileKind: config.TileVector, Path: path}

	src, err := NewLocalSource(spec, nil)
	require.NoError(t, err)
	defer src.Close()

	d := src.Declared()
	require.Equal(t, uint8(0), d.MinZoom)
	require.Equal(t, uint8(14), d.MaxZoom)
	require.NotNil(t, d.Bounds)
}

func TestLocalSourceLayerNames(t *testing.T) {
	path := newTestArchive(t)
	spec := config.SourceSpec{Name: "archive", Kind: config.SourceLocal, TileKind: config.TileVector, Path: path}

	src, err := NewLocalSource(spec, nil)
	require.NoError(t, err)
	defer src.Close()

	require.ElementsMatch(t, []string{"water", "roads"}, src.LayerNames())
}

func TestTmsRowFlipsAroundZoomExtent(t *testing.T) {
	require.Equal(t, uint32(1023), tmsRow(10, 0))
	require.Equal(t, uint32(0), tmsRow(10, 1023))
}
