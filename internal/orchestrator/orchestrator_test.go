package orchestrator

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/shaxbee/go-spatialite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geocoder"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))
	return logger
}

func buildMBTiles(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("spatialite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE metadata (name TEXT, value TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO metadata (name, value) VALUES ('minzoom','10'), ('maxzoom','10')`)
	require.NoError(t, err)

	png := []byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	for _, coord := range [][2]int{{593, 383}, {593, 384}, {594, 383}, {594, 384}, {595, 383}, {595, 384}} {
		tmsRow := (1 << 10) - 1 - coord[1]
		_, err = db.Exec(`INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`,
			10, coord[0], tmsRow, png)
		require.NoError(t, err)
	}
}

func TestOrchestratorRunsRegionAgainstLocalArchive(t *testing.T) {
	outputDir := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "istanbul.mbtiles")
	buildMBTiles(t, archivePath)

	cfg := &config.Config{
		Regions: map[string]config.RegionSpec{
			"istanbul": {
				Name:    "istanbul",
				BBox:    geometry.BBox{MinLng: 28.5, MinLat: 40.8, MaxLng: 29.5, MaxLat: 41.2},
				MinZoom: 10,
				MaxZoom: 10,
			},
		},
		Sources: []config.SourceSpec{
			{Name: "archive", Kind: config.SourceLocal, TileKind: config.TileRaster, Path: archivePath},
		},
		OutputDir:        outputDir,
		WorkersPerSource: 2,
		RetryAttempts:    2,
		VectorFirst:      true,
	}

	o := New(cfg, newTestLogger(), geocoder.DefaultGazetteer(), nil, &bytes.Buffer{})
	code := o.Run(context.Background(), Selection{RegionName: "istanbul"})

	assert.Equal(t, ExitSuccess, code)

	_, err := os.Stat(filepath.Join(outputDir, "metadata", "regions", "istanbul.json"))
	assert.NoError(t, err)
}

func TestOrchestratorListRegions(t *testing.T) {
	cfg := &config.Config{
		Regions: map[string]config.RegionSpec{"istanbul": {Name: "istanbul", Description: "Istanbul metro area"}},
	}
	var out bytes.Buffer
	o := New(cfg, newTestLogger(), geocoder.DefaultGazetteer(), nil, &out)

	code := o.Run(context.Background(), Selection{ListRegions: true})
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out.String(), "istanbul")
}

func TestOrchestratorRejectsMutuallyExclusiveSelectors(t *testing.T) {
	cfg := &config.Config{Regions: map[string]config.RegionSpec{}}
	bbox := geometry.BBox{MinLng: 0, MinLat: 0, MaxLng: 1, MaxLat: 1}

	o := New(cfg, newTestLogger(), geocoder.DefaultGazetteer(), nil, &bytes.Buffer{})
	code := o.Run(context.Background(), Selection{RegionName: "x", BBox: &bbox})
	assert.Equal(t, ExitConfigError, code)
}
