package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

func writeTile(t *testing.T, root, region string, kind config.TileKind, source string, z, x, y int, size int) {
	t.Helper()
	dir := filepath.Join(root, region, string(kind), source, itoa(z), itoa(x))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, itoa(y)+".png")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func itoa(n int) string {
	return string(rune('0' + n%10)) // sufficient for the small test fixture indices used here
}

func TestBuildCountsTilesAndSizes(t *testing.T) {
	root := t.TempDir()
	writeTile(t, root, "istanbul", config.TileRaster, "cdb", 1, 2, 3, 100)
	writeTile(t, root, "istanbul", config.TileRaster, "cdb", 1, 2, 4, 200)
	writeTile(t, root, "istanbul", config.TileRaster, "cdb", 2, 5, 6, 50)

	region := config.RegionSpec{
		BBox:    geometry.BBox{MinLng: 28.5, MinLat: 40.8, MaxLng: 29.5, MaxLat: 41.2},
		MinZoom: 1,
		MaxZoom: 2,
	}

	meta, err := Build(root, "istanbul", region)
	require.NoError(t, err)

	info := meta.Raster["cdb"]
	assert.EqualValues(t, 3, info.TileCount)
	assert.EqualValues(t, 350, info.TotalSizeBytes)
	assert.Equal(t, []uint8{1, 2}, info.AvailableZooms)
	assert.Equal(t, uint8(1), info.MinZoom)
	assert.Equal(t, uint8(2), info.MaxZoom)
	assert.Empty(t, meta.Vector)
}

func TestBuildComputesCenter(t *testing.T) {
	root := t.TempDir()
	region := config.RegionSpec{BBox: geometry.BBox{MinLng: 0, MinLat: 0, MaxLng: 10, MaxLat: 10}}

	meta, err := Build(root, "empty-region", region)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{5, 5}, meta.RegionInfo.Center)
}

func TestWriteAtomicProducesValidJSON(t *testing.T) {
	root := t.TempDir()
	meta := &RegionMetadata{
		RegionInfo: RegionInfo{BBox: [4]float64{0, 0, 1, 1}},
		Raster:     map[string]TileLayerInfo{},
		Vector:     map[string]TileLayerInfo{},
	}

	require.NoError(t, WriteAtomic(root, "r", meta))

	data, err := os.ReadFile(filepath.Join(root, "metadata", "regions", "r.json"))
	require.NoError(t, err)

	var decoded RegionMetadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, meta.RegionInfo.BBox, decoded.RegionInfo.BBox)

	_, err = os.Stat(filepath.Join(root, "metadata", "regions", "r.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}
