package wizard

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

type fakeGeo struct {
	bbox geometry.BBox
	err  error
}

func (f fakeGeo) Find(place string) (geometry.BBox, error) {
	if f.err != nil {
		return geometry.BBox{}, f.err
	}
	return f.bbox, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Regions: map[string]config.RegionSpec{
			"istanbul": {Name: "istanbul", BBox: geometry.BBox{MinLng: 28.5, MinLat: 40.8, MaxLng: 29.5, MaxLat: 41.2}, MinZoom: 10, MaxZoom: 14},
		},
		Sources: []config.SourceSpec{
			{Name: "cdb", Kind: config.SourceHTTP, TileKind: config.TileRaster},
			{Name: "archive", Kind: config.SourceLocal, TileKind: config.TileRaster},
		},
	}
}

func TestWizardRegionFlowEndToEnd(t *testing.T) {
	input := strings.NewReader("1\n1\n3\n\n\n")
	var out bytes.Buffer

	w := New(input, &out, testConfig(), fakeGeo{})
	sel, err := w.Run()
	require.NoError(t, err)

	assert.Equal(t, ModeRegion, sel.Mode)
	assert.Equal(t, "istanbul", sel.RegionName)
	assert.Equal(t, []string{"cdb"}, sel.ServerFilter)
	assert.Equal(t, []string{"archive"}, sel.SourceFilter)
	assert.Equal(t, uint8(10), sel.MinZoom)
	assert.Equal(t, uint8(14), sel.MaxZoom)
}

func TestWizardPlaceFlowUsesGeocoder(t *testing.T) {
	input := strings.NewReader("2\nIstanbul\n1\n\n\n")
	var out bytes.Buffer

	geo := fakeGeo{bbox: geometry.BBox{MinLng: 1, MinLat: 2, MaxLng: 3, MaxLat: 4}}
	w := New(input, &out, testConfig(), geo)
	sel, err := w.Run()
	require.NoError(t, err)

	assert.Equal(t, ModePlace, sel.Mode)
	assert.Equal(t, "Istanbul", sel.Place)
	assert.Equal(t, geo.bbox, sel.BBox)
}

func TestWizardPlaceNotFoundReturnsToModeStep(t *testing.T) {
	input := strings.NewReader("2\nAtlantis\n1\n1\n3\n\n\n")
	var out bytes.Buffer

	geo := fakeGeo{err: errors.New("not found")}
	w := New(input, &out, testConfig(), geo)
	sel, err := w.Run()
	require.NoError(t, err)
	assert.Equal(t, ModeRegion, sel.Mode)
}

func TestWizardBackNavigation(t *testing.T) {
	input := strings.NewReader("1\nb\n1\n1\n3\n\n\n")
	var out bytes.Buffer

	w := New(input, &out, testConfig(), fakeGeo{})
	sel, err := w.Run()
	require.NoError(t, err)
	assert.Equal(t, ModeRegion, sel.Mode)
	assert.Contains(t, out.String(), "Download mode:")
}
