package geocoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

func TestFindIsCaseAndWhitespaceInsensitive(t *testing.T) {
	g := DefaultGazetteer()

	bbox, err := g.Find("  IstanBUL ")
	require.NoError(t, err)
	assert.Equal(t, 28.5, bbox.MinLng)
}

func TestFindUnknownPlaceErrors(t *testing.T) {
	g := DefaultGazetteer()
	_, err := g.Find("Atlantis")
	assert.Error(t, err)
}

func TestNewGazetteerCustomPlaces(t *testing.T) {
	g := NewGazetteer(map[string]geometry.BBox{
		"custom town": {MinLng: 1, MinLat: 2, MaxLng: 3, MaxLat: 4},
	})

	bbox, err := g.Find("Custom Town")
	require.NoError(t, err)
	assert.Equal(t, 1.0, bbox.MinLng)
}
