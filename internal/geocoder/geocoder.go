// Package geocoder provides a minimal, local place-name -> bounding-box
// lookup for the --place flag. It is deliberately small: an embedded
// gazetteer rather than a search-index/suggestion service, consulted once
// before the pipeline starts rather than a component of acquisition itself.
package geocoder

import (
	"fmt"
	"strings"

	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

// GeoCoder resolves a place name to a bounding box.
type GeoCoder interface {
	Find(place string) (geometry.BBox, error)
}

// Gazetteer is a GeoCoder backed by an in-memory place list, mirroring
// coordinate_finder.py's dict-of-regions lookup without its search index.
type Gazetteer struct {
	byName map[string]geometry.BBox
}

// NewGazetteer builds a Gazetteer from a caller-supplied place list. Use
// DefaultGazetteer for the small built-in set.
func NewGazetteer(places map[string]geometry.BBox) *Gazetteer {
	g := &Gazetteer{byName: make(map[string]geometry.BBox, len(places))}
	for name, bbox := range places {
		g.byName[normalize(name)] = bbox
	}
	return g
}

// Find looks up a place name, case- and whitespace-insensitively.
func (g *Gazetteer) Find(place string) (geometry.BBox, error) {
	bbox, ok := g.byName[normalize(place)]
	if !ok {
		return geometry.BBox{}, fmt.Errorf("geocoder: unknown place %q", place)
	}
	return bbox, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DefaultGazetteer returns a Gazetteer seeded with a handful of
// well-known bounding boxes, enough for --place to work offline without
// any network dependency or bundled dataset.
func DefaultGazetteer() *Gazetteer {
	return NewGazetteer(map[string]geometry.BBox{
		"istanbul": {MinLng: 28.5, MinLat: 40.8, MaxLng: 29.5, MaxLat: 41.2},
		"ankara":   {MinLng: 32.5, MinLat: 39.7, MaxLng: 33.1, MaxLat: 40.1},
		"izmir":    {MinLng: 26.9, MinLat: 38.2, MaxLng: 27.3, MaxLat: 38.6},
		"antalya":  {MinLng: 30.5, MinLat: 36.7, MaxLng: 30.9, MaxLat: 37.0},
	})
}

