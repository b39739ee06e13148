// Package geometry implements pure coordinate math for XYZ map tiles:
// (lat,lng,z) <-> (x,y,z) conversion and bbox -> tile-range enumeration.
// It has no dependency on any other package in this module.
package geometry

import (
	"fmt"
	"math"
)

// MinZoom and MaxZoom bound the valid zoom range for any TileCoord.
const (
	MinZoom uint8 = 0
	MaxZoom uint8 = 22
)

// Web Mercator projection is only defined for this latitude range; inputs
// outside it are clamped before any tile math is performed.
const (
	minProjLat = -85.05112878
	maxProjLat = 85.05112878
)

// TileCoord identifies a single XYZ tile. Invariant: 0 <= X,Y < 2^Z.
type TileCoord struct {
	Z uint8
	X uint32
	Y uint32
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// BBox is a geographic bounding box in [minLng, minLat, maxLng, maxLat] order.
type BBox struct {
	MinLng, MinLat, MaxLng, MaxLat float64
}

// Center returns the midpoint of the box as (lng, lat).
func (b BBox) Center() (lng, lat float64) {
	west, east := b.MinLng, b.MaxLng
	if west > east {
		// antimeridian-crossing box: average across the short way around.
		east += 360
	}
	lng = (west + east) / 2
	if lng > 180 {
		lng -= 360
	}
	lat = (b.MinLat + b.MaxLat) / 2
	return lng, lat
}

// Intersects reports whether two boxes share any area, treating the
// antimeridian correctly for either operand.
func (b BBox) Intersects(o BBox) bool {
	for _, a := range b.split() {
		for _, c := range o.split() {
			if a.MaxLng < c.MinLng || a.MinLng > c.MaxLng {
				continue
			}
			if a.MaxLat < c.MinLat || a.MinLat > c.MaxLat {
				continue
			}
			return true
		}
	}
	return false
}

// split breaks an antimeridian-crossing box into at most two non-crossing
// boxes. A box that does not cross the antimeridian returns itself.
func (b BBox) split() []BBox {
	if b.MinLng <= b.MaxLng {
		return []BBox{b}
	}
	return []BBox{
		{MinLng: b.MinLng, MinLat: b.MinLat, MaxLng: 180, MaxLat: b.MaxLat},
		{MinLng: -180, MinLat: b.MinLat, MaxLng: b.MaxLng, MaxLat: b.MaxLat},
	}
}

func clampLat(lat float64) float64 {
	if lat > maxProjLat {
		return maxProjLat
	}
	if lat < minProjLat {
		return minProjLat
	}
	return lat
}

// LngLatToTile converts a point to the (x,y) of the tile containing it at
// zoom z, per the standard Web Mercator formula, clamping latitude to the
// range the projection supports.
func LngLatToTile(lng, lat float64, z uint8) (x, y uint32) {
	lat = clampLat(lat)
	n := math.Exp2(float64(z))

	xf := (lng + 180.0) / 360.0 * n
	latRad := lat * math.Pi / 180.0
	yf := (1.0 - math.Asinh(math.Tan(latRad))/math.Pi) / 2.0 * n

	x = clampCoord(xf, n)
	y = clampCoord(yf, n)
	return x, y
}

func clampCoord(v, n float64) uint32 {
	iv := int64(math.Floor(v))
	max := int64(n) - 1
	if iv < 0 {
		iv = 0
	}
	if iv > max {
		iv = max
	}
	return uint32(iv)
}

// TileToBounds returns the geographic bounds [minLng,minLat,maxLng,maxLat]
// covered by tile (z,x,y).
func TileToBounds(z uint8, x, y uint32) BBox {
	n := math.Exp2(float64(z))
	lngMin := float64(x)/n*360.0 - 180.0
	lngMax := float64(x+1)/n*360.0 - 180.0

	latAt := func(yv uint32) float64 {
		yf := float64(yv)
		return math.Atan(math.Sinh(math.Pi*(1-2*yf/n))) * 180.0 / math.Pi
	}
	latMax := latAt(y)
	latMin := latAt(y + 1)
	return BBox{MinLng: lngMin, MinLat: latMin, MaxLng: lngMax, MaxLat: latMax}
}

// TilesForBBox returns every tile at zoom z whose square intersects bbox,
// splitting antimeridian-crossing boxes into two sub-rectangles first.
func TilesForBBox(b BBox, z uint8) []TileCoord {
	var out []TileCoord
	for _, part := range b.split() {
		x0, y0 := LngLatToTile(part.MinLng, part.MaxLat, z) // maxLat -> minY
		x1, y1 := LngLatToTile(part.MaxLng, part.MinLat, z) // minLat -> maxY
		if x1 < x0 {
			x0, x1 = x1, x0
		}
		if y1 < y0 {
			y0, y1 = y1, y0
		}
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				out = append(out, TileCoord{Z: z, X: x, Y: y})
			}
		}
	}
	return dedupe(out)
}

func dedupe(in []TileCoord) []TileCoord {
	if len(in) < 2 {
		return in
	}
	seen := make(map[TileCoord]struct{}, len(in))
	out := in[:0]
	for _, t := range in {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
