// Package metadata derives the per-region JSON summary by walking the
// on-disk tile tree: for each source under raster/ and vector/, it counts
// tiles, sums stored bytes, and records which zoom levels are present.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

// RegionInfo is the region_info block of the per-region output document.
type RegionInfo struct {
	BBox    [4]float64 `json:"bbox"`
	Center  [2]float64 `json:"center"`
	MinZoom uint8      `json:"minZoom"`
	MaxZoom uint8      `json:"maxZoom"`
}

// TileLayerInfo is the per-source tile breakdown, including the total
// stored byte count alongside the tile count and zoom coverage.
type TileLayerInfo struct {
	TileCount      int64   `json:"tile_count"`
	AvailableZooms []uint8 `json:"available_zooms"`
	MinZoom        uint8   `json:"min_zoom"`
	MaxZoom        uint8   `json:"max_zoom"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
}

// RegionMetadata is the full per-region output document.
type RegionMetadata struct {
	RegionInfo RegionInfo               `json:"region_info"`
	Raster     map[string]TileLayerInfo `json:"raster"`
	Vector     map[string]TileLayerInfo `json:"vector"`
}

// Build walks <outputDir>/<region>/{raster,vector}/<source>/ and produces
// the RegionMetadata document. It is a pure function of the tile tree on
// disk, so it can be rerun at any time to rebuild a lost or stale manifest.
func Build(outputDir, regionName string, region config.RegionSpec) (*RegionMetadata, error) {
	meta := &RegionMetadata{
		RegionInfo: RegionInfo{
			BBox:    [4]float64{region.BBox.MinLng, region.BBox.MinLat, region.BBox.MaxLng, region.BBox.MaxLat},
			MinZoom: region.MinZoom,
			MaxZoom: region.MaxZoom,
		},
		Raster: map[string]TileLayerInfo{},
		Vector: map[string]TileLayerInfo{},
	}
	centerLng, centerLat := region.BBox.Center()
	meta.RegionInfo.Center = [2]float64{centerLng, centerLat}

	regionDir := filepath.Join(outputDir, regionName)
	for _, kind := range []config.TileKind{config.TileRaster, config.TileVector} {
		kindDir := filepath.Join(regionDir, string(kind))
		sources, err := listDirs(kindDir)
		if err != nil {
			continue // no tiles of this kind for the region
		}
		target := meta.Raster
		if kind == config.TileVector {
			target = meta.Vector
		}
		for _, sourceName := range sources {
			info, err := scanSource(filepath.Join(kindDir, sourceName))
			if err != nil {
				return nil, fmt.Errorf("scan %s/%s: %w", kind, sourceName, err)
			}
			target[sourceName] = info
		}
	}

	return meta, nil
}

// scanSource counts tiles and bytes under <kindDir>/<source>/<z>/<x>/<y>.*.
func scanSource(sourceDir string) (TileLayerInfo, error) {
	var info TileLayerInfo
	zoomDirs, err := listDirs(sourceDir)
	if err != nil {
		return info, nil
	}

	zoomSet := map[uint8]struct{}{}
	for _, zd := range zoomDirs {
		z, err := strconv.Atoi(zd)
		if err != nil || z < 0 || z > int(geometry.MaxZoom) {
			continue
		}
		xDirs, err := listDirs(filepath.Join(sourceDir, zd))
		if err != nil {
			continue
		}
		zoomHasTiles := false
		for _, xd := range xDirs {
			entries, err := os.ReadDir(filepath.Join(sourceDir, zd, xd))
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				fi, err := e.Info()
				if err != nil {
					continue
				}
				info.TileCount++
				info.TotalSizeBytes += fi.Size()
				zoomHasTiles = true
			}
		}
		if zoomHasTiles {
			zoomSet[uint8(z)] = struct{}{}
		}
	}

	zooms := make([]uint8, 0, len(zoomSet))
	for z := range zoomSet {
		zooms = append(zooms, z)
	}
	sort.Slice(zooms, func(i, j int) bool { return zooms[i] < zooms[j] })
	info.AvailableZooms = zooms
	if len(zooms) > 0 {
		info.MinZoom = zooms[0]
		info.MaxZoom = zooms[len(zooms)-1]
	}
	return info, nil
}

func listDirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// WriteAtomic marshals meta as indented JSON and writes it to
// <outputDir>/metadata/regions/<region>.json using the same
// write-to-tmp-then-rename discipline as the tile store.
func WriteAtomic(outputDir, regionName string, meta *RegionMetadata) error {
	dir := filepath.Join(outputDir, "metadata", "regions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create metadata dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	final := filepath.Join(dir, regionName+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp metadata %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, final, err)
	}
	return nil
}
