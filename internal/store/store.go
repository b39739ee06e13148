// Package store implements the on-disk tile tree: idempotent, crash-safe
// writes under <out>/<region>/<raster|vector>/<source>/<z>/<x>/<y>.<ext>,
// using a content-addressed layout and write-to-tmp-then-rename so a
// killed process never leaves a partially-written tile behind.
package store

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/osmansahan/map-tile-downloader/internal/config"
)

// Store is a shared handle over the output tree. Its only mutable state is
// the filesystem; the dirDone set and its mutex only serialize MkdirAll
// calls, they do not gate file writes for distinct tiles.
type Store struct {
	root string

	mu      sync.Mutex
	dirDone map[string]struct{}
}

// New creates a Store rooted at outputDir.
func New(outputDir string) *Store {
	return &Store{root: outputDir, dirDone: make(map[string]struct{})}
}

// Path computes the on-disk path for a tile, URL-encoding the region and
// source names so spaces and non-ASCII names are filesystem-safe.
func (s *Store) Path(region string, kind config.TileKind, source string, z uint8, x, y uint32, ext string) string {
	return filepath.Join(
		s.root,
		url.PathEscape(region),
		string(kind),
		url.PathEscape(source),
		fmt.Sprintf("%d", z),
		fmt.Sprintf("%d", x),
		fmt.Sprintf("%d.%s", y, ext),
	)
}

// Exists reports whether a tile is already stored, which the pipeline
// treats as satisfied without issuing a fetch.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Write atomically stores payload at path: write to path+".tmp", then
// rename. Parent directories are created on demand.
func (s *Store) Write(path string, payload []byte) error {
	dir := filepath.Dir(path)
	if err := s.ensureDir(dir); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// ensureDir serializes concurrent MkdirAll calls for the same directory so
// two workers racing to create a sibling's parent don't both error.
func (s *Store) ensureDir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.dirDone[dir]; done {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	s.dirDone[dir] = struct{}{}
	return nil
}

// rasterExts are the extensions a previously-stored raster tile may carry,
// since the extension is chosen from the source's response content-type at
// write time and isn't known again until the file is found.
var rasterExts = []string{"png", "jpg", "webp"}

// ExistsTile reports whether a tile is already stored under any extension
// valid for its kind, returning the matching path. The pipeline uses this
// to skip a fetch entirely, making a run resumable after interruption.
func (s *Store) ExistsTile(region string, kind config.TileKind, source string, z uint8, x, y uint32) (string, bool) {
	exts := rasterExts
	if kind == config.TileVector {
		exts = []string{"pbf"}
	}
	for _, ext := range exts {
		path := s.Path(region, kind, source, z, x, y, ext)
		if s.Exists(path) {
			return path, true
		}
	}
	return "", false
}

// RasterExt maps a content-type to a file extension, defaulting to png.
func RasterExt(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/png", "":
		return "png"
	default:
		return "png"
	}
}
