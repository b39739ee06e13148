package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
	"github.com/osmansahan/map-tile-downloader/internal/retry"
	"github.com/osmansahan/map-tile-downloader/internal/source"
	"github.com/osmansahan/map-tile-downloader/internal/store"
)

// fakeSource is an in-memory Source used to drive the pipeline's state
// machine without any real network or filesystem dependency.
type fakeSource struct {
	name     string
	declared source.Declared
	fetch    func(ctx context.Context, t geometry.TileCoord) source.Result
	calls    int
}

func (f *fakeSource) Name() string                 { return f.name }
func (f *fakeSource) Declared() source.Declared     { return f.declared }
func (f *fakeSource) Close() error                  { return nil }
func (f *fakeSource) Fetch(ctx context.Context, t geometry.TileCoord) source.Result {
	f.calls++
	return f.fetch(ctx, t)
}

func alwaysValidRaster(name string) *fakeSource {
	return &fakeSource{
		name:     name,
		declared: source.Declared{TileKind: config.TileRaster, MinZoom: 0, MaxZoom: 22},
		fetch: func(ctx context.Context, t geometry.TileCoord) source.Result {
			return source.Got([]byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, "image/png", name)
		},
	}
}

func TestPipelineStoresTilesFromSingleSource(t *testing.T) {
	bbox := geometry.BBox{MinLng: 28.5, MinLat: 40.8, MaxLng: 29.5, MaxLat: 41.2}
	coverage := geometry.BuildCoverage(bbox, 10, 11)

	st := store.New(t.TempDir())
	src := alwaysValidRaster("cdb")
	p := New("istanbul", []source.Source{src}, st, retry.New(3, time.Millisecond, time.Millisecond), 4, nil)

	result := p.Run(context.Background(), coverage)

	summary := result.Summaries["cdb"]
	assert.EqualValues(t, 30, summary.Stored)
	assert.Zero(t, result.Uncoverable)
}

func TestPipelineFallsBackPastNotFound(t *testing.T) {
	bbox := geometry.BBox{MinLng: 28.5, MinLat: 40.8, MaxLng: 29.5, MaxLat: 41.2}
	coverage := geometry.BuildCoverage(bbox, 10, 11)

	st := store.New(t.TempDir())
	vec := &fakeSource{
		name:     "vec",
		declared: source.Declared{TileKind: config.TileVector, MinZoom: 0, MaxZoom: 22},
		fetch: func(ctx context.Context, t geometry.TileCoord) source.Result {
			return source.NotFound()
		},
	}
	ras := alwaysValidRaster("ras")

	p := New("istanbul", []source.Source{vec, ras}, st, retry.New(3, time.Millisecond, time.Millisecond), 4, nil)
	result := p.Run(context.Background(), coverage)

	assert.Zero(t, result.Summaries["vec"].Stored)
	assert.EqualValues(t, 30, result.Summaries["ras"].Stored)
	assert.EqualValues(t, 30, result.Summaries["vec"].NotFound)
}

func TestPipelineRetriesTransientThenStores(t *testing.T) {
	bbox := geometry.BBox{MinLng: 28.5, MinLat: 40.8, MaxLng: 28.51, MaxLat: 40.81}
	coverage := geometry.BuildCoverage(bbox, 10, 10)

	// Mirrors the literal end-to-end scenario: a source returns 500
	// (transient) three times, then 200 valid on the fourth attempt. With
	// retryAttempts=3 wired as MaxAttempts=retryAttempts+1 (as the
	// orchestrator does), this must still resolve to Stored.
	const retryAttempts = 3
	attempts := 0
	src := &fakeSource{
		name:     "flaky",
		declared: source.Declared{TileKind: config.TileRaster, MinZoom: 0, MaxZoom: 22},
		fetch: func(ctx context.Context, t geometry.TileCoord) source.Result {
			attempts++
			if attempts <= retryAttempts {
				return source.Transient("boom")
			}
			return source.Got([]byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, "image/png", "flaky")
		},
	}

	st := store.New(t.TempDir())
	p := New("istanbul", []source.Source{src}, st, retry.New(retryAttempts+1, time.Millisecond, time.Millisecond), 1, nil)
	result := p.Run(context.Background(), coverage)

	require.Equal(t, retryAttempts+1, attempts)
	assert.EqualValues(t, 1, result.Summaries["flaky"].Stored)
	assert.Zero(t, result.Summaries["flaky"].Failed)
}

func TestPipelineMarksSourceSummaryFailedOnTerminalFailure(t *testing.T) {
	bbox := geometry.BBox{MinLng: 28.5, MinLat: 40.8, MaxLng: 28.51, MaxLat: 40.81}
	coverage := geometry.BuildCoverage(bbox, 10, 10)

	st := store.New(t.TempDir())
	src := &fakeSource{
		name:     "gone",
		declared: source.Declared{TileKind: config.TileRaster, MinZoom: 0, MaxZoom: 22},
		fetch: func(ctx context.Context, t geometry.TileCoord) source.Result {
			return source.NotFound()
		},
	}

	p := New("istanbul", []source.Source{src}, st, retry.New(3, time.Millisecond, time.Millisecond), 4, nil)
	result := p.Run(context.Background(), coverage)

	tiles := int64(len(coverage.Tiles()))
	assert.EqualValues(t, tiles, result.Summaries["gone"].NotFound)
	assert.EqualValues(t, tiles, result.Summaries["gone"].Failed)
}

func TestPipelineSkipsAlreadyStoredTiles(t *testing.T) {
	bbox := geometry.BBox{MinLng: 28.5, MinLat: 40.8, MaxLng: 28.51, MaxLat: 40.81}
	coverage := geometry.BuildCoverage(bbox, 10, 10)

	st := store.New(t.TempDir())
	src := alwaysValidRaster("cdb")

	tile := coverage.Tiles()[0]
	path := st.Path("istanbul", config.TileRaster, "cdb", tile.Z, tile.X, tile.Y, "png")
	require.NoError(t, st.Write(path, []byte("already-there")))

	p := New("istanbul", []source.Source{src}, st, retry.New(3, time.Millisecond, time.Millisecond), 4, nil)
	p.Run(context.Background(), coverage)

	assert.Zero(t, src.calls)
}

func TestPipelineMarksUncoverableWhenNoSourceAccepts(t *testing.T) {
	bbox := geometry.BBox{MinLng: 28.5, MinLat: 40.8, MaxLng: 28.51, MaxLat: 40.81}
	coverage := geometry.BuildCoverage(bbox, 10, 10)

	st := store.New(t.TempDir())
	src := &fakeSource{
		name:     "narrow",
		declared: source.Declared{TileKind: config.TileRaster, MinZoom: 20, MaxZoom: 22},
		fetch: func(ctx context.Context, t geometry.TileCoord) source.Result {
			t2 := t
			_ = t2
			return source.Got(nil, "", "narrow")
		},
	}

	p := New("istanbul", []source.Source{src}, st, retry.New(3, time.Millisecond, time.Millisecond), 4, nil)
	result := p.Run(context.Background(), coverage)

	assert.EqualValues(t, len(coverage.Tiles()), result.Uncoverable)
	assert.Zero(t, src.calls)
}

func TestOrderSourcesPrefersVectorWhenConfigured(t *testing.T) {
	ras := alwaysValidRaster("ras")
	vec := &fakeSource{name: "vec", declared: source.Declared{TileKind: config.TileVector}}

	ordered := OrderSources([]source.Source{ras, vec}, true)
	require.Len(t, ordered, 2)
	assert.Equal(t, "vec", ordered[0].Name())
	assert.Equal(t, "ras", ordered[1].Name())

	unordered := OrderSources([]source.Source{ras, vec}, false)
	assert.Equal(t, "ras", unordered[0].Name())
}
