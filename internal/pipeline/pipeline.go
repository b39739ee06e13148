// Package pipeline implements the concurrent, multi-source tile
// acquisition core: coverage fan-out, per-source bounded worker pools,
// retry/backoff, and cross-source fallback from an ordered candidate
// chain when one source terminally fails a tile.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
	"github.com/osmansahan/map-tile-downloader/internal/retry"
	"github.com/osmansahan/map-tile-downloader/internal/source"
	"github.com/osmansahan/map-tile-downloader/internal/store"
)

// Pipeline drives one region's acquisition across an ordered chain of
// sources, falling back from one to the next on a terminal non-success
// outcome.
type Pipeline struct {
	regionName       string
	sources          []source.Source
	store            *store.Store
	retryPolicy      *retry.Policy
	workersPerSource int
	logger           *logrus.Logger
}

// New builds a Pipeline. sources must already be in fallback-preference
// order — see OrderSources.
func New(regionName string, sources []source.Source, st *store.Store, retryPolicy *retry.Policy, workersPerSource int, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		regionName:       regionName,
		sources:          sources,
		store:            st,
		retryPolicy:      retryPolicy,
		workersPerSource: workersPerSource,
		logger:           logger,
	}
}

// OrderSources reorders sources so vector-kind sources precede raster-kind
// sources when vectorFirst is true, preserving relative order within each
// kind. When vectorFirst is false the input order is preserved unchanged.
func OrderSources(sources []source.Source, vectorFirst bool) []source.Source {
	ordered := make([]source.Source, len(sources))
	copy(ordered, sources)
	if !vectorFirst {
		return ordered
	}

	var vector, raster []source.Source
	for _, s := range ordered {
		if s.Declared().TileKind == config.TileVector {
			vector = append(vector, s)
		} else {
			raster = append(raster, s)
		}
	}
	return append(vector, raster...)
}

// Result is what Run returns once every tile in the coverage set has
// reached a terminal state (or the context was cancelled).
type Result struct {
	Summaries   map[string]SourceSummary
	Uncoverable int64
	Cancelled   bool
}

// workItem threads a tile through the fallback chain: candidates is the
// remaining ordered list of source indices still willing to try it.
type workItem struct {
	tile       geometry.TileCoord
	candidates []int
}

// Run drives coverage through the source chain to completion or
// cancellation.
func (p *Pipeline) Run(ctx context.Context, coverage geometry.CoverageSet) Result {
	n := len(p.sources)
	declared := make([]source.Declared, n)
	for i, src := range p.sources {
		declared[i] = src.Declared()
	}

	bufSize := p.workersPerSource * 2
	if bufSize < 1 {
		bufSize = 1
	}
	chans := make([]chan workItem, n)
	for i := range chans {
		chans[i] = make(chan workItem, bufSize)
	}

	counters := make([]*sourceCounters, n)
	for i := range counters {
		counters[i] = &sourceCounters{}
	}

	progress := &Progress{}
	var uncoverable atomic.Int64
	var tileWG sync.WaitGroup
	var workerWG sync.WaitGroup

	for i := 0; i < n; i++ {
		i := i
		for w := 0; w < p.workersPerSource; w++ {
			workerWG.Add(1)
			go func() {
				defer workerWG.Done()
				for item := range chans[i] {
					p.handleTile(ctx, i, item, declared, chans, counters[i], progress, &tileWG)
				}
			}()
		}
	}

	tiles := coverage.Tiles()
	// The producer holds one count on tileWG until it has enqueued every
	// tile, so the closer below cannot see zero while tiles are still to come.
	tileWG.Add(1)
	go func() {
		defer tileWG.Done()
		for _, tile := range tiles {
			select {
			case <-ctx.Done():
				return
			default:
			}

			candidates := candidatesFor(tile, declared)
			if len(candidates) == 0 {
				uncoverable.Add(1)
				continue
			}
			tileWG.Add(1)
			select {
			case chans[candidates[0]] <- workItem{tile: tile, candidates: candidates}:
			case <-ctx.Done():
				tileWG.Done()
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		tileWG.Wait()
		for _, ch := range chans {
			close(ch)
		}
		close(done)
	}()

	if p.logger != nil {
		go reportProgress(int64(len(tiles)), progress, done)
	}

	workerWG.Wait()

	summaries := make(map[string]SourceSummary, n)
	for i, src := range p.sources {
		summaries[src.Name()] = counters[i].snapshot()
	}

	return Result{
		Summaries:   summaries,
		Uncoverable: uncoverable.Load(),
		Cancelled:   ctx.Err() != nil,
	}
}

func candidatesFor(tile geometry.TileCoord, declared []source.Declared) []int {
	var candidates []int
	for i, d := range declared {
		if d.Accepts(tile) {
			candidates = append(candidates, i)
		}
	}
	return candidates
}

// handleTile runs the retry loop for one (source, tile) pair, then either
// stores the tile, advances it to the next candidate, or fails it
// terminally.
func (p *Pipeline) handleTile(
	ctx context.Context,
	i int,
	item workItem,
	declared []source.Declared,
	chans []chan workItem,
	counters *sourceCounters,
	progress *Progress,
	wg *sync.WaitGroup,
) {
	src := p.sources[i]
	kind := declared[i].TileKind
	z, x, y := item.tile.Z, item.tile.X, item.tile.Y

	if _, ok := p.store.ExistsTile(p.regionName, kind, src.Name(), z, x, y); ok {
		progress.Skipped.Add(1)
		wg.Done()
		return
	}

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			wg.Done()
			return
		default:
		}

		attempt++
		progress.Attempted.Add(1)
		result := src.Fetch(ctx, item.tile)

		if result.Retryable() {
			decision := p.retryPolicy.Next(attempt)
			if decision.ShouldRetry {
				select {
				case <-time.After(decision.Delay):
					continue
				case <-ctx.Done():
					wg.Done()
					return
				}
			}
			counters.transientErrors.Add(1)
			p.advance(ctx, item, chans, counters, progress, wg)
			return
		}

		switch result.Kind {
		case source.KindGot:
			ext := "pbf"
			if kind == config.TileRaster {
				ext = store.RasterExt(result.ContentType)
			}
			path := p.store.Path(p.regionName, kind, src.Name(), z, x, y, ext)
			if err := p.store.Write(path, result.Bytes); err != nil {
				decision := p.retryPolicy.Next(attempt)
				if decision.ShouldRetry {
					select {
					case <-time.After(decision.Delay):
						continue
					case <-ctx.Done():
						wg.Done()
						return
					}
				}
				counters.transientErrors.Add(1)
				p.advance(ctx, item, chans, counters, progress, wg)
				return
			}
			counters.stored.Add(1)
			progress.Stored.Add(1)
			wg.Done()
			return
		case source.KindEmpty:
			counters.empty.Add(1)
			p.advance(ctx, item, chans, counters, progress, wg)
			return
		case source.KindNotFound:
			counters.notFound.Add(1)
			p.advance(ctx, item, chans, counters, progress, wg)
			return
		default: // KindInvalid
			counters.invalid.Add(1)
			p.advance(ctx, item, chans, counters, progress, wg)
			return
		}
	}
}

// advance moves a tile to the next candidate source, or fails it
// terminally when no candidates remain.
func (p *Pipeline) advance(ctx context.Context, item workItem, chans []chan workItem, counters *sourceCounters, progress *Progress, wg *sync.WaitGroup) {
	remaining := item.candidates[1:]
	if len(remaining) == 0 {
		counters.failed.Add(1)
		progress.Failed.Add(1)
		if p.logger != nil {
			p.logger.Debugf("tile %s failed on every candidate source", item.tile)
		}
		wg.Done()
		return
	}

	next := remaining[0]
	select {
	case chans[next] <- workItem{tile: item.tile, candidates: remaining}:
	case <-ctx.Done():
		wg.Done()
	}
}
