// Package orchestrator binds a loaded Config and a CLI selection into one
// pipeline invocation, then drives the metadata builder. An Orchestrator
// is an explicit, dependency-injected struct the CLI entrypoint constructs
// once, rather than a sequence of package-level init calls.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geocoder"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
	"github.com/osmansahan/map-tile-downloader/internal/metadata"
	"github.com/osmansahan/map-tile-downloader/internal/pipeline"
	"github.com/osmansahan/map-tile-downloader/internal/retry"
	"github.com/osmansahan/map-tile-downloader/internal/source"
	"github.com/osmansahan/map-tile-downloader/internal/store"
	"github.com/osmansahan/map-tile-downloader/internal/wizard"
)

// Process exit codes.
const (
	ExitSuccess        = 0
	ExitConfigError    = 1
	ExitAllTilesFailed = 2
	ExitCancelled      = 3
)

// Selection describes which region to acquire, mirroring the mutually
// exclusive --region/--bbox/--place CLI flags plus the optional
// server/source name filters.
type Selection struct {
	RegionName   string
	BBox         *geometry.BBox
	MinZoom      *uint8
	MaxZoom      *uint8
	Place        string
	Servers      []string
	Sources      []string
	Interactive  bool
	ListRegions  bool
	ListSources  bool
}

// Orchestrator wires a Config and its dependent collaborators.
type Orchestrator struct {
	Config   *config.Config
	Logger   *logrus.Logger
	GeoCoder geocoder.GeoCoder
	Out      io.Writer
	In       io.Reader
}

// New builds an Orchestrator.
func New(cfg *config.Config, logger *logrus.Logger, geo geocoder.GeoCoder, in io.Reader, out io.Writer) *Orchestrator {
	return &Orchestrator{Config: cfg, Logger: logger, GeoCoder: geo, Out: out, In: in}
}

// Run resolves the selection into a (RegionSpec, sources) pair, drives the
// pipeline to completion, writes region metadata, and returns the process
// exit code.
func (o *Orchestrator) Run(ctx context.Context, sel Selection) int {
	if sel.ListRegions {
		o.printRegions()
		return ExitSuccess
	}
	if sel.ListSources {
		o.printSources()
		return ExitSuccess
	}

	region, regionName, sourceNames, err := o.resolveSelection(sel)
	if err != nil {
		o.Logger.Errorf("configuration error: %s", err)
		return ExitConfigError
	}

	specs := o.Config.SourcesByName(sourceNames)
	if len(specs) == 0 {
		o.Logger.Error("no sources selected")
		return ExitConfigError
	}

	sources := make([]source.Source, 0, len(specs))
	for _, spec := range specs {
		src, err := source.New(spec, o.Config.UserAgent, o.Config.WorkersPerSource, o.Config.Timeout, o.Config.EmptyTileFingerprints)
		if err != nil {
			o.Logger.Errorf("init source %s: %s", spec.Name, err)
			return ExitConfigError
		}
		sources = append(sources, src)
	}
	defer func() {
		for _, src := range sources {
			src.Close()
		}
	}()

	ordered := pipeline.OrderSources(sources, o.Config.VectorFirst)
	coverage := geometry.BuildCoverage(region.BBox, region.MinZoom, region.MaxZoom)

	st := store.New(o.Config.OutputDir)
	// RetryAttempts counts retries after the first try, so the policy's
	// attempt budget (including that first try) is RetryAttempts+1.
	retryPolicy := retry.New(o.Config.RetryAttempts+1, retryBaseDelay, retryMaxBackoff)
	p := pipeline.New(regionName, ordered, st, retryPolicy, o.Config.WorkersPerSource, o.Logger)

	result := p.Run(ctx, coverage)
	o.logSummary(regionName, result)

	meta, err := metadata.Build(o.Config.OutputDir, regionName, region)
	if err != nil {
		o.Logger.Errorf("build metadata: %s", err)
	} else if err := metadata.WriteAtomic(o.Config.OutputDir, regionName, meta); err != nil {
		o.Logger.Errorf("write metadata: %s", err)
	}

	if result.Cancelled {
		return ExitCancelled
	}

	var totalFailed int64
	for _, s := range result.Summaries {
		totalFailed += s.Failed
	}
	if total := int64(len(coverage.Tiles())); total > 0 && totalFailed+result.Uncoverable == total {
		return ExitAllTilesFailed
	}
	return ExitSuccess
}

const (
	retryBaseDelay  = 500 * time.Millisecond
	retryMaxBackoff = 30 * time.Second
)

// resolveSelection turns a Selection (possibly routed through the
// interactive wizard or the geocoder) into a concrete RegionSpec, its
// name, and the union of server/source names to consider.
func (o *Orchestrator) resolveSelection(sel Selection) (config.RegionSpec, string, []string, error) {
	if sel.Interactive && sel.RegionName == "" && sel.BBox == nil && sel.Place == "" {
		w := wizard.New(o.In, o.Out, o.Config, o.GeoCoder)
		choice, err := w.Run()
		if err != nil {
			return config.RegionSpec{}, "", nil, err
		}
		return o.regionFromWizard(choice)
	}

	switch {
	case sel.RegionName != "" && sel.BBox != nil:
		return config.RegionSpec{}, "", nil, fmt.Errorf("--region and --bbox are mutually exclusive")
	case sel.RegionName != "" && sel.Place != "":
		return config.RegionSpec{}, "", nil, fmt.Errorf("--region and --place are mutually exclusive")
	case sel.BBox != nil && sel.Place != "":
		return config.RegionSpec{}, "", nil, fmt.Errorf("--bbox and --place are mutually exclusive")
	}

	names := append(append([]string{}, sel.Servers...), sel.Sources...)

	if sel.RegionName != "" {
		region, err := o.Config.Region(sel.RegionName)
		if err != nil {
			return config.RegionSpec{}, "", nil, err
		}
		return region, sel.RegionName, names, nil
	}

	if sel.Place != "" {
		bbox, err := o.GeoCoder.Find(sel.Place)
		if err != nil {
			return config.RegionSpec{}, "", nil, err
		}
		region := config.RegionSpec{Name: sel.Place, BBox: bbox, MinZoom: 10, MaxZoom: 15}
		if sel.MinZoom != nil {
			region.MinZoom = *sel.MinZoom
		}
		if sel.MaxZoom != nil {
			region.MaxZoom = *sel.MaxZoom
		}
		return region, sel.Place, names, nil
	}

	if sel.BBox != nil {
		if sel.MinZoom == nil || sel.MaxZoom == nil {
			return config.RegionSpec{}, "", nil, fmt.Errorf("--bbox requires --min-zoom and --max-zoom")
		}
		region := config.RegionSpec{Name: "custom", BBox: *sel.BBox, MinZoom: *sel.MinZoom, MaxZoom: *sel.MaxZoom}
		return region, "custom", names, nil
	}

	return config.RegionSpec{}, "", nil, fmt.Errorf("one of --region, --bbox, --place, or --interactive is required")
}

func (o *Orchestrator) regionFromWizard(choice wizard.Selection) (config.RegionSpec, string, []string, error) {
	names := append(append([]string{}, choice.ServerFilter...), choice.SourceFilter...)
	switch choice.Mode {
	case wizard.ModeRegion:
		region, err := o.Config.Region(choice.RegionName)
		if err != nil {
			return config.RegionSpec{}, "", nil, err
		}
		return region, choice.RegionName, names, nil
	case wizard.ModePlace:
		region := config.RegionSpec{Name: choice.Place, BBox: choice.BBox, MinZoom: choice.MinZoom, MaxZoom: choice.MaxZoom}
		return region, choice.Place, names, nil
	default:
		region := config.RegionSpec{Name: "custom", BBox: choice.BBox, MinZoom: choice.MinZoom, MaxZoom: choice.MaxZoom}
		return region, "custom", names, nil
	}
}

func (o *Orchestrator) printRegions() {
	fmt.Fprintln(o.Out, "Available regions:")
	names := make([]string, 0, len(o.Config.Regions))
	for name := range o.Config.Regions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := o.Config.Regions[name]
		fmt.Fprintf(o.Out, "  %s: %s\n", name, r.Description)
	}
}

func (o *Orchestrator) printSources() {
	fmt.Fprintln(o.Out, "Available sources:")
	for _, s := range o.Config.Sources {
		fmt.Fprintf(o.Out, "  %s (%s, %s)\n", s.Name, s.Kind, s.TileKind)
	}
}

func (o *Orchestrator) logSummary(regionName string, result pipeline.Result) {
	o.Logger.Infof("region %s: %d tiles uncoverable", regionName, result.Uncoverable)
	for name, s := range result.Summaries {
		o.Logger.Infof(
			"source %-16s stored=%-6d failed=%-6d transient=%-6d invalid=%-6d empty=%-6d not_found=%-6d",
			name, s.Stored, s.Failed, s.TransientErrors, s.Invalid, s.Empty, s.NotFound,
		)
	}
}
