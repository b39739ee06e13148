// Command tiler is the CLI entrypoint: flag parsing, config load,
// safe-exit signal handling, and structured logging setup, wired into an
// explicit Orchestrator rather than package-level globals.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geocoder"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
	"github.com/osmansahan/map-tile-downloader/internal/logging"
	"github.com/osmansahan/map-tile-downloader/internal/orchestrator"
	"github.com/osmansahan/map-tile-downloader/internal/safeexit"
)

var (
	configPath  string
	regionName  string
	bboxFlag    string
	minZoomFlag int
	maxZoomFlag int
	serversFlag string
	sourcesFlag string
	placeFlag   string
	interactive bool
	listRegions bool
	listSources bool
	verbose     bool
)

func initFlags() {
	flag.StringVar(&configPath, "config", "config.json", "path to config `file`")
	flag.StringVar(&regionName, "region", "", "named region to acquire (mutually exclusive with -bbox/-place)")
	flag.StringVar(&bboxFlag, "bbox", "", "minLng minLat maxLng maxLat, space-separated")
	flag.IntVar(&minZoomFlag, "min-zoom", -1, "minimum zoom level")
	flag.IntVar(&maxZoomFlag, "max-zoom", -1, "maximum zoom level")
	flag.StringVar(&serversFlag, "servers", "", "comma-separated remote source names")
	flag.StringVar(&sourcesFlag, "sources", "", "comma-separated local archive source names")
	flag.StringVar(&placeFlag, "place", "", "place name resolved to a bbox via the embedded gazetteer")
	flag.BoolVar(&interactive, "interactive", false, "launch the step-by-step wizard")
	flag.BoolVar(&listRegions, "list-regions", false, "print configured regions and exit")
	flag.BoolVar(&listSources, "list-sources", false, "print configured sources and exit")
	flag.BoolVar(&verbose, "verbose", false, "log every failed tile, not just per-source summaries")
	flag.Usage = usage
	flag.Parse()
}

func usage() {
	fmt.Fprintf(os.Stderr, `tiler: bulk map-tile acquisition engine
Usage: tiler [-config file] [-region name | -bbox "minLng minLat maxLng maxLat" | -place name | -interactive]
             [-min-zoom n] [-max-zoom n] [-servers csv] [-sources csv]
`)
	flag.PrintDefaults()
}

func parseBBox(s string) (*geometry.BBox, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return nil, fmt.Errorf("-bbox requires 4 space-separated numbers, got %d", len(fields))
	}
	vals := make([]float64, 4)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("-bbox: invalid number %q", f)
		}
		vals[i] = v
	}
	bbox := geometry.BBox{MinLng: vals[0], MinLat: vals[1], MaxLng: vals[2], MaxLat: vals[3]}
	return &bbox, nil
}

func zoomPtr(v int) *uint8 {
	if v < 0 {
		return nil
	}
	z := uint8(v)
	return &z
}

func csv(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func main() {
	initFlags()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %s\n", err)
		os.Exit(orchestrator.ExitConfigError)
	}

	logLevel := "info"
	if verbose {
		logLevel = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:    logLevel,
		Dir:      cfg.OutputDir + "/logs",
		ToStdout: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %s\n", err)
		os.Exit(orchestrator.ExitConfigError)
	}

	exit := safeexit.New(context.Background())
	go exit.Listen()

	bbox, err := parseBBox(bboxFlag)
	if err != nil {
		logger.Errorf("%s", err)
		os.Exit(orchestrator.ExitConfigError)
	}

	sel := orchestrator.Selection{
		RegionName:  regionName,
		BBox:        bbox,
		MinZoom:     zoomPtr(minZoomFlag),
		MaxZoom:     zoomPtr(maxZoomFlag),
		Place:       placeFlag,
		Servers:     csv(serversFlag),
		Sources:     csv(sourcesFlag),
		Interactive: interactive,
		ListRegions: listRegions,
		ListSources: listSources,
	}

	o := orchestrator.New(cfg, logger, geocoder.DefaultGazetteer(), os.Stdin, os.Stdout)
	code := o.Run(exit.Context(), sel)
	exit.Stop()
	os.Exit(code)
}
