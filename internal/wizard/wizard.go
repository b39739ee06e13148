// Package wizard implements the step-by-step interactive terminal flow
// launched by --interactive: mode, then target, then sources, then zoom
// range, with "b" back-navigation available at every step after the first.
package wizard

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geocoder"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
)

// Mode is the user's chosen way of specifying a region.
type Mode int

const (
	ModeRegion Mode = iota
	ModePlace
	ModeBBox
)

// Selection is the wizard's final output, consumed the same way
// orchestrator.Run consumes parsed CLI flags.
type Selection struct {
	Mode          Mode
	RegionName    string
	Place         string
	BBox          geometry.BBox
	MinZoom       uint8
	MaxZoom       uint8
	ServerFilter  []string
	SourceFilter  []string
}

// errBack is returned by a prompt to signal the user asked to step back.
var errBack = fmt.Errorf("wizard: back")
var errCancelled = fmt.Errorf("wizard: cancelled")

// Wizard drives the interactive flow over an io.Reader/io.Writer pair so
// it can be driven by tests without a real terminal.
type Wizard struct {
	in     *bufio.Reader
	out    io.Writer
	cfg    *config.Config
	geo    geocoder.GeoCoder
}

// New builds a Wizard reading prompts from in and writing to out.
func New(in io.Reader, out io.Writer, cfg *config.Config, geo geocoder.GeoCoder) *Wizard {
	return &Wizard{in: bufio.NewReader(in), out: out, cfg: cfg, geo: geo}
}

// Run drives the mode -> target -> sources -> zoom steps, honoring "b" to
// step back at every prompt after the mode prompt; "b" at the mode prompt
// ends Run with errBack. Returns errCancelled if the user gives up.
func (w *Wizard) Run() (Selection, error) {
	fmt.Fprintln(w.out, "\n=== INTERACTIVE DOWNLOAD WIZARD ===")

	var sel Selection
	step := 0
	for {
		var err error
		switch step {
		case 0:
			step, err = w.stepMode(&sel)
		case 1:
			step, err = w.stepTarget(&sel)
		case 2:
			step, err = w.stepSources(&sel)
		case 3:
			step, err = w.stepZoom(&sel)
		case 4:
			return sel, nil
		}
		if err != nil {
			return Selection{}, err
		}
	}
}

func (w *Wizard) stepMode(sel *Selection) (int, error) {
	choice, err := w.promptChoice("Download mode:", []string{
		"By region", "By place (city/country)", "By custom bbox",
	}, false)
	if err != nil {
		return 0, err
	}
	sel.Mode = Mode(choice)
	return 1, nil
}

func (w *Wizard) stepTarget(sel *Selection) (int, error) {
	switch sel.Mode {
	case ModeRegion:
		names := make([]string, 0, len(w.cfg.Regions))
		for name := range w.cfg.Regions {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			fmt.Fprintln(w.out, "No regions defined in config.")
			return 0, errCancelled
		}
		idx, err := w.promptChoice("Select a region:", names, true)
		if err == errBack {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		region := w.cfg.Regions[names[idx]]
		sel.RegionName = names[idx]
		sel.BBox = region.BBox
		sel.MinZoom, sel.MaxZoom = region.MinZoom, region.MaxZoom
		fmt.Fprintf(w.out, "Selected region: %s bbox=%v zoom=%d-%d\n", sel.RegionName, sel.BBox, sel.MinZoom, sel.MaxZoom)
	case ModePlace:
		raw, err := w.promptLine("Place name (back: 'b'): ")
		if err == errBack {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		bbox, err := w.geo.Find(raw)
		if err != nil {
			fmt.Fprintf(w.out, "Could not resolve coordinates for %q.\n", raw)
			return 0, nil
		}
		sel.Place = raw
		sel.BBox = bbox
		sel.MinZoom, sel.MaxZoom = 10, 15
	case ModeBBox:
		bbox, err := w.promptBBox()
		if err == errBack {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		sel.BBox = bbox
		sel.MinZoom, sel.MaxZoom = 10, 15
	}
	return 2, nil
}

func (w *Wizard) stepSources(sel *Selection) (int, error) {
	var serverNames, localNames []string
	for _, s := range w.cfg.Sources {
		if s.Kind == config.SourceHTTP {
			serverNames = append(serverNames, s.Name)
		} else {
			localNames = append(localNames, s.Name)
		}
	}
	if len(serverNames) == 0 && len(localNames) == 0 {
		fmt.Fprintln(w.out, "No selectable sources configured.")
		return 1, errCancelled
	}

	choice, err := w.promptChoice("Source type:", []string{
		"Online servers only", "Local sources only", "Both",
	}, true)
	if err == errBack {
		return 1, nil
	}
	if err != nil {
		return 1, err
	}

	if choice == 0 || choice == 2 {
		sel.ServerFilter = serverNames
	}
	if choice == 1 || choice == 2 {
		sel.SourceFilter = localNames
	}
	return 3, nil
}

func (w *Wizard) stepZoom(sel *Selection) (int, error) {
	minZoom, err := w.promptInt("Minimum zoom", int(sel.MinZoom))
	if err == errBack {
		return 2, nil
	}
	if err != nil {
		return 2, err
	}
	maxZoom, err := w.promptInt("Maximum zoom", int(sel.MaxZoom))
	if err == errBack {
		return 2, nil
	}
	if err != nil {
		return 2, err
	}
	if minZoom > maxZoom {
		fmt.Fprintln(w.out, "Minimum zoom cannot be greater than maximum zoom.")
		return 3, nil
	}
	sel.MinZoom, sel.MaxZoom = uint8(minZoom), uint8(maxZoom)
	return 4, nil
}

func (w *Wizard) promptLine(prompt string) (string, error) {
	fmt.Fprint(w.out, prompt)
	line, err := w.in.ReadString('\n')
	if err != nil && line == "" {
		return "", errCancelled
	}
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "b") {
		return "", errBack
	}
	if line == "" {
		return "", errCancelled
	}
	return line, nil
}

func (w *Wizard) promptChoice(title string, options []string, allowBack bool) (int, error) {
	fmt.Fprintln(w.out, title)
	for i, opt := range options {
		fmt.Fprintf(w.out, "  %d) %s\n", i+1, opt)
	}
	if allowBack {
		fmt.Fprintln(w.out, "  b) back")
	}
	line, err := w.promptLine("> ")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(options) {
		fmt.Fprintln(w.out, "Invalid choice.")
		return w.promptChoice(title, options, allowBack)
	}
	return n - 1, nil
}

func (w *Wizard) promptInt(label string, def int) (int, error) {
	line, err := w.promptLine(fmt.Sprintf("%s [%d]: ", label, def))
	if err == errCancelled {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		fmt.Fprintln(w.out, "Invalid number.")
		return w.promptInt(label, def)
	}
	return n, nil
}

func (w *Wizard) promptBBox() (geometry.BBox, error) {
	line, err := w.promptLine("bbox (minLng minLat maxLng maxLat): ")
	if err != nil {
		return geometry.BBox{}, err
	}
	fields := strings.Fields(line)
	if len(fields) != 4 {
		fmt.Fprintln(w.out, "Expected 4 numbers.")
		return w.promptBBox()
	}
	vals := make([]float64, 4)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			fmt.Fprintln(w.out, "Invalid number.")
			return w.promptBBox()
		}
		vals[i] = v
	}
	return geometry.BBox{MinLng: vals[0], MinLat: vals[1], MaxLng: vals[2], MaxLat: vals[3]}, nil
}
