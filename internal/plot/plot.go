// Package plot draws deposition fractions per segment against the
// published reference curves.
package plot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/siminhale/siminhale/pkg/deposition"
	"github.com/siminhale/siminhale/pkg/geometry"
	"github.com/siminhale/siminhale/pkg/reference"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	DefaultTitle    = "Deposition fraction for different segments"
	DefaultBaseName = "deposition_fraction"
	SimulationLabel = "Simulation"
)

// ErrUnsupportedFormat is returned by Save for an extension gonum/plot
// cannot encode.
var ErrUnsupportedFormat = errors.New("unsupported plot format")

var supportedFormats = map[string]bool{
	"eps": true, "jpg": true, "jpeg": true, "pdf": true,
	"png": true, "svg": true, "tex": true, "tif": true, "tiff": true,
}

// logTicks are the major ticks of the fraction axis.
var logTicks = []float64{0.001, 0.01, 0.1, 1, 10, 100}

// Options controls rendering.
type Options struct {
	Title    string
	WidthIn  float64
	HeightIn float64
}

// Figure is a rendered plot together with its page size.
type Figure struct {
	*gonumplot.Plot
	Width  vg.Length
	Height vg.Length
}

// Render builds the deposition plot. The unclassified bucket and zero
// fractions are left out because the y axis is logarithmic.
func Render(s *deposition.Summary, refs []reference.Dataset, opts Options) (*Figure, error) {
	if s == nil {
		return nil, errors.New("nil summary")
	}

	p := gonumplot.New()
	p.Title.Text = opts.Title
	if p.Title.Text == "" {
		p.Title.Text = DefaultTitle
	}
	p.X.Label.Text = "Segment"
	p.Y.Label.Text = "Deposition fraction (%)"
	p.Legend.Top = true

	p.Y.Scale = gonumplot.LogScale{}
	p.Y.Min = logTicks[0]
	p.Y.Max = logTicks[len(logTicks)-1]
	p.Y.Tick.Marker = gonumplot.ConstantTicks(yTicks())

	p.X.Min = 0
	p.X.Max = float64(geometry.MaxSegment + 1)
	p.X.Tick.Marker = gonumplot.ConstantTicks(segmentTicks())

	lines := []interface{}{SimulationLabel, simulationPoints(s)}
	for _, ref := range refs {
		lines = append(lines, ref.Name, datasetPoints(ref.Fractions))
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return nil, fmt.Errorf("error adding deposition lines: %w", err)
	}

	width, height := opts.WidthIn, opts.HeightIn
	if width <= 0 {
		width = 8
	}
	if height <= 0 {
		height = 5
	}

	return &Figure{Plot: p, Width: vg.Length(width) * vg.Inch, Height: vg.Length(height) * vg.Inch}, nil
}

// segmentTicks labels every second segment from 0 up to, not including,
// MaxSegment.
func segmentTicks() []gonumplot.Tick {
	var ticks []gonumplot.Tick
	for i := 0; i < geometry.MaxSegment; i += 2 {
		ticks = append(ticks, gonumplot.Tick{Value: float64(i), Label: strconv.Itoa(i)})
	}
	return ticks
}

func yTicks() []gonumplot.Tick {
	ticks := make([]gonumplot.Tick, len(logTicks))
	for i, v := range logTicks {
		ticks[i] = gonumplot.Tick{Value: v, Label: strconv.FormatFloat(v, 'g', -1, 64)}
	}
	return ticks
}

func simulationPoints(s *deposition.Summary) plotter.XYs {
	var pts plotter.XYs
	for _, f := range s.Segments {
		if f.Segment == geometry.Unclassified || f.Fraction <= 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(f.Segment), Y: f.Fraction})
	}
	return pts
}

func datasetPoints(fractions []float64) plotter.XYs {
	var pts plotter.XYs
	for i, v := range fractions {
		if v <= 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i + 1), Y: v})
	}
	return pts
}

// Save writes the figure once per format as base.<format> and returns the
// written paths. Every failing format is reported; the others are still
// written.
func Save(fig *Figure, base string, formats []string) ([]string, error) {
	var (
		written []string
		errs    []error
	)
	for _, format := range formats {
		format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
		if !supportedFormats[format] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format))
			continue
		}
		path := base + "." + format
		if err := fig.Save(fig.Width, fig.Height, path); err != nil {
			errs = append(errs, fmt.Errorf("error saving %s: %w", path, err))
			continue
		}
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}
