package export

import (
	"fmt"
	"image/color"
	"io"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/units"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	depthColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	ceilingColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// ProfileSize is the rendered size of a profile chart.
var ProfileSize = struct{ Width, Height vg.Length }{10 * vg.Inch, 4 * vg.Inch}

// WriteProfile draws the depth profile of series as a PNG chart. Depth is
// plotted downwards against elapsed minutes; the decompression ceiling is
// drawn when the dive has one.
func WriteProfile(w io.Writer, series *dive.Series, system units.System) error {
	errFactory := errors.New()
	if series.Len() == 0 {
		return errFactory.WithMessage(ErrInvalidJob, "dive has no samples")
	}

	conv := units.NewConverter(system)
	samples := series.Samples()

	depth := make(plotter.XYs, 0, len(samples))
	ceiling := make(plotter.XYs, 0, len(samples))
	hasCeiling := false
	for _, s := range samples {
		x := s.Timestamp / 60
		depth = append(depth, plotter.XY{X: x, Y: -conv.Depth(s.Depth)})
		ceiling = append(ceiling, plotter.XY{X: x, Y: -conv.Depth(s.Ceiling)})
		if s.Ceiling > 0 {
			hasCeiling = true
		}
	}

	p := plot.New()
	p.Title.Text = profileTitle(series)
	p.X.Label.Text = "Time (min)"
	p.Y.Label.Text = fmt.Sprintf("Depth (%s)", conv.DepthUnit())
	p.Add(plotter.NewGrid())

	depthLine, err := plotter.NewLine(depth)
	if err != nil {
		return errFactory.Wrap(ErrRender, err)
	}
	depthLine.Color = depthColor
	depthLine.Width = vg.Points(1.5)
	p.Add(depthLine)
	p.Legend.Add("Depth", depthLine)

	if hasCeiling {
		ceilingLine, err := plotter.NewLine(ceiling)
		if err != nil {
			return errFactory.Wrap(ErrRender, err)
		}
		ceilingLine.Color = ceilingColor
		ceilingLine.Width = vg.Points(1)
		ceilingLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(ceilingLine)
		p.Legend.Add("Ceiling", ceilingLine)
	}

	p.Legend.Top = false
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = 10

	wt, err := p.WriterTo(ProfileSize.Width, ProfileSize.Height, "png")
	if err != nil {
		return errFactory.Wrap(ErrRender, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}
	return nil
}

func profileTitle(series *dive.Series) string {
	title := series.Name()
	if title == "" {
		title = "Dive"
	}
	if loc := series.Location(); loc != "" {
		title += " - " + loc
	}
	return title
}
