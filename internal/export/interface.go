// Package export turns a dive series into overlay frames, videos, charts and
// spreadsheets.
//
// Frame exporters sample the series at 1/FrameRate intervals and check the
// context between frames, so cancellation takes effect within one frame.
// A canceled or failed export leaves no partial output behind.
package export

import (
	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/overlay"
)

// ProgressFunc receives an overall percentage in [0,100] and a short status.
type ProgressFunc func(percent int, status string)

// Job describes a frame export over [Start, End] seconds of a dive.
type Job struct {
	Series    *dive.Series
	Renderer  overlay.Renderer
	Display   overlay.DisplayConfig
	Start     float64
	End       float64
	FrameRate float64
	Progress  ProgressFunc
}

// WholeDive returns a job covering the entire series.
func WholeDive(series *dive.Series, r overlay.Renderer, cfg overlay.DisplayConfig, fps float64) Job {
	return Job{
		Series:    series,
		Renderer:  r,
		Display:   cfg,
		Start:     0,
		End:       series.Duration(),
		FrameRate: fps,
	}
}

func (j Job) validate() error {
	errFactory := errors.New()

	switch {
	case j.Series == nil:
		return errFactory.WithMessage(ErrInvalidJob, "no dive selected")
	case j.Renderer == nil:
		return errFactory.WithMessage(ErrInvalidJob, "no renderer")
	case j.FrameRate <= 0:
		return errFactory.WithData(ErrInvalidJob, struct{ FrameRate float64 }{j.FrameRate})
	case j.End < j.Start:
		return errFactory.WithData(ErrInvalidJob, struct{ Start, End float64 }{j.Start, j.End})
	}
	return nil
}

func (j Job) report(percent int, status string) {
	if j.Progress != nil {
		j.Progress(percent, status)
	}
}
