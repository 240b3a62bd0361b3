// Package overlay lays out dive readouts and draws them onto transparent
// frames for compositing over video.
package overlay

import (
	"image"
	"image/color"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/units"
)

// Renderer draws one overlay frame. Implementations must depend only on
// their arguments so frames can be rendered in any order.
type Renderer interface {
	Render(sample dive.Sample, cylinders []dive.Cylinder, cfg DisplayConfig) (image.Image, error)
}

// Font selects the face used for overlay text.
type Font struct {
	Family string
	Size   float64
	Bold   bool
	Italic bool
}

// DisplayConfig is the complete set of options a frame is rendered with.
type DisplayConfig struct {
	ShowDepth        bool
	ShowTemperature  bool
	ShowNDL          bool
	ShowPressure     bool
	ShowTime         bool
	ShowPO2Cell1     bool
	ShowPO2Cell2     bool
	ShowPO2Cell3     bool
	ShowCompositePO2 bool

	Font      Font
	TextColor color.RGBA
	Units     units.System

	// TemplatePath is a PNG drawn beneath the text. Empty selects a plain
	// translucent background.
	TemplatePath string
}

// DefaultDisplayConfig shows the core readouts in white metric text.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		ShowDepth:       true,
		ShowTemperature: true,
		ShowNDL:         true,
		ShowPressure:    true,
		ShowTime:        true,
		Font: Font{
			Family: "Arial",
			Size:   12,
		},
		TextColor: color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Units:     units.Metric,
	}
}

// Field is one labelled readout on the overlay.
type Field struct {
	Label string
	Value string
}
