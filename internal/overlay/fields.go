package overlay

import (
	"fmt"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/units"
)

// Fields lists the readouts cfg enables for sample, in display order.
func Fields(sample dive.Sample, cylinders []dive.Cylinder, cfg DisplayConfig) []Field {
	conv := units.NewConverter(cfg.Units)
	var fields []Field

	if cfg.ShowTime {
		fields = append(fields, Field{"TIME", FormatClock(sample.Timestamp)})
	}
	if cfg.ShowDepth {
		fields = append(fields, Field{"DEPTH", conv.FormatDepth(sample.Depth)})
	}
	if cfg.ShowTemperature {
		fields = append(fields, Field{"TEMP", conv.FormatTemperature(sample.Temperature)})
	}
	if cfg.ShowNDL {
		if sample.InDeco() && sample.TTS > 0 {
			fields = append(fields, Field{"TTS", fmt.Sprintf("%.0f min", sample.TTS)})
		} else {
			fields = append(fields, Field{"NDL", fmt.Sprintf("%.0f min", sample.NDL)})
		}
	}
	if cfg.ShowPressure {
		for _, c := range cylinders {
			if !sample.Pressures.Has(c.Index) {
				continue
			}
			fields = append(fields, Field{tankLabel(c), conv.FormatPressure(sample.Pressure(c.Index))})
		}
	}

	cells := []bool{cfg.ShowPO2Cell1, cfg.ShowPO2Cell2, cfg.ShowPO2Cell3}
	for i, show := range cells {
		if show {
			fields = append(fields, Field{fmt.Sprintf("CELL %d", i+1), formatPO2(sample.PO2Sensor(i))})
		}
	}
	if cfg.ShowCompositePO2 {
		fields = append(fields, Field{"PO2", formatPO2(sample.CompositePO2())})
	}

	return fields
}

func tankLabel(c dive.Cylinder) string {
	label := fmt.Sprintf("T%d", c.Index+1)
	if gas := c.GasLabel(); gas != "" {
		label += " " + gas
	}
	return label
}

func formatPO2(v float64) string {
	if v <= 0 {
		return "--"
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatClock renders seconds as M:SS.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
