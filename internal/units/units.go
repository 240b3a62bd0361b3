// Package units converts and formats dive measurements between metric and
// imperial systems. Values are always stored metric; conversion happens at
// presentation time only.
package units

import (
	"fmt"
	"strings"
)

// System selects the unit family used for display.
type System int

const (
	Metric System = iota
	Imperial
)

const (
	feetPerMeter = 3.28084
	psiPerBar    = 14.5038
)

// ParseSystem maps a persisted name to a System. Unknown names are metric.
func ParseSystem(name string) System {
	if strings.EqualFold(strings.TrimSpace(name), "imperial") {
		return Imperial
	}
	return Metric
}

func (s System) String() string {
	if s == Imperial {
		return "imperial"
	}
	return "metric"
}

// Converter converts metric readings into the configured system.
type Converter struct {
	system System
}

func NewConverter(system System) *Converter {
	return &Converter{system: system}
}

func (c *Converter) System() System {
	return c.system
}

func (c *Converter) SetSystem(system System) {
	c.system = system
}

func MetersToFeet(m float64) float64 { return m * feetPerMeter }
func FeetToMeters(ft float64) float64 { return ft / feetPerMeter }
func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }
func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }
func BarToPSI(bar float64) float64 { return bar * psiPerBar }
func PSIToBar(psi float64) float64 { return psi / psiPerBar }

// Depth converts a depth in meters.
func (c *Converter) Depth(meters float64) float64 {
	if c.system == Imperial {
		return MetersToFeet(meters)
	}
	return meters
}

// Temperature converts a temperature in Celsius.
func (c *Converter) Temperature(celsius float64) float64 {
	if c.system == Imperial {
		return CelsiusToFahrenheit(celsius)
	}
	return celsius
}

// Pressure converts a pressure in bar.
func (c *Converter) Pressure(bar float64) float64 {
	if c.system == Imperial {
		return BarToPSI(bar)
	}
	return bar
}

func (c *Converter) DepthUnit() string {
	if c.system == Imperial {
		return "ft"
	}
	return "m"
}

func (c *Converter) TemperatureUnit() string {
	if c.system == Imperial {
		return "°F"
	}
	return "°C"
}

func (c *Converter) PressureUnit() string {
	if c.system == Imperial {
		return "psi"
	}
	return "bar"
}

// FormatDepth renders a metric depth as "12.3 m" or "40.4 ft".
func (c *Converter) FormatDepth(meters float64) string {
	return fmt.Sprintf("%.1f %s", c.Depth(meters), c.DepthUnit())
}

// FormatTemperature renders a Celsius temperature as "18.5°C" or "65.3°F".
func (c *Converter) FormatTemperature(celsius float64) string {
	return fmt.Sprintf("%.1f%s", c.Temperature(celsius), c.TemperatureUnit())
}

// FormatPressure renders a bar pressure as "200 bar" or "2901 psi".
func (c *Converter) FormatPressure(bar float64) string {
	return fmt.Sprintf("%.0f %s", c.Pressure(bar), c.PressureUnit())
}
