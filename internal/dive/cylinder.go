package dive

import "fmt"

// Cylinder describes a tank carried on the dive. Pressures are bar, Size is
// liters and gas fractions are percent.
type Cylinder struct {
	Index         int
	Description   string
	Size          float64
	WorkPressure  float64
	O2Percent     float64
	HePercent     float64
	StartPressure float64
	EndPressure   float64
}

// NewCylinder returns an air cylinder with no pressure data.
func NewCylinder() Cylinder {
	return Cylinder{O2Percent: DefaultO2Percent}
}

// InitialPressure is the start pressure, falling back to the working pressure.
func (c Cylinder) InitialPressure() float64 {
	if c.StartPressure > 0 {
		return c.StartPressure
	}
	if c.WorkPressure > 0 {
		return c.WorkPressure
	}
	return 0
}

// HasPressureRange reports whether both endpoint pressures are known.
func (c Cylinder) HasPressureRange() bool {
	return c.StartPressure > 0 && c.EndPressure > 0
}

// GasLabel names the mix: "Trimix 18/45", "EAN32", or empty for air.
func (c Cylinder) GasLabel() string {
	if c.HePercent > 0 {
		return fmt.Sprintf("Trimix %.0f/%.0f", c.O2Percent, c.HePercent)
	}
	if c.O2Percent != DefaultO2Percent && c.O2Percent > 0 {
		return fmt.Sprintf("EAN%.0f", c.O2Percent)
	}
	return ""
}

// Label is the description, or "Tank N" (1-based) when the log gave none,
// followed by the gas label in parentheses when the mix is not air.
func (c Cylinder) Label() string {
	name := c.Description
	if name == "" {
		name = fmt.Sprintf("Tank %d", c.Index+1)
	}
	if gas := c.GasLabel(); gas != "" {
		name += " (" + gas + ")"
	}
	return name
}

// GasSwitch marks the moment the diver started breathing from a cylinder.
type GasSwitch struct {
	Timestamp     float64
	CylinderIndex int
}

// Site is a named dive location from the log's site table.
type Site struct {
	UUID        string
	Name        string
	GPS         string
	Description string
}
