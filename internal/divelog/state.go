package divelog

import "codeberg.org/mutker/unabara/internal/dive"

const (
	maxPressureAttrs = 10
	maxPO2Sensors    = 4
)

// carryForward holds the last value seen for each quantity within one
// divecomputer block. Dive computers only log a value when it changes, so
// a sample that omits a field inherits the previous one.
type carryForward struct {
	temperature float64
	ndl         float64
	tts         float64
	pressures   map[int]float64
	sensors     map[int]float64
}

// newCarryForward seeds per-cylinder pressures with each cylinder's initial
// pressure so the first samples already show a full tank.
func newCarryForward(cylinders []dive.Cylinder) *carryForward {
	cf := &carryForward{
		pressures: make(map[int]float64),
		sensors:   make(map[int]float64),
	}
	for _, c := range cylinders {
		if p := c.InitialPressure(); p > 0 {
			cf.pressures[c.Index] = p
		}
	}
	return cf
}

// diveState is shared by every divecomputer block of one dive.
type diveState struct {
	ceiling float64
}
