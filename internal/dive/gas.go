package dive

import "sort"

// AddCylinder appends a cylinder and returns its index. The cylinder's Index
// field is overwritten with its position.
func (s *Series) AddCylinder(c Cylinder) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Index = len(s.cylinders)
	s.cylinders = append(s.cylinders, c)
	return c.Index
}

func (s *Series) CylinderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cylinders)
}

// Cylinder returns the cylinder at index, false when out of range.
func (s *Series) Cylinder(index int) (Cylinder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.cylinders) {
		return Cylinder{}, false
	}
	return s.cylinders[index], true
}

// Cylinders returns a copy of the cylinder list.
func (s *Series) Cylinders() []Cylinder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Cylinder, len(s.cylinders))
	copy(out, s.cylinders)
	return out
}

// CylinderDescription labels a cylinder for display.
func (s *Series) CylinderDescription(index int) string {
	c, ok := s.Cylinder(index)
	if !ok {
		return "Unknown"
	}
	return c.Label()
}

// AddGasSwitch records a switch to cylinderIndex at timestamp. Switches to
// cylinders that were never declared are rejected.
func (s *Series) AddGasSwitch(timestamp float64, cylinderIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cylinderIndex < 0 || cylinderIndex >= len(s.cylinders) {
		return false
	}

	s.switches = append(s.switches, GasSwitch{Timestamp: timestamp, CylinderIndex: cylinderIndex})
	sort.SliceStable(s.switches, func(i, j int) bool {
		return s.switches[i].Timestamp < s.switches[j].Timestamp
	})
	return true
}

// GasSwitches returns the switches in time order.
func (s *Series) GasSwitches() []GasSwitch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]GasSwitch, len(s.switches))
	copy(out, s.switches)
	return out
}

// ActiveCylinderAt returns the cylinder breathed at t. Cylinder 0 is active
// until the first switch; a switch at exactly t is already in effect.
func (s *Series) ActiveCylinderAt(t float64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeCylinderLocked(t)
}

func (s *Series) activeCylinderLocked(t float64) int {
	active := 0
	for _, sw := range s.switches {
		if sw.Timestamp > t {
			break
		}
		active = sw.CylinderIndex
	}
	return active
}

// IsCylinderActiveAtTime reports whether index is the cylinder in use at t.
func (s *Series) IsCylinderActiveAtTime(index int, t float64) bool {
	return s.ActiveCylinderAt(t) == index
}

// usageWindowLocked returns the span during which cylinder index is breathed.
// It opens at the first switch to the cylinder, or at dive start for
// cylinder 0, and closes at the next switch to a different cylinder or at
// the end of the dive. used is false for a cylinder that is never switched to.
func (s *Series) usageWindowLocked(index int) (start, end float64, used bool) {
	implicit := false
	switch {
	case index == 0:
		implicit = true
	default:
		found := false
		for _, sw := range s.switches {
			if sw.CylinderIndex == index {
				start, found = sw.Timestamp, true
				break
			}
		}
		if !found {
			return 0, 0, false
		}
	}

	end = s.durationLocked()
	for _, sw := range s.switches {
		if sw.CylinderIndex == index {
			continue
		}
		if sw.Timestamp > start || (implicit && sw.Timestamp == start) {
			end = sw.Timestamp
			break
		}
	}
	return start, end, true
}

// InterpolateCylinderPressure estimates the pressure of cylinder index at t
// by a straight line from its start to its end pressure across the window in
// which the cylinder is breathed. Outside that window the nearest endpoint is
// returned. Cylinders without both endpoint pressures, and invalid indices,
// yield 0. Each valid result is recorded for LastInterpolatedPressure.
func (s *Series) InterpolateCylinderPressure(index int, t float64) float64 {
	s.mu.RLock()
	if index < 0 || index >= len(s.cylinders) {
		s.mu.RUnlock()
		return 0
	}
	c := s.cylinders[index]
	if !c.HasPressureRange() {
		s.mu.RUnlock()
		return 0
	}
	start, end, used := s.usageWindowLocked(index)
	s.mu.RUnlock()

	var p float64
	switch {
	case !used, end <= start, t <= start:
		p = c.StartPressure
	case t >= end:
		p = c.EndPressure
	default:
		p = lerp(c.StartPressure, c.EndPressure, (t-start)/(end-start))
	}

	s.recordInterpolatedPressure(index, p)
	return p
}

func (s *Series) recordInterpolatedPressure(index int, p float64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.lastPressure == nil {
		s.lastPressure = make(map[int]float64)
	}
	s.lastPressure[index] = p
}

// LastInterpolatedPressure returns the value most recently produced by
// InterpolateCylinderPressure for index, or 0 if none.
func (s *Series) LastInterpolatedPressure(index int) float64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.lastPressure[index]
}
