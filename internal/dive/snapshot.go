package dive

// Snapshot is everything an overlay needs to draw one frame: the profile
// sample at a moment with per-cylinder pressures resolved for display, the
// cylinder table and which cylinder is in use.
type Snapshot struct {
	Sample         Sample
	Cylinders      []Cylinder
	ActiveCylinder int
}

// Snapshot resolves the display state at t. A cylinder with known start and
// end pressures shows its interpolated pressure while in use and its last
// interpolated value afterwards; other cylinders show the logged pressure.
func (s *Series) Snapshot(t float64) Snapshot {
	sample := s.SampleAt(t)
	cylinders := s.Cylinders()
	active := s.ActiveCylinderAt(t)

	for _, c := range cylinders {
		if !c.HasPressureRange() {
			continue
		}
		if c.Index == active {
			sample.SetPressure(c.Index, s.InterpolateCylinderPressure(c.Index, t))
			continue
		}
		if last := s.LastInterpolatedPressure(c.Index); last > 0 {
			sample.SetPressure(c.Index, last)
		}
	}

	return Snapshot{
		Sample:         sample,
		Cylinders:      cylinders,
		ActiveCylinder: active,
	}
}
