package dive

import "sort"

// DefaultO2Percent is the oxygen fraction assumed for air.
const DefaultO2Percent = 21.0

// Readings is a sparse set of values keyed by a small integer index
// (cylinder or sensor). A missing key reads as 0.
type Readings map[int]float64

// Get returns the value at i, or 0 when absent.
func (r Readings) Get(i int) float64 {
	return r[i]
}

func (r Readings) Has(i int) bool {
	_, ok := r[i]
	return ok
}

// Indices returns the present keys in ascending order.
func (r Readings) Indices() []int {
	keys := make([]int, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (r Readings) Clone() Readings {
	if r == nil {
		return nil
	}
	out := make(Readings, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Sample is one point of a dive profile. Timestamp is seconds from dive
// start. Depth is meters, Temperature Celsius, NDL and TTS minutes, Ceiling
// meters and pressures bar.
type Sample struct {
	Timestamp   float64
	Depth       float64
	Temperature float64
	NDL         float64
	Ceiling     float64
	TTS         float64
	O2Percent   float64
	Pressures   Readings
	PO2Sensors  Readings
}

// NewSample returns an empty sample at t breathing air.
func NewSample(t float64) Sample {
	return Sample{
		Timestamp: t,
		O2Percent: DefaultO2Percent,
	}
}

// SetPressure records the pressure for a cylinder.
func (s *Sample) SetPressure(cylinder int, bar float64) {
	if s.Pressures == nil {
		s.Pressures = make(Readings)
	}
	s.Pressures[cylinder] = bar
}

// Pressure returns the pressure for a cylinder, 0 when not recorded.
func (s Sample) Pressure(cylinder int) float64 {
	return s.Pressures.Get(cylinder)
}

// SetPO2Sensor records a PO2 cell reading. Sensors are 0-based.
func (s *Sample) SetPO2Sensor(sensor int, value float64) {
	if s.PO2Sensors == nil {
		s.PO2Sensors = make(Readings)
	}
	s.PO2Sensors[sensor] = value
}

// PO2Sensor returns a PO2 cell reading, 0 when not recorded.
func (s Sample) PO2Sensor(sensor int) float64 {
	return s.PO2Sensors.Get(sensor)
}

// CompositePO2 is the mean of all positive sensor readings, or 0 when no
// sensor reports.
func (s Sample) CompositePO2() float64 {
	var sum float64
	var n int
	for _, v := range s.PO2Sensors {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// InDeco reports whether the diver has no remaining no-decompression time.
func (s Sample) InDeco() bool {
	return s.NDL <= 0
}

// Clone returns a deep copy whose maps are not shared with s.
func (s Sample) Clone() Sample {
	s.Pressures = s.Pressures.Clone()
	s.PO2Sensors = s.PO2Sensors.Clone()
	return s
}
