// Package dive holds the in-memory model of a single dive: its time-ordered
// profile samples, the cylinders carried and the gas switches between them.
//
// A Series is safe for concurrent use. Queries take a read lock; the cache of
// last interpolated cylinder pressures is guarded by its own mutex so that
// concurrent InterpolateCylinderPressure calls from export workers do not
// serialize on the sample data.
package dive

import (
	"sort"
	"sync"
	"time"
)

// PressureGapPolicy controls how SampleAt interpolates a cylinder pressure
// that only one of the two bracketing samples carries.
type PressureGapPolicy int

const (
	// GapAsZero treats the missing side as 0 bar, so the value ramps
	// toward or away from zero between the two samples.
	GapAsZero PressureGapPolicy = iota
	// GapHoldKnown uses the known side for both endpoints.
	GapHoldKnown
)

// Series is the time-ordered profile of one dive.
type Series struct {
	mu sync.RWMutex

	name      string
	number    int
	location  string
	siteID    string
	siteName  string
	startTime time.Time

	samples   []Sample
	cylinders []Cylinder
	switches  []GasSwitch
	gapPolicy PressureGapPolicy

	maxDepth float64
	minTemp  float64

	cacheMu      sync.Mutex
	lastPressure map[int]float64
}

// NewSeries returns an empty series.
func NewSeries() *Series {
	return &Series{
		lastPressure: make(map[int]float64),
	}
}

func (s *Series) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Series) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *Series) Number() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.number
}

func (s *Series) SetNumber(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.number = n
}

func (s *Series) Location() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

func (s *Series) SetLocation(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = location
}

// SiteID is the dive-site reference the log attached to this dive.
func (s *Series) SiteID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.siteID
}

func (s *Series) SetSiteID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.siteID = id
}

// SiteName is the resolved name of the dive site referenced by SiteID.
func (s *Series) SiteName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.siteName
}

func (s *Series) SetSiteName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.siteName = name
}

func (s *Series) StartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startTime
}

func (s *Series) SetStartTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = t
}

func (s *Series) SetPressureGapPolicy(p PressureGapPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gapPolicy = p
}

// AddSample inserts a copy of sample keeping timestamps non-decreasing.
// Samples sharing a timestamp keep their insertion order, so the one added
// last wins on lookup.
func (s *Series) AddSample(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample = sample.Clone()
	i := sort.Search(len(s.samples), func(i int) bool {
		return s.samples[i].Timestamp > sample.Timestamp
	})
	s.samples = append(s.samples, Sample{})
	copy(s.samples[i+1:], s.samples[i:])
	s.samples[i] = sample

	if sample.Depth > s.maxDepth {
		s.maxDepth = sample.Depth
	}
	if sample.Temperature > 0 && (s.minTemp == 0 || sample.Temperature < s.minTemp) {
		s.minTemp = sample.Temperature
	}
}

// Clear drops all samples and derived values. Cylinders, gas switches and
// metadata are kept.
func (s *Series) Clear() {
	s.mu.Lock()
	s.samples = nil
	s.maxDepth = 0
	s.minTemp = 0
	s.mu.Unlock()

	s.cacheMu.Lock()
	s.lastPressure = make(map[int]float64)
	s.cacheMu.Unlock()
}

// Len returns the number of stored samples.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Samples returns a copy of every stored sample in time order.
func (s *Series) Samples() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Sample, len(s.samples))
	for i, sample := range s.samples {
		out[i] = sample.Clone()
	}
	return out
}

// Duration is the timestamp of the last sample in seconds, 0 when empty.
func (s *Series) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durationLocked()
}

func (s *Series) durationLocked() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	return s.samples[len(s.samples)-1].Timestamp
}

// DurationSeconds is Duration truncated to whole seconds.
func (s *Series) DurationSeconds() int {
	return int(s.Duration())
}

// MaxDepth is the deepest recorded depth in meters.
func (s *Series) MaxDepth() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxDepth
}

// MinTemperature is the coldest positive temperature recorded, 0 when no
// sample carries one.
func (s *Series) MinTemperature() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minTemp
}

// SampleAt returns the profile at t seconds. Before the first sample the
// first sample is returned, at or after the last the last. In between, depth,
// temperature, oxygen, TTS and NDL are interpolated linearly while the
// ceiling holds the earlier sample's value.
func (s *Series) SampleAt(t float64) Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sampleAtLocked(t)
}

func (s *Series) sampleAtLocked(t float64) Sample {
	n := len(s.samples)
	if n == 0 {
		return NewSample(0)
	}
	if t < s.samples[0].Timestamp {
		return s.samples[0].Clone()
	}

	// First sample strictly after t; the one before it is the last sample at
	// or before t.
	u := sort.Search(n, func(i int) bool {
		return s.samples[i].Timestamp > t
	})
	prev := s.samples[u-1]
	if u == n || prev.Timestamp == t {
		return prev.Clone()
	}

	return interpolate(prev, s.samples[u], t, s.gapPolicy)
}

func interpolate(prev, next Sample, t float64, policy PressureGapPolicy) Sample {
	f := (t - prev.Timestamp) / (next.Timestamp - prev.Timestamp)

	return Sample{
		Timestamp:   t,
		Depth:       lerp(prev.Depth, next.Depth, f),
		Temperature: lerp(prev.Temperature, next.Temperature, f),
		NDL:         lerp(prev.NDL, next.NDL, f),
		TTS:         lerp(prev.TTS, next.TTS, f),
		O2Percent:   lerp(prev.O2Percent, next.O2Percent, f),
		Ceiling:     prev.Ceiling,
		Pressures:   blend(prev.Pressures, next.Pressures, f, policy == GapHoldKnown),
		PO2Sensors:  blend(prev.PO2Sensors, next.PO2Sensors, f, true),
	}
}

// blend interpolates every index present on either side. A side without the
// index contributes 0 unless holdKnown is set.
func blend(a, b Readings, f float64, holdKnown bool) Readings {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}

	out := make(Readings, len(a)+len(b))
	for k := range a {
		out[k] = 0
	}
	for k := range b {
		out[k] = 0
	}
	for k := range out {
		va, okA := a[k]
		vb, okB := b[k]
		if holdKnown {
			if !okA {
				va = vb
			}
			if !okB {
				vb = va
			}
		}
		out[k] = lerp(va, vb, f)
	}
	return out
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}

// SamplesInRange returns the stored samples with start <= timestamp <= end.
// When no stored sample sits exactly on a boundary an interpolated one is
// added there, so the result always begins at start and ends at end.
func (s *Series) SamplesInRange(start, end float64) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.samples)
	if n == 0 || start > end {
		return nil
	}

	lo := sort.Search(n, func(i int) bool { return s.samples[i].Timestamp >= start })
	hi := sort.Search(n, func(i int) bool { return s.samples[i].Timestamp > end })

	out := make([]Sample, 0, hi-lo+2)
	if lo >= hi || s.samples[lo].Timestamp != start {
		out = append(out, s.syntheticLocked(start))
	}
	for i := lo; i < hi; i++ {
		out = append(out, s.samples[i].Clone())
	}
	if end != start && (lo >= hi || s.samples[hi-1].Timestamp != end) {
		out = append(out, s.syntheticLocked(end))
	}
	return out
}

func (s *Series) syntheticLocked(t float64) Sample {
	sample := s.sampleAtLocked(t)
	sample.Timestamp = t
	return sample
}
