package divelog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `<?xml version="1.0" encoding="UTF-8"?>
<divelog program="subsurface" version="3">
<settings><divecomputerid model="Shearwater Perdix"/></settings>
<divesites>
  <site uuid="a1b2" name="Blue Hole" gps="17.315 -87.534">
    <geo cat="2" origin="0" value="Belize"/>
  </site>
  <site uuid="c3d4" name="Reef Point"/>
</divesites>
<dives>
<trip date="2024-05-01" location="Belize">
<dive number="1" divesiteid="a1b2" date="2024-05-01" time="09:15:00" duration="10:00 min">
  <cylinder size="11.1 l" workpressure="207.0 bar" description="AL80" o2="32.0%" start="200.0 bar" end="50.0 bar"/>
  <cylinder size="5.7 l" description="Stage" o2="50.0%" start="210.0 bar" end="180.0 bar"/>
  <divecomputer model="Shearwater Perdix">
    <depth max="30.0 m" mean="18.0 m"/>
    <temperature water="26.0 C"/>
    <event time="5:00 min" type="25" name="gaschange" cylinder="1"/>
    <event time="6:00 min" type="25" name="gaschange" cylinder="7"/>
    <event time="7:00 min" type="1" name="heading"/>
    <sample time="0:00 min" depth="0.0 m"/>
    <sample time="1:00 min" depth="12.0 m" temp="25.0 C" ndl="99:00 min" pressure="195.0 bar"/>
    <sample time="2:00 min" depth="30.0 m" stopdepth="3.0 m" tts="5:30 min"/>
    <sample/>
    <sample time="3:00 min" depth="25.0 m" in_deco="1"/>
    <sample time="10:00 min" depth="0.0 m" pressure1="182.0 bar" sensor1="1.20 bar" sensor2="1.30 bar"/>
  </divecomputer>
</dive>
<dive number="2" divesiteid="c3d4" date="2024-05-02" time="14:00:00">
  <location>House Reef</location>
  <cylinder start="200 bar" end="50 bar"/>
  <divecomputer>
    <sample time="0:00 min" depth="0.0 m"/>
    <sample time="10:00 min" depth="0.0 m"/>
  </divecomputer>
</dive>
</trip>
<dive number="3" date="2024-05-03">
  <cylinder workpressure="232 bar"/>
</dive>
</dives>
</divelog>
`

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestImporter() *Importer {
	return NewImporter(logger.Nop())
}

func TestImportFile(t *testing.T) {
	path := writeLog(t, "log.ssrf", sampleLog)
	dives, err := newTestImporter().ImportFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, dives, 3)

	d := dives[0]
	assert.Equal(t, "Dive #1", d.Name())
	assert.Equal(t, 1, d.Number())
	assert.Equal(t, "a1b2", d.SiteID())
	assert.Equal(t, "Blue Hole", d.SiteName())
	assert.Equal(t, "Blue Hole", d.Location(), "site name is the location fallback")
	assert.Equal(t, time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC), d.StartTime())

	cyls := d.Cylinders()
	require.Len(t, cyls, 2)
	assert.Equal(t, 11.1, cyls[0].Size)
	assert.Equal(t, 207.0, cyls[0].WorkPressure)
	assert.Equal(t, 32.0, cyls[0].O2Percent)
	assert.Equal(t, "AL80", cyls[0].Description)
	assert.Equal(t, 1, cyls[1].Index)
	assert.Equal(t, 50.0, cyls[1].O2Percent)

	gs := d.GasSwitches()
	require.Len(t, gs, 1, "switch to an undeclared cylinder is rejected")
	assert.Equal(t, 300.0, gs[0].Timestamp)
	assert.Equal(t, 1, gs[0].CylinderIndex)

	samples := d.Samples()
	require.Len(t, samples, 5, "empty sample element is dropped")
	assert.Equal(t, []float64{0, 60, 120, 180, 600}, timestampsOf(samples))

	// carried temperature from divecomputer level, then from samples
	assert.Equal(t, 26.0, samples[0].Temperature)
	assert.Equal(t, 25.0, samples[1].Temperature)
	assert.Equal(t, 25.0, samples[2].Temperature)

	// pressures: seeded from cylinder start, then carried
	assert.Equal(t, 200.0, samples[0].Pressure(0))
	assert.Equal(t, 210.0, samples[0].Pressure(1))
	assert.Equal(t, 195.0, samples[1].Pressure(0))
	assert.Equal(t, 195.0, samples[4].Pressure(0))
	assert.Equal(t, 182.0, samples[4].Pressure(1))

	// ndl and tts carry, ceiling persists
	assert.Equal(t, 99.0, samples[2].NDL)
	assert.Equal(t, 5.5, samples[2].TTS)
	assert.Equal(t, 3.0, samples[2].Ceiling)
	assert.Equal(t, 3.0, samples[4].Ceiling)
	assert.Equal(t, 0.0, samples[1].Ceiling)

	// in_deco forces ndl to zero and keeps the carried tts
	assert.Equal(t, 0.0, samples[3].NDL)
	assert.Equal(t, 5.5, samples[3].TTS)
	assert.Equal(t, 0.0, samples[4].NDL)

	assert.InDelta(t, 1.25, samples[4].CompositePO2(), 1e-9)

	d2 := dives[1]
	assert.Equal(t, "House Reef", d2.Location(), "inline location wins")
	assert.Equal(t, "Reef Point", d2.SiteName())
	assert.InDelta(t, 125.0, d2.InterpolateCylinderPressure(0, 300), 1e-9)

	d3 := dives[2]
	require.Equal(t, 1, d3.Len(), "sample-less dive gets one synthesized sample")
	only := d3.Samples()[0]
	assert.Equal(t, 0.0, only.Timestamp)
	assert.Equal(t, 232.0, only.Pressure(0))
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), d3.StartTime())
	assert.Equal(t, "", d3.Location())
}

func timestampsOf(samples []dive.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Timestamp
	}
	return out
}

func TestImportDive(t *testing.T) {
	path := writeLog(t, "log.xml", sampleLog)
	im := newTestImporter()

	d, err := im.ImportDive(context.Background(), path, 2)
	require.NoError(t, err)
	assert.Equal(t, "Dive #2", d.Name())
	assert.Equal(t, 2, d.Len())

	_, err = im.ImportDive(context.Background(), path, 42)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrNotFound))
}

func TestImportDiveStopsAfterMatch(t *testing.T) {
	// Everything after the requested dive is never read.
	doc := `<divelog><dives><dive number="1"><divecomputer><sample time="1:00 min" depth="3 m"/></divecomputer></dive><dive number="2"><broken`
	path := writeLog(t, "partial.xml", doc)

	d, err := newTestImporter().ImportDive(context.Background(), path, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())
}

func TestListDives(t *testing.T) {
	path := writeLog(t, "log.xml", sampleLog)

	lines, err := newTestImporter().ListDives(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Dive #1 - 2024-05-01 09:15:00 at Blue Hole",
		"Dive #2 - 2024-05-02 14:00:00 at House Reef",
		"Dive #3 - 2024-05-03",
	}, lines)
}

func TestListDivesEmptyLog(t *testing.T) {
	path := writeLog(t, "empty.xml", `<divelog><dives></dives></divelog>`)

	lines, err := newTestImporter().ListDives(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    errors.ErrorCode
	}{
		{"unsupported extension", "log.csv", sampleLog, ErrFormat},
		{"syntax error", "log.xml", `<divelog><dives><dive number="1"></dives></divelog>`, ErrFormat},
		{"truncated", "log.xml", strings.Split(sampleLog, "<dive number=\"2\"")[0], ErrFormat},
		{"no dives", "log.xml", `<divelog><divesites/></divelog>`, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeLog(t, tt.file, tt.content)
			dives, err := newTestImporter().ImportFile(context.Background(), path)
			require.Error(t, err)
			assert.Nil(t, dives, "partial results are discarded")
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestImportMissingFile(t *testing.T) {
	_, err := newTestImporter().ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.xml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrIO))
}

func TestImportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestImporter().Import(ctx, strings.NewReader(sampleLog))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrCanceled))
}

func TestBusy(t *testing.T) {
	im := newTestImporter()
	pr, pw := io.Pipe()

	done := make(chan error, 1)
	go func() {
		_, err := im.Import(context.Background(), pr)
		done <- err
	}()

	require.Eventually(t, im.Busy, time.Second, time.Millisecond)

	path := writeLog(t, "log.xml", sampleLog)
	_, err := im.ImportFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrBusy))

	_, err = io.WriteString(pw, sampleLog)
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
	assert.False(t, im.Busy())

	_, err = im.ImportFile(context.Background(), path)
	assert.NoError(t, err)
}

func TestDecoNormalization(t *testing.T) {
	doc := `<divelog><dive number="1"><divecomputer>
<sample time="0:10 min" depth="10 m" tts="0:00 min" ndl="12:00 min"/>
<sample time="0:20 min" depth="12 m" in_deco="1"/>
<sample time="0:30 min" depth="12 m" in_deco="true" tts="7:00 min"/>
</divecomputer></dive></divelog>`

	dives, err := newTestImporter().Import(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)

	samples := dives[0].Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, 1.0, samples[1].TTS)
	assert.Equal(t, 0.0, samples[1].NDL)
	assert.Equal(t, 7.0, samples[2].TTS)
	assert.Equal(t, 0.0, samples[2].NDL)
}

func TestNumberedPressures(t *testing.T) {
	doc := `<divelog><dive number="1">
<cylinder start="200 bar" end="100 bar"/>
<cylinder/>
<divecomputer>
<sample time="0:10 min" pressure0="198 bar"/>
<sample time="0:20 min" pressure1="150 bar"/>
<sample time="0:30 min" depth="5 m"/>
</divecomputer></dive></divelog>`

	dives, err := newTestImporter().Import(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)

	samples := dives[0].Samples()
	require.Len(t, samples, 3)
	assert.False(t, samples[0].Pressures.Has(1), "no pressure known yet for the second cylinder")
	assert.Equal(t, 198.0, samples[1].Pressure(0))
	assert.Equal(t, 150.0, samples[1].Pressure(1))
	assert.Equal(t, 198.0, samples[2].Pressure(0))
	assert.Equal(t, 150.0, samples[2].Pressure(1))
}

func TestMalformedFieldsFallBack(t *testing.T) {
	doc := `<divelog><dive number="x1"><cylinder size="big" o2="lots" start="200 bar"/>
<divecomputer><sample time="0:30 min" depth="deep" temp="warm"/></divecomputer></dive></divelog>`

	dives, err := newTestImporter().Import(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)

	d := dives[0]
	assert.Equal(t, 0, d.Number())
	c, ok := d.Cylinder(0)
	require.True(t, ok)
	assert.Equal(t, 0.0, c.Size)
	assert.Equal(t, 21.0, c.O2Percent)

	s := d.Samples()[0]
	assert.Equal(t, 30.0, s.Timestamp)
	assert.Equal(t, 0.0, s.Depth)
	assert.Equal(t, 0.0, s.Temperature)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.xml"))
	assert.True(t, Supported("/x/y/B.SSRF"))
	assert.False(t, Supported("a.uddf"))
	assert.False(t, Supported("xml"))
}

func TestSummaryString(t *testing.T) {
	assert.Equal(t, "Dive #4", Summary{Number: "4"}.String())
	assert.Equal(t, "Dive #4 at Reef", Summary{Number: "4", Site: "Reef"}.String())
}
