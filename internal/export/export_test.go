package export

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/logger"
	"codeberg.org/mutker/unabara/internal/overlay"
	"codeberg.org/mutker/unabara/internal/units"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubRenderer struct {
	mu    sync.Mutex
	times []float64
}

func (r *stubRenderer) Render(s dive.Sample, _ []dive.Cylinder, _ overlay.DisplayConfig) (image.Image, error) {
	r.mu.Lock()
	r.times = append(r.times, s.Timestamp)
	r.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: uint8(s.Depth), A: 255})
	return img, nil
}

// gateRenderer blocks the first render until released.
type gateRenderer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gateRenderer) Render(dive.Sample, []dive.Cylinder, overlay.DisplayConfig) (image.Image, error) {
	r.once.Do(func() {
		close(r.started)
		<-r.release
	})
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func testSeries() *dive.Series {
	s := dive.NewSeries()
	s.SetName("Dive 12")
	s.SetLocation("Blue Hole")
	s.SetStartTime(time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC))
	s.AddCylinder(dive.Cylinder{Description: "AL80", Size: 11.1, O2Percent: 32, StartPressure: 200, EndPressure: 100})

	for i, depth := range []float64{0, 10, 20} {
		sample := dive.NewSample(float64(i))
		sample.Depth = depth
		sample.Temperature = 25
		sample.NDL = 99
		sample.Ceiling = float64(i)
		sample.SetPressure(0, 200-float64(i)*10)
		s.AddSample(sample)
	}
	return s
}

func progressRecorder() (ProgressFunc, func() []int) {
	var mu sync.Mutex
	var got []int
	return func(p int, _ string) {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
		}, func() []int {
			mu.Lock()
			defer mu.Unlock()
			return append([]int(nil), got...)
		}
}

func TestFrameTimes(t *testing.T) {
	tests := []struct {
		name            string
		start, end, fps float64
		want            []float64
	}{
		{"inclusive end", 0, 1, 2, []float64{0, 0.5, 1}},
		{"partial step", 10, 10.7, 2, []float64{10, 10.5}},
		{"single frame", 5, 5, 30, []float64{5}},
		{"fractional rate", 0, 0.3, 10, []float64{0, 0.1, 0.2, 0.3}},
		{"reversed", 2, 1, 10, nil},
		{"zero rate", 0, 1, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FrameTimes(tt.start, tt.end, tt.fps)
			if diff := cmp.Diff(tt.want, got, cmp.Comparer(func(a, b float64) bool {
				return a-b < 1e-9 && b-a < 1e-9
			})); diff != "" {
				t.Errorf("FrameTimes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "frame_000000.png", FrameName(0))
	assert.Equal(t, "frame_001234.png", FrameName(1234))
}

func TestJobValidate(t *testing.T) {
	r := &stubRenderer{}
	series := testSeries()

	assert.NoError(t, WholeDive(series, r, overlay.DefaultDisplayConfig(), 10).validate())

	bad := []Job{
		{Renderer: r, FrameRate: 1},
		{Series: series, FrameRate: 1},
		{Series: series, Renderer: r, FrameRate: 0},
		{Series: series, Renderer: r, FrameRate: 1, Start: 5, End: 1},
	}
	for _, job := range bad {
		assert.True(t, errors.HasCode(job.validate(), ErrInvalidJob))
	}
}

func TestImageExport(t *testing.T) {
	r := &stubRenderer{}
	dir := filepath.Join(t.TempDir(), "frames")
	progress, got := progressRecorder()

	job := WholeDive(testSeries(), r, overlay.DefaultDisplayConfig(), 2)
	job.Progress = progress

	n, err := NewImageExporter(logger.Nop()).Export(context.Background(), job, dir)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []float64{0, 0.5, 1, 1.5, 2}, r.times)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "frame_000004.png", entries[4].Name())

	f, err := os.Open(filepath.Join(dir, "frame_000002.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	red, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(10)*0x101, red)

	p := got()
	assert.Equal(t, 0, p[0])
	assert.Equal(t, 100, p[len(p)-1])
	for i := 1; i < len(p); i++ {
		assert.GreaterOrEqual(t, p[i], p[i-1])
	}
}

func TestImageExportCancelRemovesFrames(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := WholeDive(testSeries(), &stubRenderer{}, overlay.DefaultDisplayConfig(), 10)
	job.Progress = func(p int, _ string) {
		if p >= 20 {
			cancel()
		}
	}

	n, err := NewImageExporter(logger.Nop()).Export(ctx, job, dir)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrCanceled))
	assert.Zero(t, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImageExportBusy(t *testing.T) {
	gate := &gateRenderer{started: make(chan struct{}), release: make(chan struct{})}
	e := NewImageExporter(logger.Nop())
	job := WholeDive(testSeries(), gate, overlay.DefaultDisplayConfig(), 1)

	done := make(chan error, 1)
	go func() {
		_, err := e.Export(context.Background(), job, t.TempDir())
		done <- err
	}()

	<-gate.started
	_, err := e.Export(context.Background(), job, t.TempDir())
	assert.True(t, errors.HasCode(err, ErrBusy))

	close(gate.release)
	require.NoError(t, <-done)
}

func TestParseCodec(t *testing.T) {
	for name, want := range map[string]Codec{
		"h264":    CodecH264,
		"HEVC":    CodecHEVC,
		" prores": CodecProRes,
		"vp9":     CodecVP9,
	} {
		got, err := ParseCodec(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}

	_, err := ParseCodec("av1")
	assert.True(t, errors.HasCode(err, ErrUnknownCodec))
}

func TestCodecExtension(t *testing.T) {
	assert.Equal(t, "mp4", CodecH264.Extension())
	assert.Equal(t, "mp4", CodecHEVC.Extension())
	assert.Equal(t, "mov", CodecProRes.Extension())
	assert.Equal(t, "webm", CodecVP9.Extension())
}

func TestVideoArgs(t *testing.T) {
	e := NewVideoExporter(VideoOptions{
		Codec:    CodecVP9,
		BitrateK: 4000,
		Width:    1920,
		Height:   1080,
	}, logger.Nop())

	want := []string{
		"-y", "-framerate", "10", "-i", filepath.Join("/tmp/f", "frame_%06d.png"),
		"-vf", "scale=1920:1080",
		"-c:v", "libvpx-vp9", "-pix_fmt", "yuva420p", "-b:v", "4000k", "-deadline", "good", "-cpu-used", "2",
		"out.webm",
	}
	if diff := cmp.Diff(want, e.Args("/tmp/f", "out.webm", 10)); diff != "" {
		t.Errorf("Args() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "dive.webm", e.OutputName("dive"))

	d := NewVideoExporter(VideoOptions{}, logger.Nop())
	args := d.Args("f", "o.mp4", 29.97)
	assert.Equal(t, "29.97", args[2])
	assert.NotContains(t, args, "-vf")
	assert.Contains(t, args, "8000k")
	assert.Equal(t, "dive.mp4", d.OutputName("dive"))
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestVideoExport(t *testing.T) {
	ffmpeg := writeScript(t, `for last; do :; done
printf 'frame=1 time=00:00:01.00 bitrate=1\r' >&2
echo video > "$last"
`)
	tmp := t.TempDir()
	output := filepath.Join(t.TempDir(), "dive.mp4")
	progress, got := progressRecorder()

	e := NewVideoExporter(VideoOptions{FFmpegPath: ffmpeg, TempDir: tmp}, logger.Nop())
	job := WholeDive(testSeries(), &stubRenderer{}, overlay.DefaultDisplayConfig(), 1)
	job.Progress = progress

	require.NoError(t, e.Export(context.Background(), job, output))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "video\n", string(data))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "frame directory should be removed")

	p := got()
	assert.Contains(t, p, 50)
	assert.Contains(t, p, 66)
	assert.Equal(t, 100, p[len(p)-1])
}

func TestVideoExportEncoderFailure(t *testing.T) {
	ffmpeg := writeScript(t, `for last; do :; done
echo partial > "$last"
echo "Unknown encoder 'libx264'" >&2
exit 1
`)
	output := filepath.Join(t.TempDir(), "dive.mp4")
	e := NewVideoExporter(VideoOptions{FFmpegPath: ffmpeg, TempDir: t.TempDir()}, logger.Nop())
	job := WholeDive(testSeries(), &stubRenderer{}, overlay.DefaultDisplayConfig(), 1)

	err := e.Export(context.Background(), job, output)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrEncoder))
	assert.Contains(t, err.Error(), "Unknown encoder")
	assert.NoFileExists(t, output)
}

func TestVideoExportCancel(t *testing.T) {
	ffmpeg := writeScript(t, "exec sleep 30\n")
	tmp := t.TempDir()
	output := filepath.Join(t.TempDir(), "dive.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := NewVideoExporter(VideoOptions{
		FFmpegPath:  ffmpeg,
		TempDir:     tmp,
		KillTimeout: 200 * time.Millisecond,
	}, logger.Nop())
	job := WholeDive(testSeries(), &stubRenderer{}, overlay.DefaultDisplayConfig(), 1)
	job.Progress = func(p int, status string) {
		if p == 50 && strings.HasPrefix(status, "Encoding") {
			go func() {
				time.Sleep(100 * time.Millisecond)
				cancel()
			}()
		}
	}

	start := time.Now()
	err := e.Export(ctx, job, output)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrCanceled))
	assert.Less(t, time.Since(start), 10*time.Second)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoFileExists(t, output)
}

func TestVideoExportMissingEncoder(t *testing.T) {
	e := NewVideoExporter(VideoOptions{FFmpegPath: filepath.Join(t.TempDir(), "nope")}, logger.Nop())
	job := WholeDive(testSeries(), &stubRenderer{}, overlay.DefaultDisplayConfig(), 1)

	err := e.Export(context.Background(), job, filepath.Join(t.TempDir(), "out.mp4"))
	assert.True(t, errors.HasCode(err, ErrEncoderAbsent))
}

func TestEncoderOutput(t *testing.T) {
	var got []int
	w := &encoderOutput{duration: 10, report: func(p int, _ string) { got = append(got, p) }}

	_, _ = w.Write([]byte("ffmpeg version 6\nframe=  10 time=00:00:02.50 bit"))
	_, _ = w.Write([]byte("rate=1\rframe=  40 time=00:00:10.00 bitrate=1\rframe=  50 time=00:01:00.00\n"))

	assert.Equal(t, []int{62, 100, 100}, got)
	assert.Equal(t, 3, strings.Count(w.tail(), "\n"))

	for i := 0; i < 20; i++ {
		_, _ = w.Write([]byte("noise\n"))
	}
	assert.Len(t, w.lines, stderrTailLines)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "2024-05-01_091500_dive-12_blue-hole", BaseName(testSeries()))

	s := dive.NewSeries()
	assert.Equal(t, "dive", BaseName(s))

	s.SetName(strings.Repeat("a", 60))
	assert.Equal(t, strings.Repeat("a", maxNamePart), BaseName(s))
}

func TestWriteWorkbook(t *testing.T) {
	series := testSeries()
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, series, units.Imperial))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Samples", "Cylinders"}, f.GetSheetList())

	rows, err := f.GetRows("Samples")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Time (s)", rows[0][0])
	assert.Equal(t, "Depth (ft)", rows[0][1])
	assert.Equal(t, "AL80 (EAN32) (psi)", rows[0][7])
	assert.Equal(t, "2", rows[3][0])

	cyl, err := f.GetRows("Cylinders")
	require.NoError(t, err)
	require.Len(t, cyl, 2)
	assert.Equal(t, []string{"1", "AL80 (EAN32)"}, cyl[1][:2])
}

func TestWriteProfile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProfile(&buf, testSeries(), units.Metric))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	err = WriteProfile(&buf, dive.NewSeries(), units.Metric)
	assert.True(t, errors.HasCode(err, ErrInvalidJob))
}
