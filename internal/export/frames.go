package export

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"codeberg.org/mutker/unabara/internal/errors"
)

// FramePattern is the printf pattern of frame files, as understood by ffmpeg.
const FramePattern = "frame_%06d.png"

// FrameName is the file name of frame i.
func FrameName(i int) string {
	return fmt.Sprintf(FramePattern, i)
}

// FrameTimes lists the sample times start, start+1/fps, ... up to and
// including end.
func FrameTimes(start, end, fps float64) []float64 {
	if fps <= 0 || end < start {
		return nil
	}
	n := int(math.Floor((end-start)*fps+1e-9)) + 1
	times := make([]float64, n)
	for i := range times {
		times[i] = start + float64(i)/fps
	}
	return times
}

// renderFrames writes one PNG per frame time into dir and returns the paths
// written. progress is called after each frame with the number done.
func renderFrames(ctx context.Context, job Job, dir string, progress func(done, total int)) ([]string, error) {
	errFactory := errors.New()
	times := FrameTimes(job.Start, job.End, job.FrameRate)
	written := make([]string, 0, len(times))

	for i, t := range times {
		if err := ctx.Err(); err != nil {
			return written, errFactory.Wrap(ErrCanceled, err)
		}

		snap := job.Series.Snapshot(t)
		img, err := job.Renderer.Render(snap.Sample, snap.Cylinders, job.Display)
		if err != nil {
			return written, errFactory.Wrap(ErrRender, err)
		}

		path := filepath.Join(dir, FrameName(i))
		if err := writePNG(path, img); err != nil {
			return written, errFactory.WithData(ErrWrite, struct {
				Path  string
				Error string
			}{
				Path:  path,
				Error: err.Error(),
			})
		}
		written = append(written, path)

		if progress != nil {
			progress(i+1, len(times))
		}
	}
	return written, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
