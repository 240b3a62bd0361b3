package export

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/logger"
)

const dirPerm = 0o755

// ImageExporter writes an overlay frame sequence as numbered PNG files.
type ImageExporter struct {
	log  logger.Logger
	busy atomic.Bool
}

func NewImageExporter(log logger.Logger) *ImageExporter {
	return &ImageExporter{log: log}
}

// Export renders job into dir, creating it if needed, and returns the number
// of frames written. On failure or cancellation the frames written so far
// are removed.
func (e *ImageExporter) Export(ctx context.Context, job Job, dir string) (int, error) {
	errFactory := errors.New()

	if !e.busy.CompareAndSwap(false, true) {
		return 0, errFactory.New(ErrBusy)
	}
	defer e.busy.Store(false)

	if err := job.validate(); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return 0, errFactory.Wrap(ErrWrite, err)
	}

	job.report(0, "Generating frames")
	written, err := renderFrames(ctx, job, dir, func(done, total int) {
		job.report(done*100/total, fmt.Sprintf("Frame %d of %d", done, total))
	})
	if err != nil {
		removeAll(written, e.log)
		e.log.Warn().Err(err).Int("removed", len(written)).Msg("Image export aborted")
		return 0, err
	}

	e.log.Info().
		Str("dir", dir).
		Int("frames", len(written)).
		Msg("Image sequence exported")
	job.report(100, "Export complete")
	return len(written), nil
}

func removeAll(paths []string, log logger.Logger) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", p).Msg("Failed to remove partial output")
		}
	}
}
