package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/logger"
	"github.com/google/uuid"
)

const (
	defaultBitrateK    = 8000
	defaultKillTimeout = 3 * time.Second
	stderrTailLines    = 10
)

// VideoOptions configures the external encoder.
type VideoOptions struct {
	FFmpegPath string
	Codec      Codec
	BitrateK   int
	// Width and Height rescale the output when both are positive.
	Width  int
	Height int
	// KillTimeout is how long a canceled encoder may take to exit after
	// SIGTERM before it is killed.
	KillTimeout time.Duration
	// TempDir holds the per-run frame directory. Empty means os.TempDir.
	TempDir string
}

func DefaultVideoOptions() VideoOptions {
	return VideoOptions{
		FFmpegPath:  "ffmpeg",
		Codec:       CodecH264,
		BitrateK:    defaultBitrateK,
		KillTimeout: defaultKillTimeout,
	}
}

// VideoExporter renders frames to a temporary directory and encodes them
// with ffmpeg. Frame generation accounts for the first half of the reported
// progress and encoding for the second.
type VideoExporter struct {
	opts VideoOptions
	log  logger.Logger
	busy atomic.Bool
}

func NewVideoExporter(opts VideoOptions, log logger.Logger) *VideoExporter {
	if opts.Codec == "" {
		opts.Codec = CodecH264
	}
	if opts.BitrateK <= 0 {
		opts.BitrateK = defaultBitrateK
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = defaultKillTimeout
	}
	return &VideoExporter{opts: opts, log: log}
}

// Args builds the ffmpeg argument list for frames in dir.
func (e *VideoExporter) Args(dir, output string, fps float64) []string {
	args := []string{
		"-y",
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", filepath.Join(dir, FramePattern),
	}
	if e.opts.Width > 0 && e.opts.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", e.opts.Width, e.opts.Height))
	}
	args = append(args, e.opts.Codec.Args(e.opts.BitrateK)...)
	return append(args, output)
}

// OutputName appends the codec's container extension to base.
func (e *VideoExporter) OutputName(base string) string {
	return base + "." + e.opts.Codec.Extension()
}

// Export renders job and encodes it to output. The frame directory is
// always removed; output is removed unless the export succeeds.
func (e *VideoExporter) Export(ctx context.Context, job Job, output string) error {
	errFactory := errors.New()

	if !e.busy.CompareAndSwap(false, true) {
		return errFactory.New(ErrBusy)
	}
	defer e.busy.Store(false)

	if err := job.validate(); err != nil {
		return err
	}

	ffmpeg, err := exec.LookPath(e.opts.FFmpegPath)
	if err != nil {
		return errFactory.Wrap(ErrEncoderAbsent, err)
	}

	parent := e.opts.TempDir
	if parent == "" {
		parent = os.TempDir()
	}
	frames := filepath.Join(parent, "unabara-"+uuid.NewString())
	if err := os.MkdirAll(frames, dirPerm); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}
	defer func() {
		if err := os.RemoveAll(frames); err != nil {
			e.log.Warn().Err(err).Str("dir", frames).Msg("Failed to remove frame directory")
		}
	}()

	job.report(0, "Generating frames")
	written, err := renderFrames(ctx, job, frames, func(done, total int) {
		job.report(done*50/total, fmt.Sprintf("Frame %d of %d", done, total))
	})
	if err != nil {
		return err
	}

	duration := float64(len(written)) / job.FrameRate
	if err := e.encode(ctx, ffmpeg, e.Args(frames, output, job.FrameRate), duration, job); err != nil {
		if rmErr := os.Remove(output); rmErr != nil && !os.IsNotExist(rmErr) {
			e.log.Warn().Err(rmErr).Str("path", output).Msg("Failed to remove partial video")
		}
		return err
	}

	e.log.Info().
		Str("output", output).
		Str("codec", string(e.opts.Codec)).
		Int("frames", len(written)).
		Msg("Video exported")
	job.report(100, "Export complete")
	return nil
}

func (e *VideoExporter) encode(ctx context.Context, path string, args []string, duration float64, job Job) error {
	errFactory := errors.New()

	stderr := &encoderOutput{duration: duration, report: job.report}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = e.opts.KillTimeout

	e.log.Debug().Str("command", path+" "+strings.Join(args, " ")).Msg("Starting encoder")
	job.report(50, "Encoding video")

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.log.Info().Msg("Encoder stopped on cancellation")
		return errFactory.Wrap(ErrCanceled, ctxErr)
	}
	if err != nil {
		return errFactory.WithData(ErrEncoder, struct {
			Error  string
			Output string
		}{
			Error:  err.Error(),
			Output: stderr.tail(),
		})
	}
	return nil
}

var reEncodedTime = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

// encoderOutput scans ffmpeg's status lines for the encoded timestamp and
// keeps the last few lines for error reports. ffmpeg redraws its status
// line with carriage returns, so both \r and \n end a line.
type encoderOutput struct {
	duration float64
	report   func(int, string)
	buf      []byte
	lines    []string
}

func (w *encoderOutput) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		w.line(strings.TrimSpace(string(w.buf[:i])))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *encoderOutput) line(s string) {
	if s == "" {
		return
	}
	w.lines = append(w.lines, s)
	if len(w.lines) > stderrTailLines {
		w.lines = w.lines[1:]
	}

	m := reEncodedTime.FindStringSubmatch(s)
	if m == nil || w.duration <= 0 {
		return
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.ParseFloat(m[3], 64)
	done := float64(h*3600+mins*60) + sec

	w.report(50+encodePercent(done, w.duration), "Encoding video")
}

func encodePercent(done, total float64) int {
	p := int(done / total * 50)
	if p > 50 {
		return 50
	}
	if p < 0 {
		return 0
	}
	return p
}

func (w *encoderOutput) tail() string {
	return strings.Join(w.lines, "\n")
}
