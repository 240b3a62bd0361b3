package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/export"
	"codeberg.org/mutker/unabara/internal/overlay"
	"codeberg.org/mutker/unabara/internal/units"
)

type exportOptions struct {
	number   int
	out      string
	start    float64
	end      float64
	fps      float64
	units    string
	template string
	width    int
	height   int
}

func (a *app) export(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New().WithMessage(errors.ErrInvalidArgument,
			"usage: export images|video|sheet|profile <source> [flags]")
	}
	kind := args[0]

	var o exportOptions
	fs := newFlagSet("export " + kind)
	fs.IntVar(&o.number, "dive", 0, "Dive number within the log")
	fs.StringVarP(&o.out, "out", "o", "", "Output file or directory")
	fs.Float64Var(&o.start, "start", 0, "Start of the exported range in seconds")
	fs.Float64Var(&o.end, "end", -1, "End of the exported range in seconds (default: end of dive)")
	fs.Float64Var(&o.fps, "fps", 0, "Frames per second (default: preference)")
	fs.StringVar(&o.units, "units", "", "metric or imperial (default: preference)")
	fs.StringVar(&o.template, "template", "", "Overlay background PNG (default: preference)")
	fs.IntVar(&o.width, "width", 0, "Scale video to this width")
	fs.IntVar(&o.height, "height", 0, "Scale video to this height")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "export needs exactly one source")
	}

	series, err := a.loadSeries(ctx, fs.Arg(0), o.number)
	if err != nil {
		return err
	}

	display := a.prefs.DisplayConfig()
	if fs.Changed("units") {
		display.Units = units.ParseSystem(o.units)
	}
	if fs.Changed("template") {
		display.TemplatePath = o.template
	}

	base := export.BaseName(series)
	switch kind {
	case "images":
		return a.exportImages(ctx, series, display, o, base)
	case "video":
		return a.exportVideo(ctx, series, display, o, base)
	case "sheet":
		return a.writeFile(o.out, base+".xlsx", func(f *os.File) error {
			return export.WriteWorkbook(f, series, display.Units)
		})
	case "profile":
		return a.writeFile(o.out, base+"_profile.png", func(f *os.File) error {
			return export.WriteProfile(f, series, display.Units)
		})
	default:
		return errors.New().WithData(errors.ErrInvalidArgument, struct{ Kind string }{kind})
	}
}

func (a *app) job(series *dive.Series, display overlay.DisplayConfig, o exportOptions) export.Job {
	fps := o.fps
	if fps <= 0 {
		fps = a.prefs.FrameRate()
	}
	job := export.WholeDive(series, overlay.NewTextRenderer(), display, fps)
	job.Start = o.start
	if o.end >= 0 {
		job.End = o.end
	}
	job.Progress = progressPrinter()
	return job
}

func (a *app) exportImages(ctx context.Context, series *dive.Series, display overlay.DisplayConfig, o exportOptions, base string) error {
	dir := a.outputPath(o.out, base)

	n, err := export.NewImageExporter(a.log).Export(ctx, a.job(series, display, o), dir)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	a.prefs.SetLastExportPath(dir)
	fmt.Printf("%d frames written to %s\n", n, dir)
	return nil
}

func (a *app) exportVideo(ctx context.Context, series *dive.Series, display overlay.DisplayConfig, o exportOptions, base string) error {
	codec, err := export.ParseCodec(a.cfg.VideoCodec)
	if err != nil {
		return err
	}

	e := export.NewVideoExporter(export.VideoOptions{
		FFmpegPath:  a.cfg.FFmpegPath,
		Codec:       codec,
		BitrateK:    a.cfg.VideoBitrate,
		Width:       o.width,
		Height:      o.height,
		KillTimeout: time.Duration(a.cfg.KillTimeout) * time.Second,
	}, a.log)

	output := a.outputPath(o.out, e.OutputName(base))
	err = e.Export(ctx, a.job(series, display, o), output)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	a.prefs.SetLastExportPath(output)
	fmt.Printf("Video written to %s\n", output)
	return nil
}

// writeFile creates out (or name inside the last export directory) and
// removes it again if write fails.
func (a *app) writeFile(out, name string, write func(*os.File) error) error {
	path := a.outputPath(out, name)

	f, err := os.Create(path)
	if err != nil {
		return errors.New().Wrap(errors.ErrIO, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return errors.New().Wrap(errors.ErrIO, err)
	}

	a.prefs.SetLastExportPath(path)
	fmt.Printf("Written %s\n", path)
	return nil
}

// outputPath is out when given, else name next to the previous export.
func (a *app) outputPath(out, name string) string {
	if out != "" {
		return out
	}
	dir := "."
	if last := a.prefs.LastExportPath(); last != "" {
		dir = filepath.Dir(last)
	}
	return filepath.Join(dir, name)
}

func progressPrinter() export.ProgressFunc {
	last := -1
	return func(percent int, status string) {
		if percent == last {
			return
		}
		last = percent
		fmt.Fprintf(os.Stderr, "\r%3d%% %-24s", percent, status)
	}
}
