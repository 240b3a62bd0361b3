package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/divelog"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/export"
	"codeberg.org/mutker/unabara/internal/overlay"
	"codeberg.org/mutker/unabara/internal/pid"
	"codeberg.org/mutker/unabara/internal/store"
	"codeberg.org/mutker/unabara/internal/units"
	"github.com/spf13/pflag"
)

const catalogPrefix = "catalog:"

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.New().Wrap(errors.ErrInvalidArgument, err)
	}
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "usage: list <log>")
	}

	lines, err := divelog.NewImporter(a.log).ListDives(ctx, args[0])
	if err != nil {
		return err
	}
	a.prefs.SetLastImportPath(args[0])

	if len(lines) == 0 {
		fmt.Println("No numbered dives found.")
		return nil
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	fs := newFlagSet("show")
	number := fs.Int("dive", 0, "Dive number within the log")
	step := fs.Duration("step", time.Minute, "Interval between profile rows")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "usage: show <source> [--dive N]")
	}

	series, err := a.loadSeries(ctx, fs.Arg(0), *number)
	if err != nil {
		return err
	}
	return printDive(os.Stdout, series, a.prefs.DisplayConfig(), step.Seconds())
}

func printDive(w io.Writer, series *dive.Series, cfg overlay.DisplayConfig, step float64) error {
	conv := units.NewConverter(cfg.Units)
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s", series.Name())
	if loc := series.Location(); loc != "" {
		fmt.Fprintf(bw, " at %s", loc)
	}
	fmt.Fprintln(bw)
	if start := series.StartTime(); !start.IsZero() {
		fmt.Fprintf(bw, "Started:  %s\n", start.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(bw, "Duration: %s\n", overlay.FormatClock(series.Duration()))
	fmt.Fprintf(bw, "Max depth: %s\n", conv.FormatDepth(series.MaxDepth()))
	if t := series.MinTemperature(); t > 0 {
		fmt.Fprintf(bw, "Min temp: %s\n", conv.FormatTemperature(t))
	}
	for i := 0; i < series.CylinderCount(); i++ {
		c, _ := series.Cylinder(i)
		fmt.Fprintf(bw, "Cylinder %d: %s, %s -> %s\n", i+1, series.CylinderDescription(i),
			conv.FormatPressure(c.StartPressure), conv.FormatPressure(c.EndPressure))
	}
	for _, sw := range series.GasSwitches() {
		fmt.Fprintf(bw, "Gas switch at %s to %s\n", overlay.FormatClock(sw.Timestamp),
			series.CylinderDescription(sw.CylinderIndex))
	}
	fmt.Fprintln(bw)

	if step <= 0 {
		step = 60
	}
	tw := tabwriter.NewWriter(bw, 0, 4, 2, ' ', 0)
	for _, t := range export.FrameTimes(0, series.Duration(), 1/step) {
		snap := series.Snapshot(t)
		var cols []string
		for _, f := range overlay.Fields(snap.Sample, snap.Cylinders, cfg) {
			cols = append(cols, f.Label+" "+f.Value)
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return bw.Flush()
}

func (a *app) importLog(ctx context.Context, args []string) error {
	fs := newFlagSet("import")
	number := fs.Int("dive", 0, "Import only this dive number")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "usage: import <log> [--dive N]")
	}
	path := fs.Arg(0)

	im := divelog.NewImporter(a.log)
	var dives []*dive.Series
	if *number > 0 {
		series, err := im.ImportDive(ctx, path, *number)
		if err != nil {
			return err
		}
		dives = append(dives, series)
	} else {
		all, err := im.ImportFile(ctx, path)
		if err != nil {
			return err
		}
		dives = all
	}
	a.prefs.SetLastImportPath(path)

	return a.withCatalog(true, func(c store.Catalog) error {
		for _, series := range dives {
			id, err := c.Save(ctx, series)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", id, series.Name())
		}
		return nil
	})
}

func (a *app) catalog(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "usage: catalog list | delete <id>")
	}

	switch args[0] {
	case "list":
		return a.withCatalog(false, func(c store.Catalog) error {
			entries, err := c.List(ctx)
			if err != nil {
				return err
			}
			conv := units.NewConverter(a.prefs.UnitSystem())
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDIVE\tDATE\tLOCATION\tDURATION\tMAX DEPTH")
			for _, e := range entries {
				date := ""
				if !e.StartTime.IsZero() {
					date = e.StartTime.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, date, e.Location,
					overlay.FormatClock(e.Duration), conv.FormatDepth(e.MaxDepth))
			}
			return tw.Flush()
		})
	case "delete":
		if len(args) != 2 {
			return errors.New().WithMessage(errors.ErrInvalidArgument, "usage: catalog delete <id>")
		}
		return a.withCatalog(true, func(c store.Catalog) error {
			return c.Delete(ctx, args[1])
		})
	default:
		return errors.New().WithData(errors.ErrInvalidArgument, struct{ Command string }{"catalog " + args[0]})
	}
}

// withCatalog opens the catalog for fn. Writers hold the catalog's PID lock.
func (a *app) withCatalog(write bool, fn func(store.Catalog) error) error {
	cfg := store.Config{Path: a.cfg.StorePath}

	if write {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return errors.New().Wrap(errors.ErrIO, err)
		}
		lock := pid.LockPath(cfg.Path)
		if err := pid.Write(lock); err != nil {
			return err
		}
		defer func() {
			if err := pid.Remove(lock); err != nil {
				a.log.Warn().Err(err).Msg("Failed to remove catalog lock")
			}
		}()
	}

	c, err := store.NewRepository(cfg, a.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close catalog")
		}
	}()

	return fn(c)
}

// loadSeries resolves a log path or catalog:<id> to one dive. Without a
// dive number the first dive of a log is used.
func (a *app) loadSeries(ctx context.Context, source string, number int) (*dive.Series, error) {
	if id, ok := strings.CutPrefix(source, catalogPrefix); ok {
		var series *dive.Series
		err := a.withCatalog(false, func(c store.Catalog) error {
			var err error
			series, err = c.Load(ctx, id)
			return err
		})
		return series, err
	}

	im := divelog.NewImporter(a.log)
	a.prefs.SetLastImportPath(source)
	if number > 0 {
		return im.ImportDive(ctx, source, number)
	}

	dives, err := im.ImportFile(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(dives) > 1 {
		a.log.Info().Int("dives", len(dives)).Msg("Log has several dives, using the first; pass --dive to choose")
	}
	return dives[0], nil
}
