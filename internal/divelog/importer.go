// Package divelog imports dive profiles from Subsurface XML logs.
//
// An Importer runs one operation at a time; a call made while another is in
// flight fails immediately with ErrBusy instead of waiting. A failed import
// returns no dives at all, even if some were fully parsed before the error.
package divelog

import (
	"context"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/logger"
)

// Extensions lists the file extensions accepted by the file-based operations.
var Extensions = []string{".xml", ".ssrf"}

// Summary is one entry of a dive list.
type Summary struct {
	Number string
	Date   string
	Time   string
	Site   string
}

// String renders "Dive #N - date time at site", omitting absent parts.
func (s Summary) String() string {
	var b strings.Builder
	b.WriteString("Dive #")
	b.WriteString(s.Number)
	if s.Date != "" {
		b.WriteString(" - ")
		b.WriteString(s.Date)
	}
	if s.Time != "" {
		b.WriteString(" ")
		b.WriteString(s.Time)
	}
	if s.Site != "" {
		b.WriteString(" at ")
		b.WriteString(s.Site)
	}
	return b.String()
}

type Importer struct {
	log  logger.Logger
	busy atomic.Bool
}

func NewImporter(log logger.Logger) *Importer {
	return &Importer{log: log}
}

// Busy reports whether an operation is in flight.
func (im *Importer) Busy() bool {
	return im.busy.Load()
}

// ImportFile parses every dive in the log at path.
func (im *Importer) ImportFile(ctx context.Context, path string) ([]*dive.Series, error) {
	var dives []*dive.Series
	err := im.withFile(path, func(r io.Reader) error {
		var err error
		dives, err = im.importAll(ctx, r)
		return err
	})
	return dives, err
}

// Import parses every dive in a document read from r.
func (im *Importer) Import(ctx context.Context, r io.Reader) ([]*dive.Series, error) {
	if !im.busy.CompareAndSwap(false, true) {
		return nil, errors.New().New(ErrBusy)
	}
	defer im.busy.Store(false)

	return im.importAll(ctx, r)
}

// ImportDive parses only the dive whose number attribute equals number and
// stops reading once it is complete.
func (im *Importer) ImportDive(ctx context.Context, path string, number int) (*dive.Series, error) {
	var series *dive.Series
	err := im.withFile(path, func(r io.Reader) error {
		p := newParser(ctx, r, im.log)
		p.mode = modeOne
		p.want = number
		if err := im.parse(p); err != nil {
			return err
		}
		if len(p.dives) == 0 {
			return errors.New().WithData(ErrNotFound, struct {
				Path   string
				Number int
			}{
				Path:   path,
				Number: number,
			})
		}
		series = p.dives[0]
		return nil
	})
	return series, err
}

// ListDives returns one summary line per numbered dive in the log without
// building profiles. A log without dives yields an empty list.
func (im *Importer) ListDives(ctx context.Context, path string) ([]string, error) {
	summaries, err := im.Summaries(ctx, path)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(summaries))
	for i, s := range summaries {
		lines[i] = s.String()
	}
	return lines, nil
}

// Summaries is ListDives returning structured entries.
func (im *Importer) Summaries(ctx context.Context, path string) ([]Summary, error) {
	var summaries []Summary
	err := im.withFile(path, func(r io.Reader) error {
		p := newParser(ctx, r, im.log)
		p.mode = modeList
		if err := im.parse(p); err != nil {
			return err
		}
		summaries = p.summaries
		return nil
	})
	return summaries, err
}

func (im *Importer) importAll(ctx context.Context, r io.Reader) ([]*dive.Series, error) {
	p := newParser(ctx, r, im.log)
	if err := im.parse(p); err != nil {
		return nil, err
	}
	if len(p.dives) == 0 {
		return nil, errors.New().WithMessage(ErrNotFound, "no dives found in log")
	}

	im.log.Info().Int("dives", len(p.dives)).Msg("Imported dive log")
	return p.dives, nil
}

// parse runs p and maps its failure onto the ingestion error codes.
func (im *Importer) parse(p *parser) error {
	err := p.run()
	if err == nil {
		return nil
	}

	errFactory := errors.New()
	if ctxErr := p.ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return errFactory.Wrap(ErrCanceled, err)
	}

	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		im.log.Warn().Err(err).Msg("Malformed dive log")
		return errFactory.Wrap(ErrFormat, err)
	}
	return errFactory.Wrap(ErrIO, err)
}

// withFile guards fn with the busy flag and hands it the opened log.
func (im *Importer) withFile(path string, fn func(io.Reader) error) error {
	errFactory := errors.New()

	if !im.busy.CompareAndSwap(false, true) {
		return errFactory.New(ErrBusy)
	}
	defer im.busy.Store(false)

	if !Supported(path) {
		return errFactory.WithData(ErrFormat, struct {
			Path      string
			Extension string
		}{
			Path:      path,
			Extension: filepath.Ext(path),
		})
	}

	f, err := os.Open(path)
	if err != nil {
		return errFactory.Wrap(ErrIO, err)
	}
	defer f.Close()

	im.log.Debug().Str("path", path).Msg("Reading dive log")
	return fn(f)
}

// Supported reports whether path has an importable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
