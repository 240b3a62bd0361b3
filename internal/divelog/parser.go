package divelog

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/logger"
)

type mode int

const (
	modeAll mode = iota
	modeOne
	modeList
)

// stopParsing ends the walk early once the requested dive has been built.
type stopParsing struct{}

func (stopParsing) Error() string { return "stop parsing" }

// parser walks a Subsurface document with a pull decoder. Every element
// handler is entered just after its start tag and returns after consuming
// the matching end tag, so unknown elements are skipped whole.
type parser struct {
	ctx   context.Context
	dec   *xml.Decoder
	log   logger.Logger
	mode  mode
	want  int
	sites map[string]dive.Site

	dives     []*dive.Series
	summaries []Summary
}

func newParser(ctx context.Context, r io.Reader, log logger.Logger) *parser {
	return &parser{
		ctx:   ctx,
		dec:   xml.NewDecoder(r),
		log:   log,
		sites: make(map[string]dive.Site),
	}
}

func (p *parser) run() error {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if se, ok := tok.(xml.StartElement); ok {
			if err := p.element(se); err != nil {
				if _, stop := err.(stopParsing); stop {
					return nil
				}
				return err
			}
		}
	}
}

// token is Token with end of input inside an open element reported as
// truncation.
func (p *parser) token() (xml.Token, error) {
	tok, err := p.dec.Token()
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	return tok, err
}

// element dispatches the document-level records and descends into any
// container (divelog, dives, trip) looking for them.
func (p *parser) element(se xml.StartElement) error {
	switch se.Name.Local {
	case "divesites":
		return p.siteTable()
	case "dive":
		return p.dive(se)
	}

	for {
		tok, err := p.token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.element(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (p *parser) siteTable() error {
	for {
		tok, err := p.token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "site" {
				site := dive.Site{
					UUID:        attrValue(t, "uuid"),
					Name:        attrValue(t, "name"),
					GPS:         attrValue(t, "gps"),
					Description: attrValue(t, "description"),
				}
				if site.UUID != "" {
					p.sites[site.UUID] = site
				}
			}
			if err := p.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			p.log.Debug().Int("sites", len(p.sites)).Msg("Parsed dive sites")
			return nil
		}
	}
}

func (p *parser) dive(se xml.StartElement) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}

	numberText, hasNumber := attr(se, "number")
	numberText = strings.TrimSpace(numberText)

	switch p.mode {
	case modeOne:
		if !hasNumber || integer(numberText) != p.want {
			return p.dec.Skip()
		}
	case modeList:
		return p.summary(se, numberText, hasNumber)
	}

	series := dive.NewSeries()
	if hasNumber {
		series.SetNumber(integer(numberText))
		series.SetName("Dive #" + numberText)
	}
	if id, ok := attr(se, "divesiteid"); ok {
		series.SetSiteID(id)
		series.SetSiteName(p.sites[id].Name)
	}
	series.SetStartTime(startTime(se))

	state := &diveState{}
	var location string

	for {
		tok, err := p.token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "location":
				location, err = p.text()
			case "cylinder":
				err = p.cylinder(t, series)
			case "divecomputer":
				err = p.diveComputer(series, state)
			default:
				err = p.dec.Skip()
			}
			if err != nil {
				return err
			}
		case xml.EndElement:
			p.finishDive(series, location)
			if p.mode == modeOne {
				return stopParsing{}
			}
			return nil
		}
	}
}

func (p *parser) finishDive(series *dive.Series, location string) {
	if location == "" {
		location = series.SiteName()
	}
	series.SetLocation(location)

	if series.Len() == 0 && series.CylinderCount() > 0 {
		s := dive.NewSample(0)
		for _, c := range series.Cylinders() {
			if v := c.InitialPressure(); v > 0 {
				s.SetPressure(c.Index, v)
			}
		}
		series.AddSample(s)
	}

	p.log.Debug().
		Str("dive", series.Name()).
		Int("samples", series.Len()).
		Int("cylinders", series.CylinderCount()).
		Msg("Parsed dive")

	p.dives = append(p.dives, series)
}

// summary consumes a dive record collecting only what the dive list shows.
func (p *parser) summary(se xml.StartElement, number string, hasNumber bool) error {
	sum := Summary{
		Number: number,
		Date:   attrValue(se, "date"),
		Time:   attrValue(se, "time"),
	}
	if id, ok := attr(se, "divesiteid"); ok {
		sum.Site = p.sites[id].Name
	}

	for {
		tok, err := p.token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "location" {
				text, err := p.text()
				if err != nil {
					return err
				}
				if text != "" {
					sum.Site = text
				}
				continue
			}
			if err := p.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			if hasNumber {
				p.summaries = append(p.summaries, sum)
			}
			return nil
		}
	}
}

func (p *parser) cylinder(se xml.StartElement, series *dive.Series) error {
	c := dive.NewCylinder()
	for _, a := range se.Attr {
		switch a.Name.Local {
		case "description":
			c.Description = a.Value
		case "size":
			setIf(&c.Size, liters, a.Value)
		case "workpressure":
			setIf(&c.WorkPressure, bar, a.Value)
		case "o2":
			setIf(&c.O2Percent, percent, a.Value)
		case "he":
			setIf(&c.HePercent, percent, a.Value)
		case "start":
			setIf(&c.StartPressure, bar, a.Value)
		case "end":
			setIf(&c.EndPressure, bar, a.Value)
		}
	}
	series.AddCylinder(c)
	return p.dec.Skip()
}

func setIf(dst *float64, parse func(string) (float64, bool), s string) {
	if v, ok := parse(s); ok {
		*dst = v
	}
}

func (p *parser) diveComputer(series *dive.Series, state *diveState) error {
	cf := newCarryForward(series.Cylinders())

	for {
		tok, err := p.token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sample":
				p.sample(t, series, cf, state)
			case "temperature":
				if v, ok := attr(t, "water"); ok {
					setIf(&cf.temperature, celsius, v)
				}
			case "event":
				p.event(t, series)
			}
			if err := p.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (p *parser) event(se xml.StartElement, series *dive.Series) {
	if attrValue(se, "name") != "gaschange" {
		return
	}
	timeText, ok := attr(se, "time")
	if !ok {
		return
	}
	cylText, ok := attr(se, "cylinder")
	if !ok {
		return
	}
	ts, ok := seconds(timeText)
	if !ok {
		return
	}

	idx := integer(cylText)
	if !series.AddGasSwitch(ts, idx) {
		p.log.Debug().
			Float64("time", ts).
			Int("cylinder", idx).
			Msg("Ignoring gas switch to undeclared cylinder")
	}
}

// sample resolves one sample element, filling every field the element
// omits from the carried-forward state.
func (p *parser) sample(se xml.StartElement, series *dive.Series, cf *carryForward, state *diveState) {
	attrs := make(map[string]string, len(se.Attr))
	for _, a := range se.Attr {
		attrs[a.Name.Local] = a.Value
	}

	s := dive.NewSample(0)
	hasData := false
	read := func(name string, parse func(string) (float64, bool)) (float64, bool) {
		v, ok := attrs[name]
		if !ok {
			return 0, false
		}
		f, ok := parse(v)
		if ok {
			hasData = true
		}
		return f, ok
	}

	if v, ok := read("time", seconds); ok {
		s.Timestamp = v
	}
	if v, ok := read("depth", meters); ok {
		s.Depth = v
	}

	if v, ok := read("temp", celsius); ok {
		s.Temperature = v
		cf.temperature = v
	} else if cf.temperature > 0 {
		s.Temperature = cf.temperature
	}

	explicit := make(map[int]bool)
	if v, ok := read("pressure", bar); ok {
		s.SetPressure(0, v)
		cf.pressures[0] = v
		explicit[0] = true
	}
	for i := 0; i < maxPressureAttrs; i++ {
		if v, ok := read("pressure"+strconv.Itoa(i), bar); ok {
			s.SetPressure(i, v)
			cf.pressures[i] = v
			explicit[i] = true
		}
	}
	for i := 0; i < series.CylinderCount(); i++ {
		if last, ok := cf.pressures[i]; ok && !explicit[i] {
			s.SetPressure(i, last)
		}
	}

	for i := 0; i < maxPO2Sensors; i++ {
		if v, ok := read(fmt.Sprintf("sensor%d", i+1), bar); ok {
			s.SetPO2Sensor(i, v)
			cf.sensors[i] = v
		} else if last := cf.sensors[i]; last > 0 {
			s.SetPO2Sensor(i, last)
		}
	}

	if v, ok := read("tts", minutes); ok {
		s.TTS = v
		cf.tts = v
	} else if cf.tts > 0 {
		s.TTS = cf.tts
	}

	if v, ok := read("ndl", minutes); ok {
		s.NDL = v
		cf.ndl = v
	} else {
		s.NDL = cf.ndl
	}

	if truthy(attrs["in_deco"]) {
		s.NDL = 0
		cf.ndl = 0
		if s.TTS <= 0 {
			if cf.tts > 0 {
				s.TTS = cf.tts
			} else {
				s.TTS = 1
				cf.tts = 1
			}
		}
	}

	if v, ok := read("stopdepth", meters); ok {
		state.ceiling = v
	}
	s.Ceiling = state.ceiling

	if hasData {
		series.AddSample(s)
	}
}

// text returns the trimmed character data of the current element and
// consumes its end tag.
func (p *parser) text() (string, error) {
	var b strings.Builder
	for {
		tok, err := p.token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if err := p.dec.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return strings.TrimSpace(b.String()), nil
		}
	}
}

func attr(se xml.StartElement, name string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func attrValue(se xml.StartElement, name string) string {
	v, _ := attr(se, name)
	return v
}

// startTime combines the dive's date and time attributes. Logs record local
// wall-clock time without a zone, so the result is in UTC as written.
func startTime(se xml.StartElement) time.Time {
	date, ok := attr(se, "date")
	if !ok {
		return time.Time{}
	}
	date = strings.TrimSpace(date)
	if clock, ok := attr(se, "time"); ok {
		if t, err := time.Parse("2006-01-02 15:04:05", date+" "+strings.TrimSpace(clock)); err == nil {
			return t
		}
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t
	}
	return time.Time{}
}
