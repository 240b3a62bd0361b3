// Package prefs persists display and export defaults between runs as a flat
// TOML key/value file. Preferences are read once at startup and written
// back on shutdown.
package prefs

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/overlay"
	"codeberg.org/mutker/unabara/internal/units"
	"github.com/spf13/viper"
)

const (
	KeyLastImport       = "paths.last_import"
	KeyLastExport       = "paths.last_export"
	KeyTemplate         = "overlay.template"
	KeyFontFamily       = "overlay.font_family"
	KeyFontSize         = "overlay.font_size"
	KeyFontBold         = "overlay.font_bold"
	KeyTextColor        = "overlay.text_color"
	KeyShowDepth        = "overlay.show_depth"
	KeyShowTemperature  = "overlay.show_temperature"
	KeyShowNDL          = "overlay.show_ndl"
	KeyShowPressure     = "overlay.show_pressure"
	KeyShowTime         = "overlay.show_time"
	KeyShowPO2Cell1     = "overlay.show_po2_cell1"
	KeyShowPO2Cell2     = "overlay.show_po2_cell2"
	KeyShowPO2Cell3     = "overlay.show_po2_cell3"
	KeyShowCompositePO2 = "overlay.show_composite_po2"
	KeyUnitSystem       = "units.system"
	KeyFrameRate        = "export.frame_rate"

	DefaultFrameRate = 10.0

	fileName = "preferences.toml"
	dirPerm  = 0o755
)

const (
	ErrRead  = errors.ErrReadConfig
	ErrWrite = errors.ErrIO
)

// DefaultPath is $XDG_CONFIG_HOME/unabara/preferences.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "unabara", fileName)
}

// Preferences is safe for concurrent use.
type Preferences struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

// Load reads preferences from path. A missing file yields the defaults.
func Load(path string) (*Preferences, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	p := &Preferences{v: v, path: path}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, errors.New().Wrap(ErrRead, err)
	}
	defer f.Close()

	if err := v.ReadConfig(f); err != nil {
		return nil, errors.New().WithData(ErrRead, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}
	return p, nil
}

func setDefaults(v *viper.Viper) {
	d := overlay.DefaultDisplayConfig()

	v.SetDefault(KeyLastImport, "")
	v.SetDefault(KeyLastExport, "")
	v.SetDefault(KeyTemplate, d.TemplatePath)
	v.SetDefault(KeyFontFamily, d.Font.Family)
	v.SetDefault(KeyFontSize, d.Font.Size)
	v.SetDefault(KeyFontBold, d.Font.Bold)
	v.SetDefault(KeyTextColor, FormatColor(d.TextColor))
	v.SetDefault(KeyShowDepth, d.ShowDepth)
	v.SetDefault(KeyShowTemperature, d.ShowTemperature)
	v.SetDefault(KeyShowNDL, d.ShowNDL)
	v.SetDefault(KeyShowPressure, d.ShowPressure)
	v.SetDefault(KeyShowTime, d.ShowTime)
	v.SetDefault(KeyShowPO2Cell1, d.ShowPO2Cell1)
	v.SetDefault(KeyShowPO2Cell2, d.ShowPO2Cell2)
	v.SetDefault(KeyShowPO2Cell3, d.ShowPO2Cell3)
	v.SetDefault(KeyShowCompositePO2, d.ShowCompositePO2)
	v.SetDefault(KeyUnitSystem, d.Units.String())
	v.SetDefault(KeyFrameRate, DefaultFrameRate)
}

// Path is where Save writes.
func (p *Preferences) Path() string {
	return p.path
}

// Save writes every preference, including defaults, to Path.
func (p *Preferences) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p.path), dirPerm); err != nil {
		return errors.New().Wrap(ErrWrite, err)
	}
	if err := p.v.WriteConfigAs(p.path); err != nil {
		return errors.New().WithData(ErrWrite, struct {
			Path  string
			Error string
		}{
			Path:  p.path,
			Error: err.Error(),
		})
	}
	return nil
}

func (p *Preferences) getString(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.GetString(key)
}

func (p *Preferences) set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.v.Set(key, value)
}

func (p *Preferences) LastImportPath() string     { return p.getString(KeyLastImport) }
func (p *Preferences) SetLastImportPath(s string) { p.set(KeyLastImport, s) }
func (p *Preferences) LastExportPath() string     { return p.getString(KeyLastExport) }
func (p *Preferences) SetLastExportPath(s string) { p.set(KeyLastExport, s) }

func (p *Preferences) UnitSystem() units.System {
	return units.ParseSystem(p.getString(KeyUnitSystem))
}

func (p *Preferences) SetUnitSystem(s units.System) {
	p.set(KeyUnitSystem, s.String())
}

// FrameRate falls back to DefaultFrameRate for non-positive values.
func (p *Preferences) FrameRate() float64 {
	p.mu.RLock()
	fps := p.v.GetFloat64(KeyFrameRate)
	p.mu.RUnlock()
	if fps <= 0 {
		return DefaultFrameRate
	}
	return fps
}

func (p *Preferences) SetFrameRate(fps float64) {
	p.set(KeyFrameRate, fps)
}

// DisplayConfig assembles the overlay configuration from the stored keys.
func (p *Preferences) DisplayConfig() overlay.DisplayConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v := p.v
	d := overlay.DefaultDisplayConfig()

	size := v.GetFloat64(KeyFontSize)
	if size <= 0 {
		size = d.Font.Size
	}
	textColor, err := ParseColor(v.GetString(KeyTextColor))
	if err != nil {
		textColor = d.TextColor
	}

	return overlay.DisplayConfig{
		ShowDepth:        v.GetBool(KeyShowDepth),
		ShowTemperature:  v.GetBool(KeyShowTemperature),
		ShowNDL:          v.GetBool(KeyShowNDL),
		ShowPressure:     v.GetBool(KeyShowPressure),
		ShowTime:         v.GetBool(KeyShowTime),
		ShowPO2Cell1:     v.GetBool(KeyShowPO2Cell1),
		ShowPO2Cell2:     v.GetBool(KeyShowPO2Cell2),
		ShowPO2Cell3:     v.GetBool(KeyShowPO2Cell3),
		ShowCompositePO2: v.GetBool(KeyShowCompositePO2),
		Font: overlay.Font{
			Family: v.GetString(KeyFontFamily),
			Size:   size,
			Bold:   v.GetBool(KeyFontBold),
		},
		TextColor:    textColor,
		Units:        units.ParseSystem(v.GetString(KeyUnitSystem)),
		TemplatePath: v.GetString(KeyTemplate),
	}
}

// SetDisplayConfig stores every field of cfg.
func (p *Preferences) SetDisplayConfig(cfg overlay.DisplayConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.v
	v.Set(KeyShowDepth, cfg.ShowDepth)
	v.Set(KeyShowTemperature, cfg.ShowTemperature)
	v.Set(KeyShowNDL, cfg.ShowNDL)
	v.Set(KeyShowPressure, cfg.ShowPressure)
	v.Set(KeyShowTime, cfg.ShowTime)
	v.Set(KeyShowPO2Cell1, cfg.ShowPO2Cell1)
	v.Set(KeyShowPO2Cell2, cfg.ShowPO2Cell2)
	v.Set(KeyShowPO2Cell3, cfg.ShowPO2Cell3)
	v.Set(KeyShowCompositePO2, cfg.ShowCompositePO2)
	v.Set(KeyFontFamily, cfg.Font.Family)
	v.Set(KeyFontSize, cfg.Font.Size)
	v.Set(KeyFontBold, cfg.Font.Bold)
	v.Set(KeyTextColor, FormatColor(cfg.TextColor))
	v.Set(KeyUnitSystem, cfg.Units.String())
	v.Set(KeyTemplate, cfg.TemplatePath)
}

// FormatColor renders c as "#RRGGBB".
func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ParseColor accepts "#RRGGBB" with or without the hash.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	if len(s) != 6 {
		return color.RGBA{}, errors.New().WithData(errors.ErrInvalidArgument, struct{ Color string }{s})
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, errors.New().WithData(errors.ErrInvalidArgument, struct{ Color string }{s})
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
