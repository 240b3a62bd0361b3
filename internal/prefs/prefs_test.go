package prefs

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/overlay"
	"codeberg.org/mutker/unabara/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingUsesDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)

	assert.Equal(t, overlay.DefaultDisplayConfig(), p.DisplayConfig())
	assert.Equal(t, units.Metric, p.UnitSystem())
	assert.Equal(t, DefaultFrameRate, p.FrameRate())
	assert.Empty(t, p.LastImportPath())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.toml")
	p, err := Load(path)
	require.NoError(t, err)

	cfg := overlay.DefaultDisplayConfig()
	cfg.ShowTemperature = false
	cfg.ShowPO2Cell2 = true
	cfg.ShowCompositePO2 = true
	cfg.Font = overlay.Font{Family: "Mono", Size: 18, Bold: true}
	cfg.TextColor = color.RGBA{R: 0x12, G: 0xAB, B: 0xEF, A: 255}
	cfg.Units = units.Imperial
	cfg.TemplatePath = "/tmp/template.png"

	p.SetDisplayConfig(cfg)
	p.SetLastImportPath("/dives/log.ssrf")
	p.SetLastExportPath("/dives/out")
	p.SetFrameRate(30)
	require.NoError(t, p.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[overlay]")
	assert.Contains(t, string(data), "#12ABEF")

	q, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, q.DisplayConfig())
	assert.Equal(t, units.Imperial, q.UnitSystem())
	assert.Equal(t, 30.0, q.FrameRate())
	assert.Equal(t, "/dives/log.ssrf", q.LastImportPath())
	assert.Equal(t, "/dives/out", q.LastExportPath())
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[units]
system = "imperial"

[overlay]
show_depth = false
text_color = "not a color"
font_size = -3

[export]
frame_rate = 0
`), 0o600))

	p, err := Load(path)
	require.NoError(t, err)

	cfg := p.DisplayConfig()
	assert.False(t, cfg.ShowDepth)
	assert.True(t, cfg.ShowTime)
	assert.Equal(t, units.Imperial, cfg.Units)
	assert.Equal(t, overlay.DefaultDisplayConfig().TextColor, cfg.TextColor)
	assert.Equal(t, overlay.DefaultDisplayConfig().Font.Size, cfg.Font.Size)
	assert.Equal(t, DefaultFrameRate, p.FrameRate())
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is [not toml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrRead))
}

func TestColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 128, A: 255}, c)
	assert.Equal(t, "#FF8000", FormatColor(c))

	c, err = ParseColor("00ff00")
	require.NoError(t, err)
	assert.Equal(t, uint8(255), c.G)

	for _, bad := range []string{"", "#fff", "#gggggg", "#1234567"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	assert.Equal(t, "/cfg/unabara/preferences.toml", DefaultPath())
}
