package overlay

import (
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"sync"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	defaultWidth  = 640
	defaultHeight = 120
	valueScale    = 1.6
	dpi           = 72
)

var defaultBackground = color.RGBA{A: 180}

// TextRenderer lays the enabled readouts out in equal columns, label above
// value, over a template image or a translucent black strip.
type TextRenderer struct {
	mu        sync.Mutex
	templates map[string]image.Image
	fonts     map[string]*opentype.Font
}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{
		templates: make(map[string]image.Image),
		fonts:     make(map[string]*opentype.Font),
	}
}

func (r *TextRenderer) Render(sample dive.Sample, cylinders []dive.Cylinder, cfg DisplayConfig) (image.Image, error) {
	bg, err := r.background(cfg.TemplatePath)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(bg.Bounds())
	draw.Draw(canvas, canvas.Bounds(), bg, bg.Bounds().Min, draw.Src)

	fields := Fields(sample, cylinders, cfg)
	if len(fields) == 0 {
		return canvas, nil
	}

	labelFace, err := r.face(cfg.Font, cfg.Font.Size)
	if err != nil {
		return nil, err
	}
	defer labelFace.Close()
	valueFace, err := r.face(cfg.Font, cfg.Font.Size*valueScale)
	if err != nil {
		return nil, err
	}
	defer valueFace.Close()

	b := canvas.Bounds()
	colWidth := b.Dx() / len(fields)
	src := image.NewUniform(cfg.TextColor)

	for i, f := range fields {
		center := b.Min.X + i*colWidth + colWidth/2
		drawCentered(canvas, src, labelFace, f.Label, center, b.Min.Y+b.Dy()*2/5)
		drawCentered(canvas, src, valueFace, f.Value, center, b.Min.Y+b.Dy()*4/5)
	}

	return canvas, nil
}

func drawCentered(dst draw.Image, src image.Image, face font.Face, text string, centerX, baseline int) {
	d := &font.Drawer{Dst: dst, Src: src, Face: face}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: fixed.I(centerX) - width/2,
		Y: fixed.I(baseline),
	}
	d.DrawString(text)
}

func (r *TextRenderer) background(path string) (image.Image, error) {
	if path == "" {
		bg := image.NewRGBA(image.Rect(0, 0, defaultWidth, defaultHeight))
		draw.Draw(bg, bg.Bounds(), image.NewUniform(defaultBackground), image.Point{}, draw.Src)
		return bg, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if img, ok := r.templates[path]; ok {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New().Wrap(ErrTemplate, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.New().Wrap(ErrTemplate, err)
	}
	r.templates[path] = img
	return img, nil
}

// face returns a new face of the Go font family closest to fnt. Faces keep
// per-glyph scratch state, so each Render gets its own.
func (r *TextRenderer) face(fnt Font, size float64) (font.Face, error) {
	if size <= 0 {
		size = DefaultDisplayConfig().Font.Size
	}

	key, data := fontSource(fnt)

	r.mu.Lock()
	parsed, ok := r.fonts[key]
	if !ok {
		var err error
		parsed, err = opentype.Parse(data)
		if err != nil {
			r.mu.Unlock()
			return nil, errors.New().Wrap(ErrFont, err)
		}
		r.fonts[key] = parsed
	}
	r.mu.Unlock()

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errors.New().Wrap(ErrFont, err)
	}
	return face, nil
}

// fontSource maps a requested family onto the embedded Go fonts: anything
// naming a monospace family gets Go Mono, everything else Go Regular.
func fontSource(fnt Font) (string, []byte) {
	family := strings.ToLower(fnt.Family)
	if strings.Contains(family, "mono") || strings.Contains(family, "courier") {
		if fnt.Bold {
			return "mono-bold", gomonobold.TTF
		}
		return "mono", gomono.TTF
	}

	switch {
	case fnt.Bold && fnt.Italic:
		return "bold-italic", gobolditalic.TTF
	case fnt.Bold:
		return "bold", gobold.TTF
	case fnt.Italic:
		return "italic", goitalic.TTF
	default:
		return "regular", goregular.TTF
	}
}
