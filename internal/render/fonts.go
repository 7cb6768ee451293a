package render

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FontSpec selects a TrueType/OpenType file and a point size. An empty Path
// uses the embedded Go font for that element.
type FontSpec struct {
	Path string
	Size float64
}

// FontConfig selects the face of each text element.
type FontConfig struct {
	Name    FontSpec
	Details FontSpec
	Code    FontSpec
}

// DefaultFontConfig returns the stock sizes: 70pt name, 28pt details, 20pt code.
func DefaultFontConfig() FontConfig {
	return FontConfig{
		Name:    FontSpec{Size: 70},
		Details: FontSpec{Size: 28},
		Code:    FontSpec{Size: 20},
	}
}

type typeface struct {
	font *opentype.Font
	size float64
}

// face builds a fresh face. Faces are not safe for concurrent use, parsed
// fonts are, so every render gets its own faces.
func (t typeface) face() (font.Face, error) {
	return opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    t.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Fonts holds the parsed typefaces used by the compositor.
type Fonts struct {
	name    typeface
	details typeface
	code    typeface
}

// LoadFonts parses the configured font files, falling back to the embedded
// Go fonts.
func LoadFonts(cfg FontConfig) (*Fonts, error) {
	def := DefaultFontConfig()
	name, err := loadTypeface(cfg.Name, def.Name.Size, goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("name font: %w", err)
	}
	details, err := loadTypeface(cfg.Details, def.Details.Size, goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("details font: %w", err)
	}
	code, err := loadTypeface(cfg.Code, def.Code.Size, gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("code font: %w", err)
	}
	return &Fonts{name: name, details: details, code: code}, nil
}

func loadTypeface(spec FontSpec, defaultSize float64, fallback []byte) (typeface, error) {
	data := fallback
	if spec.Path != "" {
		raw, err := os.ReadFile(spec.Path)
		if err != nil {
			return typeface{}, err
		}
		data = raw
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return typeface{}, err
	}
	size := spec.Size
	if size <= 0 {
		size = defaultSize
	}
	return typeface{font: f, size: size}, nil
}

// measureText returns the ink box size of text.
func measureText(face font.Face, text string) image.Point {
	b, _ := font.BoundString(face, text)
	return image.Pt((b.Max.X - b.Min.X).Ceil(), (b.Max.Y - b.Min.Y).Ceil())
}

// drawText draws text so that its ink box starts at topLeft and returns the
// rectangle covered.
func drawText(dst draw.Image, face font.Face, text string, topLeft image.Point, col color.Color) image.Rectangle {
	b, _ := font.BoundString(face, text)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(topLeft.X) - b.Min.X,
			Y: fixed.I(topLeft.Y) - b.Min.Y,
		},
	}
	d.DrawString(text)
	return image.Rectangle{Min: topLeft, Max: topLeft.Add(measureText(face, text))}
}
