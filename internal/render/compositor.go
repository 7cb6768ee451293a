// Package render draws certificates: one transparent layer per element,
// composited over the background and flattened to an opaque PNG.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/layout"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

// Element names, used in logs and reports.
const (
	ElementLogo    = "logo"
	ElementName    = "name"
	ElementDetails = "details"
	ElementCode    = "validation_code"
	ElementOverlay = "overlay"
)

var errMalformedAlpha = errors.New("malformed alpha channel")

// Assets are the decoded images of one certificate. Logo may be nil.
type Assets struct {
	Background image.Image
	Logo       image.Image
}

// Content is the text printed on one certificate.
type Content struct {
	Name    string
	Details string
	Code    string
}

// Result is a rendered certificate.
type Result struct {
	Image *image.RGBA
	// Fallbacks lists elements pasted without their mask.
	Fallbacks []string
}

// Compositor renders certificates. It is safe for concurrent use.
type Compositor struct {
	layout    *layout.Engine
	fonts     *Fonts
	textColor color.Color
	logger    *slog.Logger
}

func NewCompositor(engine *layout.Engine, fonts *Fonts, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{
		layout:    engine,
		fonts:     fonts,
		textColor: color.Black,
		logger:    logger,
	}
}

type element struct {
	name  string
	layer *image.RGBA
	area  image.Rectangle
}

// Render composes one certificate over a copy of the background.
func (c *Compositor) Render(assets Assets, content Content) (*Result, error) {
	if assets.Background == nil || assets.Background.Bounds().Empty() {
		return nil, fmt.Errorf("%w: background is empty", models.ErrComposition)
	}
	bounds := assets.Background.Bounds()
	canvas := bounds.Size()

	base := image.NewRGBA(image.Rectangle{Max: canvas})
	draw.Draw(base, base.Bounds(), assets.Background, bounds.Min, draw.Src)

	elements, fallbacks, err := c.buildElements(canvas, assets, content)
	if err != nil {
		return nil, err
	}

	overlay := image.NewRGBA(base.Bounds())
	var covered image.Rectangle
	for _, el := range elements {
		usedFallback, err := c.paste(overlay, el.layer, el.area, el.name)
		if err != nil {
			return nil, err
		}
		if usedFallback {
			fallbacks = append(fallbacks, el.name)
		}
		covered = covered.Union(el.area)
	}

	usedFallback, err := c.paste(base, overlay, covered, ElementOverlay)
	if err != nil {
		return nil, err
	}
	if usedFallback {
		fallbacks = append(fallbacks, ElementOverlay)
	}

	flatten(base)
	return &Result{Image: base, Fallbacks: fallbacks}, nil
}

func (c *Compositor) buildElements(canvas image.Point, assets Assets, content Content) ([]element, []string, error) {
	var (
		elements  []element
		fallbacks []string
	)

	if assets.Logo != nil && !assets.Logo.Bounds().Empty() {
		area := c.layout.Logo()
		resized := image.NewRGBA(area)
		draw.CatmullRom.Scale(resized, area, assets.Logo, assets.Logo.Bounds(), draw.Src, nil)

		layer := image.NewRGBA(image.Rectangle{Max: canvas})
		usedFallback, err := c.paste(layer, resized, area, ElementLogo)
		if err != nil {
			return nil, nil, err
		}
		if usedFallback {
			fallbacks = append(fallbacks, ElementLogo)
		}
		elements = append(elements, element{name: ElementLogo, layer: layer, area: area})
	}

	if content.Name != "" {
		el, err := c.textElement(canvas, ElementName, c.fonts.name, func(face font.Face, layer *image.RGBA) image.Rectangle {
			pos := c.layout.Center(canvas, measureText(face, content.Name))
			return drawText(layer, face, content.Name, pos, c.textColor)
		})
		if err != nil {
			return nil, nil, err
		}
		elements = append(elements, el)
	}

	if lines := c.layout.SplitDetails(content.Details); len(lines) > 0 {
		el, err := c.textElement(canvas, ElementDetails, c.fonts.details, func(face font.Face, layer *image.RGBA) image.Rectangle {
			widths := make([]int, len(lines))
			for i, line := range lines {
				widths[i] = measureText(face, line).X
			}
			glyphHeight := face.Metrics().Height.Ceil()
			points := c.layout.DetailPositions(canvas, widths, glyphHeight, c.layout.DetailAnchor(canvas))

			var area image.Rectangle
			for i, line := range lines {
				if line == "" {
					continue
				}
				area = area.Union(drawText(layer, face, line, points[i], c.textColor))
			}
			return area
		})
		if err != nil {
			return nil, nil, err
		}
		elements = append(elements, el)
	}

	if content.Code != "" {
		el, err := c.textElement(canvas, ElementCode, c.fonts.code, func(face font.Face, layer *image.RGBA) image.Rectangle {
			pos := c.layout.Badge(canvas, measureText(face, content.Code))
			return drawText(layer, face, content.Code, pos, c.textColor)
		})
		if err != nil {
			return nil, nil, err
		}
		elements = append(elements, el)
	}

	return elements, fallbacks, nil
}

func (c *Compositor) textElement(canvas image.Point, name string, tf typeface, drawFn func(font.Face, *image.RGBA) image.Rectangle) (element, error) {
	face, err := tf.face()
	if err != nil {
		return element{}, fmt.Errorf("%w: %s face: %v", models.ErrComposition, name, err)
	}
	defer face.Close()

	layer := image.NewRGBA(image.Rectangle{Max: canvas})
	area := drawFn(face, layer)
	return element{name: name, layer: layer, area: area.Intersect(layer.Bounds())}, nil
}

// paste draws src over dst using src as its own mask. When the masked paste
// fails it falls back to an opaque copy of area and reports true.
func (c *Compositor) paste(dst *image.RGBA, src image.Image, area image.Rectangle, name string) (bool, error) {
	err := pasteMasked(dst, src, area)
	if err == nil {
		return false, nil
	}

	c.logger.Warn("masked paste failed, pasting opaque",
		slog.String("element", name),
		slog.Any("error", err),
	)
	if err := pasteOpaque(dst, src, area); err != nil {
		return true, fmt.Errorf("%w: %s: %v", models.ErrComposition, name, err)
	}
	return true, nil
}

func pasteMasked(dst *image.RGBA, src image.Image, area image.Rectangle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("masked paste panicked: %v", r)
		}
	}()
	if area.Empty() {
		return nil
	}
	if err := checkAlpha(src, area); err != nil {
		return err
	}
	// src is premultiplied, so Over already weights it by its own alpha.
	draw.Draw(dst, area, src, area.Min, draw.Over)
	return nil
}

func pasteOpaque(dst *image.RGBA, src image.Image, area image.Rectangle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("opaque paste panicked: %v", r)
		}
	}()
	area = area.Intersect(dst.Bounds())
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			dst.SetRGBA(x, y, color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff})
		}
	}
	return nil
}

// checkAlpha rejects premultiplied pixels whose color exceeds their alpha.
func checkAlpha(src image.Image, area image.Rectangle) error {
	rgba, ok := src.(*image.RGBA)
	if !ok {
		return nil
	}
	area = area.Intersect(rgba.Bounds())
	for y := area.Min.Y; y < area.Max.Y; y++ {
		row := rgba.Pix[rgba.PixOffset(area.Min.X, y):rgba.PixOffset(area.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			a := row[i+3]
			if row[i] > a || row[i+1] > a || row[i+2] > a {
				return fmt.Errorf("%w at (%d,%d)", errMalformedAlpha, area.Min.X+i/4, y)
			}
		}
	}
	return nil
}

// flatten drops the alpha channel in place, keeping straight colors.
func flatten(img *image.RGBA) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		a := uint32(pix[i+3])
		switch a {
		case 0xff:
			continue
		case 0:
			pix[i], pix[i+1], pix[i+2] = 0, 0, 0
		default:
			pix[i] = unpremultiply(pix[i], a)
			pix[i+1] = unpremultiply(pix[i+1], a)
			pix[i+2] = unpremultiply(pix[i+2], a)
		}
		pix[i+3] = 0xff
	}
}

func unpremultiply(c uint8, a uint32) uint8 {
	v := uint32(c) * 0xff / a
	if v > 0xff {
		v = 0xff
	}
	return uint8(v)
}

// EncodePNG encodes an opaque certificate; opaque images are written as RGB.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", models.ErrComposition, err)
	}
	return buf.Bytes(), nil
}
