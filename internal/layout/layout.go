// Package layout computes where each certificate element goes on the canvas.
// Everything here is pure geometry over pixel sizes.
package layout

import (
	"image"
	"strings"
)

// Config holds the fixed margins and sizes of the certificate layout.
type Config struct {
	LogoSize      image.Point // logo footprint, aspect ratio is not preserved
	LogoPadding   int         // top-left padding of the logo
	BadgeMarginX  int         // validation code distance from the right edge
	BadgeMarginY  int         // validation code distance from the bottom edge
	DetailLines   int         // number of lines the details text is split into
	DetailLineGap int         // extra pixels between detail lines
	DetailOffsetY int         // details anchor below the vertical midpoint
}

// DefaultConfig returns the stock certificate geometry.
func DefaultConfig() Config {
	return Config{
		LogoSize:      image.Pt(150, 150),
		LogoPadding:   50,
		BadgeMarginX:  50,
		BadgeMarginY:  40,
		DetailLines:   3,
		DetailLineGap: 10,
		DetailOffsetY: 50,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LogoSize.X <= 0 || c.LogoSize.Y <= 0 {
		c.LogoSize = def.LogoSize
	}
	if c.DetailLines <= 0 {
		c.DetailLines = def.DetailLines
	}
	return c
}

// Engine places elements on a canvas.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

func (e *Engine) Config() Config { return e.cfg }

// Center places a box in the middle of the canvas.
func (e *Engine) Center(canvas, box image.Point) image.Point {
	return image.Pt((canvas.X-box.X)/2, (canvas.Y-box.Y)/2)
}

// Badge places a box at the bottom-right corner, inset by the badge margins.
func (e *Engine) Badge(canvas, box image.Point) image.Point {
	return image.Pt(canvas.X-box.X-e.cfg.BadgeMarginX, canvas.Y-box.Y-e.cfg.BadgeMarginY)
}

// Logo returns the rectangle the resized logo occupies.
func (e *Engine) Logo() image.Rectangle {
	origin := image.Pt(e.cfg.LogoPadding, e.cfg.LogoPadding)
	return image.Rectangle{Min: origin, Max: origin.Add(e.cfg.LogoSize)}
}

// DetailAnchor is the baseline y of the first details line's box.
func (e *Engine) DetailAnchor(canvas image.Point) int {
	return canvas.Y/2 + e.cfg.DetailOffsetY
}

// SplitDetails breaks text into DetailLines groups by integer word-count
// division; leftover words go to the last group. Groups keep their line index,
// so with fewer words than lines the leading groups are empty strings and the
// text lands on the last line.
func (e *Engine) SplitDetails(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	n := e.cfg.DetailLines
	per := len(words) / n

	lines := make([]string, n)
	for i := 0; i < n; i++ {
		start := i * per
		end := start + per
		if i == n-1 {
			end = len(words)
		}
		lines[i] = strings.Join(words[start:end], " ")
	}
	return lines
}

// DetailPositions centers each line on its own measured width and stacks the
// lines from anchorY with a fixed line height of glyphHeight+DetailLineGap.
func (e *Engine) DetailPositions(canvas image.Point, widths []int, glyphHeight, anchorY int) []image.Point {
	step := glyphHeight + e.cfg.DetailLineGap
	points := make([]image.Point, len(widths))
	for i, w := range widths {
		points[i] = image.Pt((canvas.X-w)/2, anchorY+i*step)
	}
	return points
}
