package layout

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var canvas = image.Pt(2000, 1414)

func TestCenter(t *testing.T) {
	e := New(DefaultConfig())
	assert.Equal(t, image.Pt(700, 672), e.Center(canvas, image.Pt(600, 70)))
}

func TestBadge(t *testing.T) {
	e := New(DefaultConfig())
	assert.Equal(t, image.Pt(2000-120-50, 1414-20-40), e.Badge(canvas, image.Pt(120, 20)))
}

func TestLogo(t *testing.T) {
	e := New(DefaultConfig())
	assert.Equal(t, image.Rect(50, 50, 200, 200), e.Logo())

	custom := New(Config{LogoSize: image.Pt(80, 40), LogoPadding: 10})
	assert.Equal(t, image.Rect(10, 10, 90, 50), custom.Logo())
}

func TestSplitDetails(t *testing.T) {
	e := New(DefaultConfig())

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "even split", text: "a b c d e f", want: []string{"a b", "c d", "e f"}},
		{name: "remainder to last line", text: "a b c d e f g h", want: []string{"a b", "c d", "e f g h"}},
		{name: "fewer words than lines", text: "hello world", want: []string{"", "", "hello world"}},
		{name: "extra whitespace", text: "  a   b\tc ", want: []string{"a", "b", "c"}},
		{name: "empty", text: "  ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.SplitDetails(tt.text))
		})
	}
}

func TestSplitDetailsCustomLineCount(t *testing.T) {
	e := New(Config{DetailLines: 2})
	assert.Equal(t, []string{"a b", "c d e"}, e.SplitDetails("a b c d e"))
}

func TestDetailPositions(t *testing.T) {
	e := New(DefaultConfig())
	anchor := e.DetailAnchor(canvas)
	require.Equal(t, 1414/2+50, anchor)

	points := e.DetailPositions(canvas, []int{400, 600, 300}, 28, anchor)
	assert.Equal(t, []image.Point{
		image.Pt(800, anchor),
		image.Pt(700, anchor+38),
		image.Pt(850, anchor+76),
	}, points)
}

func TestShortDetailsLandOnLastLine(t *testing.T) {
	e := New(DefaultConfig())
	anchor := e.DetailAnchor(canvas)

	lines := e.SplitDetails("hello world")
	require.Len(t, lines, 3)
	points := e.DetailPositions(canvas, []int{0, 0, 200}, 28, anchor)
	assert.Equal(t, "hello world", lines[2])
	assert.Equal(t, image.Pt(900, anchor+76), points[2])
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	e := New(Config{})
	assert.Equal(t, image.Pt(150, 150), e.Config().LogoSize)
	assert.Equal(t, 3, e.Config().DetailLines)
}
