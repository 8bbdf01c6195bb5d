// Package annotate extends an image with a text band underneath it.
//
// Rendering is done in two passes over the same wrapped lines: the first
// measures the band height so the canvas can be allocated once, the second
// draws. Both passes share Layout, so the drawn text always fits the band.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Default geometry of the annotation band, in pixels.
const (
	DefaultTopPadding   = 4
	DefaultBlockSpacing = 5
	DefaultLeftMargin   = 3
	DefaultRightMargin  = 12
)

// Renderer draws text blocks below an image.
type Renderer struct {
	Face font.Face

	// LineHeight is the vertical advance per wrapped line.
	LineHeight int

	TopPadding   int
	BlockSpacing int
	LeftMargin   int
	RightMargin  int

	Background color.Color
	Foreground color.Color
}

// Options configures NewRenderer.
type Options struct {
	// SizePoints is the font size. Default 12.
	SizePoints float64

	// DPI is the output resolution. Default 72.
	DPI float64
}

// DefaultOptions returns 12pt at 72 DPI.
func DefaultOptions() Options {
	return Options{SizePoints: 12, DPI: 72}
}

// NewRenderer creates a renderer using the Go Regular font. Hinting is
// disabled so glyph advances are the same in the measure and draw passes.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.SizePoints <= 0 {
		opts.SizePoints = DefaultOptions().SizePoints
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultOptions().DPI
	}

	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("annotate: parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    opts.SizePoints,
		DPI:     opts.DPI,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("annotate: create face: %w", err)
	}
	return newWithFace(face), nil
}

// NewBasicRenderer creates a renderer using the fixed 7x13 bitmap font.
func NewBasicRenderer() *Renderer {
	return newWithFace(basicfont.Face7x13)
}

func newWithFace(face font.Face) *Renderer {
	return &Renderer{
		Face:         face,
		LineHeight:   face.Metrics().Height.Ceil(),
		TopPadding:   DefaultTopPadding,
		BlockSpacing: DefaultBlockSpacing,
		LeftMargin:   DefaultLeftMargin,
		RightMargin:  DefaultRightMargin,
		Background:   color.Black,
		Foreground:   color.White,
	}
}

// Layout is the wrapped text band for one image width.
type Layout struct {
	// MaxWidth is the usable line width.
	MaxWidth int

	// Lines holds the wrapped lines of each block, in block order.
	Lines [][]string

	// Height is the band height: top padding plus, per block, its lines
	// and the block spacing.
	Height int
}

// TextWidth returns the usable line width for an image of the given width.
func (r *Renderer) TextWidth(imageWidth int) int {
	return max(imageWidth-r.LeftMargin-r.RightMargin, 1)
}

// Layout wraps every block for an image of the given width.
func (r *Renderer) Layout(imageWidth int, blocks []string) Layout {
	l := Layout{
		MaxWidth: r.TextWidth(imageWidth),
		Lines:    make([][]string, len(blocks)),
		Height:   r.TopPadding,
	}
	for i, block := range blocks {
		l.Lines[i] = Wrap(r.Face, block, l.MaxWidth)
		l.Height += len(l.Lines[i])*r.LineHeight + r.BlockSpacing
	}
	return l
}

// Measure returns the band height needed for blocks on an image of the
// given width.
func (r *Renderer) Measure(imageWidth int, blocks []string) int {
	return r.Layout(imageWidth, blocks).Height
}

// Annotate returns a copy of src extended downward by a band holding
// blocks.
func (r *Renderer) Annotate(src image.Image, blocks []string) (*image.RGBA, error) {
	dst, _, err := r.render(src, blocks)
	return dst, err
}

// render draws and also returns the final cursor offset inside the band.
func (r *Renderer) render(src image.Image, blocks []string) (*image.RGBA, int, error) {
	if src == nil {
		return nil, 0, fmt.Errorf("%w: nil source", ErrInvalidImage)
	}
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, 0, fmt.Errorf("%w: empty bounds %v", ErrInvalidImage, bounds)
	}

	layout := r.Layout(width, blocks)

	dst := image.NewRGBA(image.Rect(0, 0, width, height+layout.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.Background), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(0, 0, width, height), src, bounds.Min, draw.Src)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.Foreground),
		Face: r.Face,
	}
	ascent := r.Face.Metrics().Ascent.Ceil()

	cursor := r.TopPadding
	for _, lines := range layout.Lines {
		for _, line := range lines {
			drawer.Dot = fixed.P(r.LeftMargin, height+cursor+ascent)
			drawer.DrawString(line)
			cursor += r.LineHeight
		}
		cursor += r.BlockSpacing
	}

	return dst, cursor, nil
}
