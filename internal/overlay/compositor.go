package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"session-recorder/internal/annotation"
	"session-recorder/internal/video"
)

const (
	DefaultFontSize = 20
	// Label timestamp, e.g. "hello (16:30:26)".
	TimeLayout = "15:04:05"
)

// Options: text style. Zero values fall back to the defaults.
type Options struct {
	FontSize float64
	Color    color.Color
	Anchor   image.Point // top-left corner of the label
}

// Compositor draws annotation labels onto frames. Every label goes to the
// same anchor, so simultaneous annotations overlap; the newest is on top.
type Compositor struct {
	mu     sync.Mutex // font.Face is not safe for concurrent use
	face   font.Face
	src    *image.Uniform
	anchor image.Point
	ascent fixed.Int26_6
}

// New parses the embedded Go Regular font at the requested size.
func New(opts Options) (*Compositor, error) {
	if opts.FontSize <= 0 {
		opts.FontSize = DefaultFontSize
	}
	if opts.Color == nil {
		opts.Color = color.White
	}

	ttf, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("overlay font parse: %w", err)
	}
	face, err := opentype.NewFace(ttf, &opentype.FaceOptions{
		Size:    opts.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("overlay font face: %w", err)
	}

	return &Compositor{
		face:   face,
		src:    image.NewUniform(opts.Color),
		anchor: opts.Anchor,
		ascent: face.Metrics().Ascent,
	}, nil
}

// Label is the text drawn for one annotation.
func Label(a annotation.Annotation) string {
	return fmt.Sprintf("%s (%s)", a.Text, a.CreatedAt.Format(TimeLayout))
}

// Overlay draws anns onto frame in order and returns it. With no
// annotations the frame is returned untouched.
func (c *Compositor) Overlay(frame *video.Frame, anns []annotation.Annotation) *video.Frame {
	if len(anns) == 0 || frame == nil {
		return frame
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range anns {
		d := font.Drawer{
			Dst:  frame,
			Src:  c.src,
			Face: c.face,
			Dot:  fixed.P(c.anchor.X, c.anchor.Y).Add(fixed.Point26_6{Y: c.ascent}),
		}
		d.DrawString(Label(a))
	}
	return frame
}

// Close releases the font face.
func (c *Compositor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.face.Close()
}

// ParseColor reads "#rgb", "#rgba", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3, 4:
		// "#abc" -> "#aabbcc"
		var b strings.Builder
		for _, c := range hex {
			b.WriteRune(c)
			b.WriteRune(c)
		}
		hex = b.String()
	case 6, 8:
	default:
		return color.RGBA{}, fmt.Errorf("color %q: want #rgb or #rrggbb", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
