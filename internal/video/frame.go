package video

import (
	"image"
	"image/color"
	"time"
)

// Frame: one captured picture, 3 bytes per pixel in R,G,B order, no alpha.
// It only lives between grab and encode.
type Frame struct {
	Pix        []byte
	Width      int
	Height     int
	Stride     int
	CapturedAt time.Time
}

// NewFrame allocates a black w x h frame.
func NewFrame(w, h int) *Frame {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Frame{
		Pix:    make([]byte, w*h*3),
		Width:  w,
		Height: h,
		Stride: w * 3,
	}
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := *f
	out.Pix = make([]byte, len(f.Pix))
	copy(out.Pix, f.Pix)
	return &out
}

// --- draw.Image ---

func (f *Frame) ColorModel() color.Model { return color.RGBAModel }

func (f *Frame) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

func (f *Frame) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return color.RGBA{}
	}
	i := y*f.Stride + x*3
	return color.RGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: 0xff}
}

func (f *Frame) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return
	}
	i := y*f.Stride + x*3
	r, g, b, _ := c.RGBA()
	f.Pix[i] = uint8(r >> 8)
	f.Pix[i+1] = uint8(g >> 8)
	f.Pix[i+2] = uint8(b >> 8)
}

// RGBAt returns the raw channel values at (x, y).
func (f *Frame) RGBAt(x, y int) (r, g, b uint8) {
	i := y*f.Stride + x*3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Fit returns a w x h copy of f: cropped where f is larger, padded with
// black where it is smaller. The encoder's dimensions are fixed at the first
// frame, while the tracked window may be resized later.
func (f *Frame) Fit(w, h int) *Frame {
	if f.Width == w && f.Height == h {
		return f
	}
	out := NewFrame(w, h)
	out.CapturedAt = f.CapturedAt
	rowBytes := min(f.Width, w) * 3
	for y := 0; y < min(f.Height, h); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+rowBytes], f.Pix[y*f.Stride:y*f.Stride+rowBytes])
	}
	return out
}
