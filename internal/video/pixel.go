package video

import (
	"fmt"
	"image"
)

// PixelOrder: channel layout of a native capture buffer.
type PixelOrder int

const (
	OrderRGB PixelOrder = iota
	OrderBGR
	OrderRGBA
	OrderBGRA // DXGI, GDI and mss style buffers
)

func (o PixelOrder) String() string {
	switch o {
	case OrderRGB:
		return "RGB"
	case OrderBGR:
		return "BGR"
	case OrderRGBA:
		return "RGBA"
	case OrderBGRA:
		return "BGRA"
	}
	return fmt.Sprintf("PixelOrder(%d)", int(o))
}

// BytesPerPixel of the layout.
func (o PixelOrder) BytesPerPixel() int {
	switch o {
	case OrderRGBA, OrderBGRA:
		return 4
	}
	return 3
}

func (o PixelOrder) swapped() bool {
	return o == OrderBGR || o == OrderBGRA
}

// ToRGB converts a native buffer of dst.Width x dst.Height pixels with the
// given row stride into dst, dropping alpha and swapping red/blue when the
// source is blue-first.
func ToRGB(dst *Frame, src []byte, stride int, order PixelOrder) error {
	bpp := order.BytesPerPixel()
	if stride < dst.Width*bpp {
		return fmt.Errorf("stride %d too small for %d px of %s", stride, dst.Width, order)
	}
	if dst.Height > 0 && len(src) < (dst.Height-1)*stride+dst.Width*bpp {
		return fmt.Errorf("source buffer too short: %d bytes", len(src))
	}

	swap := order.swapped()
	for y := 0; y < dst.Height; y++ {
		in := src[y*stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < dst.Width; x++ {
			s, d := x*bpp, x*3
			if swap {
				out[d], out[d+1], out[d+2] = in[s+2], in[s+1], in[s]
			} else {
				out[d], out[d+1], out[d+2] = in[s], in[s+1], in[s+2]
			}
		}
	}
	return nil
}

// FromRGBA converts an *image.RGBA (as returned by screenshot libraries)
// into a frame.
func FromRGBA(img *image.RGBA) (*Frame, error) {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())
	if err := ToRGB(f, img.Pix, img.Stride, OrderRGBA); err != nil {
		return nil, err
	}
	return f, nil
}
