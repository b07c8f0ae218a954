package video

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRGBSwapsBlueFirstLayouts(t *testing.T) {
	tests := []struct {
		order PixelOrder
		src   []byte
	}{
		{OrderBGRA, []byte{30, 20, 10, 255, 60, 50, 40, 255}},
		{OrderBGR, []byte{30, 20, 10, 60, 50, 40}},
		{OrderRGBA, []byte{10, 20, 30, 0, 40, 50, 60, 0}},
		{OrderRGB, []byte{10, 20, 30, 40, 50, 60}},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			f := NewFrame(2, 1)
			require.NoError(t, ToRGB(f, tt.src, len(tt.src), tt.order))
			assert.Equal(t, []byte{10, 20, 30, 40, 50, 60}, f.Pix)
		})
	}
}

func TestToRGBHonoursStride(t *testing.T) {
	// 1x2 BGRA with 4 bytes of row padding.
	src := []byte{
		3, 2, 1, 255, 0, 0, 0, 0,
		6, 5, 4, 255, 0, 0, 0, 0,
	}
	f := NewFrame(1, 2)
	require.NoError(t, ToRGB(f, src, 8, OrderBGRA))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, f.Pix)
}

func TestToRGBRejectsShortInput(t *testing.T) {
	f := NewFrame(2, 2)
	assert.Error(t, ToRGB(f, make([]byte, 4), 8, OrderBGRA))
	assert.Error(t, ToRGB(f, make([]byte, 32), 4, OrderBGRA), "stride below row width")
}

func TestFromRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	f, err := FromRGBA(img)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 6, f.Stride)
	r, g, b := f.RGBAt(1, 1)
	assert.Equal(t, [3]uint8{200, 100, 50}, [3]uint8{r, g, b})
	assert.Len(t, f.Pix, 12, "alpha must be dropped")
}

func TestFrameSetAt(t *testing.T) {
	f := NewFrame(3, 3)
	f.Set(2, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, f.At(2, 1))

	// Out of bounds is ignored.
	f.Set(5, 5, color.White)
	assert.Equal(t, color.RGBA{}, f.At(5, 5))
}

func TestFrameFit(t *testing.T) {
	f := NewFrame(4, 4)
	for i := range f.Pix {
		f.Pix[i] = 9
	}

	same := f.Fit(4, 4)
	assert.Same(t, f, same)

	small := f.Fit(2, 3)
	assert.Equal(t, 2, small.Width)
	assert.Equal(t, 3, small.Height)
	for _, b := range small.Pix {
		assert.Equal(t, byte(9), b)
	}

	big := f.Fit(6, 5)
	r, _, _ := big.RGBAt(3, 3)
	assert.Equal(t, uint8(9), r)
	r, _, _ = big.RGBAt(5, 4)
	assert.Equal(t, uint8(0), r, "padding is black")
}

func TestFrameClone(t *testing.T) {
	f := NewFrame(1, 1)
	c := f.Clone()
	c.Pix[0] = 7
	assert.Equal(t, byte(0), f.Pix[0])
}
