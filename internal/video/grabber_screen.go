//go:build !windows

package video

import (
	"image"
	"time"

	"github.com/kbinani/screenshot"

	"session-recorder/internal/region"
)

// ScreenGrabber: X11 / Quartz capture through kbinani/screenshot.
// The library hands back RGBA, which is normalized by ToRGB.
type ScreenGrabber struct {
	capture func(r region.Region) (*image.RGBA, error)
}

func newPlatformGrabber(displayIndex int) Grabber {
	return NewScreenGrabber()
}

// NewScreenGrabber returns a grabber for the desktop.
func NewScreenGrabber() *ScreenGrabber {
	return &ScreenGrabber{
		capture: func(r region.Region) (*image.RGBA, error) {
			return screenshot.CaptureRect(r.Rect())
		},
	}
}

func (g *ScreenGrabber) Grab(r region.Region) (*Frame, error) {
	if err := checkRegion(r); err != nil {
		return nil, err
	}
	img, err := g.capture(r)
	if err != nil {
		return nil, &CaptureError{Region: r, Err: err}
	}
	f, err := FromRGBA(img)
	if err != nil {
		return nil, &CaptureError{Region: r, Err: err}
	}
	f.CapturedAt = time.Now()
	return f, nil
}

func (g *ScreenGrabber) Close() error { return nil }
