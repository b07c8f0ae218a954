//go:build windows

package video

import (
	"fmt"
	"image"
	"time"

	"session-recorder/internal/platform/win32"
	"session-recorder/internal/region"
)

// DxgiGrabber crops the tracked region out of a full-output DXGI frame.
// DXGI delivers BGRA, so every grab goes through ToRGB with OrderBGRA.
type DxgiGrabber struct {
	cap *win32.DxgiCapturer
}

func newPlatformGrabber(displayIndex int) Grabber {
	return &DxgiGrabber{cap: win32.NewDxgiCapturer(displayIndex)}
}

func (g *DxgiGrabber) Grab(r region.Region) (*Frame, error) {
	if err := checkRegion(r); err != nil {
		return nil, err
	}
	// Lazy start: ekran kilitliyken açılamazsa sonraki tick tekrar dener
	if err := g.cap.Start(); err != nil {
		return nil, &CaptureError{Region: r, Err: err}
	}

	pix, stride, w, h, err := g.cap.CaptureBGRA()
	if err != nil {
		g.cap.Close()
		return nil, &CaptureError{Region: r, Err: err}
	}

	crop := r.Rect().Intersect(image.Rect(0, 0, w, h))
	if crop.Empty() {
		return nil, &CaptureError{Region: r, Err: fmt.Errorf("region outside %dx%d display", w, h)}
	}

	f := NewFrame(crop.Dx(), crop.Dy())
	off := crop.Min.Y*stride + crop.Min.X*4
	if err := ToRGB(f, pix[off:], stride, OrderBGRA); err != nil {
		return nil, &CaptureError{Region: r, Err: err}
	}
	f.CapturedAt = time.Now()
	return f, nil
}

func (g *DxgiGrabber) Close() error {
	g.cap.Close()
	return nil
}
