package video

import (
	"errors"
	"fmt"

	"session-recorder/internal/region"
)

// ErrEmptyRegion: the tracked window has not reported a size yet.
var ErrEmptyRegion = errors.New("region has zero area")

// CaptureError: a single grab failed. Transient; the capture loop logs it
// and moves on to the next tick.
type CaptureError struct {
	Region region.Region
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Region, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Grabber: captures the pixels inside a screen region.
// The recorder expects RGB output regardless of the native layout.
type Grabber interface {
	Grab(r region.Region) (*Frame, error)
	Close() error
}

// NewGrabber returns the platform grabber for the given display.
func NewGrabber(displayIndex int) Grabber {
	return newPlatformGrabber(displayIndex)
}

func checkRegion(r region.Region) error {
	if r.Empty() {
		return &CaptureError{Region: r, Err: ErrEmptyRegion}
	}
	return nil
}
