package region

import (
	"fmt"
	"image"
	"sync/atomic"
)

// Region: capture rectangle in screen pixels.
type Region struct {
	Left   int `json:"left" mapstructure:"left"`
	Top    int `json:"top" mapstructure:"top"`
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// Empty reports whether the region has no area to capture.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Rect converts the region to screen coordinates.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.Left, r.Top)
}

// Provider: polled once per capture tick by the recorder.
type Provider func() Region

// Fixed returns a provider that always reports r.
func Fixed(r Region) Provider {
	return func() Region { return r }
}

// Tracker: latest rectangle of a tracked window. Update is called from the
// window's move/resize notification, Current from the capture loop.
// The zero value is ready to use and reports an empty region.
type Tracker struct {
	cur atomic.Pointer[Region]
}

// NewTracker returns a tracker seeded with r.
func NewTracker(r Region) *Tracker {
	t := &Tracker{}
	t.Update(r)
	return t
}

// Update replaces the tracked rectangle as a whole.
func (t *Tracker) Update(r Region) {
	t.cur.Store(&r)
}

// Current returns a consistent snapshot of the last Update.
func (t *Tracker) Current() Region {
	if p := t.cur.Load(); p != nil {
		return *p
	}
	return Region{}
}
