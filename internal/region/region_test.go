package region

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroTrackerIsEmpty(t *testing.T) {
	var tr Tracker
	assert.Equal(t, Region{}, tr.Current())
	assert.True(t, tr.Current().Empty())
}

func TestTrackerUpdateReplacesWholeRegion(t *testing.T) {
	tr := NewTracker(Region{Left: 1, Top: 2, Width: 3, Height: 4})
	tr.Update(Region{Left: 10, Top: 20, Width: 300, Height: 400})

	assert.Equal(t, Region{Left: 10, Top: 20, Width: 300, Height: 400}, tr.Current())
	assert.Equal(t, image.Rect(10, 20, 310, 420), tr.Current().Rect())
	assert.Equal(t, "300x400+10+20", tr.Current().String())
}

func TestEmpty(t *testing.T) {
	tests := []struct {
		name string
		r    Region
		want bool
	}{
		{"zero", Region{}, true},
		{"no width", Region{Width: 0, Height: 10}, true},
		{"negative height", Region{Width: 10, Height: -1}, true},
		{"area", Region{Width: 1, Height: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Empty())
		})
	}
}

// Every snapshot must be one of the written values, never a mix of two.
func TestTrackerNoTornReads(t *testing.T) {
	tr := NewTracker(Region{Left: 0, Top: 0, Width: 100, Height: 100})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 5000; i++ {
			tr.Update(Region{Left: i, Top: i, Width: 100 + i, Height: 100 + i})
		}
	}()

	for i := 0; i < 5000; i++ {
		r := tr.Current()
		assert.Equal(t, r.Left, r.Top)
		assert.Equal(t, r.Left+100, r.Width)
		assert.Equal(t, r.Left+100, r.Height)
	}
	wg.Wait()
}

func TestFixedProvider(t *testing.T) {
	p := Fixed(Region{Width: 5, Height: 6})
	assert.Equal(t, Region{Width: 5, Height: 6}, p())

	tr := NewTracker(Region{Width: 7, Height: 8})
	var tp Provider = tr.Current
	assert.Equal(t, 7, tp().Width)
}
