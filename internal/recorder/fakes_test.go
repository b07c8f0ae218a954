package recorder

import (
	"errors"
	"sync"

	"session-recorder/internal/annotation"
	"session-recorder/internal/region"
	"session-recorder/internal/video"
)

var errBoom = errors.New("boom")

// fakeGrabber fails on the listed zero-based call indexes.
type fakeGrabber struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func (g *fakeGrabber) Grab(r region.Region) (*video.Frame, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.calls
	g.calls++
	if g.failOn[n] {
		return nil, &video.CaptureError{Region: r, Err: errBoom}
	}
	return video.NewFrame(r.Width, r.Height), nil
}

func (g *fakeGrabber) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeSink struct {
	mu       sync.Mutex
	openErr  error
	failAt   int // 1-based append index that fails, 0 = never
	opens    int
	closes   int
	path     string
	fps      int
	open     bool
	frames   []*video.Frame
	appended int
}

func (s *fakeSink) Open(path string, fps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opens++
	s.path, s.fps, s.open = path, fps, true
	return nil
}

func (s *fakeSink) Append(f *video.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended++
	if s.failAt > 0 && s.appended == s.failAt {
		return errBoom
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.closes++
	}
	s.open = false
	return nil
}

func (s *fakeSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSink) Ext() string { return ".mp4" }

func (s *fakeSink) snapshot() (opens, closes int, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes, s.open
}

type fakeAudio struct {
	startErr error
	pcm      []byte
	started  int
	stopped  int
}

func (a *fakeAudio) Start(int, int) error {
	if a.startErr != nil {
		return a.startErr
	}
	a.started++
	return nil
}

func (a *fakeAudio) Stop() ([]byte, error) {
	a.stopped++
	return a.pcm, nil
}

// fakeCompositor records what it was asked to draw.
type fakeCompositor struct {
	mu    sync.Mutex
	calls [][]annotation.Annotation
}

func (c *fakeCompositor) Overlay(f *video.Frame, anns []annotation.Annotation) *video.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, anns)
	return f
}

func (c *fakeCompositor) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
