package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"session-recorder/internal/clock"
	"session-recorder/internal/config"
	"session-recorder/internal/protocol"
	"session-recorder/internal/recorder"
	"session-recorder/internal/region"
	"session-recorder/internal/services/archive"
	"session-recorder/internal/services/events"
	"session-recorder/internal/video"
)

var t0 = time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

// --- Sahte bağımlılıklar ---

type stubGrabber struct{}

func (stubGrabber) Grab(r region.Region) (*video.Frame, error) {
	return video.NewFrame(r.Width, r.Height), nil
}

type stubSink struct {
	mu     sync.Mutex
	frames int
}

func (s *stubSink) Open(string, int) error { return nil }

func (s *stubSink) Append(*video.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *stubSink) Close() error { return nil }

func (s *stubSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *stubSink) Ext() string { return ".mp4" }

type fakeArchive struct {
	err   error
	calls [][]string
}

func (f *fakeArchive) Upload(_ context.Context, id string, files []string) ([]archive.Object, error) {
	f.calls = append(f.calls, files)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]archive.Object, 0, len(files))
	for _, p := range files {
		out = append(out, archive.Object{Key: archive.ObjectKey(id, p)})
	}
	return out, nil
}

type fakeCatalog struct {
	results []recorder.Result
	keys    [][]string
}

func (f *fakeCatalog) Save(_ context.Context, res recorder.Result, keys []string) error {
	f.results = append(f.results, res)
	f.keys = append(f.keys, keys)
	return nil
}

type fakeEvents struct {
	mu    sync.Mutex
	types []string
}

func (f *fakeEvents) Publish(_ context.Context, ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, ev.Type)
	return nil
}

type testApp struct {
	*App
	clk     *clock.Fake
	sink    *stubSink
	archive *fakeArchive
	catalog *fakeCatalog
	events  *fakeEvents
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.Recorder.OutputDir = t.TempDir()
	cfg.Recorder.SourceName = "lab"
	cfg.Recorder.FPS = 10
	cfg.Region = region.Region{Width: 64, Height: 48}

	ta := &testApp{
		clk:     clock.NewFake(t0),
		sink:    &stubSink{},
		archive: &fakeArchive{},
		catalog: &fakeCatalog{},
		events:  &fakeEvents{},
	}
	ta.clk.Limit(t0.Add(time.Second))

	a, err := newApp(cfg, zap.NewNop(), recorder.Deps{
		Grabber: stubGrabber{},
		Sink:    ta.sink,
		Clock:   ta.clk,
	})
	require.NoError(t, err)
	a.post.archive = ta.archive
	a.post.catalog = ta.catalog
	a.post.events = ta.events
	a.post.start()

	ta.App = a
	t.Cleanup(func() { _ = a.Close() })
	return ta
}

func (ta *testApp) waitCapture(t *testing.T) {
	t.Helper()
	select {
	case <-ta.clk.Reached():
	case <-time.After(5 * time.Second):
		t.Fatal("capture loop did not reach the clock limit")
	}
}

func TestSessionRunsPostPipeline(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.Start())
	ta.waitCapture(t)
	require.NoError(t, ta.Annotate("checkpoint"))
	require.NoError(t, ta.Stop())

	ta.post.close()

	assert.Equal(t, 10, ta.sink.Frames())
	assert.Equal(t, []string{events.TypeStarted, events.TypeAnnotation, events.TypeEnded}, ta.events.types)

	require.Len(t, ta.archive.calls, 1)
	require.Len(t, ta.catalog.results, 1)
	res := ta.catalog.results[0]
	assert.Equal(t, "20260314_0926_53_lab", res.Session.ID)
	assert.Equal(t, 1, res.Stats.Annotations)
	assert.Equal(t, len(ta.archive.calls[0]), len(ta.catalog.keys[0]))
	assert.Contains(t, ta.catalog.keys[0], "20260314_0926_53_lab/20260314_0926_53_lab_log.txt")
}

func TestStatusReportsActiveThenLastSession(t *testing.T) {
	ta := newTestApp(t)

	rep := ta.Status()
	assert.True(t, rep.OK)
	assert.False(t, rep.Recording)
	assert.Equal(t, "idle", rep.State)
	assert.Nil(t, rep.Session)

	require.NoError(t, ta.Start())
	ta.waitCapture(t)

	rep = ta.Status()
	assert.True(t, rep.Recording)
	assert.Equal(t, "active", rep.State)
	require.NotNil(t, rep.Session)
	assert.Equal(t, "20260314_0926_53_lab", rep.Session.ID)
	assert.True(t, rep.Session.EndedAt.IsZero())

	require.NoError(t, ta.Stop())
	rep = ta.Status()
	assert.False(t, rep.Recording)
	require.NotNil(t, rep.Session)
	assert.False(t, rep.Session.EndedAt.IsZero())
	assert.Equal(t, 10, rep.Session.Frames)
}

func TestControlCommandsDriveRecorder(t *testing.T) {
	ta := newTestApp(t)
	ctl := ta.ControlSvc

	moved := region.Region{Left: 5, Top: 5, Width: 32, Height: 32}
	rep := ctl.Handle(protocol.Command{Op: protocol.OpRegion, Region: &moved})
	require.True(t, rep.OK, rep.Error)
	assert.Equal(t, moved, ta.Tracker.Current())

	rep = ctl.Handle(protocol.Command{Op: protocol.OpStart})
	require.True(t, rep.OK, rep.Error)
	assert.True(t, rep.Recording)
	assert.Equal(t, moved, rep.Session.Region)

	rep = ctl.Handle(protocol.Command{Op: protocol.OpStart})
	assert.False(t, rep.OK)
	assert.Equal(t, recorder.ErrAlreadyRecording.Error(), rep.Error)

	ta.waitCapture(t)
	rep = ctl.Handle(protocol.Command{Op: protocol.OpAnnotate, Text: "hi", Source: "remote"})
	require.True(t, rep.OK, rep.Error)
	assert.Equal(t, 1, rep.Session.Annotations)

	rep = ctl.Handle(protocol.Command{Op: protocol.OpStop})
	require.True(t, rep.OK, rep.Error)
	assert.False(t, rep.Recording)
}

func TestClipboardOnlyAnnotatesWhileRecording(t *testing.T) {
	ta := newTestApp(t)

	ta.clipboardChanged("ignored while idle")
	assert.Equal(t, 0, ta.Recorder.Stats().Annotations)

	require.NoError(t, ta.Start())
	ta.waitCapture(t)
	ta.clipboardChanged("  copied\n text ")
	assert.Equal(t, 1, ta.Recorder.Stats().Annotations)
	require.NoError(t, ta.Stop())
}

func TestPipelineStepFailureDoesNotStopOthers(t *testing.T) {
	p := newPipeline(zap.NewNop())
	arch := &fakeArchive{err: errors.New("bucket gone")}
	cat := &fakeCatalog{}
	ev := &fakeEvents{}
	p.archive, p.catalog, p.events = arch, cat, ev

	err := p.finish(context.Background(), recorder.Result{Session: recorder.Session{ID: "x"}})
	assert.ErrorContains(t, err, "bucket gone")
	require.Len(t, cat.results, 1)
	assert.Nil(t, cat.keys[0])
	assert.Equal(t, []string{events.TypeEnded}, ev.types)
}

func TestPipelineCloseWithoutStart(t *testing.T) {
	p := newPipeline(zap.NewNop())
	p.events = &fakeEvents{}
	p.sessionStarted(recorder.Session{ID: "x"})

	done := make(chan struct{})
	go func() {
		p.close()
		p.close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close blocked")
	}
}
