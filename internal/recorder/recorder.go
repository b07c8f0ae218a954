package recorder

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"session-recorder/internal/annotation"
	"session-recorder/internal/clock"
	"session-recorder/internal/region"
	"session-recorder/internal/services/audio"
	"session-recorder/internal/services/stream"
	"session-recorder/internal/sessionlog"
	"session-recorder/internal/video"
)

var (
	ErrAlreadyRecording = errors.New("recording session already active")
	ErrEmptyAnnotation  = errors.New("annotation text is empty")
	ErrNoRegionProvider = errors.New("region provider is nil")
	ErrClosed           = errors.New("recorder closed")
)

// Varsayılanlar
const (
	DefaultFPS        = 15
	DefaultSourceName = "screen"
)

// --- Bağımlılıklar ---

// FrameSource grabs one frame of a screen region.
type FrameSource interface {
	Grab(r region.Region) (*video.Frame, error)
}

// Compositor draws the visible annotations onto a frame.
type Compositor interface {
	Overlay(f *video.Frame, anns []annotation.Annotation) *video.Frame
}

// AudioSource buffers microphone input between Start and Stop.
type AudioSource interface {
	Start(sampleRate, channels int) error
	Stop() ([]byte, error)
}

type Options struct {
	OutputDir     string
	SourceName    string
	FPS           int
	AnnotationTTL time.Duration
	SampleRate    int
	Channels      int

	// Hooks run on the caller's goroutine (start, annotation) or on the
	// goroutine that finished the session (end). Never while a lock is held.
	OnSessionStart func(Session)
	OnAnnotation   func(Session, annotation.Annotation)
	OnSessionEnd   func(Result)
}

// Deps: Grabber and Sink are required. Audio and Compositor may be nil.
type Deps struct {
	Grabber    FrameSource
	Sink       stream.Sink
	Audio      AudioSource
	Compositor Compositor
	Clock      clock.Clock
	Log        *zap.Logger
}

// Recorder owns at most one session at a time. All methods are safe for
// concurrent use.
type Recorder struct {
	opts   Options
	deps   Deps
	log    *zap.Logger
	clock  clock.Clock
	queue  *annotation.Queue
	period time.Duration

	// lifecycle serializes StartSession and StopSession end to end.
	lifecycle sync.Mutex

	// mu guards the fields below and the annotation log append.
	mu       sync.Mutex
	state    State
	closed   bool
	gen      uint64
	session  Session
	logw     *sessionlog.Writer
	audioOn  bool
	stopCh   chan struct{}
	done     chan struct{}
	abortErr error

	frames      atomic.Int64
	skipped     atomic.Int64
	annotations atomic.Int64
}

func New(opts Options, deps Deps) (*Recorder, error) {
	if deps.Grabber == nil {
		return nil, errors.New("recorder: grabber is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("recorder: video sink is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.SourceName == "" {
		opts.SourceName = DefaultSourceName
	}
	if strings.ContainsAny(opts.SourceName, `/\`) {
		return nil, fmt.Errorf("recorder: source name %q contains a path separator", opts.SourceName)
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.AnnotationTTL <= 0 {
		opts.AnnotationTTL = annotation.DefaultTTL
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.DefaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = audio.DefaultChannels
	}

	return &Recorder{
		opts:   opts,
		deps:   deps,
		log:    deps.Log.Named("recorder"),
		clock:  deps.Clock,
		queue:  annotation.NewQueue(deps.Clock, opts.AnnotationTTL),
		period: time.Second / time.Duration(opts.FPS),
	}, nil
}

// StartSession begins recording the region reported by provider. The
// provider is polled once per tick, so a moving window is followed.
func (r *Recorder) StartSession(provider region.Provider) error {
	if provider == nil {
		return ErrNoRegionProvider
	}

	r.lifecycle.Lock()
	sess, announced, err := r.start(provider)
	r.lifecycle.Unlock()
	if err != nil {
		return err
	}

	defer close(announced)
	if r.opts.OnSessionStart != nil {
		r.opts.OnSessionStart(sess)
	}
	return nil
}

// start opens the session and spawns its capture goroutine. The returned
// channel must be closed once OnSessionStart has run; an aborting session
// waits on it so OnSessionEnd never precedes OnSessionStart.
func (r *Recorder) start(provider region.Provider) (Session, chan struct{}, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Session{}, nil, ErrClosed
	}
	if r.state != Idle {
		r.mu.Unlock()
		return Session{}, nil, ErrAlreadyRecording
	}
	r.state = Starting
	r.mu.Unlock()

	sess, err := r.open(provider)
	if err != nil {
		r.setState(Idle)
		return Session{}, nil, err
	}

	logw := sessionlog.NewWriter(sess.LogPath, r.log)
	// Log yazılamazsa kayıt yine de devam eder; hata zap'a düşer.
	_ = logw.Started(sess.StartedAt)

	r.frames.Store(0)
	r.skipped.Store(0)
	r.annotations.Store(0)

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.session = sess
	r.logw = logw
	r.abortErr = nil
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})
	stopCh, done := r.stopCh, r.done
	r.state = Active
	r.mu.Unlock()

	announced := make(chan struct{})
	go r.run(gen, provider, stopCh, done, announced)

	r.log.Info("session started",
		zap.String("id", sess.ID),
		zap.Stringer("region", sess.Region),
		zap.Int("fps", r.opts.FPS),
		zap.Bool("audio", sess.AudioPath != ""))
	return sess, announced, nil
}

// open prepares the output directory and the sinks. Video failures are
// fatal; audio failures only drop the audio track.
func (r *Recorder) open(provider region.Provider) (Session, error) {
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return Session{}, fmt.Errorf("output dir: %w", err)
	}

	start := r.clock.Now()
	reg := provider()
	if reg.Empty() {
		r.log.Warn("initial region is empty, frames are skipped until it has a size", zap.Stringer("region", reg))
	}
	sess := newSession(r.opts.OutputDir, r.opts.SourceName, r.deps.Sink.Ext(), start, reg)

	if err := r.deps.Sink.Open(sess.VideoPath, r.opts.FPS); err != nil {
		return Session{}, err
	}

	audioOn := false
	if r.deps.Audio != nil {
		if err := r.deps.Audio.Start(r.opts.SampleRate, r.opts.Channels); err != nil {
			r.log.Warn("audio unavailable, recording video only", zap.Error(err))
		} else {
			audioOn = true
		}
	}
	if !audioOn {
		sess.AudioPath = ""
	}

	r.mu.Lock()
	r.audioOn = audioOn
	r.mu.Unlock()
	return sess, nil
}

// StopSession ends the active session and waits until every file is
// finalized. Idle recorder: no-op. Each cleanup step runs even when an
// earlier one failed; the failures are combined.
func (r *Recorder) StopSession() error {
	return r.stop(0)
}

// stop with gen == 0 stops whatever is running; otherwise only that
// generation (used by the capture goroutine after a fatal sink error).
func (r *Recorder) stop(gen uint64) error {
	r.lifecycle.Lock()
	res, ok := r.shutdown(gen)
	r.lifecycle.Unlock()

	if !ok {
		return nil
	}
	if r.opts.OnSessionEnd != nil {
		r.opts.OnSessionEnd(res)
	}
	return res.Err
}

func (r *Recorder) shutdown(gen uint64) (Result, bool) {
	r.mu.Lock()
	if r.state == Idle || r.state == Starting || (gen != 0 && gen != r.gen) {
		r.mu.Unlock()
		return Result{}, false
	}
	r.state = Stopping
	sess := r.session
	logw := r.logw
	stopCh, done := r.stopCh, r.done
	audioOn := r.audioOn
	r.mu.Unlock()

	// 1. capture goroutine
	close(stopCh)
	<-done

	r.mu.Lock()
	abortErr := r.abortErr
	r.mu.Unlock()

	var errs error
	if abortErr != nil {
		errs = multierr.Append(errs, abortErr)
	}
	ended := r.clock.Now()

	// 2. audio
	if audioOn {
		if err := r.persistAudio(sess.AudioPath); err != nil {
			errs = multierr.Append(errs, err)
			sess.AudioPath = ""
		} else if _, err := os.Stat(sess.AudioPath); err != nil {
			sess.AudioPath = ""
		}
	}

	// 3. video
	if err := r.deps.Sink.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close video: %w", err))
	}

	// 4. footer
	if abortErr != nil {
		errs = multierr.Append(errs, logw.Aborted(ended, abortErr))
	}
	errs = multierr.Append(errs, logw.Ended(ended, ended.Sub(sess.StartedAt)))

	sess.EndedAt = ended
	stats := r.Stats()

	r.mu.Lock()
	r.session = sess
	r.audioOn = false
	r.state = Idle
	r.mu.Unlock()

	fields := []zap.Field{
		zap.String("id", sess.ID),
		zap.Duration("duration", sess.Duration()),
		zap.Int("frames", stats.Frames),
		zap.Int("skipped", stats.Skipped),
		zap.Int("annotations", stats.Annotations),
	}
	if errs != nil {
		r.log.Error("session ended with errors", append(fields, zap.Error(errs))...)
	} else {
		r.log.Info("session ended", fields...)
	}

	return Result{Session: sess, Stats: stats, Aborted: abortErr != nil, Err: errs}, true
}

func (r *Recorder) persistAudio(path string) error {
	pcm, err := r.deps.Audio.Stop()
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		// hiç örnek gelmedi, dosya yazılmaz
		return nil
	}
	if err := audio.WriteWAV(path, pcm, r.opts.SampleRate, r.opts.Channels); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

// lineBreaks: a log block is line oriented, so an annotation is one line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func singleLine(text string) string {
	return lineBreaks.Replace(text)
}

// AddAnnotation queues text for the overlay and, while a session is
// active, appends it to the session log exactly once. Line breaks become
// spaces.
func (r *Recorder) AddAnnotation(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyAnnotation
	}
	text = singleLine(text)

	r.mu.Lock()
	a := r.queue.AddDefault(text)
	if r.state != Active {
		r.mu.Unlock()
		return nil
	}
	sess := r.session
	err := r.logw.Annotation(a.CreatedAt, text)
	r.annotations.Add(1)
	r.mu.Unlock()

	if r.opts.OnAnnotation != nil {
		r.opts.OnAnnotation(sess, a)
	}
	return err
}

// Close stops any active session. Later StartSession calls fail.
func (r *Recorder) Close() error {
	err := r.StopSession()
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return err
}

func (r *Recorder) IsRecording() bool {
	return r.State() == Active
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Session returns the current session; false when idle. After a stop the
// last session stays readable through LastSession.
func (r *Recorder) Session() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Idle || r.state == Starting {
		return Session{}, false
	}
	return r.session, true
}

// LastSession returns the most recent session, finished or not.
func (r *Recorder) LastSession() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session, r.session.ID != ""
}

// Stats of the current or most recent session.
func (r *Recorder) Stats() Stats {
	return Stats{
		Frames:      int(r.frames.Load()),
		Skipped:     int(r.skipped.Load()),
		Annotations: int(r.annotations.Load()),
	}
}

// Queue exposes the annotation queue, mostly for status reporting.
func (r *Recorder) Queue() *annotation.Queue { return r.queue }

func (r *Recorder) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}
