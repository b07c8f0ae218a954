package stream

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"session-recorder/internal/video"
)

// Backend isimleri (config.Recorder.Backend)
const (
	BackendFFmpeg = "ffmpeg"
	BackendX264   = "x264"
)

var (
	ErrSinkAlreadyOpen    = errors.New("sink already open")
	ErrSinkNotOpen        = errors.New("sink not open")
	ErrBackendUnavailable = errors.New("encoder backend unavailable")
)

// SinkOpenError: the output could not be created. Fatal for StartSession.
type SinkOpenError struct {
	Path string
	Err  error
}

func (e *SinkOpenError) Error() string {
	return fmt.Sprintf("open video sink %s: %v", e.Path, e.Err)
}

func (e *SinkOpenError) Unwrap() error { return e.Err }

// SinkWriteError: a frame could not be encoded or written. Fatal for the
// running session.
type SinkWriteError struct {
	Frame int
	Err   error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("write frame %d: %v", e.Frame, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

// Sink: ordered frame consumer producing a video file.
// Frame dimensions are fixed by the first appended frame; later frames are
// cropped or padded to that size.
type Sink interface {
	Open(path string, fps int) error
	Append(f *video.Frame) error
	Close() error
	Frames() int
	// Ext is the file extension of the produced container, dot included.
	Ext() string
}

// NewSink: backend adına göre encoder seçer.
func NewSink(backend string, log *zap.Logger) (Sink, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch backend {
	case "", BackendFFmpeg:
		return NewFFmpegSink(log), nil
	case BackendX264:
		return NewX264Sink(log), nil
	default:
		return nil, fmt.Errorf("unknown video backend %q", backend)
	}
}

// encodeSize: yuv420p wants even dimensions. Odd sides lose their last
// pixel, a 1px side is padded to 2.
func encodeSize(w, h int) (int, int, error) {
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("frame %dx%d has no area", w, h)
	}
	return max(w&^1, 2), max(h&^1, 2), nil
}
