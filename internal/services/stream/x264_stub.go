//go:build !(x264 && cgo)

package stream

import (
	"go.uber.org/zap"

	"session-recorder/internal/video"
)

// X264Sink without libx264 compiled in: every Open fails with
// ErrBackendUnavailable. Build with -tags x264 to enable it.
type X264Sink struct{}

func NewX264Sink(_ *zap.Logger) Sink { return &X264Sink{} }

func (s *X264Sink) Ext() string { return ".h264" }

func (s *X264Sink) Open(path string, _ int) error {
	return &SinkOpenError{Path: path, Err: ErrBackendUnavailable}
}

func (s *X264Sink) Append(_ *video.Frame) error {
	return &SinkWriteError{Err: ErrSinkNotOpen}
}

func (s *X264Sink) Close() error { return nil }

func (s *X264Sink) Frames() int { return 0 }
