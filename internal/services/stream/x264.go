//go:build x264 && cgo

package stream

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"session-recorder/internal/video"
)

// X264Sink encodes frames in-process with libx264 and writes a raw
// Annex-B H.264 elementary stream.
type X264Sink struct {
	CRF int

	log *zap.Logger

	mu     sync.Mutex
	path   string
	fps    int
	file   *os.File
	w      *bufio.Writer
	enc    *Encoder
	frames int
}

func NewX264Sink(log *zap.Logger) Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &X264Sink{CRF: 23, log: log.Named("x264")}
}

func (s *X264Sink) Ext() string { return ".h264" }

func (s *X264Sink) Open(path string, fps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return &SinkOpenError{Path: path, Err: ErrSinkAlreadyOpen}
	}
	if fps <= 0 {
		return &SinkOpenError{Path: path, Err: fmt.Errorf("invalid fps %d", fps)}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &SinkOpenError{Path: path, Err: err}
	}
	s.path = path
	s.fps = fps
	s.file = f
	s.w = bufio.NewWriterSize(f, 1<<20)
	s.frames = 0
	return nil
}

func (s *X264Sink) Append(f *video.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return &SinkWriteError{Frame: s.frames, Err: ErrSinkNotOpen}
	}
	if f == nil {
		return &SinkWriteError{Frame: s.frames, Err: fmt.Errorf("nil frame")}
	}
	if s.enc == nil {
		enc, err := NewEncoder(f.Width, f.Height, s.fps, s.CRF)
		if err != nil {
			return &SinkWriteError{Frame: s.frames, Err: err}
		}
		s.enc = enc
	}

	nal := s.enc.Encode(f.Fit(s.enc.Width, s.enc.Height))
	if len(nal) > 0 {
		if _, err := s.w.Write(nal); err != nil {
			return &SinkWriteError{Frame: s.frames, Err: err}
		}
	}
	s.frames++
	return nil
}

func (s *X264Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	var err error
	if s.enc != nil {
		if tail := s.enc.Flush(); len(tail) > 0 {
			_, werr := s.w.Write(tail)
			err = multierr.Append(err, werr)
		}
		s.enc.Close()
		s.enc = nil
	}
	err = multierr.Append(err, s.w.Flush())
	err = multierr.Append(err, s.file.Close())
	s.file = nil
	s.w = nil

	s.log.Debug("video finalized", zap.String("path", s.path), zap.Int("frames", s.frames))
	return err
}

func (s *X264Sink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
