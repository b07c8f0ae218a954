package stream

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"session-recorder/internal/video"
)

// stderr tail kept for error messages
const stderrLimit = 4096

// FFmpegSink pipes raw rgb24 frames into an ffmpeg process that encodes
// H.264 into an mp4 container. Open truncates the file; the process is
// spawned on the first frame, once the dimensions are known.
type FFmpegSink struct {
	Binary string
	// Preset: libx264 speed preset
	Preset string
	CRF    int

	log *zap.Logger

	mu     sync.Mutex
	path   string
	fps    int
	open   bool
	width  int
	height int
	frames int

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	row    []byte
}

func NewFFmpegSink(log *zap.Logger) *FFmpegSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &FFmpegSink{
		Binary: "ffmpeg",
		Preset: "veryfast",
		CRF:    23,
		log:    log.Named("ffmpeg"),
	}
}

func (s *FFmpegSink) Ext() string { return ".mp4" }

func (s *FFmpegSink) Open(path string, fps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return &SinkOpenError{Path: path, Err: ErrSinkAlreadyOpen}
	}
	if fps <= 0 {
		return &SinkOpenError{Path: path, Err: fmt.Errorf("invalid fps %d", fps)}
	}
	if err := checkDir(path); err != nil {
		return &SinkOpenError{Path: path, Err: err}
	}
	if _, err := exec.LookPath(s.Binary); err != nil {
		return &SinkOpenError{Path: path, Err: fmt.Errorf("%w: %v", ErrBackendUnavailable, err)}
	}

	// Aynı isimli eski bir kaydı kareler gelmeden sil
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &SinkOpenError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &SinkOpenError{Path: path, Err: err}
	}

	s.path = path
	s.fps = fps
	s.open = true
	s.frames = 0
	s.width, s.height = 0, 0
	return nil
}

func (s *FFmpegSink) Append(f *video.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return &SinkWriteError{Frame: s.frames, Err: ErrSinkNotOpen}
	}
	if f == nil {
		return &SinkWriteError{Frame: s.frames, Err: fmt.Errorf("nil frame")}
	}
	if s.cmd == nil {
		if err := s.start(f.Width, f.Height); err != nil {
			return &SinkWriteError{Frame: s.frames, Err: err}
		}
	}

	f = f.Fit(s.width, s.height)
	if err := s.writeFrame(f); err != nil {
		return &SinkWriteError{Frame: s.frames, Err: fmt.Errorf("%w (ffmpeg: %s)", err, s.stderr.String())}
	}
	s.frames++
	return nil
}

// Close flushes stdin and waits for ffmpeg to finalize the container.
func (s *FFmpegSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	if s.cmd == nil {
		// hiç kare gelmedi, Open'ın bıraktığı boş dosya kalır
		return nil
	}

	cmd := s.cmd
	s.cmd = nil
	_ = s.stdin.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exit: %w (%s)", err, s.stderr.String())
	}
	s.log.Debug("video finalized", zap.String("path", s.path), zap.Int("frames", s.frames))
	return nil
}

func (s *FFmpegSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *FFmpegSink) start(w, h int) error {
	w, h, err := encodeSize(w, h)
	if err != nil {
		return err
	}

	cmd := exec.Command(s.Binary, s.args(w, h)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	s.stderr = &tailBuffer{limit: stderrLimit}
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	s.log.Debug("ffmpeg started", zap.Int("pid", cmd.Process.Pid), zap.Int("width", w), zap.Int("height", h))
	s.cmd = cmd
	s.stdin = stdin
	s.width, s.height = w, h
	return nil
}

func (s *FFmpegSink) args(w, h int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", strconv.Itoa(w) + "x" + strconv.Itoa(h),
		"-r", strconv.Itoa(s.fps),
		"-i", "pipe:0",
		"-an",
		"-c:v", "libx264",
		"-preset", s.Preset,
		"-crf", strconv.Itoa(s.CRF),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		s.path,
	}
}

func (s *FFmpegSink) writeFrame(f *video.Frame) error {
	rowBytes := f.Width * 3
	if f.Stride == rowBytes {
		_, err := s.stdin.Write(f.Pix[:rowBytes*f.Height])
		return err
	}
	if cap(s.row) < rowBytes*f.Height {
		s.row = make([]byte, rowBytes*f.Height)
	}
	buf := s.row[:rowBytes*f.Height]
	for y := 0; y < f.Height; y++ {
		copy(buf[y*rowBytes:(y+1)*rowBytes], f.Pix[y*f.Stride:y*f.Stride+rowBytes])
	}
	_, err := s.stdin.Write(buf)
	return err
}

func checkDir(path string) error {
	dir := filepath.Dir(path)
	st, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf.Bytes()))
}
