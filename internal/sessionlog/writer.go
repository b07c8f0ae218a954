package sessionlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// TimeLayout: timestamps inside the log, millisecond precision.
	TimeLayout = "2006-01-02 15:04:05.000"

	tagStarted    = "[Video Recording Started]"
	tagEnded      = "[Video Recording Ended]"
	tagDuration   = "[Duration]"
	tagAnnotation = "[Annotation]"
	tagAborted    = "[Video Recording Aborted]"
	contentPrefix = "Content: "
	reasonPrefix  = "Reason: "
	separator     = "------------------------"
)

// FileIOError: appending to the session log failed. The log cannot record
// its own failure, so the writer also reports it on the zap logger.
type FileIOError struct {
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("session log %s: %v", e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error { return e.Err }

// Writer appends line groups to one session log. A single mutex keeps
// recorder lines and annotation lines from interleaving mid-write.
type Writer struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

func NewWriter(path string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{path: path, log: log}
}

func (w *Writer) Path() string { return w.path }

// Started writes the session header.
func (w *Writer) Started(at time.Time) error {
	return w.append(fmt.Sprintf("\n%s %s\n", tagStarted, at.Format(TimeLayout)))
}

// Annotation writes one annotation block.
func (w *Writer) Annotation(at time.Time, text string) error {
	return w.append(fmt.Sprintf("%s %s\n%s%s\n%s\n", tagAnnotation, at.Format(TimeLayout), contentPrefix, text, separator))
}

// Aborted records why a session ended on its own before StopSession.
func (w *Writer) Aborted(at time.Time, reason error) error {
	return w.append(fmt.Sprintf("%s %s\n%s%v\n", tagAborted, at.Format(TimeLayout), reasonPrefix, reason))
}

// Ended writes the footer with the session duration.
func (w *Writer) Ended(at time.Time, d time.Duration) error {
	return w.append(fmt.Sprintf("%s %s\n%s %s seconds\n\n", tagEnded, at.Format(TimeLayout), tagDuration, FormatSeconds(d)))
}

// FormatSeconds renders d as seconds with two decimals, e.g. "12.34".
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}

func (w *Writer) append(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return w.fail(err)
	}
	if _, err := f.WriteString(s); err != nil {
		_ = f.Close()
		return w.fail(err)
	}
	if err := f.Close(); err != nil {
		return w.fail(err)
	}
	return nil
}

func (w *Writer) fail(err error) error {
	ioErr := &FileIOError{Path: w.path, Err: err}
	w.log.Error("session log append failed", zap.String("path", w.path), zap.Error(err))
	return ioErr
}
