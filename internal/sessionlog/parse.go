package sessionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Note: one annotation block read back from a log.
type Note struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Record: one Started..Ended interval of a log file.
type Record struct {
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at,omitempty"`
	Duration    time.Duration `json:"-"`
	Seconds     float64       `json:"duration_seconds"`
	Annotations []Note        `json:"annotations"`
	Aborted     bool          `json:"aborted,omitempty"`
	AbortReason string        `json:"abort_reason,omitempty"`
}

// Complete reports whether the footer was written.
func (r Record) Complete() bool { return !r.EndedAt.IsZero() }

// Parse reads a session log back. Annotations written before any header
// are attached to an implicit record with a zero StartedAt.
func Parse(r io.Reader) ([]Record, error) {
	var (
		out  []Record
		cur  *Record
		note *Note
		body []string
	)
	current := func() *Record {
		if cur == nil {
			out = append(out, Record{})
			cur = &out[len(out)-1]
		}
		return cur
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()

		if note != nil {
			if text == separator {
				note.Text = strings.Join(body, "\n")
				rec := current()
				rec.Annotations = append(rec.Annotations, *note)
				note, body = nil, nil
				continue
			}
			if len(body) == 0 {
				text = strings.TrimPrefix(text, contentPrefix)
			}
			body = append(body, text)
			continue
		}

		switch {
		case text == "":
		case strings.HasPrefix(text, tagStarted):
			at, err := parseTime(text, tagStarted, line)
			if err != nil {
				return out, err
			}
			out = append(out, Record{StartedAt: at})
			cur = &out[len(out)-1]
		case strings.HasPrefix(text, tagAnnotation):
			at, err := parseTime(text, tagAnnotation, line)
			if err != nil {
				return out, err
			}
			note = &Note{At: at}
		case strings.HasPrefix(text, tagAborted):
			if _, err := parseTime(text, tagAborted, line); err != nil {
				return out, err
			}
			current().Aborted = true
		case strings.HasPrefix(text, reasonPrefix):
			current().AbortReason = strings.TrimPrefix(text, reasonPrefix)
		case strings.HasPrefix(text, tagEnded):
			at, err := parseTime(text, tagEnded, line)
			if err != nil {
				return out, err
			}
			current().EndedAt = at
		case strings.HasPrefix(text, tagDuration):
			v := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, tagDuration), "seconds"))
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return out, fmt.Errorf("line %d: bad duration %q: %w", line, v, err)
			}
			rec := current()
			rec.Seconds = secs
			rec.Duration = time.Duration(secs * float64(time.Second))
			cur = nil
		default:
			// Foreign lines (other tools append to the same file) are skipped.
		}
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	if note != nil {
		return out, fmt.Errorf("line %d: unterminated annotation block", line)
	}
	return out, nil
}

func parseTime(text, tag string, line int) (time.Time, error) {
	v := strings.TrimSpace(strings.TrimPrefix(text, tag))
	t, err := time.ParseInLocation(TimeLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("line %d: bad timestamp %q: %w", line, v, err)
	}
	return t, nil
}

// ParseFile is Parse on a file path.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// --- Index (results.json) ---

const (
	LogSuffix     = "_log.txt"
	IndexFileName = "results.json"
	// FileTimeLayout: timestamp prefix of session file names.
	FileTimeLayout = "20060102_1504_05"
)

// IndexEntry: one session log summarized.
type IndexEntry struct {
	SessionID string   `json:"session_id"`
	Source    string   `json:"source"`
	LogFile   string   `json:"log_file"`
	Records   []Record `json:"records"`
}

// SplitSessionID splits "<20060102_1504_05>_<source>" into its parts.
func SplitSessionID(id string) (time.Time, string, bool) {
	if len(id) < len(FileTimeLayout)+2 || id[len(FileTimeLayout)] != '_' {
		return time.Time{}, "", false
	}
	t, err := time.ParseInLocation(FileTimeLayout, id[:len(FileTimeLayout)], time.Local)
	if err != nil {
		return time.Time{}, "", false
	}
	return t, id[len(FileTimeLayout)+1:], true
}

// BuildIndex parses every *_log.txt in dir, sorted by file name.
func BuildIndex(dir string) ([]IndexEntry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+LogSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	entries := make([]IndexEntry, 0, len(paths))
	for _, p := range paths {
		recs, err := ParseFile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		id := strings.TrimSuffix(filepath.Base(p), LogSuffix)
		e := IndexEntry{SessionID: id, LogFile: filepath.Base(p), Records: recs}
		if _, src, ok := SplitSessionID(id); ok {
			e.Source = src
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteIndex writes entries to dir/results.json and returns the path.
func WriteIndex(dir string, entries []IndexEntry) (string, error) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, IndexFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
