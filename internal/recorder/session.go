package recorder

import (
	"path/filepath"
	"time"

	"session-recorder/internal/region"
	"session-recorder/internal/sessionlog"
)

const (
	audioSuffix = "_temp.wav"
)

// Session: one StartSession..StopSession interval and the files it owns.
type Session struct {
	ID         string        `json:"id"`
	SourceName string        `json:"source_name"`
	Region     region.Region `json:"region"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at,omitempty"`
	VideoPath  string        `json:"video_path"`
	AudioPath  string        `json:"audio_path,omitempty"`
	LogPath    string        `json:"log_path"`
}

// Duration is zero while the session is still running.
func (s Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Files lists the paths that exist once the session has ended.
func (s Session) Files() []string {
	files := make([]string, 0, 3)
	for _, p := range []string{s.VideoPath, s.AudioPath, s.LogPath} {
		if p != "" {
			files = append(files, p)
		}
	}
	return files
}

// Stats: per-session counters.
type Stats struct {
	Frames      int `json:"frames"`
	Skipped     int `json:"skipped"`
	Annotations int `json:"annotations"`
}

// Result is handed to OnSessionEnd once the recorder is back to Idle.
type Result struct {
	Session Session
	Stats   Stats
	// Aborted is set when a sink failure ended the session before StopSession.
	Aborted bool
	Err     error
}

// SessionID: "<20060102_1504_05>_<source>".
func SessionID(t time.Time, source string) string {
	return t.Format(sessionlog.FileTimeLayout) + "_" + source
}

func newSession(dir, source, videoExt string, at time.Time, r region.Region) Session {
	id := SessionID(at, source)
	return Session{
		ID:         id,
		SourceName: source,
		Region:     r,
		StartedAt:  at,
		VideoPath:  filepath.Join(dir, id+videoExt),
		AudioPath:  filepath.Join(dir, id+audioSuffix),
		LogPath:    filepath.Join(dir, id+sessionlog.LogSuffix),
	}
}
