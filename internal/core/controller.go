package core

import (
	"session-recorder/internal/protocol"
	"session-recorder/internal/recorder"
	"session-recorder/internal/region"
)

// --- control.Controller ---

// Start records the tracked region; a region update from the control
// channel applies to the running session on the next tick.
func (a *App) Start() error {
	return a.Recorder.StartSession(a.Tracker.Current)
}

func (a *App) Stop() error {
	return a.Recorder.StopSession()
}

func (a *App) Annotate(text string) error {
	return a.Recorder.AddAnnotation(text)
}

func (a *App) SetRegion(r region.Region) {
	a.Tracker.Update(r)
}

// Status: the active session, or the last one once stopped.
func (a *App) Status() protocol.Reply {
	rep := protocol.Reply{
		OK:        true,
		Recording: a.Recorder.IsRecording(),
		State:     a.Recorder.State().String(),
	}
	sess, ok := a.Recorder.Session()
	if !ok {
		sess, ok = a.Recorder.LastSession()
	}
	if ok {
		rep.Session = sessionInfo(sess, a.Recorder.Stats())
	}
	return rep
}

func sessionInfo(s recorder.Session, st recorder.Stats) *protocol.SessionInfo {
	return &protocol.SessionInfo{
		ID:          s.ID,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		Region:      s.Region,
		VideoPath:   s.VideoPath,
		LogPath:     s.LogPath,
		Frames:      st.Frames,
		Skipped:     st.Skipped,
		Annotations: st.Annotations,
	}
}
