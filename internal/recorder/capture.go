package recorder

import (
	"time"

	"go.uber.org/zap"

	"session-recorder/internal/region"
)

// run is the capture goroutine of one session. A sink failure ends the
// session from here; the stop sequence then runs on this goroutine once
// done is closed and the start hook has returned.
func (r *Recorder) run(gen uint64, provider region.Provider, stop <-chan struct{}, done chan struct{}, announced <-chan struct{}) {
	err := r.capture(provider, stop)
	if err == nil {
		close(done)
		return
	}

	r.log.Error("video sink failed, ending session", zap.Error(err))
	r.mu.Lock()
	if r.gen == gen {
		r.abortErr = err
		r.state = Stopping
	}
	r.mu.Unlock()
	close(done)

	<-announced
	_ = r.stop(gen)
}

// capture paces ticks on a drift-corrected schedule: each deadline is the
// previous one plus the period, so a slow grab shortens the next wait
// instead of pushing every later frame back.
func (r *Recorder) capture(provider region.Provider, stop <-chan struct{}) error {
	next := r.clock.Now()
	var tick int64

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if err := r.tick(provider, tick); err != nil {
			return err
		}
		tick++

		next = next.Add(r.period)
		wait := next.Sub(r.clock.Now())
		if wait < -r.period {
			// Bir periyottan fazla geride: kaçan kareleri telafi etmeye çalışma
			next = r.clock.Now()
			wait = 0
		}

		select {
		case <-stop:
			return nil
		case <-r.clock.After(max(wait, 0)):
		}
	}
}

// tick: region -> grab -> overlay -> append. Only an append failure is
// returned; grab failures are counted and skipped.
func (r *Recorder) tick(provider region.Provider, n int64) error {
	reg := provider()
	frame, err := r.deps.Grabber.Grab(reg)
	if err != nil || frame == nil {
		r.skipped.Add(1)
		r.log.Warn("frame capture failed", zap.Int64("tick", n), zap.Stringer("region", reg), zap.Error(err))
		return nil
	}

	now := r.clock.Now()
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = now
	}
	if r.queue.Pending() {
		anns := r.queue.DrainUnexpired(now)
		if len(anns) > 0 && r.deps.Compositor != nil {
			frame = r.deps.Compositor.Overlay(frame, anns)
		}
	}

	if err := r.deps.Sink.Append(frame); err != nil {
		return err
	}
	r.frames.Add(1)
	return nil
}

// Period is the target interval between ticks.
func (r *Recorder) Period() time.Duration { return r.period }
