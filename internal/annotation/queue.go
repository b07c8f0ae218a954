package annotation

import (
	"sync"
	"time"

	"session-recorder/internal/clock"
)

// DefaultTTL: how long an annotation stays on screen when no ttl is given.
const DefaultTTL = 5 * time.Second

// Annotation: a text note pinned to a moment of the session.
type Annotation struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Visible reports whether the annotation should be drawn at now.
func (a Annotation) Visible(now time.Time) bool {
	return !now.Before(a.CreatedAt) && now.Before(a.ExpiresAt)
}

// Queue holds live annotations. Any goroutine may Add; the compositor
// drains with DrainUnexpired. Expired entries are dropped on drain.
type Queue struct {
	mu         sync.Mutex
	items      []Annotation
	clock      clock.Clock
	defaultTTL time.Duration
}

// NewQueue: ttl <= 0 falls back to DefaultTTL.
func NewQueue(c clock.Clock, ttl time.Duration) *Queue {
	if c == nil {
		c = clock.Real()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{clock: c, defaultTTL: ttl}
}

// DefaultTTL returns the ttl used by AddDefault.
func (q *Queue) DefaultTTL() time.Duration {
	return q.defaultTTL
}

// AddDefault stores text with the queue's default ttl.
func (q *Queue) AddDefault(text string) Annotation {
	return q.Add(text, q.defaultTTL)
}

// Add stores text visible for ttl starting now. A ttl of zero (or less)
// creates an annotation that is already expired.
func (q *Queue) Add(text string, ttl time.Duration) Annotation {
	if ttl < 0 {
		ttl = 0
	}
	now := q.clock.Now()
	a := Annotation{Text: text, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	q.mu.Lock()
	q.items = append(q.items, a)
	q.mu.Unlock()
	return a
}

// DrainUnexpired returns the annotations visible at now in insertion order.
// Visible entries stay queued for the next frames; expired ones are removed
// for good.
func (q *Queue) DrainUnexpired(now time.Time) []Annotation {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	var out []Annotation
	kept := q.items[:0]
	for _, a := range q.items {
		if !now.Before(a.ExpiresAt) {
			continue
		}
		kept = append(kept, a)
		if !now.Before(a.CreatedAt) {
			out = append(out, a)
		}
	}
	// Tail temizliği: eski referansları bırak
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = Annotation{}
	}
	q.items = kept
	return out
}

// Pending reports whether anything is queued. Cheap check for the capture
// loop so the common no-annotation tick skips compositing.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) > 0
}

// Len returns the number of queued annotations, expired or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Reset drops everything.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
