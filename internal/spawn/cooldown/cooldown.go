package cooldown

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Verdict struct {
	Allowed          bool
	RemainingSeconds int
}

// Tracker gates how often an actor may start a spawn search. Expired entries
// are dropped lazily on every check; there is no background sweep.
type Tracker struct {
	window func() time.Duration

	mu    sync.Mutex
	stamp map[uuid.UUID]int64 // unix millis of the last allowed check
}

// NewTracker reads the window on every check so config reloads apply to the
// next call.
func NewTracker(window func() time.Duration) *Tracker {
	return &Tracker{
		window: window,
		stamp:  map[uuid.UUID]int64{},
	}
}

func (t *Tracker) CheckAndStamp(id uuid.UUID, now time.Time) Verdict {
	nowMs := now.UnixMilli()
	var windowMs int64
	if t.window != nil {
		windowMs = t.window().Milliseconds()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	threshold := nowMs - windowMs
	for k, v := range t.stamp {
		if v < threshold {
			delete(t.stamp, k)
		}
	}

	if last, ok := t.stamp[id]; ok {
		if elapsed := nowMs - last; elapsed < windowMs {
			return Verdict{Allowed: false, RemainingSeconds: int((windowMs - elapsed) / 1000)}
		}
	}
	t.stamp[id] = nowMs
	return Verdict{Allowed: true}
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stamp)
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.stamp)
}
