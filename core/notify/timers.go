package notify

import (
	"sync"
	"time"
)

// TimerSet owns a batch of armed timers. Re-arming always starts from a
// CancelAll, so a stale batch can never fire alongside a fresh one.
type TimerSet struct {
	mu     sync.Mutex
	timers []*time.Timer
}

func NewTimerSet() *TimerSet {
	return &TimerSet{}
}

// Arm schedules fire to run after d. A non-positive d is ignored.
func (ts *TimerSet) Arm(d time.Duration, fire func()) {
	if d <= 0 {
		return
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.timers = append(ts.timers, time.AfterFunc(d, fire))
}

// CancelAll stops every pending timer in the batch.
func (ts *TimerSet) CancelAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, t := range ts.timers {
		t.Stop()
	}
	ts.timers = nil
}

// Len returns the number of timers armed since the last CancelAll.
func (ts *TimerSet) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.timers)
}
