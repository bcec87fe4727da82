package sandbox

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler runs at most one delayed task per key.
type Scheduler struct {
	clock clockwork.Clock

	mu      sync.Mutex
	timers  map[string]clockwork.Timer
	stopped bool
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]clockwork.Timer),
	}
}

// Schedule arranges for fn to run once after delay. It returns false when a
// task for id is already pending or the scheduler has been stopped.
func (s *Scheduler) Schedule(id string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, exists := s.timers[id]; exists {
		return false
	}

	var timer clockwork.Timer
	timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.timers[id]
		if !ok || current != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.mu.Unlock()

		fn()
	})
	s.timers[id] = timer
	return true
}

// Cancel stops the pending task for id. It reports whether one was pending.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	timer, ok := s.timers[id]
	if ok {
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if ok {
		timer.Stop()
	}
	return ok
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending task and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	timers := s.timers
	s.timers = make(map[string]clockwork.Timer)
	s.stopped = true
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}
