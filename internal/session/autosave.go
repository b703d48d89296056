package session

import (
	"sync"
	"time"
)

// AutoSaveScheduler converts a burst of edits into a single remote write.
// Each Schedule call restarts the debounce timer; when it fires, the
// injected persist func runs and pulls the then-current snapshot itself,
// so the scheduler can never write stale data. At most one persist runs
// at a time: a fire arriving while a write is in flight is deferred until
// that write settles, then runs once with the latest snapshot.
//
// Every scheduler is owned by exactly one controller instance. There is
// no package-level timer or in-flight flag shared across sessions.
type AutoSaveScheduler struct {
	delay   time.Duration
	persist func() error

	mu       sync.Mutex
	cond     *sync.Cond
	timer    *time.Timer
	inFlight bool
	deferred bool
}

// NewAutoSaveScheduler builds a scheduler around a persist func. The
// func must be safe to call from the timer goroutine.
func NewAutoSaveScheduler(delay time.Duration, persist func() error) *AutoSaveScheduler {
	s := &AutoSaveScheduler{delay: delay, persist: persist}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Schedule cancels any pending timer and starts a new debounce window.
func (s *AutoSaveScheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

// Cancel clears any pending timer without firing it. An already
// in-flight write is not interrupted; its result is the controller's
// problem (stale-response guard).
func (s *AutoSaveScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.deferred = false
}

// Flush performs an immediate write through the same in-flight gate the
// timer path uses: it waits for any in-flight write to settle, then runs
// persist synchronously and returns its error. A pending debounce timer
// is cancelled, its work subsumed by this write.
func (s *AutoSaveScheduler) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for s.inFlight {
		s.cond.Wait()
	}
	s.inFlight = true
	s.deferred = false
	s.mu.Unlock()

	err := s.persist()

	s.mu.Lock()
	s.inFlight = false
	s.cond.Broadcast()
	rerun := s.deferred
	s.deferred = false
	s.mu.Unlock()

	if rerun {
		// A timer fired during the manual write; honor it once more with
		// whatever snapshot is current by then.
		go s.fire()
	}
	return err
}

func (s *AutoSaveScheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.inFlight {
		s.deferred = true
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()
	s.run()
}

func (s *AutoSaveScheduler) run() {
	for {
		_ = s.persist() // persist reports failures to its own caller state

		s.mu.Lock()
		s.inFlight = false
		s.cond.Broadcast()
		if !s.deferred {
			s.mu.Unlock()
			return
		}
		s.deferred = false
		s.inFlight = true
		s.mu.Unlock()
	}
}
