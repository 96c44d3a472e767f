// Package progress carries cancellation and completion counts between a bulk
// dispatch and its caller.
package progress

import "sync"

// Signal is a single-fire stop flag. The zero value is ready to use and all
// methods are safe for concurrent use.
type Signal struct {
	once sync.Once
	mu   sync.Mutex
	ch   chan struct{}
}

func (s *Signal) done() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	return s.ch
}

// Fire sets the signal. Extra calls are no-ops.
func (s *Signal) Fire() {
	if s == nil {
		return
	}
	ch := s.done()
	s.once.Do(func() { close(ch) })
}

// Fired reports whether Fire has been called. A nil Signal never fires.
func (s *Signal) Fired() bool {
	if s == nil {
		return false
	}
	select {
	case <-s.done():
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the signal fires. A nil Signal returns nil.
func (s *Signal) Done() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.done()
}
