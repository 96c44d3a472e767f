package progress

import "sync"

// Func observes (done, total) after each resolved chunk.
type Func func(done, total int)

// Tracker accumulates completions. done never decreases; total starts at the
// estimate and grows to done when completions exceed it.
type Tracker struct {
	mu    sync.Mutex
	done  int
	total int
	cb    Func
	fired bool
}

// NewTracker returns a tracker reporting to cb, which may be nil.
func NewTracker(estimate int, cb Func) *Tracker {
	if estimate < 0 {
		estimate = 0
	}
	return &Tracker{total: estimate, cb: cb}
}

// Start emits the initial (0, estimate) event.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit()
}

// Add records n completions and emits the new state.
func (t *Tracker) Add(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > 0 {
		t.done += n
	}
	if t.done > t.total {
		t.total = t.done
	}
	t.emit()
}

// Finish emits a terminal event when done fell short of total, or when no
// event was emitted at all.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done < t.total || !t.fired {
		t.emit()
	}
}

// Snapshot returns the current (done, total).
func (t *Tracker) Snapshot() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done, t.total
}

func (t *Tracker) emit() {
	t.fired = true
	if t.cb != nil {
		t.cb(t.done, t.total)
	}
}
