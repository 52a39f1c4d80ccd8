package dispatcher

import (
	"iter"
	"sync"
)

// RoundRobin owns the rotation cursor over n credentials. The cursor only
// moves through Succeeded and Exhausted.
type RoundRobin struct {
	mu     sync.Mutex
	n      int
	cursor int
}

// NewRoundRobin returns a dispatcher over n slots starting at start.
func NewRoundRobin(n, start int) *RoundRobin {
	rr := &RoundRobin{n: n}
	if n > 0 {
		rr.cursor = ((start % n) + n) % n
	}
	return rr
}

func (r *RoundRobin) Len() int { return r.n }

func (r *RoundRobin) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Candidates yields every slot exactly once, starting at the cursor as it
// was when iteration began and wrapping around.
func (r *RoundRobin) Candidates() iter.Seq[int] {
	return func(yield func(int) bool) {
		start := r.Cursor()
		for i := 0; i < r.n; i++ {
			if !yield((start + i) % r.n) {
				return
			}
		}
	}
}

// Succeeded moves the cursor just past the slot that answered.
func (r *RoundRobin) Succeeded(idx int) {
	if r.n == 0 {
		return
	}
	r.mu.Lock()
	r.cursor = (idx + 1) % r.n
	r.mu.Unlock()
}

// Exhausted advances the cursor by one after a pass where no slot answered.
func (r *RoundRobin) Exhausted() {
	if r.n == 0 {
		return
	}
	r.mu.Lock()
	r.cursor = (r.cursor + 1) % r.n
	r.mu.Unlock()
}
