package fake

import (
	"fmt"
	"slices"
	"sync"
)

// Recorder keeps the ordered list of platform calls made against a fake
// subsystem and any ordering rules those calls broke.
type Recorder struct {
	mu         sync.Mutex
	calls      []string
	violations []string
}

func (r *Recorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *Recorder) violate(format string, args ...any) {
	r.mu.Lock()
	r.violations = append(r.violations, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Violations returns ordering rules broken so far.
func (r *Recorder) Violations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.violations)
}

// Count returns how many times call was recorded.
func (r *Recorder) Count(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

// LastIndex returns the position of the last occurrence of call, or -1.
func (r *Recorder) LastIndex(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i] == call {
			return i
		}
	}
	return -1
}

// Reset clears calls and violations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.violations = nil
	r.mu.Unlock()
}
