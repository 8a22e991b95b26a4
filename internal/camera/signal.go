package camera

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/snapcam/internal/platform"
)

type completionKind int

const (
	completionEmpty completionKind = iota
	completionCancelled
	completionReady
)

// dispatchFunc interprets a completed request for the given cycle.
type dispatchFunc func(ctx context.Context, cycle uint64) (*Frame, error)

// completion is the value carried by the mailbox.
type completion struct {
	kind   completionKind
	req    *platform.Request
	action dispatchFunc
}

// stale reports whether the request was requeued after it was posted, in
// which case its buffer belongs to the hardware again.
func (c completion) stale() bool {
	return c.req != nil && c.req.Status() == platform.RequestQueued
}

// completionSignal is a single-slot mailbox between the completion callback
// and the controller. A post replaces whatever is pending; the waiter sees
// only the latest completion.
type completionSignal struct {
	mu   sync.Mutex
	slot chan completion
}

func newCompletionSignal() *completionSignal {
	return &completionSignal{slot: make(chan completion, 1)}
}

// post stores c and wakes the waiter. It never blocks.
func (s *completionSignal) post(c completion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.slot:
	default:
	}
	s.slot <- c
}

// clear drops any pending completion.
func (s *completionSignal) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.slot:
	default:
	}
}

// wait blocks until a completion is posted, the deadline channel fires or
// ctx ends. A fired deadline yields an Empty completion and a nil error.
func (s *completionSignal) wait(ctx context.Context, deadline <-chan time.Time) (completion, error) {
	select {
	case c := <-s.slot:
		return c, nil
	case <-deadline:
		return completion{kind: completionEmpty}, nil
	case <-ctx.Done():
		return completion{kind: completionEmpty}, ctx.Err()
	}
}
