package camera

import (
	"context"
	"testing"
	"time"

	"github.com/smazurov/snapcam/internal/platform"
)

func TestCompletionSignalOverwrites(t *testing.T) {
	s := newCompletionSignal()
	first := platform.NewRequest(1)
	second := platform.NewRequest(2)

	s.post(completion{kind: completionCancelled, req: first})
	s.post(completion{kind: completionReady, req: second})

	c, err := s.wait(context.Background(), nil)
	if err != nil {
		t.Fatalf("wait() error = %v", err)
	}
	if c.kind != completionReady || c.req != second {
		t.Errorf("wait() = kind %d req %v, want the latest post", c.kind, c.req.Cookie())
	}
}

func TestCompletionSignalClear(t *testing.T) {
	s := newCompletionSignal()
	s.post(completion{kind: completionReady, req: platform.NewRequest(0)})
	s.clear()
	s.clear()

	deadline := time.After(10 * time.Millisecond)
	c, err := s.wait(context.Background(), deadline)
	if err != nil {
		t.Fatalf("wait() error = %v", err)
	}
	if c.kind != completionEmpty {
		t.Errorf("wait() after clear = kind %d, want empty", c.kind)
	}
}

func TestCompletionSignalContext(t *testing.T) {
	s := newCompletionSignal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.wait(ctx, nil); err != context.Canceled {
		t.Errorf("wait() error = %v, want context.Canceled", err)
	}
}

func TestCompletionSignalPostNeverBlocks(t *testing.T) {
	s := newCompletionSignal()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.post(completion{kind: completionCancelled})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("post blocked without a reader")
	}
}

func TestCompletionStale(t *testing.T) {
	req := platform.NewRequest(0)
	if err := req.MarkQueued(); err != nil {
		t.Fatalf("MarkQueued() error = %v", err)
	}
	c := completion{kind: completionReady, req: req}
	if !c.stale() {
		t.Error("completion for a requeued request is not stale")
	}

	req.Finish(platform.RequestComplete)
	if c.stale() {
		t.Error("completion for a finished request is stale")
	}
	if (completion{kind: completionEmpty}).stale() {
		t.Error("empty completion is stale")
	}
}
