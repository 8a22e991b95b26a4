package camera

import (
	"context"
	"errors"
	"testing"

	"github.com/smazurov/snapcam/internal/platform"
	"github.com/smazurov/snapcam/internal/platform/fake"
)

func configuredHandle(t *testing.T, spec fake.CameraSpec) (*Handle, *fake.Subsystem) {
	t.Helper()
	m, sub := startedManager(t, spec)
	h := m.NewHandle(HandleOptions{})
	if err := h.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := h.Configure(DefaultStreamConfig()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h, sub
}

func TestAllocateBuildsOneRequestPerBuffer(t *testing.T) {
	h, sub := configuredHandle(t, fake.CameraSpec{ID: "cam"})

	if err := h.AllocateBuffers(); err != nil {
		t.Fatalf("AllocateBuffers() error = %v", err)
	}
	if got := h.Buffers(); got != 4 {
		t.Errorf("Buffers() = %d, want 4", got)
	}

	reqs := h.requests()
	if len(reqs) != 4 {
		t.Fatalf("requests = %d, want 4", len(reqs))
	}
	seen := make(map[*platform.FrameBuffer]bool)
	for i, req := range reqs {
		if req.Cookie() != uint64(i) {
			t.Errorf("request %d cookie = %d", i, req.Cookie())
		}
		b := req.Bindings()
		if len(b) != 1 {
			t.Fatalf("request %d has %d bindings, want 1", i, len(b))
		}
		if seen[b[0].Buffer] {
			t.Errorf("buffer %d bound to more than one request", b[0].Buffer.Index())
		}
		seen[b[0].Buffer] = true
	}
	if n := sub.Camera("cam").OutstandingBuffers(); n != 4 {
		t.Errorf("device holds %d buffers, want 4", n)
	}

	if err := h.AllocateBuffers(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second AllocateBuffers() error = %v, want ErrInvalidState", err)
	}
}

func TestAllocateRollback(t *testing.T) {
	tests := []struct {
		name      string
		spec      fake.CameraSpec
		wantErr   error
		notWanted error
	}{
		{
			name:      "allocator out of memory",
			spec:      fake.CameraSpec{ID: "cam", AllocateErr: platform.ErrNoMemory},
			wantErr:   ErrAllocationFailed,
			notWanted: ErrInvalidConfiguration,
		},
		{
			name:    "request creation fails midway",
			spec:    fake.CameraSpec{ID: "cam", FailCreateRequestAt: 3},
			wantErr: ErrRequestBuildFailed,
		},
		{
			name:    "first request fails",
			spec:    fake.CameraSpec{ID: "cam", FailCreateRequestAt: 1},
			wantErr: ErrRequestBuildFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sub := configuredHandle(t, tt.spec)
			rec := sub.Recorder()

			err := h.AllocateBuffers()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AllocateBuffers() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrAllocationFailed) {
				t.Errorf("error %v is not kind AllocationFailed", err)
			}
			if tt.notWanted != nil && errors.Is(err, tt.notWanted) {
				t.Errorf("error %v also matches %v", err, tt.notWanted)
			}

			if n := sub.Camera("cam").OutstandingBuffers(); n != 0 {
				t.Errorf("%d buffers left after rollback", n)
			}
			if h.Buffers() != 0 || h.requests() != nil {
				t.Error("handle kept a pool after failed allocation")
			}
			if h.State() != StateConfigured {
				t.Errorf("state = %s, want configured", h.State())
			}
			if rec.Count(fake.CallCloseAllocator) != 1 {
				t.Errorf("allocator closed %d times, want 1", rec.Count(fake.CallCloseAllocator))
			}
			if v := rec.Violations(); len(v) != 0 {
				t.Errorf("violations: %v", v)
			}
		})
	}
}

func TestCloseAllocatorRequiresFreedBuffers(t *testing.T) {
	h, sub := configuredHandle(t, fake.CameraSpec{ID: "cam"})

	pool := newRequestPool(h.cam, h.pcfg, discardLogger())
	if err := pool.Allocate(); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	err := pool.CloseAllocator()
	if !errors.Is(err, ErrTeardownOrder) {
		t.Fatalf("CloseAllocator() before FreeBuffers error = %v, want ErrTeardownOrder", err)
	}
	if sub.Recorder().Count(fake.CallCloseAllocator) != 0 {
		t.Error("allocator closed despite outstanding buffers")
	}

	if err := pool.FreeBuffers(); err != nil {
		t.Fatalf("FreeBuffers() error = %v", err)
	}
	if err := pool.CloseAllocator(); err != nil {
		t.Fatalf("CloseAllocator() error = %v", err)
	}
	if err := pool.Release(); err != nil {
		t.Errorf("Release() after teardown error = %v", err)
	}
	if v := sub.Recorder().Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestAllocateLimitShrinksPool(t *testing.T) {
	h, _ := configuredHandle(t, fake.CameraSpec{ID: "cam", AllocateLimit: 2})

	if err := h.AllocateBuffers(); err != nil {
		t.Fatalf("AllocateBuffers() error = %v", err)
	}
	if got := len(h.requests()); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}
