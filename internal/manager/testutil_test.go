package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"imaged/pkg/types"
)

// fakeResource counts releases.
type fakeResource struct {
	id       int
	released atomic.Int32
	relErr   error
}

func (r *fakeResource) Release() error {
	r.released.Add(1)
	return r.relErr
}

// fakeBackend is an in-memory backend used for tests.
type fakeBackend struct {
	mu sync.Mutex
	// loadGate, when set, blocks Load until it is closed.
	loadGate chan struct{}
	// computeGate, when set, blocks Compute until it is closed.
	computeGate chan struct{}
	// computeStarted receives once per Compute call, if set.
	computeStarted chan struct{}
	loadErr        error
	computeErr     error
	relErr         error
	loadPanic      bool
	computePanic   bool

	loads     atomic.Int32
	computes  atomic.Int32
	resources []*fakeResource
	lastReq   types.GenerationRequest
	lastSrc   types.ModelSource
}

func (f *fakeBackend) Load(ctx context.Context, src types.ModelSource) (Resource, error) {
	n := f.loads.Add(1)
	f.mu.Lock()
	gate := f.loadGate
	f.lastSrc = src
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadPanic {
		panic("loader exploded")
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	r := &fakeResource{id: int(n), relErr: f.relErr}
	f.resources = append(f.resources, r)
	return r, nil
}

func (f *fakeBackend) Compute(ctx context.Context, res Resource, req types.GenerationRequest) ([]byte, error) {
	f.computes.Add(1)
	f.mu.Lock()
	gate, started := f.computeGate, f.computeStarted
	f.lastReq = req
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.computePanic {
		panic("invoker exploded")
	}
	if f.computeErr != nil {
		return nil, f.computeErr
	}
	return []byte("\x89PNG fake"), nil
}

func (f *fakeBackend) setLoadErr(err error) {
	f.mu.Lock()
	f.loadErr = err
	f.mu.Unlock()
}

func (f *fakeBackend) releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.resources {
		n += int(r.released.Load())
	}
	return n
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

// newTestManager builds a manager whose reclamation loop effectively never
// ticks, so tests drive Reclaim directly.
func newTestManager(t *testing.T, fb *fakeBackend, clk *fakeClock, idle time.Duration) *Manager {
	t.Helper()
	cfg := ManagerConfig{
		Backend:         fb,
		Source:          types.ModelSource{Model: "models/diffusion.safetensors"},
		IdleTimeout:     idle,
		ReclaimInterval: time.Hour,
		DrainTimeout:    200 * time.Millisecond,
	}
	if clk != nil {
		cfg.Clock = clk.Now
	}
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testRequest() types.GenerationRequest {
	req := types.DefaultGenerationRequest()
	req.Prompt = "a lighthouse at dusk"
	return req
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
