package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"imaged/pkg/types"
)

func TestNewWithConfigDefaults(t *testing.T) {
	m := NewWithConfig(ManagerConfig{Backend: &fakeBackend{}})
	defer m.Close()
	if m.IdleTimeout() != defaultIdleTimeout {
		t.Fatalf("expected default idle timeout=%v got %v", defaultIdleTimeout, m.IdleTimeout())
	}
	if m.reclaimInterval != defaultReclaimInterval {
		t.Fatalf("expected default reclaim interval=%v got %v", defaultReclaimInterval, m.reclaimInterval)
	}
	if m.MaxConcurrentCompute() != defaultMaxConcurrentCompute {
		t.Fatalf("expected default max compute=%d got %d", defaultMaxConcurrentCompute, m.MaxConcurrentCompute())
	}
	if m.drainTimeout != defaultDrainTimeout {
		t.Fatalf("expected default drain timeout=%v got %v", defaultDrainTimeout, m.drainTimeout)
	}
	if m.State() != StateUnloaded || m.Loaded() {
		t.Fatalf("expected unloaded at start, got %s", m.State())
	}
	if !m.Ready() {
		t.Fatalf("expected ready before Close")
	}
}

func TestFirstGenerateLoadsOnceWithExactParams(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb, newFakeClock(), 300*time.Second)

	req := types.GenerationRequest{Prompt: "a cat", ImageSize: 1024, Steps: 50, CFGScale: 5.0, Seed: 42}
	res, err := m.Generate(testCtx(t), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if fb.loads.Load() != 1 || fb.computes.Load() != 1 {
		t.Fatalf("expected 1 load and 1 compute, got %d/%d", fb.loads.Load(), fb.computes.Load())
	}
	if fb.lastReq != req {
		t.Fatalf("compute saw %+v, want %+v", fb.lastReq, req)
	}
	if fb.lastSrc.Model != "models/diffusion.safetensors" {
		t.Fatalf("loader saw source %+v", fb.lastSrc)
	}
	if len(res.Image) == 0 || res.MIMEType != "image/png" || res.Request != req {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !m.Loaded() {
		t.Fatalf("expected slot ready after generate, got %s", m.State())
	}
}

func TestConcurrentGeneratesShareOneLoad(t *testing.T) {
	gate := make(chan struct{})
	fb := &fakeBackend{loadGate: gate}
	m := newTestManager(t, fb, nil, 300*time.Second)
	ctx := testCtx(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Generate(ctx, testRequest())
			errs <- err
		}()
	}
	waitFor(t, "load to start", func() bool { return fb.loads.Load() == 1 })
	if m.State() != StateLoading {
		t.Fatalf("expected loading, got %s", m.State())
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	if got := fb.loads.Load(); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
	if got := fb.computes.Load(); got != n {
		t.Fatalf("expected %d computes, got %d", n, got)
	}
}

func TestConcurrentWaitersShareLoadFailure(t *testing.T) {
	gate := make(chan struct{})
	fb := &fakeBackend{loadGate: gate, loadErr: errBoom}
	m := newTestManager(t, fb, nil, 300*time.Second)
	ctx := testCtx(t)

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Generate(ctx, testRequest())
			errs <- err
		}()
	}
	waitFor(t, "load to start", func() bool { return fb.loads.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if !IsResourceUnavailable(err) || !errors.Is(err, errBoom) {
			t.Fatalf("expected shared ResourceUnavailable(boom), got %v", err)
		}
	}
	if got := fb.loads.Load(); got != 1 {
		t.Fatalf("expected one load attempt, got %d", got)
	}
	if fb.computes.Load() != 0 {
		t.Fatalf("compute must not run after failed load")
	}
	if m.State() != StateUnloaded {
		t.Fatalf("expected unloaded after failure, got %s", m.State())
	}
}

func TestRetryAfterLoadFailure(t *testing.T) {
	fb := &fakeBackend{loadErr: errBoom}
	m := newTestManager(t, fb, nil, 300*time.Second)
	ctx := testCtx(t)

	if _, err := m.Generate(ctx, testRequest()); !IsResourceUnavailable(err) {
		t.Fatalf("expected ResourceUnavailable, got %v", err)
	}
	if s := m.Snapshot(); s.Err == "" {
		t.Fatalf("expected last error recorded")
	}
	fb.setLoadErr(nil)
	if _, err := m.Generate(ctx, testRequest()); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if got := fb.loads.Load(); got != 2 {
		t.Fatalf("expected loader invoked again, got %d loads", got)
	}
	st := m.Status()
	if st.LoadsTotal != 1 || st.LoadFailuresTotal != 1 || st.LastError != "" {
		t.Fatalf("unexpected counters: %+v", st)
	}
}

func TestGenerationFailureKeepsResourceLoaded(t *testing.T) {
	fb := &fakeBackend{computeErr: errBoom}
	m := newTestManager(t, fb, nil, 300*time.Second)

	_, err := m.Generate(testCtx(t), testRequest())
	if !IsGenerationFailed(err) || !errors.Is(err, errBoom) {
		t.Fatalf("expected GenerationFailed(boom), got %v", err)
	}
	if IsResourceUnavailable(err) {
		t.Fatalf("compute failure must not look like a load failure")
	}
	if !m.Loaded() {
		t.Fatalf("resource should stay loaded after compute failure")
	}
	if fb.releases() != 0 {
		t.Fatalf("resource must not be released")
	}
	if s := m.Snapshot(); s.Claims != 0 {
		t.Fatalf("claim leaked: %d", s.Claims)
	}
}

func TestLoaderPanicIsRecovered(t *testing.T) {
	fb := &fakeBackend{loadPanic: true}
	m := newTestManager(t, fb, nil, 300*time.Second)

	_, err := m.Generate(testCtx(t), testRequest())
	if !IsResourceUnavailable(err) {
		t.Fatalf("expected ResourceUnavailable, got %v", err)
	}
	if m.State() != StateUnloaded {
		t.Fatalf("slot stuck in %s", m.State())
	}
}

func TestInvokerPanicIsRecovered(t *testing.T) {
	fb := &fakeBackend{computePanic: true}
	m := newTestManager(t, fb, nil, 300*time.Second)

	_, err := m.Generate(testCtx(t), testRequest())
	if !IsGenerationFailed(err) {
		t.Fatalf("expected GenerationFailed, got %v", err)
	}
	if s := m.Snapshot(); s.Claims != 0 || s.State != StateReady {
		t.Fatalf("unexpected snapshot after panic: %+v", s)
	}
}

func TestCallerCancelKeepsClaimUntilComputeEnds(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	fb := &fakeBackend{computeGate: gate, computeStarted: started}
	clk := newFakeClock()
	m := newTestManager(t, fb, clk, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Generate(ctx, testRequest())
		done <- err
	}()
	<-started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s := m.Snapshot(); s.Claims != 1 {
		t.Fatalf("claim should be held by the running compute, got %d", s.Claims)
	}
	clk.Advance(time.Minute)
	if m.Reclaim() {
		t.Fatalf("reclaim must not unload while compute runs")
	}
	close(gate)
	waitFor(t, "claim release", func() bool { return m.Snapshot().Claims == 0 })
	if got := m.Snapshot().LastUsed; !got.Equal(clk.Now()) {
		t.Fatalf("lastUsed=%v, want compute end %v", got, clk.Now())
	}
	clk.Advance(2 * time.Second)
	if !m.Reclaim() {
		t.Fatalf("expected reclaim once compute finished and idle elapsed")
	}
}

func TestComputeSerializedByDefault(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 2)
	fb := &fakeBackend{computeGate: gate, computeStarted: started}
	m := newTestManager(t, fb, nil, 300*time.Second)
	ctx := testCtx(t)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Generate(ctx, testRequest()); err != nil {
				t.Errorf("Generate: %v", err)
			}
		}()
	}
	<-started
	select {
	case <-started:
		t.Fatalf("second compute started while the first was running")
	case <-time.After(50 * time.Millisecond):
	}
	if s := m.Snapshot(); s.Claims != 2 {
		t.Fatalf("expected 2 claims (one queued), got %d", s.Claims)
	}
	close(gate)
	wg.Wait()
}

func TestComputeConcurrencyConfigurable(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 2)
	fb := &fakeBackend{computeGate: gate, computeStarted: started}
	m := NewWithConfig(ManagerConfig{Backend: fb, MaxConcurrentCompute: 2, ReclaimInterval: time.Hour})
	defer m.Close()
	ctx := testCtx(t)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Generate(ctx, testRequest())
		}()
	}
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected both computes to run concurrently")
		}
	}
	close(gate)
	wg.Wait()
	if got := fb.loads.Load(); got != 1 {
		t.Fatalf("expected one load, got %d", got)
	}
}

func TestLastUsedNeverMovesBackwards(t *testing.T) {
	fb := &fakeBackend{}
	clk := newFakeClock()
	m := newTestManager(t, fb, clk, 300*time.Second)
	ctx := testCtx(t)

	if _, err := m.Generate(ctx, testRequest()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	first := m.Snapshot().LastUsed

	clk.Advance(10 * time.Second)
	entry := clk.Now()
	if _, err := m.Generate(ctx, testRequest()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := m.Snapshot().LastUsed; got.Before(entry) {
		t.Fatalf("lastUsed %v earlier than call entry %v", got, entry)
	}

	clk.Advance(-time.Hour)
	if _, err := m.Generate(ctx, testRequest()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := m.Snapshot().LastUsed; !got.After(first) {
		t.Fatalf("lastUsed moved backwards: %v", got)
	}
}

func TestFailedGenerateDoesNotRefreshLastUsed(t *testing.T) {
	fb := &fakeBackend{}
	clk := newFakeClock()
	m := newTestManager(t, fb, clk, 300*time.Second)
	ctx := testCtx(t)

	if _, err := m.Generate(ctx, testRequest()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	before := m.Snapshot().LastUsed
	fb.mu.Lock()
	fb.computeErr = errBoom
	fb.mu.Unlock()
	clk.Advance(time.Minute)
	if _, err := m.Generate(ctx, testRequest()); err == nil {
		t.Fatalf("expected failure")
	}
	if got := m.Snapshot().LastUsed; !got.Equal(before) {
		t.Fatalf("failed generate refreshed lastUsed: %v -> %v", before, got)
	}
}

func TestSetSourceAppliesOnNextLoad(t *testing.T) {
	fb := &fakeBackend{}
	clk := newFakeClock()
	m := newTestManager(t, fb, clk, time.Second)
	ctx := testCtx(t)

	if _, err := m.Generate(ctx, testRequest()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	next := types.ModelSource{Model: "models/other.safetensors", VAE: "vae.safetensors"}
	m.SetSource(next)
	if m.Source() != next {
		t.Fatalf("source not updated")
	}
	clk.Advance(2 * time.Second)
	if !m.Reclaim() {
		t.Fatalf("expected reclaim")
	}
	if _, err := m.Generate(ctx, testRequest()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if fb.lastSrc != next {
		t.Fatalf("second load used %+v, want %+v", fb.lastSrc, next)
	}
}
