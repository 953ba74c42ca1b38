package manager

import (
	"context"
	"fmt"
	"time"

	"imaged/pkg/types"
)

// acquire returns the live handle with a claim taken on it, loading the
// resource first if the slot is empty. Callers must pair it with release.
//
// Arrivals during a load wait on that load's future instead of starting their
// own, so at most one Loader call is ever in flight.
func (m *Manager) acquire(ctx context.Context) (*handle, error) {
	m.mu.Lock()
	for {
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		switch m.state {
		case StateReady:
			m.claims++
			h := m.cur
			m.mu.Unlock()
			return h, nil

		case StateUnloading:
			done := m.unloadDone
			m.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		case StateLoading:
			fl := m.flight
			fl.waiters++
			m.mu.Unlock()
			return m.awaitLoad(ctx, fl)

		default:
			fl := m.startLoadLocked()
			fl.waiters++
			m.mu.Unlock()
			return m.awaitLoad(ctx, fl)
		}
		// Teardown finished; re-evaluate.
		m.mu.Lock()
	}
}

// awaitLoad waits for fl. A successful load has already taken a claim for
// every attached waiter, so no reclaim can slip in before the caller runs.
func (m *Manager) awaitLoad(ctx context.Context, fl *loadFlight) (*handle, error) {
	select {
	case <-fl.done:
		if fl.err != nil {
			return nil, fl.err
		}
		return fl.h, nil
	case <-ctx.Done():
	}
	m.mu.Lock()
	claimed := fl.resolved && fl.err == nil
	if !fl.resolved {
		fl.waiters--
	}
	m.mu.Unlock()
	if claimed {
		m.release(false)
	}
	return nil, ctx.Err()
}

// startLoadLocked moves the slot to loading and launches the single loader.
// Must be called with m.mu held and the slot unloaded.
func (m *Manager) startLoadLocked() *loadFlight {
	fl := &loadFlight{done: make(chan struct{})}
	m.state = StateLoading
	m.flight = fl
	m.err = ""
	src := m.source
	m.wg.Add(1)
	go m.runLoad(fl, src)
	return fl
}

// runLoad performs one load attempt on the manager's lifetime context, so a
// caller giving up does not abort the load for everyone else waiting on it.
func (m *Manager) runLoad(fl *loadFlight, src types.ModelSource) {
	defer m.wg.Done()
	start := time.Now()
	m.log.Info().Str("event", EventLoadStart).Str("model", src.Model).Msg("loading model")
	m.publisher.Publish(Event{Name: EventLoadStart, Fields: map[string]any{"model": src.Model}})

	res, err := m.safeLoad(src)

	m.mu.Lock()
	m.flight = nil
	var orphan Resource
	switch {
	case err != nil:
		m.state = StateUnloaded
		m.err = err.Error()
		m.loadFailuresTotal++
		fl.err = &ResourceUnavailableError{Err: err}
	case m.closed:
		// Close ran while we were loading; nobody may use this resource.
		m.state = StateUnloaded
		orphan = res
		fl.err = ErrClosed
	default:
		now := m.now()
		m.cur = &handle{res: res, loadedAt: now}
		m.state = StateReady
		if now.After(m.lastUsed) {
			m.lastUsed = now
		}
		m.loadsTotal++
		m.claims += fl.waiters
		fl.h = m.cur
	}
	fl.resolved = true
	m.mu.Unlock()
	// Waiters wake after the outcome is published.
	defer close(fl.done)

	dur := time.Since(start)
	if err != nil {
		m.log.Error().Str("event", EventLoadError).Dur("dur", dur).Err(err).Msg("model load failed")
		m.publisher.Publish(Event{Name: EventLoadError, Fields: map[string]any{"error": err.Error(), "dur_ms": dur.Milliseconds()}})
		return
	}
	if orphan != nil {
		if rerr := safeRelease(orphan); rerr != nil {
			m.log.Warn().Err(rerr).Msg("release after shutdown failed")
		}
		return
	}
	m.log.Info().Str("event", EventLoadReady).Dur("dur", dur).Msg("model ready")
	m.publisher.Publish(Event{Name: EventLoadReady, Fields: map[string]any{"dur_ms": dur.Milliseconds()}})
}

// safeLoad calls the Loader and turns a panic into an error so the slot can
// never be stuck in loading.
func (m *Manager) safeLoad(src types.ModelSource) (res Resource, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()
	res, err = m.backend.Load(m.baseCtx, src)
	if err == nil && res == nil {
		err = fmt.Errorf("loader returned no resource")
	}
	return res, err
}

// release drops a claim taken by acquire. lastUsed only moves forward, and only
// for successful uses.
func (m *Manager) release(success bool) {
	m.mu.Lock()
	m.claims--
	if success {
		if now := m.now(); now.After(m.lastUsed) {
			m.lastUsed = now
		}
	}
	m.mu.Unlock()
}
