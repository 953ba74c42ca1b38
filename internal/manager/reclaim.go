package manager

import (
	"fmt"
	"time"
)

// Reclaim unloads the resource if it is ready, unclaimed, and has been idle for
// longer than the current idle timeout. It reports whether an unload happened.
// In every other state it is a no-op, so it never interrupts a load or a
// compute call.
func (m *Manager) Reclaim() bool {
	m.mu.Lock()
	if m.state != StateReady || m.claims > 0 || m.idleTimeout < 0 {
		m.mu.Unlock()
		return false
	}
	idle := m.now().Sub(m.lastUsed)
	if idle <= m.idleTimeout {
		m.mu.Unlock()
		return false
	}
	h, done := m.beginUnloadLocked()
	m.mu.Unlock()

	m.teardown(h, done, "idle", idle)
	return true
}

// beginUnloadLocked empties the slot and moves it to unloading. Must be called
// with m.mu held and the slot ready.
func (m *Manager) beginUnloadLocked() (*handle, chan struct{}) {
	h := m.cur
	h.released = true
	m.cur = nil
	m.state = StateUnloading
	done := make(chan struct{})
	m.unloadDone = done
	return h, done
}

// teardown releases h outside the lock and finishes the unloading -> unloaded
// transition. A failed release is logged; the slot is unloaded regardless.
func (m *Manager) teardown(h *handle, done chan struct{}, reason string, idle time.Duration) {
	m.log.Info().Str("event", EventUnloadStart).Str("reason", reason).Dur("idle", idle).Msg("unloading model")
	m.publisher.Publish(Event{Name: EventUnloadStart, Fields: map[string]any{"reason": reason, "idle_ms": idle.Milliseconds()}})

	err := safeRelease(h.res)

	m.mu.Lock()
	m.state = StateUnloaded
	m.unloadDone = nil
	if reason == "idle" {
		m.reclaimsTotal++
	}
	if err != nil {
		m.err = err.Error()
	}
	m.mu.Unlock()
	close(done)

	if err != nil {
		m.log.Error().Str("event", EventUnloadError).Str("reason", reason).Err(err).Msg("release failed; slot marked unloaded")
		m.publisher.Publish(Event{Name: EventUnloadError, Fields: map[string]any{"reason": reason, "error": err.Error()}})
		return
	}
	m.log.Info().Str("event", EventUnloadDone).Str("reason", reason).Msg("model unloaded")
	m.publisher.Publish(Event{Name: EventUnloadDone, Fields: map[string]any{"reason": reason}})
}

func safeRelease(res Resource) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("release panic: %v", r)
		}
	}()
	return res.Release()
}

// reclaimLoop ticks until the manager is closed. Each tick reads the idle
// timeout afresh, so SetIdleTimeout takes effect without a restart.
func (m *Manager) reclaimLoop() {
	defer m.wg.Done()
	t := time.NewTicker(m.reclaimInterval)
	defer t.Stop()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case <-t.C:
			m.Reclaim()
		}
	}
}
