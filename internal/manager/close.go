package manager

import (
	"fmt"
	"time"
)

// Close stops the reclamation loop, waits up to the drain timeout for active
// generations, and unloads the resource. Generate returns ErrClosed afterwards.
// Close is idempotent.
//
// If claims are still held when the drain timeout expires, the resource is
// released anyway; the affected generations fail with ErrClosed instead of
// returning output from a torn-down resource.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		m.cancel()

		deadline := time.Now().Add(m.drainTimeout)
		for {
			m.mu.Lock()
			claims := m.claims
			m.mu.Unlock()
			if claims == 0 {
				break
			}
			if time.Now().After(deadline) {
				m.log.Warn().Int("claims", claims).Dur("drain_timeout", m.drainTimeout).Msg("drain timeout; forcing unload")
				m.closeErr = fmt.Errorf("drain timeout with %d active generations", claims)
				break
			}
			time.Sleep(10 * time.Millisecond)
		}

		// Loads observe m.closed and release their own result.
		m.wg.Wait()

		m.mu.Lock()
		switch m.state {
		case StateReady:
			h, done := m.beginUnloadLocked()
			m.mu.Unlock()
			m.teardown(h, done, "shutdown", 0)
		case StateUnloading:
			done := m.unloadDone
			m.mu.Unlock()
			<-done
		default:
			m.mu.Unlock()
		}
	})
	return m.closeErr
}
