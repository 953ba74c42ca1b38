package manager

import (
	"imaged/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		State:       m.state,
		LastUsed:    m.lastUsed,
		IdleTimeout: m.idleTimeout,
		Claims:      m.claims,
		Err:         m.err,
	}
	if m.cur != nil {
		s.LoadedAt = m.cur.loadedAt
	}
	return s
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	resp := types.StatusResponse{
		State:                   string(m.state),
		Loaded:                  m.state == StateReady,
		IdleTimeoutSeconds:      int64(m.idleTimeout.Seconds()),
		Inflight:                m.claims,
		MaxConcurrentCompute:    m.maxCompute,
		Source:                  m.source,
		LastError:               m.err,
		LoadsTotal:              m.loadsTotal,
		LoadFailuresTotal:       m.loadFailuresTotal,
		ReclaimsTotal:           m.reclaimsTotal,
		GenerationsTotal:        m.generationsTotal,
		GenerationFailuresTotal: m.generationFailuresTotal,
		UptimeSeconds:           int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:          now.Unix(),
	}
	if m.idleTimeout < 0 {
		resp.IdleTimeoutSeconds = -1
	}
	if !m.lastUsed.IsZero() {
		resp.LastUsed = m.lastUsed.Unix()
	}
	if m.cur != nil {
		resp.LoadedAt = m.cur.loadedAt.Unix()
		if m.idleTimeout >= 0 && m.claims == 0 {
			if left := m.idleTimeout - now.Sub(m.lastUsed); left > 0 {
				resp.IdleRemainingSeconds = int64(left.Seconds())
			}
		}
	}
	return resp
}
