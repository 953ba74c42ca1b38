package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"imaged/pkg/types"
)

// Manager owns at most one live model resource and serializes load, use and
// unload of it. Share one Manager between all front ends.
type Manager struct {
	mu          sync.Mutex
	state       State
	cur         *handle
	flight      *loadFlight   // set while loading
	unloadDone  chan struct{} // set while unloading
	claims      int
	lastUsed    time.Time
	idleTimeout time.Duration
	source      types.ModelSource
	err         string
	closed      bool

	// counters, guarded by mu
	loadsTotal              uint64
	loadFailuresTotal       uint64
	reclaimsTotal           uint64
	generationsTotal        uint64
	generationFailuresTotal uint64

	backend         Backend
	computeSem      *semaphore.Weighted
	maxCompute      int
	reclaimInterval time.Duration
	drainTimeout    time.Duration
	log             zerolog.Logger
	publisher       EventPublisher
	now             func() time.Time
	startTime       time.Time

	// baseCtx lives as long as the Manager; loads run on it.
	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New builds a Manager with default tunables.
func New(backend Backend, src types.ModelSource, idleTimeout time.Duration) *Manager {
	return NewWithConfig(ManagerConfig{
		Backend:     backend,
		Source:      src,
		IdleTimeout: idleTimeout,
	})
}

// Ready reports whether the manager accepts Generate calls.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// State returns the current slot state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loaded reports whether the resource is resident and ready.
func (m *Manager) Loaded() bool { return m.State() == StateReady }

// IdleTimeout returns the current idle timeout.
func (m *Manager) IdleTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idleTimeout
}

// SetIdleTimeout changes the process-wide idle timeout. The reclamation loop
// picks up the new value on its next tick. Negative disables reclamation.
func (m *Manager) SetIdleTimeout(d time.Duration) {
	m.mu.Lock()
	old := m.idleTimeout
	m.idleTimeout = d
	m.mu.Unlock()
	if old == d {
		return
	}
	m.log.Info().Str("event", EventIdleTimeoutChanged).Dur("old", old).Dur("new", d).Msg("idle timeout changed")
	m.publisher.Publish(Event{Name: EventIdleTimeoutChanged, Fields: map[string]any{"old": old, "new": d}})
}

// Source returns the identifiers the next load attempt will use.
func (m *Manager) Source() types.ModelSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// SetSource replaces the load identifiers. A resident resource is not reloaded;
// the new source applies from the next load.
func (m *Manager) SetSource(src types.ModelSource) {
	m.mu.Lock()
	m.source = src
	m.mu.Unlock()
}

// MaxConcurrentCompute returns the compute concurrency bound.
func (m *Manager) MaxConcurrentCompute() int { return m.maxCompute }
