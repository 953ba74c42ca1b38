package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"imaged/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultIdleTimeout          = 300 * time.Second
	defaultReclaimInterval      = 60 * time.Second
	defaultMaxConcurrentCompute = 1
	defaultDrainTimeout         = 30 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Backend loads and runs the model. Required.
	Backend Backend
	// Source is handed to the Loader on each load attempt; see SetSource.
	Source types.ModelSource
	// IdleTimeout is how long a ready resource may sit unused before the
	// reclamation loop unloads it. Zero means the default; negative disables
	// reclamation.
	IdleTimeout time.Duration
	// ReclaimInterval is the reclamation tick period.
	ReclaimInterval time.Duration
	// MaxConcurrentCompute bounds simultaneous Invoker calls on the resource.
	MaxConcurrentCompute int
	// DrainTimeout bounds how long Close waits for active claims.
	DrainTimeout time.Duration

	Logger    *zerolog.Logger
	Publisher EventPublisher
	// Clock overrides time.Now; tests use it to move idle time forward.
	Clock func() time.Time
}

// NewWithConfig constructs a Manager from ManagerConfig and starts its
// reclamation loop. Call Close to stop it.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:       StateUnloaded,
		backend:     cfg.Backend,
		source:      cfg.Source,
		idleTimeout: cfg.IdleTimeout,
		publisher:   cfg.Publisher,
		now:         cfg.Clock,
	}
	// Apply defaults if unset
	if m.idleTimeout == 0 {
		m.idleTimeout = defaultIdleTimeout
	}
	if cfg.ReclaimInterval <= 0 {
		m.reclaimInterval = defaultReclaimInterval
	} else {
		m.reclaimInterval = cfg.ReclaimInterval
	}
	if cfg.MaxConcurrentCompute <= 0 {
		m.maxCompute = defaultMaxConcurrentCompute
	} else {
		m.maxCompute = cfg.MaxConcurrentCompute
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	} else {
		m.log = zerolog.Nop()
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.computeSem = semaphore.NewWeighted(int64(m.maxCompute))
	m.baseCtx, m.cancel = context.WithCancel(context.Background())
	m.startTime = m.now()

	m.wg.Add(1)
	go m.reclaimLoop()
	return m
}
