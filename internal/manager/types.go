package manager

import "time"

// State represents the lifecycle state of the resource slot.
type State string

const (
	StateUnloaded  State = "unloaded"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateUnloading State = "unloading"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State       State
	LoadedAt    time.Time
	LastUsed    time.Time
	IdleTimeout time.Duration
	Claims      int
	Err         string
}

// Loaded reports whether the snapshot was taken with a resident resource.
func (s Snapshot) Loaded() bool { return s.State == StateReady }

// handle is the slot payload. It never leaves the package.
type handle struct {
	res      Resource
	loadedAt time.Time
	// released is set under Manager.mu once teardown of res has begun.
	released bool
}

// loadFlight is the shared future of one load attempt. err and h are written
// before done is closed and read only after. waiters and resolved are guarded
// by the manager mutex.
type loadFlight struct {
	done     chan struct{}
	err      error
	h        *handle
	waiters  int  // callers that get a claim when the load succeeds
	resolved bool // outcome recorded; claims already handed out
}
