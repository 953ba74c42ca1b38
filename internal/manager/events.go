package manager

// Event names published by the Manager.
const (
	EventLoadStart          = "load_start"
	EventLoadReady          = "load_ready"
	EventLoadError          = "load_error"
	EventUnloadStart        = "unload_start"
	EventUnloadDone         = "unload_done"
	EventUnloadError        = "unload_error"
	EventGenerateDone       = "generate_done"
	EventGenerateError      = "generate_error"
	EventGenerateAbandoned  = "generate_abandoned"
	EventIdleTimeoutChanged = "idle_timeout_changed"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name and optional fields via key/values.
type Event struct {
	Name   string
	Fields map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic. Publish may be called
// from several goroutines at once.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans each event out to every publisher in order.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}
