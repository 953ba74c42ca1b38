package types

// GenerateResponse is returned by POST /api/generate on success.
type GenerateResponse struct {
	// Always "success" for 2xx responses.
	// example: success
	Status string `json:"status" example:"success"`
	// URL path of the stored image.
	// example: /outputs/output_1700000000_1a2b3c4d.png
	Image string `json:"image" example:"/outputs/output_1700000000_1a2b3c4d.png"`
	// Stored file name.
	// example: output_1700000000_1a2b3c4d.png
	Filename string `json:"filename" example:"output_1700000000_1a2b3c4d.png"`
	// Seed used for the generation.
	// example: 42
	Seed int64 `json:"seed" example:"42"`
	// Wall time spent in the manager, including a cold load.
	// example: 5400
	DurationMS int64 `json:"duration_ms" example:"5400"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// Same message under "detail", the key existing clients read.
	Detail string `json:"detail" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ImageInfo describes a stored output image.
type ImageInfo struct {
	// example: output_1700000000_1a2b3c4d.png
	Filename string `json:"filename" example:"output_1700000000_1a2b3c4d.png"`
	// example: /outputs/output_1700000000_1a2b3c4d.png
	URL string `json:"url" example:"/outputs/output_1700000000_1a2b3c4d.png"`
	// File size in bytes.
	// example: 1048576
	SizeBytes int64 `json:"size_bytes" example:"1048576"`
	// Modification time (unix seconds).
	// example: 1700000000
	CreatedUnix int64 `json:"created_unix" example:"1700000000"`
	// Parameters recorded alongside the image, if available.
	Request *GenerationRequest `json:"request,omitempty"`
}

// ImagesResponse wraps GET /api/images.
type ImagesResponse struct {
	Images []ImageInfo `json:"images"`
}

// IdleTimeoutRequest adjusts the process-wide idle timeout.
type IdleTimeoutRequest struct {
	// New idle timeout in seconds; negative disables reclamation.
	// example: 300
	Seconds int64 `json:"seconds" example:"300"`
}

// IdleTimeoutResponse reports the current idle timeout.
type IdleTimeoutResponse struct {
	// example: 300
	Seconds int64 `json:"seconds" example:"300"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Slot state: unloaded, loading, ready or unloading.
	// example: ready
	State string `json:"state" example:"ready"`
	// Whether the model resource is resident.
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// When the current resource finished loading (unix seconds, 0 if unloaded).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
	// Last successful use (unix seconds).
	// example: 1700000300
	LastUsed int64 `json:"last_used_unix" example:"1700000300"`
	// Current idle timeout in seconds (negative: reclamation disabled).
	// example: 300
	IdleTimeoutSeconds int64 `json:"idle_timeout_seconds" example:"300"`
	// Seconds until the resource becomes eligible for reclamation (0 if not applicable).
	// example: 120
	IdleRemainingSeconds int64 `json:"idle_remaining_seconds" example:"120"`
	// Active claims: queued plus in-flight generations.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum concurrent compute calls.
	// example: 1
	MaxConcurrentCompute int `json:"max_concurrent_compute" example:"1"`
	// Model identifiers used by the next load.
	Source ModelSource `json:"source"`
	// Last load or unload error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Totals since start.
	LoadsTotal              uint64 `json:"loads_total" example:"3"`
	LoadFailuresTotal       uint64 `json:"load_failures_total" example:"0"`
	ReclaimsTotal           uint64 `json:"reclaims_total" example:"2"`
	GenerationsTotal        uint64 `json:"generations_total" example:"40"`
	GenerationFailuresTotal uint64 `json:"generation_failures_total" example:"1"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
