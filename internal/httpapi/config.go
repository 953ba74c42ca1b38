package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// generateTimeout bounds how long a request waits on Generate. Zero means no
// additional timeout beyond server/connection timeouts. When it fires the
// request gets 504 while the generation itself runs to completion.
var generateTimeout time.Duration

// SetGenerateTimeout sets the generate timeout (0 disables).
func SetGenerateTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	generateTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// Browser UI settings.
var (
	uiEnabled         = true
	allowIdleOverride bool
)

// SetUIOptions enables the form UI at / and controls whether its idle
// timeout field may change the process-wide timeout.
func SetUIOptions(enabled, allowIdleTimeoutOverride bool) {
	uiEnabled = enabled
	allowIdleOverride = allowIdleTimeoutOverride
}
