package manager

import (
	"errors"
)

// ErrClosed is returned by Generate after Close has been called.
var ErrClosed = errors.New("manager closed")

// ResourceUnavailableError signals that loading the model failed. The slot is back to
// unloaded, so the next call retries the load.
type ResourceUnavailableError struct{ Err error }

func (e *ResourceUnavailableError) Error() string { return "resource unavailable: " + e.Err.Error() }

func (e *ResourceUnavailableError) Unwrap() error { return e.Err }

// IsResourceUnavailable reports whether err came from a failed load (map to 503).
func IsResourceUnavailable(err error) bool {
	var re *ResourceUnavailableError
	return errors.As(err, &re)
}

// GenerationFailedError signals that compute failed on a loaded resource. The
// resource stays loaded.
type GenerationFailedError struct{ Err error }

func (e *GenerationFailedError) Error() string { return "generation failed: " + e.Err.Error() }

func (e *GenerationFailedError) Unwrap() error { return e.Err }

// IsGenerationFailed reports whether err came from the compute step.
func IsGenerationFailed(err error) bool {
	var ge *GenerationFailedError
	return errors.As(err, &ge)
}
