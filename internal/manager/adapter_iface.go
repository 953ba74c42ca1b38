package manager

import (
	"context"

	"imaged/pkg/types"
)

// Resource is a loaded model: weights plus auxiliary encoders, however the
// backend represents them.
type Resource interface {
	// Release frees the memory held by the resource. It is called at most once.
	Release() error
}

// Loader produces a Resource from the given source. Implementations may be slow
// and need not be reentrant; the Manager never runs two loads at once. Load must
// be callable again after a failed attempt.
type Loader interface {
	Load(ctx context.Context, src types.ModelSource) (Resource, error)
}

// Invoker runs one generation against a live Resource and returns encoded image
// bytes. The Manager treats each call as atomic and does not cancel it.
type Invoker interface {
	Compute(ctx context.Context, res Resource, req types.GenerationRequest) ([]byte, error)
}

// Backend is a model runtime that can both load and compute.
type Backend interface {
	Loader
	Invoker
}
