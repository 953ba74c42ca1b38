package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Defaults used when a front end omits a generation parameter.
const (
	DefaultImageSize = 1024
	DefaultSteps     = 50
	DefaultCFGScale  = 5.0
	DefaultSeed      = 42
)

// Validation bounds enforced by front ends before a request reaches the manager.
const (
	MinImageSize = 256
	MaxImageSize = 2048
	MaxSteps     = 200
	MaxCFGScale  = 30.0
)

// GenerationRequest is the normalized shape every front end produces before calling
// the manager. Treat it as an immutable value.
type GenerationRequest struct {
	// Text description of the image to generate.
	// example: a cat sitting on a windowsill
	Prompt string `json:"prompt" example:"a cat sitting on a windowsill"`
	// Concepts to steer away from.
	NegativePrompt string `json:"negative_prompt" example:"blurry"`
	// Square output edge length in pixels.
	// example: 1024
	ImageSize int `json:"image_size" example:"1024"`
	// Number of denoising steps.
	// example: 50
	Steps int `json:"denoising_steps" example:"50"`
	// Classifier-free guidance scale.
	// example: 5.0
	CFGScale float64 `json:"cfg_scale" example:"5.0"`
	// Random seed; identical seeds and parameters give identical images.
	// example: 42
	Seed int64 `json:"seed" example:"42"`
}

// DefaultGenerationRequest returns a request pre-populated with the service defaults.
// Decoding JSON into it leaves omitted fields at their defaults.
func DefaultGenerationRequest() GenerationRequest {
	return GenerationRequest{
		ImageSize: DefaultImageSize,
		Steps:     DefaultSteps,
		CFGScale:  DefaultCFGScale,
		Seed:      DefaultSeed,
	}
}

// InvalidRequestError reports a front-end validation failure. The manager never
// produces it.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// IsInvalidRequest reports whether err is a validation failure.
func IsInvalidRequest(err error) bool {
	var ie *InvalidRequestError
	return errors.As(err, &ie)
}

// Validate checks the request against the service bounds.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return &InvalidRequestError{Field: "prompt", Reason: "is required"}
	}
	if r.ImageSize < MinImageSize || r.ImageSize > MaxImageSize {
		return &InvalidRequestError{Field: "image_size", Reason: fmt.Sprintf("must be between %d and %d", MinImageSize, MaxImageSize)}
	}
	if r.ImageSize%16 != 0 {
		return &InvalidRequestError{Field: "image_size", Reason: "must be a multiple of 16"}
	}
	if r.Steps < 1 || r.Steps > MaxSteps {
		return &InvalidRequestError{Field: "denoising_steps", Reason: fmt.Sprintf("must be between 1 and %d", MaxSteps)}
	}
	if math.IsNaN(r.CFGScale) || math.IsInf(r.CFGScale, 0) || r.CFGScale < 0 || r.CFGScale > MaxCFGScale {
		return &InvalidRequestError{Field: "cfg_scale", Reason: fmt.Sprintf("must be between 0 and %g", MaxCFGScale)}
	}
	if r.Seed < 0 {
		return &InvalidRequestError{Field: "seed", Reason: "must not be negative"}
	}
	return nil
}

// GenerationResult is what the manager hands back for one successful Generate call.
type GenerationResult struct {
	Image    []byte
	MIMEType string
	Request  GenerationRequest
	Seed     int64
	Duration time.Duration
}

// ModelSource names the artifacts a loader needs. Each entry is either a local path
// or a hub reference of the form org/repo[/path/to/file].
type ModelSource struct {
	Model   string `json:"model"`
	VAE     string `json:"vae"`
	Encoder string `json:"encoder"`
}
