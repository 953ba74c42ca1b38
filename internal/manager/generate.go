package manager

import (
	"context"
	"fmt"
	"time"

	"imaged/pkg/types"
)

type computeOutcome struct {
	img []byte
	err error
}

// Generate produces one image. It loads the model if needed (sharing any load
// already in progress), then runs the Invoker while holding a claim that keeps
// the reclamation loop from unloading the resource underneath it.
//
// If ctx ends before the Invoker returns, Generate returns ctx.Err() right
// away; the claim stays held until the Invoker is done.
func (m *Manager) Generate(ctx context.Context, req types.GenerationRequest) (types.GenerationResult, error) {
	start := time.Now()
	h, err := m.acquire(ctx)
	if err != nil {
		return types.GenerationResult{}, err
	}
	if err := m.computeSem.Acquire(ctx, 1); err != nil {
		m.release(false)
		return types.GenerationResult{}, err
	}

	out := make(chan computeOutcome, 1)
	go func() {
		img, err := m.safeCompute(context.WithoutCancel(ctx), h, req)
		m.computeSem.Release(1)
		if err == nil && m.torn(h) {
			// Close forced the resource down while we were computing.
			img, err = nil, ErrClosed
		}
		m.finishGeneration(err)
		out <- computeOutcome{img: img, err: err}
	}()

	select {
	case o := <-out:
		dur := time.Since(start)
		if o.err != nil {
			m.log.Warn().Str("event", EventGenerateError).Dur("dur", dur).Err(o.err).Msg("generation failed")
			m.publisher.Publish(Event{Name: EventGenerateError, Fields: map[string]any{"error": o.err.Error(), "dur_ms": dur.Milliseconds()}})
			return types.GenerationResult{}, &GenerationFailedError{Err: o.err}
		}
		m.log.Debug().Str("event", EventGenerateDone).Dur("dur", dur).Int("size", req.ImageSize).Int("steps", req.Steps).Int64("seed", req.Seed).Msg("generation done")
		m.publisher.Publish(Event{Name: EventGenerateDone, Fields: map[string]any{"dur_ms": dur.Milliseconds()}})
		return types.GenerationResult{
			Image:    o.img,
			MIMEType: "image/png",
			Request:  req,
			Seed:     req.Seed,
			Duration: dur,
		}, nil
	case <-ctx.Done():
		m.log.Info().Str("event", EventGenerateAbandoned).Err(ctx.Err()).Msg("caller stopped waiting; compute continues")
		m.publisher.Publish(Event{Name: EventGenerateAbandoned, Fields: map[string]any{"error": ctx.Err().Error()}})
		return types.GenerationResult{}, ctx.Err()
	}
}

// finishGeneration records the outcome and drops the claim.
func (m *Manager) finishGeneration(err error) {
	m.mu.Lock()
	if err != nil {
		m.generationFailuresTotal++
	} else {
		m.generationsTotal++
	}
	m.mu.Unlock()
	m.release(err == nil)
}

// torn reports whether teardown of h has started.
func (m *Manager) torn(h *handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return h.released
}

func (m *Manager) safeCompute(ctx context.Context, h *handle, req types.GenerationRequest) (img []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("invoker panic: %v", r)
		}
	}()
	img, err = m.backend.Compute(ctx, h.res, req)
	if err == nil && len(img) == 0 {
		err = fmt.Errorf("invoker returned an empty image")
	}
	return img, err
}
