package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"imaged/internal/manager"
	"imaged/pkg/types"
)

// syntheticGrid is the edge length of the palette grid before upscaling.
const syntheticGrid = 16

// Synthetic is an in-process backend that needs no accelerator. It renders a
// deterministic pattern derived from the request, which is enough to exercise
// the full serving path in demos and tests.
type Synthetic struct {
	delay time.Duration
	log   zerolog.Logger
}

// NewSynthetic returns a Synthetic backend whose loads take delay.
func NewSynthetic(delay time.Duration, log zerolog.Logger) *Synthetic {
	return &Synthetic{delay: delay, log: log.With().Str("component", "synthetic").Logger()}
}

type syntheticModel struct {
	src      types.ModelSource
	released atomic.Bool
}

func (m *syntheticModel) Release() error {
	if m.released.Swap(true) {
		return errors.New("synthetic model already released")
	}
	return nil
}

func (s *Synthetic) Load(ctx context.Context, src types.ModelSource) (manager.Resource, error) {
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.log.Debug().Str("model", src.Model).Msg("synthetic model loaded")
	return &syntheticModel{src: src}, nil
}

func (s *Synthetic) Compute(ctx context.Context, res manager.Resource, req types.GenerationRequest) ([]byte, error) {
	m, ok := res.(*syntheticModel)
	if !ok {
		return nil, fmt.Errorf("synthetic backend got foreign resource %T", res)
	}
	if m.released.Load() {
		return nil, errors.New("synthetic model released")
	}
	if req.ImageSize <= 0 {
		return nil, fmt.Errorf("invalid image size %d", req.ImageSize)
	}
	return renderSynthetic(req)
}

// renderSynthetic paints a seeded palette grid and scales it to the requested
// size. Identical requests produce identical bytes.
func renderSynthetic(req types.GenerationRequest) ([]byte, error) {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\x00%g", req.Prompt, req.NegativePrompt, req.Seed, req.Steps, req.CFGScale)
	rng := rand.New(rand.NewPCG(h.Sum64(), uint64(req.Seed)))

	base := color.RGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255}
	// guidance scale sets contrast around the base colour
	spread := 32 + int(math.Min(req.CFGScale, types.MaxCFGScale)/types.MaxCFGScale*192)
	grid := image.NewRGBA(image.Rect(0, 0, syntheticGrid, syntheticGrid))
	for y := 0; y < syntheticGrid; y++ {
		for x := 0; x < syntheticGrid; x++ {
			grid.SetRGBA(x, y, color.RGBA{
				R: jitter(base.R, spread, rng),
				G: jitter(base.G, spread, rng),
				B: jitter(base.B, spread, rng),
				A: 255,
			})
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, req.ImageSize, req.ImageSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), grid, grid.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func jitter(v uint8, spread int, rng *rand.Rand) uint8 {
	n := int(v) + rng.IntN(2*spread+1) - spread
	return uint8(max(0, min(255, n)))
}
