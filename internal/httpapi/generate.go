package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"imaged/pkg/types"
)

// generate godoc
// @Summary      Generate an image
// @Description  Omitted fields take their defaults (image_size 1024, denoising_steps 50, cfg_scale 5.0, seed 42).
// @Description  The first call after an idle period loads the model first. Send Accept: image/png to get the bytes directly.
// @Tags         generate
// @Accept       json
// @Produce      json
// @Produce      png
// @Param        request  body      types.GenerationRequest  true  "Generation parameters"
// @Success      200      {object}  types.GenerateResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Failure      504      {object}  types.ErrorResponse
// @Router       /api/generate [post]
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	// Content-Type check
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	// Limit body size (configurable, default 1MiB)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req := types.DefaultGenerationRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start := time.Now()
	lvl := requestLogLevel(r)
	res, info, err := h.run(r, req)
	if err != nil {
		if r.Context().Err() != nil {
			// client went away; nobody to answer
			return
		}
		status := statusForError(err)
		writeJSONError(w, status, err.Error())
		logGenerateEnd(r, lvl, status, start, err)
		return
	}
	logGenerateEnd(r, lvl, http.StatusOK, start, nil)

	if wantsPNG(r) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Image)))
		w.Header().Set("X-Image-Filename", info.Filename)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Image)
		return
	}
	writeJSON(w, http.StatusOK, types.GenerateResponse{
		Status:     "success",
		Image:      info.URL,
		Filename:   info.Filename,
		Seed:       res.Request.Seed,
		DurationMS: res.Duration.Milliseconds(),
	})
}

// run validates req, calls the service under the request context joined with
// the server base context, and stores the output. The JSON API and the form
// UI share it.
func (h *handlers) run(r *http.Request, req types.GenerationRequest) (types.GenerationResult, types.ImageInfo, error) {
	if err := req.Validate(); err != nil {
		return types.GenerationResult{}, types.ImageInfo{}, err
	}
	if lvl := requestLogLevel(r); lvl >= LevelDebug {
		logger().Debug().Str("path", r.URL.Path).Int("image_size", req.ImageSize).Int("steps", req.Steps).
			Float64("cfg_scale", req.CFGScale).Int64("seed", req.Seed).Msg("generate start")
	}
	// Join server base context with request context so shutdown cancels waiting too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if generateTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, generateTimeout)
		defer tcancel()
	}
	res, err := h.svc.Generate(ctx, req)
	if err != nil {
		return res, types.ImageInfo{}, err
	}
	info, err := h.images.Save(res)
	if err != nil {
		return res, info, err
	}
	return res, info, nil
}

func wantsPNG(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(mt, "image/png") {
			return true
		}
	}
	return false
}
