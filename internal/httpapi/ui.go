package httpapi

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"imaged/pkg/types"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type uiPage struct {
	Form              types.GenerationRequest
	Status            types.StatusResponse
	IdleMinutes       int64
	AllowIdleOverride bool
	Image             *types.ImageInfo
	DurationMS        int64
	Error             string
	MinSize, MaxSize  int
	MaxSteps          int
	MaxCFG            float64
}

func (h *handlers) page(form types.GenerationRequest) uiPage {
	mins := int64(0)
	if d := h.svc.IdleTimeout(); d > 0 {
		mins = int64((d + time.Minute - 1) / time.Minute)
	}
	return uiPage{
		Form:              form,
		Status:            h.svc.Status(),
		IdleMinutes:       mins,
		AllowIdleOverride: allowIdleOverride,
		MinSize:           types.MinImageSize,
		MaxSize:           types.MaxImageSize,
		MaxSteps:          types.MaxSteps,
		MaxCFG:            types.MaxCFGScale,
	}
}

func (h *handlers) render(w http.ResponseWriter, status int, p uiPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTmpl.Execute(w, p); err != nil {
		logger().Error().Err(err).Msg("render ui")
	}
}

func (h *handlers) uiIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, h.page(types.DefaultGenerationRequest()))
}

func (h *handlers) uiGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	form, err := parseUIForm(r)
	if err != nil {
		p := h.page(form)
		p.Error = err.Error()
		h.render(w, http.StatusBadRequest, p)
		return
	}
	if err := form.Validate(); err != nil {
		p := h.page(form)
		p.Error = err.Error()
		h.render(w, http.StatusBadRequest, p)
		return
	}

	// The override is process-wide, so it only applies to requests that will run.
	if allowIdleOverride {
		if v := strings.TrimSpace(r.PostFormValue("idle_timeout_minutes")); v != "" {
			mins, err := strconv.ParseInt(v, 10, 64)
			if err != nil || mins < 1 || mins > 24*60 {
				p := h.page(form)
				p.Error = (&types.InvalidRequestError{Field: "idle_timeout_minutes", Reason: "must be between 1 and 1440"}).Error()
				h.render(w, http.StatusBadRequest, p)
				return
			}
			h.svc.SetIdleTimeout(time.Duration(mins) * time.Minute)
		}
	}

	start := time.Now()
	res, info, err := h.run(r, form)
	if err != nil {
		status := statusForError(err)
		logGenerateEnd(r, requestLogLevel(r), status, start, err)
		p := h.page(form)
		p.Error = err.Error()
		h.render(w, status, p)
		return
	}
	logGenerateEnd(r, requestLogLevel(r), http.StatusOK, start, nil)
	p := h.page(form)
	p.Image = &info
	p.DurationMS = res.Duration.Milliseconds()
	h.render(w, http.StatusOK, p)
}

// parseUIForm reads the form into a request, keeping defaults for blank
// fields. The returned request is usable for re-rendering even on error.
func parseUIForm(r *http.Request) (types.GenerationRequest, error) {
	req := types.DefaultGenerationRequest()
	if err := r.ParseForm(); err != nil {
		return req, &types.InvalidRequestError{Field: "form", Reason: "could not be parsed"}
	}
	req.Prompt = r.PostFormValue("prompt")
	req.NegativePrompt = r.PostFormValue("negative_prompt")
	var err error
	if req.ImageSize, err = formInt(r, "image_size", req.ImageSize); err != nil {
		return req, err
	}
	if req.Steps, err = formInt(r, "denoising_steps", req.Steps); err != nil {
		return req, err
	}
	if v := strings.TrimSpace(r.PostFormValue("cfg_scale")); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return req, &types.InvalidRequestError{Field: "cfg_scale", Reason: "must be a number"}
		}
		req.CFGScale = f
	}
	if v := strings.TrimSpace(r.PostFormValue("seed")); v != "" {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return req, &types.InvalidRequestError{Field: "seed", Reason: "must be an integer"}
		}
		req.Seed = n
	}
	return req, nil
}

func formInt(r *http.Request, field string, def int) (int, error) {
	v := strings.TrimSpace(r.PostFormValue(field))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, &types.InvalidRequestError{Field: field, Reason: "must be an integer"}
	}
	return n, nil
}
