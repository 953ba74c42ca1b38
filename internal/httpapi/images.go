package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"imaged/internal/outputs"
	"imaged/pkg/types"
)

// serveOutput godoc
// @Summary      Download a generated image
// @Tags         images
// @Produce      png
// @Param        filename  path  string  true  "Image file name"
// @Success      200
// @Failure      404  {object}  types.ErrorResponse
// @Router       /outputs/{filename} [get]
func (h *handlers) serveOutput(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	f, err := h.images.Open(name)
	if err != nil {
		// invalid names are indistinguishable from missing ones here
		if errors.Is(err, outputs.ErrNotFound) || errors.Is(err, outputs.ErrInvalidName) {
			writeJSONError(w, http.StatusNotFound, "Image not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeContent(w, r, name, fi.ModTime(), f)
}

// listImages godoc
// @Summary      List generated images
// @Description  Newest first.
// @Tags         images
// @Produce      json
// @Success      200  {object}  types.ImagesResponse
// @Router       /api/images [get]
func (h *handlers) listImages(w http.ResponseWriter, r *http.Request) {
	list, err := h.images.List()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.ImagesResponse{Images: list})
}

// imageInfo godoc
// @Summary      Describe a generated image
// @Tags         images
// @Produce      json
// @Param        filename  path      string  true  "Image file name"
// @Success      200       {object}  types.ImageInfo
// @Failure      400       {object}  types.ErrorResponse
// @Failure      404       {object}  types.ErrorResponse
// @Router       /api/images/{filename} [get]
func (h *handlers) imageInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.images.Stat(chi.URLParam(r, "filename"))
	if err != nil {
		status := statusForError(err)
		msg := err.Error()
		if status == http.StatusNotFound {
			msg = "Image not found"
		}
		writeJSONError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
