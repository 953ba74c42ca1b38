package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"imaged/pkg/types"
)

// maxIdleTimeoutSeconds caps what clients may set; one day.
const maxIdleTimeoutSeconds = 24 * 60 * 60

// getIdleTimeout godoc
// @Summary      Current idle timeout
// @Tags         lifecycle
// @Produce      json
// @Success      200  {object}  types.IdleTimeoutResponse
// @Router       /api/idle-timeout [get]
func (h *handlers) getIdleTimeout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, idleResponse(h.svc.IdleTimeout()))
}

// putIdleTimeout godoc
// @Summary      Change the idle timeout
// @Description  Applies process-wide from the next reclamation tick. Negative disables reclamation.
// @Tags         lifecycle
// @Accept       json
// @Produce      json
// @Param        request  body      types.IdleTimeoutRequest  true  "New timeout"
// @Success      200      {object}  types.IdleTimeoutResponse
// @Failure      400      {object}  types.ErrorResponse
// @Router       /api/idle-timeout [put]
func (h *handlers) putIdleTimeout(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req *types.IdleTimeoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req == nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Seconds == 0 || req.Seconds > maxIdleTimeoutSeconds {
		writeJSONError(w, http.StatusBadRequest, "seconds must be negative (disabled) or between 1 and 86400")
		return
	}
	d := time.Duration(req.Seconds) * time.Second
	if req.Seconds < 0 {
		d = -1
	}
	h.svc.SetIdleTimeout(d)
	logger().Info().Int64("seconds", req.Seconds).Str("remote", r.RemoteAddr).Msg("idle timeout updated")
	writeJSON(w, http.StatusOK, idleResponse(h.svc.IdleTimeout()))
}

func idleResponse(d time.Duration) types.IdleTimeoutResponse {
	if d < 0 {
		return types.IdleTimeoutResponse{Seconds: -1}
	}
	return types.IdleTimeoutResponse{Seconds: int64(d / time.Second)}
}
