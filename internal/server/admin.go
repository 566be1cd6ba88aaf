package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/storage"
)

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(r.Context()); err != nil {
		h.logger.Error("Storage health check failed", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListErrorLogs returns the newest persisted classified errors.
func (h *Handlers) ListErrorLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.store.ListErrorLogs(r.Context(), storage.ClampErrorLogLimit(limit))
	if err != nil {
		h.writeError(w, r, errors.InternalError("failed to list error logs", err))
		return
	}
	if logs == nil {
		logs = []*storage.ErrorLog{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

// RequireAdmin accepts requests bearing the admin token.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.config.AdminToken)) != 1 {
			h.writeError(w, r, errors.AuthError("admin token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
