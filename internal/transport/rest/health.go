package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/frahmantamala/upi-sandbox/internal/transport"
)

type HealthReporter interface {
	Health(ctx context.Context) (upi.Health, error)
}

type HealthHandler struct {
	*transport.BaseHandler
	reporter HealthReporter
}

func NewHealthHandler(baseHandler *transport.BaseHandler, reporter HealthReporter) *HealthHandler {
	return &HealthHandler{BaseHandler: baseHandler, reporter: reporter}
}

// pingHandler → just says service is up
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// healthCheckHandler → reports store counts
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health, err := h.reporter.Health(ctx)
	if err != nil {
		h.Logger.Error("health check failed", "error", err)
		h.WriteError(w, http.StatusServiceUnavailable, "unhealthy")
		return
	}

	h.WriteJSON(w, http.StatusOK, health)
}
