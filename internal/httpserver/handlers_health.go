package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/CedrosPay/cardpay/internal/circuitbreaker"
	"github.com/CedrosPay/cardpay/internal/logger"
	"github.com/CedrosPay/cardpay/pkg/responders"
)

// health reports store connectivity and the accounts breaker state.
// An open breaker degrades the report but only an unreachable store fails it.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	now := time.Now()
	status := "ok"
	code := http.StatusOK

	storeHealthy := true
	if err := h.store.Ping(ctx); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("health.store_unreachable")
		storeHealthy = false
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	breaker := "disabled"
	if h.breakers != nil {
		breaker = h.breakers.State(circuitbreaker.ServiceAccounts)
	}
	if storeHealthy && breaker == "open" {
		status = "degraded"
	}

	response := map[string]any{
		"status":          status,
		"uptime":          now.Sub(serverStartTime).Round(time.Second).String(),
		"timestamp":       now.UTC(),
		"storeHealthy":    storeHealthy,
		"accountsBreaker": breaker,
	}
	if prefix := h.cfg.Server.RoutePrefix; prefix != "" {
		response["routePrefix"] = prefix
	}

	responders.JSON(w, code, response)
}
