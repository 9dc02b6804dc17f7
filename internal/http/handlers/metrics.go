package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adbridge/internal/i18n"
)

var metricsHandler = promhttp.Handler()

func (a *App) Metrics(w http.ResponseWriter, r *http.Request) {
	metricsHandler.ServeHTTP(w, r)
}

// RateLimited is the response for callers over their per-IP budget.
func (a *App) RateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	a.error(w, http.StatusTooManyRequests, i18n.Sprintf(a.locale(r), i18n.MsgRateLimited))
}
