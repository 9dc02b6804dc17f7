package handlers

import (
	"net/http"
)

// Health reports whether both job directories exist and are writable.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Check(); err != nil {
		a.logger(r).Error().Err(err).Msg("health check failed")
		a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
