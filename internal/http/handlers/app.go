package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"adbridge/internal/domain"
	"adbridge/internal/infra"
	"adbridge/internal/middleware"
	"adbridge/internal/poller"
	"adbridge/internal/storage"
)

type App struct {
	Config *infra.Config
	Logger zerolog.Logger
	Store  *storage.JobStore
	Poller *poller.Poller

	// Now and NewID are swapped out in tests.
	Now   func() time.Time
	NewID func(time.Time) string

	jobLimiter chan struct{}
}

func NewApp(cfg *infra.Config, logger zerolog.Logger, store *storage.JobStore, p *poller.Poller) *App {
	app := &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Poller: p,
		Now:    time.Now,
		NewID:  domain.NewJobID,
	}
	if cfg.MaxInflightJobs > 0 {
		app.jobLimiter = make(chan struct{}, cfg.MaxInflightJobs)
	}
	return app
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) rawJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, errorResponse{Success: false, Error: message})
}

// logger returns the request-scoped logger installed by middleware.Logger,
// or the application logger when the handler runs outside the router.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

func (a *App) locale(r *http.Request) string {
	return middleware.LocaleFromContext(r.Context())
}
