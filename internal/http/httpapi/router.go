package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"adbridge/internal/http/handlers"
	"adbridge/internal/middleware"
)

// NewRouter wires the job endpoints and the operational routes. lookup may
// be nil when no GeoIP database is configured.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger),
		chimw.Recoverer,
		middleware.CORS(app.Config.AllowedOrigins),
		middleware.I18N(app.Config.DefaultLocale, lookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/metrics", app.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute, app.RateLimited))
			r.Post("/text-to-image", app.TextToImage)
			r.Post("/image-to-image", app.ImageToImage)
			r.Post("/image-to-text", app.ImageToText)
			r.Post("/price", app.Price)
		})
		r.Get("/jobs/{job_id}", app.JobStatus)
	})

	return r
}
