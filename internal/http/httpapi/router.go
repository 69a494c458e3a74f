package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"photopipe/internal/http/handlers"
	"photopipe/internal/middleware"
)

// Options configures the router middleware stack.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.Country(opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/images", func(r chi.Router) {
		r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.ProcessImage)
		r.Get("/", app.ListImages)
		r.Get("/{id}", app.GetImage)
	})

	if app.Files != nil {
		r.Get("/static/{bucket}/*", app.ServeStatic)
	}

	return r
}
