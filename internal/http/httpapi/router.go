package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/feelkraft/comic-api/internal/http/handlers"
	"github.com/feelkraft/comic-api/internal/middleware"
)

// Options configures the route table beyond the handler set itself.
type Options struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	// Auth wraps routes that need a resolved user.
	Auth func(http.Handler) http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/health", app.Health)
	if app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	}

	rateLimited := func(next http.Handler) http.Handler { return next }
	if opts.RateLimitPerMin > 0 {
		rateLimited = middleware.RateLimit(opts.RateLimitPerMin, time.Minute)
	}
	auth := opts.Auth
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/upload", app.Upload)
			r.Get("/user/status", app.UserStatus)
			r.With(rateLimited).Post("/generate/preview", app.GeneratePreview)
		})

		r.With(rateLimited).Post("/generate/full", app.GenerateFull)
		r.Get("/generate/{job_id}/archive", app.GenerateArchive)

		r.Get("/job/{id}/status", app.JobStatus)
		r.Get("/job/list", app.JobList)

		r.Post("/callback", app.Callback)
		r.Post("/refine", app.Refine)

		r.Post("/payment/order", app.PaymentOrder)
		r.Post("/payment/verify", app.PaymentVerify)
	})

	return r
}
