package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/feelkraft/comic-api/internal/cache"
	"github.com/feelkraft/comic-api/internal/domain"
	"github.com/feelkraft/comic-api/internal/generation"
	"github.com/feelkraft/comic-api/internal/metrics"
	"github.com/feelkraft/comic-api/internal/payment"
	"github.com/feelkraft/comic-api/internal/providers/groq"
	"github.com/feelkraft/comic-api/internal/storage"
)

var validate = validator.New()

// App carries the dependencies every handler needs. Fields are set once at
// startup and read-only afterwards.
type App struct {
	Logger   *zerolog.Logger
	Users    domain.UserRepository
	Jobs     domain.JobRepository
	Logs     domain.TaskLogRepository
	Payments domain.PaymentRepository

	Generator *generation.Service
	Refiner   groq.Refiner
	Store     storage.ObjectStore
	Cache     *cache.Cache
	Gateway   *payment.Gateway
	Tokens    *payment.TokenIssuer
	Metrics   *metrics.Metrics

	// HTTPClient fetches generated page images for archive downloads.
	HTTPClient *http.Client

	RazorpayKeyID string
}

func (a *App) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{"error": code, "message": message})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return false
	}
	return true
}
