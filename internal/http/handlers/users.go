package handlers

import (
	"net/http"

	"github.com/feelkraft/comic-api/internal/middleware"
)

// UserStatus reports the caller's plan and free-preview allowance.
func (a *App) UserStatus(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"isPro":                  user.IsPro,
		"freeGenerationsCount":   user.FreeGenerations,
		"hasUsedFreeGeneration":  user.FreeGenerations > 0,
		"canGenerateFreePreview": user.CanPreview(),
	})
}
