package handlers

import (
	"net/http"
)

type refineRequest struct {
	Story string `json:"story" validate:"required"`
}

// Refine polishes a user story draft. The refiner falls back to the original
// text on provider failure, so this endpoint only errors on bad input.
func (a *App) Refine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if !a.decode(w, r, &req) {
		return
	}

	refined, err := a.Refiner.RefineStory(r.Context(), req.Story)
	if err != nil {
		a.Logger.Error().Err(err).Msg("story refine failed")
		a.error(w, http.StatusBadGateway, "provider_failure", "story refinement unavailable")
		return
	}

	a.json(w, http.StatusOK, map[string]any{"refinedStory": refined})
}
