package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/feelkraft/comic-api/internal/domain"
	"github.com/feelkraft/comic-api/internal/generation"
	"github.com/feelkraft/comic-api/internal/providers/nanobanana"
)

// Callback receives provider completion webhooks. The payload is resolved
// through the same path as poll results, so whichever arrives first wins and
// the other degrades to a no-op.
func (a *App) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}

	status, err := nanobanana.ParseCallback(body)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("callback parse failed")
		a.error(w, http.StatusBadRequest, "bad_request", "invalid callback payload")
		return
	}

	outcome, terminal := outcomeFromStatus(status)
	if !terminal {
		a.json(w, http.StatusOK, map[string]any{"received": true, "resolved": false})
		return
	}

	if err := a.Generator.ResolveTask(r.Context(), status.TaskID, outcome); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusNotFound, map[string]any{"received": false, "error": "task not found"})
			return
		}
		a.Logger.Error().Err(err).Str("task_id", status.TaskID).Msg("callback resolution failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to resolve task")
		return
	}

	a.json(w, http.StatusOK, map[string]any{"received": true, "resolved": true})
}

func outcomeFromStatus(status *nanobanana.TaskStatus) (generation.TaskOutcome, bool) {
	switch status.State {
	case nanobanana.StateSuccess:
		resultURL := ""
		if len(status.ResultURLs) > 0 {
			resultURL = status.ResultURLs[0]
		}
		return generation.TaskOutcome{
			Status:     domain.TaskStatusSuccess,
			ResultURL:  resultURL,
			CostTimeMS: status.CostTimeMS,
		}, true
	case nanobanana.StateFail:
		detail := strings.TrimSpace(status.FailCode + " " + status.FailMsg)
		if detail == "" {
			detail = "task failed"
		}
		return generation.TaskOutcome{
			Status:      domain.TaskStatusFailed,
			ErrorDetail: detail,
			CostTimeMS:  status.CostTimeMS,
		}, true
	default:
		return generation.TaskOutcome{}, false
	}
}
