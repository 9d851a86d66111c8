package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/feelkraft/comic-api/internal/domain"
)

const (
	statusCacheTTL = 3 * time.Second
	listCacheTTL   = 30 * time.Second
	galleryLimit   = 50
)

type jobStatusResponse struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	PageCount       int      `json:"pageCount"`
	CompletedPages  int      `json:"completedPages"`
	Progress        int      `json:"progress"`
	GeneratedImages []string `json:"generatedImages"`
	CreatedAt       string   `json:"createdAt"`
}

type galleryItem struct {
	ID        string `json:"id"`
	Theme     string `json:"theme"`
	Style     string `json:"style"`
	Status    string `json:"status"`
	PageCount int    `json:"pageCount"`
	CoverURL  string `json:"coverUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// JobStatus reports generation progress for one job. Responses are cached
// briefly so aggressive client polling does not hammer the database.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	cacheKey := "job:status:" + jobID

	var cached jobStatusResponse
	if a.Cache.Get(r.Context(), cacheKey, &cached) {
		a.json(w, http.StatusOK, cached)
		return
	}

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	logs, err := a.Logs.ListByJobID(r.Context(), jobID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("task log list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job progress")
		return
	}

	completed := 0
	images := make([]string, 0, len(logs))
	for _, log := range logs {
		if log.Status == domain.TaskStatusSuccess {
			completed++
			if log.ResultURL != "" {
				images = append(images, log.ResultURL)
			}
		}
	}
	if job.Status == domain.JobStatusCompleted {
		images = job.PageURLs
	}

	progress := 0
	if job.PageCount > 0 {
		progress = completed * 100 / job.PageCount
	}
	if job.Terminal() {
		progress = 100
	}

	resp := jobStatusResponse{
		ID:              job.ID,
		Status:          string(job.Status),
		PageCount:       job.PageCount,
		CompletedPages:  completed,
		Progress:        progress,
		GeneratedImages: images,
		CreatedAt:       job.CreatedAt.UTC().Format(time.RFC3339),
	}
	a.Cache.Set(r.Context(), cacheKey, resp, statusCacheTTL)
	a.json(w, http.StatusOK, resp)
}

// JobList serves the public gallery of recent jobs.
func (a *App) JobList(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "job:list"

	var cached []galleryItem
	if a.Cache.Get(r.Context(), cacheKey, &cached) {
		a.json(w, http.StatusOK, map[string]any{"items": cached})
		return
	}

	jobs, err := a.Jobs.ListRecent(r.Context(), galleryLimit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("job list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load jobs")
		return
	}

	items := make([]galleryItem, 0, len(jobs))
	for _, job := range jobs {
		item := galleryItem{
			ID:        job.ID,
			Theme:     job.Theme,
			Style:     job.Style,
			Status:    string(job.Status),
			PageCount: job.PageCount,
			CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		}
		if len(job.PageURLs) > 0 {
			item.CoverURL = job.PageURLs[0]
		}
		items = append(items, item)
	}
	a.Cache.Set(r.Context(), cacheKey, items, listCacheTTL)
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
