package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/feelkraft/comic-api/internal/domain"
	"github.com/feelkraft/comic-api/internal/generation"
	"github.com/feelkraft/comic-api/internal/middleware"
	"github.com/feelkraft/comic-api/internal/providers/groq"
	"github.com/feelkraft/comic-api/pkg/zip"
)

const fullComicInteriorPages = 5

type previewRequest struct {
	Theme           string   `json:"theme" validate:"required"`
	Style           string   `json:"style" validate:"required"`
	Story           string   `json:"story"`
	Character1Name  string   `json:"character1Name"`
	Character2Name  string   `json:"character2Name"`
	SourceImageURLs []string `json:"sourceImageUrls" validate:"max=6"`
}

type fullComicRequest struct {
	Theme           string   `json:"theme" validate:"required"`
	Style           string   `json:"style" validate:"required"`
	Story           string   `json:"story" validate:"required"`
	Character1Name  string   `json:"character1Name"`
	Character2Name  string   `json:"character2Name"`
	Relationship    string   `json:"relationship"`
	Tone            string   `json:"tone"`
	Slogan          string   `json:"slogan"`
	SourceImageURLs []string `json:"sourceImageUrls" validate:"max=6"`
}

// GeneratePreview starts a single-page teaser job. Each non-pro account gets
// one free preview; the counter increments before the job launches so a
// crashed launch still consumes the attempt.
func (a *App) GeneratePreview(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req previewRequest
	if !a.decode(w, r, &req) {
		return
	}

	if !user.CanPreview() {
		a.error(w, http.StatusForbidden, "free_limit", "free preview already used")
		return
	}

	job := &domain.Job{
		ID:              uuid.NewString(),
		UserID:          &user.ID,
		Theme:           req.Theme,
		Style:           req.Style,
		Story:           req.Story,
		Character1Name:  req.Character1Name,
		Character2Name:  req.Character2Name,
		PageCount:       1,
		Status:          domain.JobStatusGenerating,
		SourceImageURLs: req.SourceImageURLs,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("preview job create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	if !user.IsPro {
		if err := a.Users.IncrementFreeGenerations(r.Context(), user.ID); err != nil {
			a.Logger.Error().Err(err).Str("user_id", user.ID).Msg("free generation increment failed")
		}
	}

	prompt := generation.PreviewPrompt(generation.PromptContext{
		Theme:          req.Theme,
		Style:          req.Style,
		Story:          req.Story,
		Character1Name: req.Character1Name,
		Character2Name: req.Character2Name,
	})
	a.Generator.Launch(context.WithoutCancel(r.Context()), job, []string{prompt}, req.SourceImageURLs)

	a.json(w, http.StatusAccepted, map[string]any{"jobId": job.ID, "pageCount": job.PageCount})
}

// GenerateFull starts a paid full-comic job. The payment token issued by the
// verify endpoint is spent here; a token whose payment already backs a job is
// rejected so one payment funds exactly one comic.
func (a *App) GenerateFull(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get("X-Payment-Token"))
	if token == "" {
		a.error(w, http.StatusPaymentRequired, "payment_required", "payment token required")
		return
	}
	paymentID, _, err := a.Tokens.Verify(token)
	if err != nil {
		a.error(w, http.StatusForbidden, "invalid_payment_token", "payment token invalid or expired")
		return
	}

	var req fullComicRequest
	if !a.decode(w, r, &req) {
		return
	}
	if !generation.StoryAllowed(req.Story) {
		a.error(w, http.StatusBadRequest, "story_rejected", "story contains disallowed content")
		return
	}

	record, err := a.Payments.GetByPaymentID(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusForbidden, "invalid_payment_token", "payment not found")
			return
		}
		a.Logger.Error().Err(err).Str("payment_id", paymentID).Msg("payment lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to verify payment")
		return
	}
	if record.JobID != nil {
		a.error(w, http.StatusConflict, "payment_used", "payment already spent on a job")
		return
	}

	structure, err := a.Refiner.StoryStructure(r.Context(), groq.StructureRequest{
		Story:          req.Story,
		Theme:          req.Theme,
		Character1Name: req.Character1Name,
		Character2Name: req.Character2Name,
		Relationship:   req.Relationship,
		Tone:           req.Tone,
		Slogan:         req.Slogan,
		PageCount:      fullComicInteriorPages,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("story structure failed")
		a.error(w, http.StatusBadGateway, "provider_failure", "story structuring unavailable")
		return
	}

	promptCtx := generation.PromptContext{
		Theme:          req.Theme,
		Style:          req.Style,
		Story:          req.Story,
		Character1Name: req.Character1Name,
		Character2Name: req.Character2Name,
		Relationship:   req.Relationship,
		Tone:           req.Tone,
	}
	prompts := generation.FullComicPrompts(promptCtx, structure)

	var userID *string
	if user := middleware.UserFromContext(r.Context()); user != nil {
		userID = &user.ID
	}
	job := &domain.Job{
		ID:              uuid.NewString(),
		UserID:          userID,
		Theme:           req.Theme,
		Style:           req.Style,
		Story:           req.Story,
		Character1Name:  req.Character1Name,
		Character2Name:  req.Character2Name,
		PageCount:       len(prompts),
		Status:          domain.JobStatusGenerating,
		SourceImageURLs: req.SourceImageURLs,
		PaymentID:       &paymentID,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("full comic job create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}
	if err := a.Jobs.AttachPayment(r.Context(), job.ID, paymentID); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("payment attach failed")
	}

	a.Generator.Launch(context.WithoutCancel(r.Context()), job, prompts, req.SourceImageURLs)

	a.json(w, http.StatusAccepted, map[string]any{"jobId": job.ID, "pageCount": job.PageCount})
}

// GenerateArchive streams the finished pages of a job as a zip file.
func (a *App) GenerateArchive(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if job.Status != domain.JobStatusCompleted || len(job.PageURLs) == 0 {
		a.error(w, http.StatusConflict, "not_ready", "job has no finished pages")
		return
	}

	assets := make([]zip.Asset, 0, len(job.PageURLs))
	for i, pageURL := range job.PageURLs {
		data, err := a.fetchPage(r.Context(), pageURL)
		if err != nil {
			a.Logger.Error().Err(err).Str("job_id", job.ID).Int("page", i+1).Msg("page fetch failed")
			a.error(w, http.StatusBadGateway, "provider_failure", "failed to fetch a generated page")
			return
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("page-%02d.png", i+1),
			MIME:     "image/png",
			Data:     data,
		})
	}

	archive := zip.ArchiveAssets(assets)
	if archive == nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "comic-"+job.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) fetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
