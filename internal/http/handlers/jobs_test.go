package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/feelkraft/comic-api/internal/domain"
)

func routeWithParam(key, value string) *chi.Context {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return rctx
}

func TestJobStatusProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.jobs.Create(ctx, &domain.Job{ID: "job-1", Theme: "romantic", Style: "manga", PageCount: 4, Status: domain.JobStatusGenerating})
	env.logs.Create(ctx, &domain.TaskLog{TaskID: "t1", JobID: "job-1", PageNum: 1, Status: domain.TaskStatusSuccess, ResultURL: "https://cdn.example.com/p1.png"})
	env.logs.Create(ctx, &domain.TaskLog{TaskID: "t2", JobID: "job-1", PageNum: 2, Status: domain.TaskStatusWaiting})

	req := httptest.NewRequest("GET", "/api/job/job-1/status", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeWithParam("id", "job-1")))
	rec := httptest.NewRecorder()
	env.app.JobStatus(rec, req)

	assertStatus(t, rec.Code, 200)

	var resp jobStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "GENERATING" || resp.CompletedPages != 1 || resp.Progress != 25 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.GeneratedImages) != 1 || resp.GeneratedImages[0] != "https://cdn.example.com/p1.png" {
		t.Fatalf("unexpected images: %v", resp.GeneratedImages)
	}
}

func TestJobStatusCompletedUsesFinalPages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.jobs.Create(ctx, &domain.Job{ID: "job-1", PageCount: 2, Status: domain.JobStatusGenerating})
	env.jobs.FinalizeIf(ctx, "job-1", domain.JobStatusGenerating, domain.JobStatusCompleted, []string{"u1", "u2"})

	req := httptest.NewRequest("GET", "/api/job/job-1/status", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeWithParam("id", "job-1")))
	rec := httptest.NewRecorder()
	env.app.JobStatus(rec, req)

	assertStatus(t, rec.Code, 200)

	var resp jobStatusResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Progress != 100 || len(resp.GeneratedImages) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestJobStatusNotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/job/missing/status", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeWithParam("id", "missing")))
	rec := httptest.NewRecorder()
	env.app.JobStatus(rec, req)

	assertStatus(t, rec.Code, 404)
}

func TestJobList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.jobs.Create(ctx, &domain.Job{ID: "job-1", Theme: "romantic", Style: "manga", PageCount: 7, Status: domain.JobStatusGenerating})
	env.jobs.FinalizeIf(ctx, "job-1", domain.JobStatusGenerating, domain.JobStatusCompleted, []string{"cover.png", "p2.png"})

	req := httptest.NewRequest("GET", "/api/job/list", nil)
	rec := httptest.NewRecorder()
	env.app.JobList(rec, req)

	assertStatus(t, rec.Code, 200)

	var resp struct {
		Items []galleryItem `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].CoverURL != "cover.png" {
		t.Fatalf("unexpected cover: %q", resp.Items[0].CoverURL)
	}
}
