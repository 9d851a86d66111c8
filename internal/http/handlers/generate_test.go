package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/feelkraft/comic-api/internal/domain"
	"github.com/feelkraft/comic-api/internal/middleware"
)

func TestGeneratePreview(t *testing.T) {
	env := newTestEnv(t)
	user := &domain.User{ID: "user-1", Email: "a@b.test"}
	if _, err := env.users.Upsert(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	body := `{"theme":"romantic","style":"manga","story":"A short story.","character1Name":"Mia","character2Name":"Leo"}`
	req := httptest.NewRequest("POST", "/api/generate/preview", strings.NewReader(body))
	req = req.WithContext(middleware.ContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	env.app.GeneratePreview(rec, req)

	assertStatus(t, rec.Code, 202)

	var resp struct {
		JobID     string `json:"jobId"`
		PageCount int    `json:"pageCount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" || resp.PageCount != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	env.svc.Wait()

	job, err := env.jobs.GetByID(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if job.Status != domain.JobStatusCompleted || len(job.PageURLs) != 1 {
		t.Fatalf("expected completed one-page job, got %s %v", job.Status, job.PageURLs)
	}

	stored, _ := env.users.GetByID(context.Background(), "user-1")
	if stored.FreeGenerations != 1 {
		t.Fatalf("expected free generation consumed, got %d", stored.FreeGenerations)
	}
}

func TestGeneratePreviewFreeLimit(t *testing.T) {
	env := newTestEnv(t)
	user := &domain.User{ID: "user-1", Email: "a@b.test", FreeGenerations: 1}
	if _, err := env.users.Upsert(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	body := `{"theme":"romantic","style":"manga"}`
	req := httptest.NewRequest("POST", "/api/generate/preview", strings.NewReader(body))
	req = req.WithContext(middleware.ContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	env.app.GeneratePreview(rec, req)

	assertStatus(t, rec.Code, 403)
}

func TestGeneratePreviewProBypassesLimit(t *testing.T) {
	env := newTestEnv(t)
	user := &domain.User{ID: "user-1", Email: "a@b.test", IsPro: true, FreeGenerations: 5}
	if _, err := env.users.Upsert(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	body := `{"theme":"funny","style":"ghibli"}`
	req := httptest.NewRequest("POST", "/api/generate/preview", strings.NewReader(body))
	req = req.WithContext(middleware.ContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	env.app.GeneratePreview(rec, req)

	assertStatus(t, rec.Code, 202)
	env.svc.Wait()

	stored, _ := env.users.GetByID(context.Background(), "user-1")
	if stored.FreeGenerations != 5 {
		t.Fatalf("pro counter should not change, got %d", stored.FreeGenerations)
	}
}

func TestGeneratePreviewUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/generate/preview", strings.NewReader(`{"theme":"romantic","style":"manga"}`))
	rec := httptest.NewRecorder()
	env.app.GeneratePreview(rec, req)

	assertStatus(t, rec.Code, 401)
}

func TestGeneratePreviewMissingTheme(t *testing.T) {
	env := newTestEnv(t)
	user := &domain.User{ID: "user-1"}
	env.users.Upsert(context.Background(), user)

	req := httptest.NewRequest("POST", "/api/generate/preview", strings.NewReader(`{"style":"manga"}`))
	req = req.WithContext(middleware.ContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	env.app.GeneratePreview(rec, req)

	assertStatus(t, rec.Code, 400)
}

func TestGenerateFull(t *testing.T) {
	env := newTestEnv(t)
	env.payments.Create(context.Background(), &domain.Payment{PaymentID: "pay_1", OrderID: "order_1", Status: "captured"})
	token, err := env.tokens.Issue("pay_1", "order_1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	body := `{"theme":"romantic","style":"manga","story":"Mia met Leo at the pier. They talked until sunset. It felt like home."}`
	req := httptest.NewRequest("POST", "/api/generate/full", strings.NewReader(body))
	req.Header.Set("X-Payment-Token", token)
	rec := httptest.NewRecorder()
	env.app.GenerateFull(rec, req)

	assertStatus(t, rec.Code, 202)

	var resp struct {
		JobID     string `json:"jobId"`
		PageCount int    `json:"pageCount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PageCount != 7 {
		t.Fatalf("expected 7 pages, got %d", resp.PageCount)
	}

	env.svc.Wait()

	job, err := env.jobs.GetByID(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if job.Status != domain.JobStatusCompleted || len(job.PageURLs) != 7 {
		t.Fatalf("expected completed 7-page job, got %s with %d urls", job.Status, len(job.PageURLs))
	}
	if job.PaymentID == nil || *job.PaymentID != "pay_1" {
		t.Fatalf("expected payment attached, got %v", job.PaymentID)
	}
}

func TestGenerateFullMissingToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/generate/full", strings.NewReader(`{"theme":"romantic","style":"manga","story":"x"}`))
	rec := httptest.NewRecorder()
	env.app.GenerateFull(rec, req)

	assertStatus(t, rec.Code, 402)
}

func TestGenerateFullInvalidToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/generate/full", strings.NewReader(`{"theme":"romantic","style":"manga","story":"x"}`))
	req.Header.Set("X-Payment-Token", "garbage")
	rec := httptest.NewRecorder()
	env.app.GenerateFull(rec, req)

	assertStatus(t, rec.Code, 403)
}

func TestGenerateFullPaymentAlreadySpent(t *testing.T) {
	env := newTestEnv(t)
	jobID := "job-prev"
	env.payments.Create(context.Background(), &domain.Payment{PaymentID: "pay_1", OrderID: "order_1", JobID: &jobID})
	token, _ := env.tokens.Issue("pay_1", "order_1")

	req := httptest.NewRequest("POST", "/api/generate/full", strings.NewReader(`{"theme":"romantic","style":"manga","story":"A fine story."}`))
	req.Header.Set("X-Payment-Token", token)
	rec := httptest.NewRecorder()
	env.app.GenerateFull(rec, req)

	assertStatus(t, rec.Code, 409)
}

func TestGenerateFullStoryRejected(t *testing.T) {
	env := newTestEnv(t)
	env.payments.Create(context.Background(), &domain.Payment{PaymentID: "pay_1", OrderID: "order_1"})
	token, _ := env.tokens.Issue("pay_1", "order_1")

	req := httptest.NewRequest("POST", "/api/generate/full", strings.NewReader(`{"theme":"romantic","style":"manga","story":"an explicit nsfw tale"}`))
	req.Header.Set("X-Payment-Token", token)
	rec := httptest.NewRecorder()
	env.app.GenerateFull(rec, req)

	assertStatus(t, rec.Code, 400)
}
