package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/feelkraft/comic-api/internal/domain"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *domain.User) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.users[user.ID]
	if !ok {
		clone := *user
		f.users[user.ID] = &clone
		out := clone
		return &out, nil
	}
	existing.Email = user.Email
	out := *existing
	return &out, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (f *fakeUserRepo) IncrementFreeGenerations(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.FreeGenerations++
	return nil
}

func (f *fakeUserRepo) SetPro(_ context.Context, id string, pro bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.IsPro = pro
	return nil
}

func TestAuthenticatorResolvesUser(t *testing.T) {
	users := newFakeUserRepo()
	auth := NewAuthenticator("secret", users, nil)

	token, err := SignUserToken("secret", "user-1", "u@example.com", time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var seen *domain.User
	handler := auth.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.ID != "user-1" || seen.Email != "u@example.com" {
		t.Fatalf("user in context = %+v", seen)
	}
	if _, err := users.GetByID(context.Background(), "user-1"); err != nil {
		t.Fatalf("user not upserted: %v", err)
	}
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	users := newFakeUserRepo()
	auth := NewAuthenticator("secret", users, nil)
	handler := auth.Require(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuthenticatorRejectsExpiredToken(t *testing.T) {
	users := newFakeUserRepo()
	auth := NewAuthenticator("secret", users, nil)
	token, err := SignUserToken("secret", "user-1", "", -time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	handler := auth.Require(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for expired token", rec.Code)
	}
}
