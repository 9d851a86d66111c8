package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/feelkraft/comic-api/internal/domain"
	"github.com/feelkraft/comic-api/internal/middleware"
	"github.com/feelkraft/comic-api/internal/storage"
)

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for name, contentType := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write([]byte("fake image bytes"))
	}
	mw.Close()
	return buf, mw.FormDataContentType()
}

func newUploadEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	env.app.Store = store
	return env
}

func TestUpload(t *testing.T) {
	env := newUploadEnv(t)
	body, contentType := multipartBody(t, map[string]string{"photo.png": "image/png"})

	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), &domain.User{ID: "user-1"}))
	rec := httptest.NewRecorder()
	env.app.Upload(rec, req)

	assertStatus(t, rec.Code, 201)

	var resp struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.URLs) != 1 || !strings.HasPrefix(resp.URLs[0], "http://localhost:8080/files/") {
		t.Fatalf("unexpected urls: %v", resp.URLs)
	}
}

func TestUploadRequiresAuth(t *testing.T) {
	env := newUploadEnv(t)
	body, contentType := multipartBody(t, map[string]string{"photo.png": "image/png"})

	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.app.Upload(rec, req)

	assertStatus(t, rec.Code, 401)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newUploadEnv(t)
	body, contentType := multipartBody(t, map[string]string{"notes.txt": "text/plain"})

	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), &domain.User{ID: "user-1"}))
	rec := httptest.NewRecorder()
	env.app.Upload(rec, req)

	assertStatus(t, rec.Code, 415)
}

func TestUploadRequiresFiles(t *testing.T) {
	env := newUploadEnv(t)
	body, contentType := multipartBody(t, nil)

	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), &domain.User{ID: "user-1"}))
	rec := httptest.NewRecorder()
	env.app.Upload(rec, req)

	assertStatus(t, rec.Code, 400)
}
