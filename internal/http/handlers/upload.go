package handlers

import (
	"io"
	"net/http"

	"github.com/feelkraft/comic-api/internal/middleware"
)

const (
	maxUploadFiles    = 6
	maxUploadFileSize = 10 << 20
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Upload stores reference photos and returns their public URLs. The URLs feed
// the generation endpoints as image inputs and are swept by cleanup once the
// job ages out.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	if middleware.UserFromContext(r.Context()) == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadFiles * maxUploadFileSize); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one image is required")
		return
	}
	if len(files) > maxUploadFiles {
		a.error(w, http.StatusBadRequest, "bad_request", "too many files")
		return
	}

	urls := make([]string, 0, len(files))
	for _, header := range files {
		if header.Size > maxUploadFileSize {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds 10MB limit")
			return
		}
		contentType := header.Header.Get("Content-Type")
		if !allowedImageTypes[contentType] {
			a.error(w, http.StatusUnsupportedMediaType, "unsupported_type", "only jpeg, png and webp are accepted")
			return
		}

		file, err := header.Open()
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unreadable file")
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, maxUploadFileSize+1))
		file.Close()
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unreadable file")
			return
		}
		if int64(len(data)) > maxUploadFileSize {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds 10MB limit")
			return
		}

		url, err := a.Store.UploadImage(r.Context(), data, header.Filename, contentType)
		if err != nil {
			a.Logger.Error().Err(err).Str("filename", header.Filename).Msg("upload failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to store image")
			return
		}
		urls = append(urls, url)
	}

	a.json(w, http.StatusCreated, map[string]any{"urls": urls})
}
