package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ObjectStore persists uploaded reference photos and serves them back by URL.
// Implementations must return publicly resolvable URLs from UploadImage, and
// must accept those same URLs in DeleteFiles.
type ObjectStore interface {
	UploadImage(ctx context.Context, data []byte, filename, contentType string) (string, error)
	DownloadImage(ctx context.Context, url string) ([]byte, error)
	DeleteFiles(ctx context.Context, urls []string) error
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// objectKey builds a collision-free key from a user-supplied filename.
func objectKey(filename string) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(filename, "_")
	if sanitized == "" {
		sanitized = "upload"
	}
	return fmt.Sprintf("%s-%s", uuid.NewString(), sanitized)
}

// keyFromURL recovers the object key from a public URL by locating the bucket
// segment. Returns "" when the URL does not reference the bucket.
func keyFromURL(url, bucket string) string {
	marker := bucket + "/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return ""
	}
	key := url[idx+len(marker):]
	if cut := strings.IndexByte(key, '?'); cut >= 0 {
		key = key[:cut]
	}
	return key
}
