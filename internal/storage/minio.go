package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioOptions configures the object storage client. PublicBaseURL is the
// externally reachable root under which objects resolve, e.g.
// https://files.example.com; defaults to the endpoint itself.
type MinioOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UseSSL        bool
	Logger        *zerolog.Logger
}

// MinioStore keeps uploaded reference photos in an S3-compatible bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  zerolog.Logger
}

func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("storage: minio endpoint is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: minio bucket is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio client: %w", err)
	}
	baseURL := strings.TrimRight(opts.PublicBaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, opts.Endpoint)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &MinioStore{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: baseURL,
		logger:  logger,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet. Called once at
// startup.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage: bucket check: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: make bucket: %w", err)
	}
	return nil
}

func (s *MinioStore) UploadImage(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	key := objectKey(filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", key, err)
	}
	s.logger.Info().Str("key", key).Int("bytes", len(data)).Msg("image uploaded")
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key), nil
}

func (s *MinioStore) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	key := keyFromURL(url, s.bucket)
	if key == "" {
		return nil, fmt.Errorf("storage: url %q is outside bucket %s", url, s.bucket)
	}
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer object.Close()
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// DeleteFiles removes the objects behind the given URLs. URLs outside the
// bucket are skipped, so provider-hosted result URLs can be passed through
// safely.
func (s *MinioStore) DeleteFiles(ctx context.Context, urls []string) error {
	var firstErr error
	removed := 0
	for _, url := range urls {
		key := keyFromURL(url, s.bucket)
		if key == "" {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("object delete failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info().Int("count", removed).Msg("deleted objects")
	}
	return firstErr
}

var _ ObjectStore = (*MinioStore)(nil)
