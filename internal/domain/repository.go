package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for comic jobs.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListRecent(ctx context.Context, limit int) ([]Job, error)
	// FinalizeIf transitions the job from expected to next and sets the page
	// URL collection in the same statement. It reports false when the job was
	// no longer in the expected status, in which case nothing was written.
	FinalizeIf(ctx context.Context, jobID string, expected, next JobStatus, pageURLs []string) (bool, error)
	AttachPayment(ctx context.Context, jobID, paymentID string) error
	// ListSourceImagesOlderThan returns job ids and their source image URLs
	// for jobs created before the cutoff, for upload cleanup.
	ListSourceImagesOlderThan(ctx context.Context, cutoff time.Time) (map[string][]string, error)
	// ClearSourceImages empties a job's source image URL list after the
	// underlying objects were deleted.
	ClearSourceImages(ctx context.Context, jobID string) error
}

// TaskLogRepository defines persistence for per-page task logs.
type TaskLogRepository interface {
	Create(ctx context.Context, log *TaskLog) error
	GetByTaskID(ctx context.Context, taskID string) (*TaskLog, error)
	ListByJobID(ctx context.Context, jobID string) ([]TaskLog, error)
	// MarkTerminalIf transitions the log from waiting to the given terminal
	// status and records the outcome payload. It reports false when another
	// writer already resolved the log.
	MarkTerminalIf(ctx context.Context, taskID string, status TaskStatus, resultURL, errorDetail string, costTimeMS *int64) (bool, error)
}

// UserRepository defines access methods for users.
type UserRepository interface {
	Upsert(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	IncrementFreeGenerations(ctx context.Context, id string) error
	SetPro(ctx context.Context, id string, pro bool) error
}

// PaymentRepository persists verified payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*Payment, error)
}
