package domain

import "time"

// TaskStatus enumerates the per-page generation task states. A task
// transitions exactly once from waiting to a terminal value.
type TaskStatus string

const (
	TaskStatusWaiting TaskStatus = "waiting"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
)

// TaskLog is the persisted record of one provider generation task tied to
// exactly one page of exactly one job. TaskID is the provider-issued
// identifier (or a locally generated one when the submission itself failed).
type TaskLog struct {
	TaskID      string
	JobID       string
	PageNum     int
	Status      TaskStatus
	ResultURL   string
	ErrorDetail string
	CostTimeMS  *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Terminal reports whether the task has reached a final status.
func (t TaskLog) Terminal() bool {
	return t.Status == TaskStatusSuccess || t.Status == TaskStatusFailed
}
