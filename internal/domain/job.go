package domain

import "time"

// JobStatus enumerates the comic job lifecycle states.
type JobStatus string

const (
	JobStatusGenerating JobStatus = "GENERATING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job is one user-initiated comic generation unit of work. PageCount is fixed
// at creation; PageURLs is written exactly once, together with the terminal
// status transition.
type Job struct {
	ID              string
	UserID          *string
	Theme           string
	Style           string
	Story           string
	Character1Name  string
	Character2Name  string
	PageCount       int
	Status          JobStatus
	PageURLs        []string
	SourceImageURLs []string
	PaymentID       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the job has reached a final status.
func (j Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
