package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feelkraft/comic-api/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO comic_jobs (id, user_id, theme, style, story, character1_name, character2_name, page_count, status, page_urls, source_image_urls, payment_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.Theme,
		job.Style,
		job.Story,
		job.Character1Name,
		job.Character2Name,
		job.PageCount,
		job.Status,
		job.PageURLs,
		job.SourceImageURLs,
		job.PaymentID,
	)
	return err
}

const jobColumns = `id, user_id, theme, style, story, character1_name, character2_name, page_count, status, page_urls, source_image_urls, payment_id, created_at, updated_at`

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM comic_jobs WHERE id = $1;`
	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListRecent returns the newest jobs for the gallery view.
func (r *JobRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + jobColumns + ` FROM comic_jobs ORDER BY created_at DESC LIMIT $1;`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// FinalizeIf applies the terminal transition only when the job is still in the
// expected status. The condition lives in the statement itself so racing
// finalizers in separate request contexts cannot both win.
func (r *JobRepositoryPG) FinalizeIf(ctx context.Context, jobID string, expected, next domain.JobStatus, pageURLs []string) (bool, error) {
	query := `
UPDATE comic_jobs
SET status = $3,
    page_urls = $4,
    updated_at = NOW()
WHERE id = $1 AND status = $2;
`
	if pageURLs == nil {
		pageURLs = []string{}
	}
	tag, err := r.pool.Exec(ctx, query, jobID, expected, next, pageURLs)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AttachPayment links a verified payment to the job.
func (r *JobRepositoryPG) AttachPayment(ctx context.Context, jobID, paymentID string) error {
	query := `UPDATE comic_jobs SET payment_id = $2, updated_at = NOW() WHERE id = $1;`
	_, err := r.pool.Exec(ctx, query, jobID, paymentID)
	return err
}

// ListSourceImagesOlderThan returns source image URLs of jobs created before
// the cutoff, keyed by job id.
func (r *JobRepositoryPG) ListSourceImagesOlderThan(ctx context.Context, cutoff time.Time) (map[string][]string, error) {
	query := `
SELECT id, source_image_urls
FROM comic_jobs
WHERE created_at < $1 AND cardinality(source_image_urls) > 0;
`
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string][]string)
	for rows.Next() {
		var id string
		var urls []string
		if err := rows.Scan(&id, &urls); err != nil {
			return nil, err
		}
		result[id] = urls
	}
	return result, rows.Err()
}

func (r *JobRepositoryPG) ClearSourceImages(ctx context.Context, jobID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE comic_jobs
		SET source_image_urls = '{}', updated_at = NOW()
		WHERE id = $1
	`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Theme,
		&job.Style,
		&job.Story,
		&job.Character1Name,
		&job.Character2Name,
		&job.PageCount,
		&job.Status,
		&job.PageURLs,
		&job.SourceImageURLs,
		&job.PaymentID,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
