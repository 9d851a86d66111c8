package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feelkraft/comic-api/internal/domain"
)

// TaskLogRepositoryPG implements domain.TaskLogRepository backed by PostgreSQL.
type TaskLogRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTaskLogRepository creates a new task log repository.
func NewTaskLogRepository(pool *pgxpool.Pool) *TaskLogRepositoryPG {
	return &TaskLogRepositoryPG{pool: pool}
}

// Create inserts a new task log in the waiting state.
func (r *TaskLogRepositoryPG) Create(ctx context.Context, log *domain.TaskLog) error {
	query := `
INSERT INTO generation_logs (task_id, job_id, page_num, status, result_url, error_detail, cost_time_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query,
		log.TaskID,
		log.JobID,
		log.PageNum,
		log.Status,
		log.ResultURL,
		log.ErrorDetail,
		log.CostTimeMS,
	)
	return err
}

const taskLogColumns = `task_id, job_id, page_num, status, result_url, error_detail, cost_time_ms, created_at, updated_at`

// GetByTaskID fetches a task log by the provider task id.
func (r *TaskLogRepositoryPG) GetByTaskID(ctx context.Context, taskID string) (*domain.TaskLog, error) {
	query := `SELECT ` + taskLogColumns + ` FROM generation_logs WHERE task_id = $1;`
	log, err := scanTaskLog(r.pool.QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return log, nil
}

// ListByJobID returns all task logs for a job ordered by page number.
func (r *TaskLogRepositoryPG) ListByJobID(ctx context.Context, jobID string) ([]domain.TaskLog, error) {
	query := `SELECT ` + taskLogColumns + ` FROM generation_logs WHERE job_id = $1 ORDER BY page_num ASC;`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []domain.TaskLog
	for rows.Next() {
		log, err := scanTaskLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}
	return logs, rows.Err()
}

// MarkTerminalIf writes the terminal state only when the log is still
// waiting. A false return means another writer already resolved this task and
// the caller must treat its own result as redundant.
func (r *TaskLogRepositoryPG) MarkTerminalIf(ctx context.Context, taskID string, status domain.TaskStatus, resultURL, errorDetail string, costTimeMS *int64) (bool, error) {
	query := `
UPDATE generation_logs
SET status = $2,
    result_url = $3,
    error_detail = $4,
    cost_time_ms = COALESCE($5, cost_time_ms),
    updated_at = NOW()
WHERE task_id = $1 AND status = 'waiting';
`
	tag, err := r.pool.Exec(ctx, query, taskID, status, resultURL, errorDetail, costTimeMS)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanTaskLog(row pgx.Row) (*domain.TaskLog, error) {
	var log domain.TaskLog
	if err := row.Scan(
		&log.TaskID,
		&log.JobID,
		&log.PageNum,
		&log.Status,
		&log.ResultURL,
		&log.ErrorDetail,
		&log.CostTimeMS,
		&log.CreatedAt,
		&log.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &log, nil
}

var _ domain.TaskLogRepository = (*TaskLogRepositoryPG)(nil)
