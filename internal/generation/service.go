package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/feelkraft/comic-api/internal/domain"
	"github.com/feelkraft/comic-api/internal/metrics"
	"github.com/feelkraft/comic-api/internal/providers/nanobanana"
)

// TaskClient is the slice of the provider client the orchestrator needs.
type TaskClient interface {
	CreateTask(ctx context.Context, req nanobanana.TaskRequest) (string, error)
	PollUntilTerminal(ctx context.Context, taskID string, maxAttempts int, interval time.Duration) (*nanobanana.TaskStatus, error)
}

// SourceCleaner deletes uploaded reference images once a job no longer needs
// them.
type SourceCleaner interface {
	DeleteFiles(ctx context.Context, urls []string) error
}

// TaskOutcome is one terminal completion event for a task, regardless of
// whether it arrived via polling or the provider webhook.
type TaskOutcome struct {
	Status      domain.TaskStatus
	ResultURL   string
	ErrorDetail string
	CostTimeMS  *int64
}

type Options struct {
	Jobs         domain.JobRepository
	Logs         domain.TaskLogRepository
	Tasks        TaskClient
	Store        SourceCleaner
	Logger       *zerolog.Logger
	Metrics      *metrics.Metrics
	PollAttempts int
	PollInterval time.Duration
	// BaseContext scopes background polling goroutines. Defaults to
	// context.Background so polls outlive the launching request.
	BaseContext context.Context
}

// Service fans a job out into one provider task per page and drives every
// task to a terminal state. Poll and webhook completions funnel through
// ResolveTask, whose writes are guarded so the first terminal event wins.
type Service struct {
	jobs         domain.JobRepository
	logs         domain.TaskLogRepository
	tasks        TaskClient
	store        SourceCleaner
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	pollAttempts int
	pollInterval time.Duration
	baseCtx      context.Context

	wg sync.WaitGroup
}

func NewService(opts Options) (*Service, error) {
	if opts.Jobs == nil || opts.Logs == nil || opts.Tasks == nil {
		return nil, errors.New("generation: jobs, logs and tasks are required")
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	pollAttempts := opts.PollAttempts
	if pollAttempts <= 0 {
		pollAttempts = 60
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Service{
		jobs:         opts.Jobs,
		logs:         opts.Logs,
		tasks:        opts.Tasks,
		store:        opts.Store,
		logger:       logger,
		metrics:      opts.Metrics,
		pollAttempts: pollAttempts,
		pollInterval: pollInterval,
		baseCtx:      baseCtx,
	}, nil
}

// Launch submits one task per prompt and schedules an independent poll for
// each. Prompt order defines page order. A submission failure for one page is
// recorded as an immediately failed task log and never aborts the remaining
// pages. The call returns once all submissions have been attempted; polling
// continues in the background.
func (s *Service) Launch(ctx context.Context, job *domain.Job, prompts []string, referenceImages []string) {
	for i, prompt := range prompts {
		pageNum := i + 1
		taskID, err := s.tasks.CreateTask(ctx, nanobanana.TaskRequest{
			Prompt:    prompt,
			ImageURLs: referenceImages,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Int("page_num", pageNum).Msg("task submission failed")
			s.recordSubmissionFailure(ctx, job.ID, pageNum, err)
			continue
		}

		log := &domain.TaskLog{
			TaskID:  taskID,
			JobID:   job.ID,
			PageNum: pageNum,
			Status:  domain.TaskStatusWaiting,
		}
		if err := s.logs.Create(ctx, log); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Str("task_id", taskID).Msg("task log create failed")
			// The page still needs a terminal log or the job can never
			// reconcile. The provider task runs unobserved; its webhook
			// will find no log and be discarded.
			s.recordSubmissionFailure(ctx, job.ID, pageNum, fmt.Errorf("task log create: %w", err))
			continue
		}

		s.wg.Add(1)
		go s.pollAndResolve(taskID, job.ID, pageNum)
	}
}

// recordSubmissionFailure keeps the one-log-per-page invariant when a page
// has no usable provider task: the submission was rejected, or the waiting
// log could not be persisted. The locally generated id keeps the log
// addressable without colliding with provider ids.
func (s *Service) recordSubmissionFailure(ctx context.Context, jobID string, pageNum int, cause error) {
	log := &domain.TaskLog{
		TaskID:      "failed-" + uuid.NewString(),
		JobID:       jobID,
		PageNum:     pageNum,
		Status:      domain.TaskStatusFailed,
		ErrorDetail: fmt.Sprintf("submission failed: %v", cause),
	}
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Int("page_num", pageNum).Msg("failed-log create failed")
		return
	}
	s.metrics.TaskResolved("submit_failed")
	if err := s.reconcileJob(ctx, jobID); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("reconcile after submission failure")
	}
}

func (s *Service) pollAndResolve(taskID, jobID string, pageNum int) {
	defer s.wg.Done()
	logger := s.logger.With().Str("job_id", jobID).Str("task_id", taskID).Int("page_num", pageNum).Logger()

	status, err := s.tasks.PollUntilTerminal(s.baseCtx, taskID, s.pollAttempts, s.pollInterval)
	outcome := TaskOutcome{}
	switch {
	case err == nil:
		outcome.Status = domain.TaskStatusSuccess
		if len(status.ResultURLs) > 0 {
			outcome.ResultURL = status.ResultURLs[0]
		}
		outcome.CostTimeMS = status.CostTimeMS
	default:
		var taskErr *nanobanana.TaskError
		switch {
		case errors.As(err, &taskErr):
			outcome.Status = domain.TaskStatusFailed
			outcome.ErrorDetail = taskErr.Detail
			if taskErr.Code != "" {
				outcome.ErrorDetail = fmt.Sprintf("%s (%s)", taskErr.Detail, taskErr.Code)
			}
		case errors.Is(err, nanobanana.ErrPollTimeout):
			outcome.Status = domain.TaskStatusFailed
			outcome.ErrorDetail = "poll timeout"
		default:
			outcome.Status = domain.TaskStatusFailed
			outcome.ErrorDetail = err.Error()
		}
		logger.Warn().Err(err).Msg("task poll ended in failure")
	}

	if err := s.ResolveTask(s.baseCtx, taskID, outcome); err != nil {
		logger.Error().Err(err).Msg("task resolution failed")
	}
}

// ResolveTask records one terminal completion event and finalizes the parent
// job if it became fully resolved. The same task may be resolved twice (poll
// and webhook race); terminal log state is written at most once and the loser
// degrades to a no-op. Returns domain.ErrNotFound for unknown task ids.
func (s *Service) ResolveTask(ctx context.Context, taskID string, outcome TaskOutcome) error {
	log, err := s.logs.GetByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.UnknownTask()
		}
		return err
	}
	if log.Terminal() {
		s.metrics.DuplicateResolution()
		return nil
	}

	updated, err := s.logs.MarkTerminalIf(ctx, taskID, outcome.Status, outcome.ResultURL, outcome.ErrorDetail, outcome.CostTimeMS)
	if err != nil {
		return fmt.Errorf("mark task terminal: %w", err)
	}
	if !updated {
		s.metrics.DuplicateResolution()
		return nil
	}
	s.metrics.TaskResolved(string(outcome.Status))
	s.logger.Info().Str("task_id", taskID).Str("job_id", log.JobID).Str("status", string(outcome.Status)).Msg("task resolved")

	return s.reconcileJob(ctx, log.JobID)
}

// reconcileJob finalizes the job once every planned page has a terminal log.
// The conditional status update makes the transition single-shot even when
// two resolvers reach here at once.
func (s *Service) reconcileJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Terminal() {
		return nil
	}
	logs, err := s.logs.ListByJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list task logs: %w", err)
	}
	if len(logs) < job.PageCount {
		return nil
	}
	successes := 0
	pageURLs := []string{}
	for _, log := range logs {
		if !log.Terminal() {
			return nil
		}
		if log.Status == domain.TaskStatusSuccess {
			successes++
			if log.ResultURL != "" {
				pageURLs = append(pageURLs, log.ResultURL)
			}
		}
	}

	// COMPLETED hinges on at least one successful page, not on whether the
	// provider attached a result URL to it.
	next := domain.JobStatusCompleted
	if successes == 0 {
		next = domain.JobStatusFailed
	}

	finalized, err := s.jobs.FinalizeIf(ctx, jobID, domain.JobStatusGenerating, next, pageURLs)
	if err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	if !finalized {
		return nil
	}
	s.metrics.JobFinalized(string(next))
	s.logger.Info().Str("job_id", jobID).Str("status", string(next)).Int("pages", len(pageURLs)).Msg("job finalized")

	s.cleanupSourceImages(ctx, job)
	return nil
}

// cleanupSourceImages is best effort: the uploaded reference photos are no
// longer needed once the job is terminal, but a delete failure never affects
// the job outcome.
func (s *Service) cleanupSourceImages(ctx context.Context, job *domain.Job) {
	if s.store == nil || len(job.SourceImageURLs) == 0 {
		return
	}
	if err := s.store.DeleteFiles(ctx, job.SourceImageURLs); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("source image cleanup failed")
	}
}

// Wait blocks until all in-flight polling goroutines have finished. Used
// during shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}
