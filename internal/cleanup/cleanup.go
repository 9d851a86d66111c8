package cleanup

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/rs/zerolog"
)

// FileDeleter removes uploaded objects by URL.
type FileDeleter interface {
	DeleteFiles(ctx context.Context, urls []string) error
}

// JobSource exposes the slice of job persistence the sweeper needs.
type JobSource interface {
	ListSourceImagesOlderThan(ctx context.Context, cutoff time.Time) (map[string][]string, error)
	ClearSourceImages(ctx context.Context, jobID string) error
}

// Sweeper deletes source images of jobs older than the retention window,
// completed jobs included. Uploads only exist to seed generation.
type Sweeper struct {
	jobs      JobSource
	store     FileDeleter
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

type Options struct {
	Jobs      JobSource
	Store     FileDeleter
	Retention time.Duration
	Interval  time.Duration
	Logger    *zerolog.Logger
}

func NewSweeper(opts Options) *Sweeper {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		jobs:      opts.Jobs,
		store:     opts.Store,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps on a jittered ticker until the context is canceled. The jitter
// keeps multiple replicas from hammering storage at the same instant.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := jitterbug.New(s.interval, &jitterbug.Norm{Stdev: time.Minute})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("cleanup sweep failed")
		}
	}
}

// Sweep performs one pass: list stale source images, delete them. Delete
// failures for one job do not stop the rest of the pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.retention)
	stale, err := s.jobs.ListSourceImagesOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		s.logger.Debug().Msg("no source images to clean up")
		return nil
	}

	s.logger.Info().Int("jobs", len(stale)).Msg("cleaning up stale source images")
	for jobID, urls := range stale {
		if len(urls) == 0 {
			continue
		}
		if err := s.store.DeleteFiles(ctx, urls); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("source image delete failed")
			continue
		}
		if err := s.jobs.ClearSourceImages(ctx, jobID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("source image clear failed")
		}
	}
	return nil
}
