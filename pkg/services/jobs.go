package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/synapse-dte/decision-engine/pkg/apperrors"
)

// JobAwaiter polls the job port until a delegated job settles. Heavy work
// (bulk recommendation, sample generation, document validation) runs in an
// external runner; the engine only observes its status.
type JobAwaiter struct {
	logger *zap.Logger
	jobs   JobPort

	// PollInterval between status checks. Zero means one second.
	PollInterval time.Duration
}

// NewJobAwaiter creates a new JobAwaiter.
func NewJobAwaiter(logger *zap.Logger, jobs JobPort) *JobAwaiter {
	return &JobAwaiter{logger: logger, jobs: jobs}
}

// Await blocks until the job reaches a terminal status, the timeout elapses
// (ErrJobTimeout) or the context is cancelled. The terminal status is
// returned even when it is failed; interpreting failure is the caller's job.
func (a *JobAwaiter) Await(ctx context.Context, jobID string, timeout time.Duration) (JobStatus, error) {
	interval := a.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := a.jobs.Poll(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("failed to poll job %s: %w", jobID, err)
		}
		if status.IsTerminal() {
			a.logger.Debug("job settled",
				zap.String("job_id", jobID),
				zap.String("status", string(status)))
			return status, nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return status, fmt.Errorf("job %s still %s after %s: %w", jobID, status, timeout, apperrors.ErrJobTimeout)
			}
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
