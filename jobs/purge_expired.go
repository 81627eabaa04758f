package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gazette-cms/gazette/internal/jobs"
)

// TaskPurgeExpiredCredentials clears expired one-time codes, reset tokens and session rows.
const TaskPurgeExpiredCredentials = "auth:purge-expired"

// Purger removes expired records and reports how many rows changed.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// NewPurgeExpiredTask builds the purge task.
func NewPurgeExpiredTask() *asynq.Task {
	return asynq.NewTask(TaskPurgeExpiredCredentials, nil)
}

// PurgeExpiredJob runs every configured Purger.
type PurgeExpiredJob struct {
	purgers []Purger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewPurgeExpiredJob constructs the job.
func NewPurgeExpiredJob(logger *slog.Logger, purgers ...Purger) *PurgeExpiredJob {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PurgeExpiredJob{purgers: purgers, logger: logger, now: time.Now}
}

// WithMetrics attaches job metrics.
func (j *PurgeExpiredJob) WithMetrics(m *jobmetrics.Metrics) *PurgeExpiredJob {
	j.metrics = m
	return j
}

// Handle executes the purge.
func (j *PurgeExpiredJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track(TaskPurgeExpiredCredentials)
	return tracker.End(j.purge(ctx))
}

func (j *PurgeExpiredJob) purge(ctx context.Context) error {
	now := j.now().UTC()
	var total int64
	for _, p := range j.purgers {
		n, err := p.PurgeExpired(ctx, now)
		if err != nil {
			return err
		}
		total += n
	}
	j.metrics.AddPurged(total)
	j.logger.Info("purged expired credentials", slog.Int64("rows", total))
	return nil
}
