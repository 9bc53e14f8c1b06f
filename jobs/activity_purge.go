package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/alnoor-medical/stocktrack/internal/jobs"
)

// ActivityPurger is the slice of the activity service the purge drives.
type ActivityPurger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// ActivityPurgeJob trims the append-only activity table down to the
// retention window.
type ActivityPurgeJob struct {
	Activity      ActivityPurger
	Logger        *slog.Logger
	Metrics       *jobmetrics.Metrics
	RetentionDays int
}

// NewActivityPurgeJob initialises the purge handler.
func NewActivityPurgeJob(purger ActivityPurger, logger *slog.Logger, metrics *jobmetrics.Metrics, retentionDays int) *ActivityPurgeJob {
	return &ActivityPurgeJob{
		Activity:      purger,
		Logger:        logger,
		Metrics:       metrics,
		RetentionDays: retentionDays,
	}
}

// Handle executes the purge.
func (j *ActivityPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Activity == nil {
		return errors.New("activity purge: handler not configured")
	}
	var payload ActivityPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	days := payload.RetentionDays
	if days <= 0 {
		days = j.RetentionDays
	}
	if days <= 0 {
		days = 365
	}

	tracker := j.metrics().Track(TaskActivityPurge)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("retention_days", days))

	deleted, err := j.Activity.Purge(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		resultErr = err
		logger.Error("purge failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed activity purge", slog.Int64("deleted", deleted))
	return resultErr
}

func (j *ActivityPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskActivityPurge))
	}
	return slog.Default().With(slog.String("job", TaskActivityPurge))
}

func (j *ActivityPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
