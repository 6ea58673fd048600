package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/paroisse/paroisse/internal/jobs"
)

// Purger deletes audit rows older than cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPurgeJob enforces the audit trail retention.
type AuditPurgeJob struct {
	Audit     Purger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAuditPurgeJob wires the purge handler. A non-positive retention disables
// purging.
func NewAuditPurgeJob(audit Purger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPurgeJob {
	return &AuditPurgeJob{
		Audit:     audit,
		Retention: retention,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes audit purge tasks.
func (j *AuditPurgeJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Audit == nil {
		return errors.New("audit purge: handler not configured")
	}
	var payload AuditPurgePayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	retention := j.Retention
	if payload.RetentionDays > 0 {
		retention = time.Duration(payload.RetentionDays) * 24 * time.Hour
	}
	logger := jobLogger(j.Logger, TaskAuditPurge)
	if retention <= 0 {
		logger.Info("audit purge disabled")
		return nil
	}

	tracker := metricsOr(j.Metrics).Track(TaskAuditPurge)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().Add(-retention)
	removed, err := j.Audit.Purge(ctx, cutoff)
	if err != nil {
		logger.Error("audit purge", slog.Any("error", err))
		return err
	}
	metricsOr(j.Metrics).AddAffected(TaskAuditPurge, removed)
	logger.Info("audit purge completed", slog.Time("cutoff", cutoff), slog.Int64("removed", removed))
	return nil
}

func (j *AuditPurgeJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
