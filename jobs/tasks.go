package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup refills the dashboard cache.
	TaskDashboardWarmup = "dashboard:warmup"
	// TaskAuditPurge deletes audit rows past their retention.
	TaskAuditPurge = "audit:purge"
)

// DashboardWarmupPayload selects the finance year to warm. Zero means the
// current year.
type DashboardWarmupPayload struct {
	Year int `json:"year,omitempty"`
}

// NewDashboardWarmupTask constructs an Asynq task.
func NewDashboardWarmupTask(year int) (*asynq.Task, error) {
	data, err := json.Marshal(DashboardWarmupPayload{Year: year})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data), nil
}

// AuditPurgePayload overrides the configured retention when RetentionDays is
// positive.
type AuditPurgePayload struct {
	RetentionDays int `json:"retention_days,omitempty"`
}

// NewAuditPurgeTask constructs an Asynq task.
func NewAuditPurgeTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPurgePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPurge, data), nil
}

func decode(t *asynq.Task, dest any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return asynq.SkipRetry
	}
	return nil
}
