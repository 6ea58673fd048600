package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/paroisse/paroisse/internal/jobs"
)

type fakeWarmer struct {
	years []int
	err   error
}

func (f *fakeWarmer) Warm(_ context.Context, year int) error {
	f.years = append(f.years, year)
	return f.err
}

type fakePurger struct {
	cutoff time.Time
}

func (f *fakePurger) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestDashboardWarmupDefaultsToCurrentYear(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewDashboardWarmupJob(warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return fixedNow }

	task, err := NewDashboardWarmupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	task, err = NewDashboardWarmupTask(2022)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []int{2024, 2022}, warmer.years)
}

func TestDashboardWarmupPropagatesErrors(t *testing.T) {
	boom := errors.New("redis down")
	job := NewDashboardWarmupJob(&fakeWarmer{err: boom}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardWarmup, nil))
	assert.ErrorIs(t, err, boom)
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	job := NewDashboardWarmupJob(&fakeWarmer{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAuditPurgeUsesRetention(t *testing.T) {
	purger := &fakePurger{}
	job := NewAuditPurgeJob(purger, 30*24*time.Hour, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return fixedNow }

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskAuditPurge, nil)))
	assert.Equal(t, fixedNow.AddDate(0, 0, -30), purger.cutoff)

	task, err := NewAuditPurgeTask(7)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, fixedNow.AddDate(0, 0, -7), purger.cutoff)
}

func TestAuditPurgeDisabled(t *testing.T) {
	purger := &fakePurger{}
	job := NewAuditPurgeJob(purger, 0, nil, nil)
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskAuditPurge, nil)))
	assert.True(t, purger.cutoff.IsZero())
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func (f fakeInspector) SchedulerEntries() ([]*asynq.SchedulerEntry, error) {
	return []*asynq.SchedulerEntry{{Spec: "@every 15m", Task: asynq.NewTask(TaskDashboardWarmup, nil), Next: fixedNow}}, nil
}

func TestHealthReportsQueue(t *testing.T) {
	h := NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 4, Failed: 1}}, nil)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body Health
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, 4, body.Pending)
	assert.Equal(t, 1, body.Failed)
	require.Len(t, body.Schedules, 1)
	assert.Equal(t, TaskDashboardWarmup, body.Schedules[0].Task)
}

func TestHealthWithoutInspector(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(nil, nil).health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","size":0,"pending":0,"active":0,"scheduled":0,"retry":0,"archived":0,"processed_today":0,"failed_today":0,"paused":false,"schedules":[]}`, rr.Body.String())
}

func TestHealthInspectorFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(fakeInspector{err: errors.New("dial tcp")}, nil).health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
