package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/paroisse/paroisse/internal/jobs"
)

func TestJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Warmups run every 15 minutes and must stay short.
	for i := 0; i < 40; i++ {
		tracker := metrics.Track("dashboard:warmup")
		time.Sleep(5 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending warmup tracker: %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		tracker := metrics.Track("audit:purge")
		time.Sleep(20 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending purge tracker: %v", err)
		}
		metrics.AddAffected("audit:purge", 100)
	}

	for i := 0; i < 2; i++ {
		tracker := metrics.Track("dashboard:warmup")
		if err := tracker.End(errors.New("redis timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "paroisse_jobs_total", map[string]string{"job": "dashboard:warmup", "status": "success"})
	failure := metricValue(t, families, "paroisse_jobs_total", map[string]string{"job": "dashboard:warmup", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no warmup executions recorded")
	}
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("warmup success ratio too low: %f", ratio)
	}

	if failures := metricValue(t, families, "paroisse_jobs_failures_total", map[string]string{"job": "dashboard:warmup"}); failures != 2 {
		t.Fatalf("expected 2 warmup failures, got %f", failures)
	}

	if purged := metricValue(t, families, "paroisse_job_affected_total", map[string]string{"job": "audit:purge"}); purged != 500 {
		t.Fatalf("expected 500 purged rows, got %f", purged)
	}

	if mean := histogramMean(t, families, "paroisse_job_duration_seconds", map[string]string{"job": "audit:purge"}); mean > 2.0 {
		t.Fatalf("purge duration above budget: %f", mean)
	}
	if mean := histogramMean(t, families, "paroisse_job_duration_seconds", map[string]string{"job": "dashboard:warmup"}); mean > 0.5 {
		t.Fatalf("warmup duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if !hasLabels(metric, labels) {
				continue
			}
			switch fam.GetType() {
			case dto.MetricType_COUNTER:
				return metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		want, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != want {
			return false
		}
		matched++
	}
	return matched == len(labels)
}
