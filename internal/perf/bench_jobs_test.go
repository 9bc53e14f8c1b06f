package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/alnoor-medical/stocktrack/internal/jobs"
)

func TestStockJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Scheduled scans finish fast and mostly succeed.
	for i := 0; i < 40; i++ {
		tracker := metrics.Track("stock:low_stock_scan")
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending scan tracker: %v", err)
		}
	}

	// Purges touch more rows and take longer but stay within budget.
	for i := 0; i < 5; i++ {
		tracker := metrics.Track("activity:purge")
		time.Sleep(5 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending purge tracker: %v", err)
		}
	}

	// Inject failures to confirm they land in the failure counters.
	for i := 0; i < 2; i++ {
		tracker := metrics.Track("stock:low_stock_scan")
		if err := tracker.End(errors.New("redis timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	metrics.AddViolations(7, 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "stocktrack_jobs_total", map[string]string{"job": "stock:low_stock_scan", "status": "success"})
	failure := metricValue(t, families, "stocktrack_jobs_total", map[string]string{"job": "stock:low_stock_scan", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no scan executions recorded")
	}
	ratio := success / (success + failure)
	if ratio < 0.9 {
		t.Fatalf("scan success ratio too low: %f", ratio)
	}

	if got := metricValue(t, families, "stocktrack_jobs_failures_total", map[string]string{"job": "stock:low_stock_scan"}); got != 2 {
		t.Fatalf("expected 2 scan failures, got %f", got)
	}

	purgeDuration := histogramMean(t, families, "stocktrack_job_duration_seconds", map[string]string{"job": "activity:purge"})
	if purgeDuration > 2.0 {
		t.Fatalf("purge duration above budget: %f", purgeDuration)
	}

	scanDuration := histogramMean(t, families, "stocktrack_job_duration_seconds", map[string]string{"job": "stock:low_stock_scan"})
	if scanDuration > 0.5 {
		t.Fatalf("scan duration above budget: %f", scanDuration)
	}

	if got := metricValue(t, families, "stocktrack_stock_violations_total", map[string]string{"product": "7"}); got != 3 {
		t.Fatalf("expected 3 recorded violations, got %f", got)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
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
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
