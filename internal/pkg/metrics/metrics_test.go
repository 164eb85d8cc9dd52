package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	job := "transfer_maturation"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.IncSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := counterValue(mfs, "worker_job_success_total", "job", job)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = counterValue(mfs, "worker_job_failure_total", "job", job)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	sum, err := histogramSum(mfs, "worker_job_duration_seconds", "job", job)
	require.NoError(t, err)
	assert.Greater(t, sum, 0.0)

	skipped := findFamily(mfs, "worker_tick_skipped_total")
	require.NotNil(t, skipped)
	assert.Equal(t, 1.0, skipped.GetMetric()[0].GetCounter().GetValue())
}

func TestGatewayMetricsVolumeOnlyForCompleted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGatewayMetrics(reg)

	m.Payment("completed", "credits_partial", decimal.RequireFromString("40"), decimal.RequireFromString("1"))
	m.Payment("failed", "mixed", decimal.RequireFromString("99"), decimal.RequireFromString("2"))
	m.Compensation("backup_declined")
	m.Transfer("scheduled")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := counterValue(mfs, "gateway_payments_total", "status", "failed")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	volume := findFamily(mfs, "gateway_credit_volume_total")
	require.NotNil(t, volume)
	assert.Equal(t, 40.0, volume.GetMetric()[0].GetCounter().GetValue())

	got, err = counterValue(mfs, "gateway_compensations_total", "reason", "backup_declined")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestNilRegistererIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		NewJobMetrics(nil).IncSuccess("x")
		NewGatewayMetrics(nil).Payment("completed", "mixed", decimal.Zero, decimal.Zero)
		var m *GatewayMetrics
		m.Refund()
	})
}

func counterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func histogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
