package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "," + l.GetName() + "=" + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("mail:send").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("mail:send").End(boom), boom)
	m.AddPurged(3)
	m.AddPurged(0)

	got := gather(t, reg)
	require.Equal(t, 1.0, got["gazette_jobs_total,job=mail:send,status=success"])
	require.Equal(t, 1.0, got["gazette_jobs_total,job=mail:send,status=failure"])
	require.Equal(t, 1.0, got["gazette_jobs_failures_total,job=mail:send"])
	require.Equal(t, 2.0, got["gazette_job_duration_seconds,job=mail:send"])
	require.Equal(t, 3.0, got["gazette_expired_credentials_purged_total"])
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddPurged(5)
}
