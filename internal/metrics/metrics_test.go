package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIncrement(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("jobs_sent", nil, "total jobs sent")
	r.IncrementCounter("jobs_sent", nil, "total jobs sent")
	r.AddToCounter("jobs_sent", 3, nil, "total jobs sent")

	all := r.GetAllMetrics()
	counters := all["counters"].(map[string]*Metric)
	require.Contains(t, counters, "jobs_sent")
	assert.Equal(t, float64(5), counters["jobs_sent"].Value)
	assert.Equal(t, Counter, counters["jobs_sent"].Type)
}

func TestCounterLabelsSeparateSeries(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("http_requests_total", map[string]string{"status": "200"}, "")
	r.IncrementCounter("http_requests_total", map[string]string{"status": "500"}, "")
	r.IncrementCounter("http_requests_total", map[string]string{"status": "200"}, "")

	counters := r.GetAllMetrics()["counters"].(map[string]*Metric)
	assert.Equal(t, float64(2), counters["http_requests_total_status:200"].Value)
	assert.Equal(t, float64(1), counters["http_requests_total_status:500"].Value)
}

func TestMetricKeyIsLabelOrderIndependent(t *testing.T) {
	a := metricKey("m", map[string]string{"a": "1", "b": "2"})
	b := metricKey("m", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, a, b)
	assert.Equal(t, "m_a:1_b:2", a)
}

func TestTimerAggregates(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("send_duration", 10*time.Millisecond, nil, "")
	r.RecordTimer("send_duration", 20*time.Millisecond, nil, "")
	r.RecordTimer("send_duration", 30*time.Millisecond, nil, "")

	timers := r.GetAllMetrics()["timers"].(map[string]*TimerMetric)
	timer := timers["send_duration"]
	require.NotNil(t, timer)

	assert.Equal(t, int64(3), timer.Count)
	assert.InDelta(t, 60, timer.Sum, 0.001)
	assert.InDelta(t, 10, timer.Min, 0.001)
	assert.InDelta(t, 30, timer.Max, 0.001)
	assert.InDelta(t, 20, timer.Average, 0.001)
}

func TestTimerPercentileAfterEnoughSamples(t *testing.T) {
	r := NewRegistry()

	for i := 1; i <= 100; i++ {
		r.RecordTimer("op", time.Duration(i)*time.Millisecond, nil, "")
	}

	timers := r.GetAllMetrics()["timers"].(map[string]*TimerMetric)
	timer := timers["op"]
	require.NotNil(t, timer)
	assert.InDelta(t, 96, timer.P95, 1.0)
}

func TestGaugeOverwrites(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("pending_timers", 5, nil, "armed timers")
	r.SetGauge("pending_timers", 2, nil, "armed timers")

	gauges := r.GetAllMetrics()["gauges"].(map[string]*Metric)
	assert.Equal(t, float64(2), gauges["pending_timers"].Value)
	assert.Equal(t, Gauge, gauges["pending_timers"].Type)
}

func TestGetAllMetricsIncludesUptime(t *testing.T) {
	r := NewRegistry()
	all := r.GetAllMetrics()

	assert.Contains(t, all, "uptime_ms")
	assert.Contains(t, all, "timestamp")
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				r.IncrementCounter("concurrent", nil, "")
				r.RecordTimer("concurrent_timer", time.Millisecond, nil, "")
				r.SetGauge(fmt.Sprintf("gauge_%d", n), float64(j), nil, "")
				_ = r.GetAllMetrics()
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	counters := r.GetAllMetrics()["counters"].(map[string]*Metric)
	assert.Equal(t, float64(800), counters["concurrent"].Value)
}
