package metrics

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Empty(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(clock)

	snap := m.Snapshot()

	bids := snap["bids"].(map[string]interface{})
	require.Equal(t, int64(0), bids["total"])
	require.Equal(t, "N/A", bids["successRate"])

	perf := snap["performance"].(map[string]interface{})
	require.Equal(t, "N/A", perf["avgProcessingTime"])
	require.Equal(t, "0.00ms", perf["p95ProcessingTime"])
}

func TestRecordBid_Counters(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(clock)

	m.RecordBid(true, 2*time.Millisecond, false)
	m.RecordBid(true, 4*time.Millisecond, false)
	m.RecordBid(false, time.Millisecond, false)
	m.RecordBid(false, time.Millisecond, true)

	snap := m.Snapshot()
	bids := snap["bids"].(map[string]interface{})
	require.Equal(t, int64(4), bids["total"])
	require.Equal(t, int64(2), bids["successful"])
	require.Equal(t, int64(2), bids["failed"])
	require.Equal(t, int64(1), bids["rateLimited"])
	require.Equal(t, "50.00%", bids["successRate"])

	perf := snap["performance"].(map[string]interface{})
	require.Equal(t, "2.00ms", perf["avgProcessingTime"])
}

func TestRecordConnection_PeakTracking(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(clock)

	m.RecordConnection(true)
	m.RecordConnection(true)
	m.RecordConnection(true)
	m.RecordConnection(false)
	m.RecordConnection(true)

	snap := m.Snapshot()
	conns := snap["connections"].(map[string]interface{})
	require.Equal(t, int64(3), conns["current"])
	require.Equal(t, int64(3), conns["peak"])
	require.Equal(t, int64(4), conns["total"])

	// Disconnects never drive the gauge negative.
	for i := 0; i < 10; i++ {
		m.RecordConnection(false)
	}
	snap = m.Snapshot()
	conns = snap["connections"].(map[string]interface{})
	require.Equal(t, int64(0), conns["current"])
}

func TestUptime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(clock)
	clock.Advance(90 * time.Second)

	snap := m.Snapshot()
	uptime := snap["uptime"].(map[string]interface{})
	require.Equal(t, int64(90000), uptime["ms"])
	require.Equal(t, "1m 30s", uptime["formatted"])
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour + 5*time.Minute + 9*time.Second, "1h 5m 9s"},
		{25 * time.Hour, "25h 0m 0s"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatUptime(tt.d))
	}
}

func TestPercentile(t *testing.T) {
	samples := make([]float64, 0, 100)
	for i := 1; i <= 100; i++ {
		samples = append(samples, float64(i))
	}

	require.Equal(t, float64(95), percentile(samples, 95))
	require.Equal(t, float64(99), percentile(samples, 99))
	require.Equal(t, float64(0), percentile(nil, 95))
	require.Equal(t, float64(7), percentile([]float64{7}, 99))
}

func TestReservoirIsBounded(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(clock)

	for i := 0; i < maxSamples+50; i++ {
		m.RecordBid(true, time.Millisecond, false)
	}
	require.Len(t, m.processingTimes, maxSamples)
}
