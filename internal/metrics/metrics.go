package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// maxSamples bounds the processing-time reservoir.
const maxSamples = 1000

// Metrics is an in-process counters sideline. It never influences bid
// processing; recording failures are impossible by construction.
type Metrics struct {
	mu sync.Mutex

	startTime time.Time
	clock     clockwork.Clock

	bidsTotal       int64
	bidsSuccessful  int64
	bidsFailed      int64
	bidsRateLimited int64
	processingTimes []float64 // milliseconds, most recent maxSamples

	connCurrent int64
	connPeak    int64
	connTotal   int64
}

// New creates a metrics recorder anchored at the current clock time.
func New(clock clockwork.Clock) *Metrics {
	return &Metrics{
		startTime: clock.Now(),
		clock:     clock,
	}
}

// RecordBid records the outcome and processing latency of one bid attempt.
func (m *Metrics) RecordBid(success bool, processingTime time.Duration, rateLimited bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bidsTotal++
	if success {
		m.bidsSuccessful++
	} else {
		m.bidsFailed++
	}
	if rateLimited {
		m.bidsRateLimited++
	}

	m.processingTimes = append(m.processingTimes, float64(processingTime.Microseconds())/1000)
	if len(m.processingTimes) > maxSamples {
		m.processingTimes = m.processingTimes[1:]
	}
}

// RecordConnection tracks connection churn and the concurrent peak.
func (m *Metrics) RecordConnection(connect bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if connect {
		m.connCurrent++
		m.connTotal++
		if m.connCurrent > m.connPeak {
			m.connPeak = m.connCurrent
		}
	} else if m.connCurrent > 0 {
		m.connCurrent--
	}
}

// Snapshot returns the dashboard payload.
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	uptime := m.clock.Now().Sub(m.startTime)

	successRate := "N/A"
	if m.bidsTotal > 0 {
		successRate = fmt.Sprintf("%.2f%%", float64(m.bidsSuccessful)/float64(m.bidsTotal)*100)
	}

	avg := "N/A"
	if len(m.processingTimes) > 0 {
		var sum float64
		for _, t := range m.processingTimes {
			sum += t
		}
		avg = fmt.Sprintf("%.2fms", sum/float64(len(m.processingTimes)))
	}

	return map[string]interface{}{
		"uptime": map[string]interface{}{
			"ms":        uptime.Milliseconds(),
			"formatted": formatUptime(uptime),
		},
		"bids": map[string]interface{}{
			"total":       m.bidsTotal,
			"successful":  m.bidsSuccessful,
			"failed":      m.bidsFailed,
			"rateLimited": m.bidsRateLimited,
			"successRate": successRate,
		},
		"performance": map[string]interface{}{
			"avgProcessingTime": avg,
			"p95ProcessingTime": fmt.Sprintf("%.2fms", percentile(m.processingTimes, 95)),
			"p99ProcessingTime": fmt.Sprintf("%.2fms", percentile(m.processingTimes, 99)),
		},
		"connections": map[string]interface{}{
			"current": m.connCurrent,
			"peak":    m.connPeak,
			"total":   m.connTotal,
		},
		"serverTime": m.clock.Now().UnixMilli(),
	}
}

func percentile(samples []float64, p int) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	idx := (p*len(sorted)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func formatUptime(d time.Duration) string {
	seconds := int64(d.Seconds())
	minutes := seconds / 60
	hours := minutes / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes%60, seconds%60)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}
