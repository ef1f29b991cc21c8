// Package metrics aggregates cache hit/miss/error counters and response
// times, and derives operator-facing signals from them: hit rate,
// effectiveness score, response-time trend, and a coarse health status
// with recommendations. A Metrics value also implements
// [prometheus.Collector] so it can be registered and scraped directly.
package metrics

import (
	"fmt"
	"sync"
	"time"
)

const (
	// ringSize bounds the response-time series. Older samples are
	// overwritten once the ring is full.
	ringSize = 1024

	// trendMinSamples is the minimum number of samples before Trend
	// reports anything other than insufficient data.
	trendMinSamples = 8
)

// Trend classifies the recent direction of response times.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendStable           Trend = "stable"
	TrendDegrading        Trend = "degrading"
	TrendInsufficientData Trend = "insufficient_data"
)

// Status is the coarse health classification of the cache.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Health thresholds.
const (
	criticalErrorRate = 0.10
	warnHitRate       = 0.50
	warnAvgResponse   = 100 * time.Millisecond
	minTrafficForHint = 10
)

// Health is the derived health report.
type Health struct {
	Status          Status
	Recommendations []string
}

// Metrics accumulates cache counters and a bounded response-time series.
// All methods are safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	hits    uint64
	misses  uint64
	sets    uint64
	deletes uint64
	errors  uint64

	ring  [ringSize]time.Duration
	ringN uint64 // total samples ever recorded

	nowFunc func() time.Time // for testing; defaults to time.Now
}

// New creates an empty Metrics.
func New() *Metrics {
	return &Metrics{nowFunc: time.Now}
}

// RecordHit increments the hit counter.
func (m *Metrics) RecordHit() { m.inc(&m.hits) }

// RecordMiss increments the miss counter.
func (m *Metrics) RecordMiss() { m.inc(&m.misses) }

// RecordSet increments the set counter.
func (m *Metrics) RecordSet() { m.inc(&m.sets) }

// RecordDelete increments the delete counter.
func (m *Metrics) RecordDelete() { m.inc(&m.deletes) }

// RecordError increments the error counter.
func (m *Metrics) RecordError() { m.inc(&m.errors) }

func (m *Metrics) inc(c *uint64) {
	m.mu.Lock()
	*c++
	m.mu.Unlock()
}

// RecordResponseTime appends d to the bounded response-time series.
func (m *Metrics) RecordResponseTime(d time.Duration) {
	m.mu.Lock()
	m.ring[m.ringN%ringSize] = d
	m.ringN++
	m.mu.Unlock()
}

// Track starts a timed section and returns a stop function that records
// the elapsed time. The stop function must run on every exit path:
//
//	stop := m.Track()
//	defer stop()
func (m *Metrics) Track() func() {
	start := m.nowFunc()
	return func() {
		m.RecordResponseTime(m.nowFunc().Sub(start))
	}
}

// Snapshot is a consistent point-in-time view of all counters and derived
// values.
type Snapshot struct {
	Hits    uint64
	Misses  uint64
	Sets    uint64
	Deletes uint64
	Errors  uint64

	HitRate         float64
	ErrorRate       float64
	AvgResponseTime time.Duration
	Effectiveness   float64
	Trend           Trend
}

// Snapshot returns a consistent view of the current metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Hits:            m.hits,
		Misses:          m.misses,
		Sets:            m.sets,
		Deletes:         m.deletes,
		Errors:          m.errors,
		HitRate:         m.hitRate(),
		ErrorRate:       m.errorRate(),
		AvgResponseTime: m.avgResponseTime(),
		Effectiveness:   m.effectiveness(),
		Trend:           m.trend(),
	}
}

// HitRate returns hits/(hits+misses), or 0 with no traffic.
func (m *Metrics) HitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hitRate()
}

// ErrorRate returns errors/(hits+misses+sets+deletes), or 0 with no traffic.
func (m *Metrics) ErrorRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorRate()
}

// AvgResponseTime returns the mean of the recorded response-time window.
func (m *Metrics) AvgResponseTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avgResponseTime()
}

// EffectivenessScore returns a 0–100 composite of hit rate, response time,
// and error rate: 40·hitRate + max(0, 30 − avgMs) + 30·(1 − errorRate).
func (m *Metrics) EffectivenessScore() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.effectiveness()
}

// Trend compares the mean response time of the first half of the window
// against the second half.
func (m *Metrics) Trend() Trend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trend()
}

// Health classifies the cache as healthy, warning, or critical and attaches
// actionable recommendations.
func (m *Metrics) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()

	errRate := m.errorRate()
	hitRate := m.hitRate()
	avg := m.avgResponseTime()
	traffic := m.hits + m.misses

	switch {
	case errRate > criticalErrorRate:
		return Health{
			Status: StatusCritical,
			Recommendations: []string{
				fmt.Sprintf("error rate %.1f%% exceeds %.0f%%: check L2 backend connectivity and serialization failures", errRate*100, criticalErrorRate*100),
			},
		}
	case (traffic >= minTrafficForHint && hitRate < warnHitRate) || avg > warnAvgResponse:
		var recs []string
		if traffic >= minTrafficForHint && hitRate < warnHitRate {
			recs = append(recs, fmt.Sprintf("hit rate %.1f%% is below %.0f%%: review TTLs and key derivation, or warm hot keys", hitRate*100, warnHitRate*100))
		}
		if avg > warnAvgResponse {
			recs = append(recs, fmt.Sprintf("average response time %s exceeds %s: check L2 latency and payload sizes", avg, warnAvgResponse))
		}
		return Health{Status: StatusWarning, Recommendations: recs}
	default:
		return Health{
			Status:          StatusHealthy,
			Recommendations: []string{"cache is operating normally"},
		}
	}
}

// Reset zeroes all counters and the response-time series.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits, m.misses, m.sets, m.deletes, m.errors = 0, 0, 0, 0, 0
	m.ringN = 0
}

// The locked helpers below must be called with m.mu held.

func (m *Metrics) hitRate() float64 {
	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total)
}

func (m *Metrics) errorRate() float64 {
	total := m.hits + m.misses + m.sets + m.deletes
	if total == 0 {
		return 0
	}
	return float64(m.errors) / float64(total)
}

func (m *Metrics) avgResponseTime() time.Duration {
	w := m.window()
	if len(w) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range w {
		sum += d
	}
	return sum / time.Duration(len(w))
}

func (m *Metrics) effectiveness() float64 {
	score := 40 * m.hitRate()
	avgMs := float64(m.avgResponseTime()) / float64(time.Millisecond)
	if penalty := 30 - avgMs; penalty > 0 {
		score += penalty
	}
	score += 30 * (1 - m.errorRate())
	return score
}

func (m *Metrics) trend() Trend {
	w := m.window()
	if len(w) < trendMinSamples {
		return TrendInsufficientData
	}
	half := len(w) / 2
	earlier := mean(w[:half])
	recent := mean(w[half:])
	switch {
	case recent < 0.9*earlier:
		return TrendImproving
	case recent > 1.1*earlier:
		return TrendDegrading
	default:
		return TrendStable
	}
}

// window returns the recorded samples in chronological order.
func (m *Metrics) window() []time.Duration {
	if m.ringN < ringSize {
		return m.ring[:m.ringN]
	}
	// The ring has wrapped: oldest sample sits at the write index.
	start := m.ringN % ringSize
	w := make([]time.Duration, 0, ringSize)
	w = append(w, m.ring[start:]...)
	w = append(w, m.ring[:start]...)
	return w
}

func mean(w []time.Duration) float64 {
	var sum float64
	for _, d := range w {
		sum += float64(d)
	}
	return sum / float64(len(w))
}
