package goLedger

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one engine counter.
type MetricID uint16

const (
	// MetricSubmitSuccess counts committed mutations.
	MetricSubmitSuccess MetricID = iota
	// MetricSubmitThrottled counts admission rejections.
	MetricSubmitThrottled
	// MetricVersionConflict counts optimistic-concurrency aborts.
	MetricVersionConflict
	// MetricInsufficientFunds counts business-rule rejections.
	MetricInsufficientFunds
	// MetricDuplicateReplay counts results served from the idempotency store.
	MetricDuplicateReplay
	// MetricRequestInFlight counts same-key concurrent collisions.
	MetricRequestInFlight
	// MetricStorageUnavailable counts transient storage failures.
	MetricStorageUnavailable
	// MetricLedgerCorrupt counts fatal per-account invariant violations.
	MetricLedgerCorrupt
	// MetricReservationReleased counts reservations released after
	// non-deterministic failures.
	MetricReservationReleased
	// MetricAccountOpened counts created ledger rows.
	MetricAccountOpened
	// MetricSubmitLatency is the Submit hot-path latency histogram.
	MetricSubmitLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's lock-free counters. Counters are cache-line
// padded so hot-path increments from different cores do not false-share.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a metrics sink honoring the given config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the Submit latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one Submit duration into the latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricSubmitLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters and histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricSubmitLatency].buckets[i])
		}
		s.Histograms[MetricSubmitLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
