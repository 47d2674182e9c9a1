package embedstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    upsertCounter   prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordUpsert(duration time.Duration, err error) {
//	    p.upsertCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordUpsert is called after each upsert operation.
	// duration is the total time taken, err is nil if successful.
	RecordUpsert(duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// limit is the requested result count after clamping.
	RecordSearch(limit int, duration time.Duration, err error)

	// RecordGetVector is called after each point lookup.
	RecordGetVector(duration time.Duration, err error)

	// RecordPromotion is called after each promotion attempt.
	// promoted is the number of entries merged into cold.
	RecordPromotion(promoted int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpsert(time.Duration, error)         {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordGetVector(time.Duration, error)      {}
func (NoopMetricsCollector) RecordPromotion(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	UpsertCount         atomic.Int64
	UpsertErrors        atomic.Int64
	UpsertTotalNanos    atomic.Int64
	SearchCount         atomic.Int64
	SearchErrors        atomic.Int64
	SearchTotalNanos    atomic.Int64
	GetVectorCount      atomic.Int64
	GetVectorErrors     atomic.Int64
	PromotionCount      atomic.Int64
	PromotionErrors     atomic.Int64
	PromotedEntries     atomic.Int64
	PromotionTotalNanos atomic.Int64
}

// RecordUpsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpsert(duration time.Duration, err error) {
	b.UpsertCount.Add(1)
	b.UpsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.UpsertErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(limit int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordGetVector implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGetVector(duration time.Duration, err error) {
	b.GetVectorCount.Add(1)
	if err != nil {
		b.GetVectorErrors.Add(1)
	}
}

// RecordPromotion implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPromotion(promoted int, duration time.Duration, err error) {
	b.PromotionCount.Add(1)
	b.PromotionTotalNanos.Add(duration.Nanoseconds())
	b.PromotedEntries.Add(int64(promoted))
	if err != nil {
		b.PromotionErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		UpsertCount:     b.UpsertCount.Load(),
		UpsertErrors:    b.UpsertErrors.Load(),
		UpsertAvgNanos:  avg(b.UpsertTotalNanos.Load(), b.UpsertCount.Load()),
		SearchCount:     b.SearchCount.Load(),
		SearchErrors:    b.SearchErrors.Load(),
		SearchAvgNanos:  avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		GetVectorCount:  b.GetVectorCount.Load(),
		GetVectorErrors: b.GetVectorErrors.Load(),
		PromotionCount:  b.PromotionCount.Load(),
		PromotionErrors: b.PromotionErrors.Load(),
		PromotedEntries: b.PromotedEntries.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	UpsertCount     int64
	UpsertErrors    int64
	UpsertAvgNanos  int64
	SearchCount     int64
	SearchErrors    int64
	SearchAvgNanos  int64
	GetVectorCount  int64
	GetVectorErrors int64
	PromotionCount  int64
	PromotionErrors int64
	PromotedEntries int64
}
