package infra

import (
	"sync/atomic"
	"time"
)

// Metrics counts settlement outcomes, including the losses the engine
// accepts instead of retrying. Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	sweeps            atomic.Uint64
	offersExpired     atomic.Uint64
	raceLost          atomic.Uint64
	itemsDelivered    atomic.Uint64
	itemsLost         atomic.Uint64
	integrityGaps     atomic.Uint64
	currencyRefunded  atomic.Uint64
	refundFailures    atomic.Uint64
	storeErrors       atomic.Uint64
	fatalStoreErrors  atomic.Uint64
	statisticsRefresh atomic.Uint64

	// Latency tracking
	sweepLatencySumNs atomic.Int64
	sweepLatencyCount atomic.Uint64
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordSweep records one finished sweep batch with its latency.
func (m *Metrics) RecordSweep(latency time.Duration) {
	m.sweeps.Add(1)
	m.sweepLatencySumNs.Add(latency.Nanoseconds())
	m.sweepLatencyCount.Add(1)
}

// RecordExpired records an offer archived as expired.
func (m *Metrics) RecordExpired() {
	m.offersExpired.Add(1)
}

// RecordRaceLost records an offer skipped because it was settled elsewhere.
func (m *Metrics) RecordRaceLost() {
	m.raceLost.Add(1)
}

// RecordDelivered records item units placed into an inbox.
func (m *Metrics) RecordDelivered(units uint64) {
	m.itemsDelivered.Add(units)
}

// RecordLost records item units that could not be delivered.
func (m *Metrics) RecordLost(units uint64) {
	m.itemsLost.Add(units)
}

// RecordIntegrityGap records an offer referencing an undefined item.
func (m *Metrics) RecordIntegrityGap() {
	m.integrityGaps.Add(1)
}

// RecordRefund records bank money returned to an owner.
func (m *Metrics) RecordRefund(amount uint64) {
	m.currencyRefunded.Add(amount)
}

// RecordRefundFailure records a settlement whose refund could not be applied.
func (m *Metrics) RecordRefundFailure() {
	m.refundFailures.Add(1)
}

// RecordStoreError records a failed storage operation.
func (m *Metrics) RecordStoreError() {
	m.storeErrors.Add(1)
}

// RecordFatalStoreError records a store failure that retrying cannot fix.
func (m *Metrics) RecordFatalStoreError() {
	m.fatalStoreErrors.Add(1)
}

// RecordStatisticsRefresh records a completed statistics rebuild.
func (m *Metrics) RecordStatisticsRefresh() {
	m.statisticsRefresh.Add(1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Sweeps            uint64    `json:"sweeps"`
	OffersExpired     uint64    `json:"offers_expired"`
	RaceLost          uint64    `json:"race_lost"`
	ItemsDelivered    uint64    `json:"items_delivered"`
	ItemsLost         uint64    `json:"items_lost"`
	IntegrityGaps     uint64    `json:"integrity_gaps"`
	CurrencyRefunded  uint64    `json:"currency_refunded"`
	RefundFailures    uint64    `json:"refund_failures"`
	StoreErrors       uint64    `json:"store_errors"`
	FatalStoreErrors  uint64    `json:"fatal_store_errors"`
	StatisticsRefresh uint64    `json:"statistics_refresh"`
	AvgSweepLatencyNs int64     `json:"avg_sweep_latency_ns"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.sweepLatencyCount.Load()
	if count > 0 {
		avgLatency = m.sweepLatencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		Sweeps:            m.sweeps.Load(),
		OffersExpired:     m.offersExpired.Load(),
		RaceLost:          m.raceLost.Load(),
		ItemsDelivered:    m.itemsDelivered.Load(),
		ItemsLost:         m.itemsLost.Load(),
		IntegrityGaps:     m.integrityGaps.Load(),
		CurrencyRefunded:  m.currencyRefunded.Load(),
		RefundFailures:    m.refundFailures.Load(),
		StoreErrors:       m.storeErrors.Load(),
		FatalStoreErrors:  m.fatalStoreErrors.Load(),
		StatisticsRefresh: m.statisticsRefresh.Load(),
		AvgSweepLatencyNs: avgLatency,
		Timestamp:         time.Now(),
	}
}
