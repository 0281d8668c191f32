package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Auction engine
	BidsTotal          prometheus.CounterVec
	BidRejectionsTotal prometheus.CounterVec
	SettlementsTotal   prometheus.CounterVec
	SettlementDuration prometheus.Histogram

	// Cleanup engine
	SweepCleanedTotal prometheus.CounterVec
	SweepErrorsTotal  prometheus.CounterVec
	SweepDuration     prometheus.HistogramVec

	// Collaborators
	PushFailuresTotal prometheus.Counter
	MediaDeletesTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			BidsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "marketplace_bids_total",
					Help: "Accepted bids by outcome",
				},
				[]string{"outcome"},
			),
			BidRejectionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "marketplace_bid_rejections_total",
					Help: "Rejected bids by reason",
				},
				[]string{"reason"},
			),
			SettlementsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "marketplace_settlements_total",
					Help: "Auction settlements by result",
				},
				[]string{"result"},
			),
			SettlementDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "marketplace_settlement_pass_seconds",
					Help:    "Duration of one settlement pass",
					Buckets: prometheus.DefBuckets,
				},
			),
			SweepCleanedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cleanup_records_cleaned_total",
					Help: "Records cleaned up by entity kind",
				},
				[]string{"kind"},
			),
			SweepErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cleanup_errors_total",
					Help: "Per-record cleanup failures by entity kind",
				},
				[]string{"kind"},
			),
			SweepDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cleanup_sweep_seconds",
					Help:    "Duration of one sweep pass",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"kind"},
			),
			PushFailuresTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "push_failures_total",
					Help: "Push notifications that could not be delivered",
				},
			),
			MediaDeletesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "media_deletes_total",
					Help: "Media deletions by status",
				},
				[]string{"status"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, or nil when Initialize was never called
// (unit tests run without a registry).
func Get() *Metrics {
	return instance
}
