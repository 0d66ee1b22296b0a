package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WalletMetrics records outcomes and latency for wallet operations.
type WalletMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	rewards  prometheus.Counter
}

// NewWalletMetrics registers the wallet metrics on the provided registerer.
func NewWalletMetrics(reg prometheus.Registerer) *WalletMetrics {
	if reg == nil {
		return &WalletMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_operation_duration_seconds",
		Help:    "Duration of wallet operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operation_total",
		Help: "Wallet operations by outcome.",
	}, []string{"operation", "outcome"})
	rewards := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallet_mlm_rewards_total",
		Help: "Referral rewards credited by the purchase fan-out.",
	})
	reg.MustRegister(duration, outcomes, rewards)
	return &WalletMetrics{
		duration: duration,
		outcomes: outcomes,
		rewards:  rewards,
	}
}

// ObserveDuration records the duration for the named operation.
func (w *WalletMetrics) ObserveDuration(operation string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (w *WalletMetrics) IncSuccess(operation string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(operation), "success").Inc()
}

// IncFailure increments the failure counter for the named operation.
func (w *WalletMetrics) IncFailure(operation string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(operation), "failure").Inc()
}

// AddRewards counts credited fan-out rewards.
func (w *WalletMetrics) AddRewards(n int) {
	if w == nil || w.rewards == nil || n <= 0 {
		return
	}
	w.rewards.Add(float64(n))
}

func normalizeLabel(operation string) string {
	if operation == "" {
		return "unknown"
	}
	return operation
}
