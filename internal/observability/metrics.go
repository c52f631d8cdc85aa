package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bank engine.
type Metrics struct {
	// --- Request processing ---
	RequestsApplied  *prometheus.CounterVec
	RequestsRejected *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec

	// --- Ledger ---
	TransactionsAppended *prometheus.CounterVec
	TransfersApplied     prometheus.Counter
	RegisteredAccounts   prometheus.Gauge
	ActiveParticipants   prometheus.Gauge

	// --- Rounds & bets ---
	RoundsOpened  prometheus.Counter
	RoundsClosed  prometheus.Counter
	CurrentRound  prometheus.Gauge
	BetsPlaced    prometheus.Counter
	BetVolume     prometheus.Counter
	QuorumReached prometheus.Counter

	// --- Settlement ---
	RoundsSettled        *prometheus.CounterVec
	SettleDuration       *prometheus.HistogramVec
	SettleBetsResolved   *prometheus.CounterVec
	SettleRejectedDebits prometheus.Counter
	PotRoundingResidual  prometheus.Gauge

	// --- Snapshot publishing ---
	SnapshotsPublished prometheus.Counter
	PublishDrops       prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		RequestsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "betbank_requests_applied_total",
			Help: "Requests successfully applied by the engine",
		}, []string{"action"}),

		RequestsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "betbank_requests_rejected_total",
			Help: "Requests rejected (unknown account, insufficient funds, round locked)",
		}, []string{"action", "reason"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "betbank_request_duration_seconds",
			Help:    "Time to apply a single request",
			Buckets: latencyBuckets,
		}, []string{"action"}),

		TransactionsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "betbank_transactions_appended_total",
			Help: "Ledger transactions appended",
		}, []string{"kind"}),

		TransfersApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "betbank_transfers_applied_total",
			Help: "Participant-to-participant transfers applied",
		}),

		RegisteredAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "betbank_registered_accounts",
			Help: "Accounts ever registered",
		}),

		ActiveParticipants: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "betbank_active_participants",
			Help: "Currently connected participants",
		}),

		RoundsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "betbank_rounds_opened_total",
			Help: "Betting rounds opened",
		}),

		RoundsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "betbank_rounds_closed_total",
			Help: "Betting rounds closed (locked)",
		}),

		CurrentRound: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "betbank_current_round",
			Help: "Current round id",
		}),

		BetsPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "betbank_bets_placed_total",
			Help: "Bets accepted into the bet book",
		}),

		BetVolume: promauto.NewCounter(prometheus.CounterOpts{
			Name: "betbank_bet_volume_total",
			Help: "Total staked amount across accepted bets",
		}),

		QuorumReached: promauto.NewCounter(prometheus.CounterOpts{
			Name: "betbank_quorum_reached_total",
			Help: "Times every active participant had bet in the open round",
		}),

		RoundsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "betbank_rounds_settled_total",
			Help: "Rounds settled",
		}, []string{"mode"}),

		SettleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "betbank_settle_duration_seconds",
			Help:    "Time to settle one round",
			Buckets: latencyBuckets,
		}, []string{"mode"}),

		SettleBetsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "betbank_settle_bets_resolved_total",
			Help: "Bets resolved at settlement",
		}, []string{"outcome"}),

		SettleRejectedDebits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "betbank_settle_rejected_debits_total",
			Help: "Settlement debits the ledger refused (overstaked participants)",
		}),

		PotRoundingResidual: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "betbank_pot_rounding_residual",
			Help: "Winner-takes-all rounding residual of the last settled round",
		}),

		SnapshotsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "betbank_snapshots_published_total",
			Help: "Ledger snapshots handed to the publisher",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "betbank_publish_drops_total",
			Help: "Snapshots dropped due to full publish channel",
		}),
	}
}
