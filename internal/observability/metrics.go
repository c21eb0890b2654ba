// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	FeedEventsReceived  *prometheus.CounterVec
	FeedEventsMalformed prometheus.Counter
	FeedEventsDropped   *prometheus.CounterVec
	FeedReconnects      prometheus.Counter
	FeedSubscribers     prometheus.Gauge
	FeedWatchedMints    prometheus.Gauge

	// Scoring metrics
	TokensScored  prometheus.Counter
	BuySignals    *prometheus.CounterVec
	OracleErrors  prometheus.Counter
	ScoreAchieved prometheus.Histogram

	// Tracker metrics
	CandidatesTracked  prometheus.Counter
	CandidatesExpired  prometheus.Counter
	CandidatesRejected *prometheus.CounterVec

	// Position metrics
	PositionsOpened  prometheus.Counter
	PositionsClosed  *prometheus.CounterVec
	PositionsErrored prometheus.Counter
	ActivePositions  prometheus.Gauge
	RealizedPnlSol   prometheus.Counter
	CapacityRejects  prometheus.Counter

	// Execution metrics
	BuysExecuted prometheus.Counter
	TranchesSold prometheus.Counter
	ExecRetries  prometheus.Counter
	ExecFailures *prometheus.CounterVec
	ExecLatency  prometheus.Histogram

	// Bot metrics
	BotsRunning prometheus.Gauge
	BotPanics   prometheus.Counter

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pump_swarm"
	}

	return &Metrics{
		// Feed metrics
		FeedEventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_received_total",
			Help:      "Total number of feed events received by type",
		}, []string{"event_type"}),
		FeedEventsMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_malformed_total",
			Help:      "Total number of malformed feed payloads skipped",
		}),
		FeedEventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped per subscriber queue",
		}, []string{"subscriber"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of upstream websocket reconnects",
		}),
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of fan-out subscribers",
		}),
		FeedWatchedMints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "watched_mints",
			Help:      "Current number of mints with trade subscriptions",
		}),

		// Scoring metrics
		TokensScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "tokens_scored_total",
			Help:      "Total number of tokens scored",
		}),
		BuySignals: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "buy_signals_total",
			Help:      "Total number of buy signals by confidence",
		}, []string{"confidence"}),
		OracleErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "oracle_errors_total",
			Help:      "Total number of oracle prediction failures",
		}),
		ScoreAchieved: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "score",
			Help:      "Distribution of total scores",
			Buckets:   []float64{-20, 0, 20, 40, 60, 80, 100},
		}),

		// Tracker metrics
		CandidatesTracked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "candidates_total",
			Help:      "Total number of candidates tracked",
		}),
		CandidatesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "candidates_expired_total",
			Help:      "Total number of candidates expired past the watch budget",
		}),
		CandidatesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "candidates_rejected_total",
			Help:      "Total number of candidates rejected by reason",
		}, []string{"reason"}),

		// Position metrics
		PositionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "opened_total",
			Help:      "Total number of positions opened",
		}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "closed_total",
			Help:      "Total number of positions closed by exit reason",
		}, []string{"reason"}),
		PositionsErrored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "errored_total",
			Help:      "Total number of positions moved to errored state",
		}),
		ActivePositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "active",
			Help:      "Current number of active positions across all bots",
		}),
		RealizedPnlSol: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "realized_pnl_sol_total",
			Help:      "Cumulative realized PnL in SOL across all bots",
		}),
		CapacityRejects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "capacity_rejects_total",
			Help:      "Total number of opens rejected at the concurrency cap",
		}),

		// Execution metrics
		BuysExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "buys_total",
			Help:      "Total number of buy fills executed",
		}),
		TranchesSold: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "tranches_sold_total",
			Help:      "Total number of sell tranches executed",
		}),
		ExecRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "retries_total",
			Help:      "Total number of transient submission retries",
		}),
		ExecFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "failures_total",
			Help:      "Total number of submission failures by kind",
		}, []string{"kind"}),
		ExecLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "latency_seconds",
			Help:      "Trade submission latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Bot metrics
		BotsRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "running",
			Help:      "Current number of running bot instances",
		}),
		BotPanics: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "panics_total",
			Help:      "Total number of recovered bot loop panics",
		}),

		// Database metrics
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors by store and operation",
		}, []string{"store", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
