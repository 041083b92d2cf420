package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Database
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dex_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// NATS
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dex_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	// ============================================
	// Admission
	// ============================================
	MakersAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_makers_admitted_total",
		Help: "Total number of single makers admitted",
	})

	BotsAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_bots_admitted_total",
		Help: "Total number of bots admitted",
	})

	BotMakersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_bot_makers_created_total",
		Help: "Total number of grid makers created by bot expansion",
	})

	AdmissionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_admission_rejections_total",
			Help: "Total number of rejected requests by error kind",
		},
		[]string{"kind"},
	)

	// ============================================
	// Fill engine
	// ============================================
	FillBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_fill_batches_total",
			Help: "Total number of watch-tower fill batches",
		},
		[]string{"status"}, // applied, failed
	)

	TakersRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_takers_recorded_total",
		Help: "Total number of taker legs recorded",
	})

	MakersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_makers_cancelled_total",
		Help: "Total number of makers cancelled",
	})

	MakersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_makers_expired_total",
		Help: "Total number of expired makers deleted by the sweeper",
	})

	// ============================================
	// Staking
	// ============================================
	StakingDeltas = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_staking_deltas_total",
			Help: "Total number of staking ledger mutations",
		},
		[]string{"kind"}, // stake, fees, withdrawal
	)

	// ============================================
	// Event bus
	// ============================================
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_events_published_total",
			Help: "Total number of event bus messages published",
		},
		[]string{"tag"},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_publish_failures_total",
			Help: "Total number of failed event bus publications",
		},
		[]string{"sink"},
	)

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dex_websocket_clients",
		Help: "Number of connected websocket clients",
	})

	// ============================================
	// HTTP
	// ============================================
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dex_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
