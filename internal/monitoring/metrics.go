package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cycle metrics
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decision_engine_cycle_duration_seconds",
			Help:    "Duration of one full evaluation cycle",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// Regime metrics
	regimeClassifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_engine_regime_classifications_total",
			Help: "Total regime classifications by outcome",
		},
		[]string{"regime"},
	)

	regimeConfidence = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "decision_engine_regime_confidence",
			Help: "Confidence of the latest regime classification",
		},
	)

	// Signal metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_engine_signals_total",
			Help: "Total signals produced by kind",
		},
		[]string{"kind"},
	)

	// Trade metrics
	tradesOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_engine_trades_opened_total",
			Help: "Total positions opened by side",
		},
		[]string{"side"},
	)

	blockedTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_engine_blocked_trades_total",
			Help: "Total trade requests blocked by reason",
		},
		[]string{"reason"},
	)

	lifecycleEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_engine_lifecycle_events_total",
			Help: "Total position management events by type",
		},
		[]string{"type"},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "decision_engine_open_positions",
			Help: "Number of currently open positions",
		},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "decision_engine_current_price",
			Help: "Latest evaluated price per symbol",
		},
		[]string{"symbol"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(regimeClassifications)
	prometheus.MustRegister(regimeConfidence)
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(tradesOpened)
	prometheus.MustRegister(blockedTrades)
	prometheus.MustRegister(lifecycleEvents)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(currentPrice)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// ObserveCycle records the duration of one evaluation cycle
func ObserveCycle(d time.Duration) {
	cycleDuration.Observe(d.Seconds())
}

// RecordRegime records a regime classification outcome
func RecordRegime(regime string, confidence float64) {
	regimeClassifications.WithLabelValues(regime).Inc()
	regimeConfidence.Set(confidence)
}

// RecordSignal records a produced signal
func RecordSignal(kind string) {
	signalsTotal.WithLabelValues(kind).Inc()
}

// RecordTradeOpened records an accepted position
func RecordTradeOpened(side string) {
	tradesOpened.WithLabelValues(side).Inc()
}

// RecordBlockedTrade records a rejected trade request
func RecordBlockedTrade(reason string) {
	blockedTrades.WithLabelValues(reason).Inc()
}

// RecordLifecycleEvent records a position management event
func RecordLifecycleEvent(eventType string) {
	lifecycleEvents.WithLabelValues(eventType).Inc()
}

// SetOpenPositions updates the open position gauge
func SetOpenPositions(n int) {
	openPositions.Set(float64(n))
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}
