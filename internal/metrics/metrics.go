package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal pipeline.
type Metrics struct {
	BarsFetched     *prometheus.CounterVec // labels: symbol
	FetchErrors     prometheus.Counter
	IndicatorDur    prometheus.Histogram
	SignalsTotal    *prometheus.CounterVec // labels: strategy, action
	SignalsBlocked  *prometheus.CounterVec // labels: reason_class
	StrategyErrors  *prometheus.CounterVec // labels: strategy
	OrdersPlaced    *prometheus.CounterVec // labels: mode=pre_market|session, result
	OrderDur        prometheus.Histogram
	PriceFetchDur   prometheus.Histogram
	PriceFetchSkips prometheus.Counter
	MonitorEntries  prometheus.Gauge
	MonitorPasses   prometheus.Counter
	SQLiteCommitDur prometheus.Histogram
	RedisWriteDur   prometheus.Histogram
	MarketState     prometheus.Gauge // 0=closed, 1=pre-market, 2=open
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BarsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tritrend_bars_fetched_total",
			Help: "Daily bars fetched per symbol",
		}, []string{"symbol"}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tritrend_fetch_errors_total",
			Help: "Bar fetch attempts that exhausted retries",
		}),
		IndicatorDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tritrend_indicator_compute_duration_seconds",
			Help:    "Indicator engine compute latency per symbol",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tritrend_signals_total",
			Help: "Signals emitted by strategy and action",
		}, []string{"strategy", "action"}),
		SignalsBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tritrend_signals_blocked_total",
			Help: "Signals rejected by the risk gate",
		}, []string{"reason_class"}),
		StrategyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tritrend_strategy_errors_total",
			Help: "Strategy evaluation failures (isolated per strategy)",
		}, []string{"strategy"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tritrend_orders_placed_total",
			Help: "Order submissions by mode and result",
		}, []string{"mode", "result"}),
		OrderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tritrend_order_duration_seconds",
			Help:    "Order placement latency",
			Buckets: prometheus.DefBuckets,
		}),
		PriceFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tritrend_price_fetch_duration_seconds",
			Help:    "Real-time price fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		PriceFetchSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tritrend_price_fetch_skips_total",
			Help: "Monitor entries skipped this pass due to a failed price fetch",
		}),
		MonitorEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tritrend_monitor_entries",
			Help: "Signals currently armed for live-price monitoring",
		}),
		MonitorPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tritrend_monitor_passes_total",
			Help: "Completed monitoring loop passes",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tritrend_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tritrend_redis_write_duration_seconds",
			Help:    "Redis snapshot write latency",
			Buckets: prometheus.DefBuckets,
		}),
		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tritrend_market_state",
			Help: "Market session state (0=closed, 1=pre-market, 2=open)",
		}),
	}

	prometheus.MustRegister(
		m.BarsFetched,
		m.FetchErrors,
		m.IndicatorDur,
		m.SignalsTotal,
		m.SignalsBlocked,
		m.StrategyErrors,
		m.OrdersPlaced,
		m.OrderDur,
		m.PriceFetchDur,
		m.PriceFetchSkips,
		m.MonitorEntries,
		m.MonitorPasses,
		m.SQLiteCommitDur,
		m.RedisWriteDur,
		m.MarketState,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	BrokerConnected bool      `json:"broker_connected"`
	BrokerSimulated bool      `json:"broker_simulated"`
	RedisConnected  bool      `json:"redis_connected"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	LastAnalysisAt  time.Time `json:"last_analysis_at"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetBroker(connected, simulated bool) {
	h.mu.Lock()
	h.BrokerConnected = connected
	h.BrokerSimulated = simulated
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastAnalysis(t time.Time) {
	h.mu.Lock()
	h.LastAnalysisAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK || !h.RedisConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if h.BrokerSimulated {
		overallStatus = "simulated"
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		BrokerConnected bool    `json:"broker_connected"`
		BrokerSimulated bool    `json:"broker_simulated"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastAnalysisAt  string  `json:"last_analysis_at"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		BrokerConnected: h.BrokerConnected,
		BrokerSimulated: h.BrokerSimulated,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastAnalysisAt:  h.LastAnalysisAt.Format(time.RFC3339),
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server. extra, when non-nil,
// handles everything outside /metrics and /healthz; the status API
// mounts through it.
func NewServer(addr string, health *HealthStatus, extra http.Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)
	if extra != nil {
		mux.Handle("/", extra)
	}

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
