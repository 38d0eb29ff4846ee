// Package api exposes read-only HTTP endpoints over the pipeline's
// state: stored signals, open positions, and the armed monitor set.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"tritrend/internal/model"
	"tritrend/internal/portfolio"
	"tritrend/internal/premarket"
	"tritrend/internal/store/sqlite"
)

// Deps are the read sources behind the endpoints. Store may be nil;
// its endpoints then report 503.
type Deps struct {
	Store     *sqlite.Store
	Portfolio *portfolio.Portfolio
	Monitor   *premarket.Monitor
	Risk      *portfolio.RiskManager
	Logger    *slog.Logger
}

// NewRouter sets up the HTTP routes.
func NewRouter(d Deps) *http.ServeMux {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &handlers{d: d, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", h.health)
	mux.HandleFunc("/api/v1/signals", h.signals)
	mux.HandleFunc("/api/v1/positions", h.positions)
	mux.HandleFunc("/api/v1/monitor", h.monitor)
	mux.HandleFunc("/api/v1/bars", h.bars)
	return mux
}

type handlers struct {
	d   Deps
	log *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/v1/signals?status=pending&limit=50
func (h *handlers) signals(w http.ResponseWriter, r *http.Request) {
	if h.d.Store == nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	status := model.SignalStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	signals, err := h.d.Store.LoadSignals(r.Context(), status, limit)
	if err != nil {
		h.log.Error("signal query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": signals, "count": len(signals)})
}

// GET /api/v1/positions
func (h *handlers) positions(w http.ResponseWriter, r *http.Request) {
	positions := h.d.Portfolio.Positions()
	writeJSON(w, http.StatusOK, map[string]any{
		"positions":      positions,
		"count":          len(positions),
		"committed":      h.d.Portfolio.CommittedNotional(),
		"unrealized_pnl": h.d.Portfolio.TotalUnrealizedPnL(),
	})
}

// GET /api/v1/monitor
func (h *handlers) monitor(w http.ResponseWriter, r *http.Request) {
	entries := h.d.Monitor.Entries()
	trades, preMarket := h.d.Risk.Counters()
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":           entries,
		"count":             len(entries),
		"trades_today":      trades,
		"pre_market_orders": preMarket,
	})
}

// GET /api/v1/bars?symbol=2330&period=4h&after=0
func (h *handlers) bars(w http.ResponseWriter, r *http.Request) {
	if h.d.Store == nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol required", http.StatusBadRequest)
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = model.PeriodFourHour
	}
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

	bars, err := h.d.Store.LoadBars(r.Context(), symbol, period, after)
	if err != nil {
		h.log.Error("bar query failed", "symbol", symbol, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bars": bars, "count": len(bars)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
