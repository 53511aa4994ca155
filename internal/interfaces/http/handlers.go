package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/ignitex/ignitex/internal/domain"
	"github.com/ignitex/ignitex/internal/ensemble"
	"github.com/ignitex/ignitex/internal/persistence"
	"github.com/ignitex/ignitex/internal/reputation"
	"github.com/ignitex/ignitex/internal/telemetry"
)

// RegimeSource serves the last detected regime per instrument.
type RegimeSource interface {
	Regime(symbol string) (domain.RegimeState, bool)
}

// SignalSource serves live signals owned by the lifecycle manager.
type SignalSource interface {
	Active() []domain.PublishedSignal
	Lookup(id string) (domain.PublishedSignal, bool)
	ActiveCount() int
}

// Handlers bundles the read models behind the HTTP surface.
type Handlers struct {
	Store          persistence.SignalStore
	Live           SignalSource
	Regimes        RegimeSource
	Metrics        *telemetry.Metrics
	Rep            *reputation.Store
	StrategyHealth func() []ensemble.StrategyHealth
	Started        time.Time
	Version        string
}

type healthResponse struct {
	Status     string                    `json:"status"`
	Version    string                    `json:"version"`
	UptimeSecs float64                   `json:"uptime_seconds"`
	Active     int                       `json:"active_signals"`
	Strategies []ensemble.StrategyHealth `json:"strategies"`
}

// Health reports process liveness plus per-strategy breaker state.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Version:    h.Version,
		UptimeSecs: time.Since(h.Started).Seconds(),
		Active:     h.Live.ActiveCount(),
		Strategies: h.StrategyHealth(),
	})
}

// Signals lists persisted gate verdicts, newest first.
func (h *Handlers) Signals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	tr := persistence.TimeRange{}
	if raw := q.Get("since"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			tr.From = time.Now().Add(-d)
		}
	}

	signals, err := h.Store.ListFiltered(r.Context(), q.Get("symbol"), tr, limit)
	if err != nil {
		log.Error().Err(err).Msg("signal list query failed")
		writeError(w, http.StatusInternalServerError, "signal query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(signals),
		"signals": signals,
	})
}

// ActiveSignals lists live published signals.
func (h *Handlers) ActiveSignals(w http.ResponseWriter, r *http.Request) {
	active := h.Live.Active()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(active),
		"signals": active,
	})
}

// Signal fetches one signal by id, preferring the live record.
func (h *Handlers) Signal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if live, ok := h.Live.Lookup(id); ok {
		writeJSON(w, http.StatusOK, live)
		return
	}
	sig, err := h.Store.GetFiltered(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "signal not found")
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// Regime serves the last regime classification for one instrument.
func (h *Handlers) Regime(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	state, ok := h.Regimes.Regime(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "symbol not scanned yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"regime": state,
	})
}

// Funnel serves the per-stage pipeline counters.
func (h *Handlers) Funnel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Metrics.Snapshot())
}

// Reputation serves the (strategy, regime) reputation table.
func (h *Handlers) Reputation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": h.Rep.Snapshot(),
	})
}

// NotFound is the JSON 404 handler.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "unknown endpoint")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
