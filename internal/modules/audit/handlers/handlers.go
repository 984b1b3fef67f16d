// Package handlers provides HTTP handlers for the audit trail endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/audit"
)

// Handler serves audit trail queries
type Handler struct {
	repo *audit.Repository
	log  zerolog.Logger
}

// NewHandler creates an audit handler
func NewHandler(repo *audit.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "audit").Logger(),
	}
}

// RegisterRoutes registers all audit routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/recent", h.handleRecent)
		r.Get("/cycles/{cycle}", h.handleByCycle)
		r.Get("/symbols/{symbol}", h.handleBySymbol)
	})
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	records, err := h.repo.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load recent audit records")
		http.Error(w, "failed to load audit records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (h *Handler) handleByCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := strconv.ParseUint(chi.URLParam(r, "cycle"), 10, 64)
	if err != nil {
		http.Error(w, "invalid cycle", http.StatusBadRequest)
		return
	}
	records, err := h.repo.ByCycle(cycle)
	if err != nil {
		h.log.Error().Err(err).Uint64("cycle", cycle).Msg("Failed to load audit records")
		http.Error(w, "failed to load audit records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (h *Handler) handleBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	records, err := h.repo.BySymbol(symbol, queryInt(r, "limit", 100))
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load audit records")
		http.Error(w, "failed to load audit records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
