// Package handlers provides HTTP handlers for the fill ledger endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/ledger"
)

// Handler serves fill ledger queries
type Handler struct {
	repo *ledger.Repository
	log  zerolog.Logger
}

// NewHandler creates a ledger handler
func NewHandler(repo *ledger.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetFills handles GET /api/ledger/fills
func (h *Handler) HandleGetFills(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	symbol := r.URL.Query().Get("symbol")

	fills, err := h.repo.Recent(symbol, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query fills")
		http.Error(w, "failed to query fills", http.StatusInternalServerError)
		return
	}
	if fills == nil {
		fills = []ledger.Entry{}
	}

	h.writeJSON(w, map[string]interface{}{
		"fills": fills,
		"count": len(fills),
	})
}

// HandleGetSummary handles GET /api/ledger/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.Summarize()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to summarize fills")
		http.Error(w, "failed to summarize fills", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, summary)
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
