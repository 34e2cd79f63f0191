package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
)

// WatchlistHandler serves the watchlist endpoints. Adding a symbol kicks
// off a detached refresh for it; the response does not wait for the data.
type WatchlistHandler struct {
	watchlists     interfaces.WatchlistService
	orchestrator   interfaces.OrchestratorService
	refreshTimeout time.Duration
	logger         arbor.ILogger
}

// NewWatchlistHandler creates a watchlist handler.
func NewWatchlistHandler(watchlists interfaces.WatchlistService, orchestrator interfaces.OrchestratorService, refreshTimeout time.Duration, logger arbor.ILogger) *WatchlistHandler {
	return &WatchlistHandler{
		watchlists:     watchlists,
		orchestrator:   orchestrator,
		refreshTimeout: refreshTimeout,
		logger:         logger,
	}
}

type watchlistRequest struct {
	Symbol string `json:"symbol"`
}

// ListHandler handles GET /api/me/watchlist.
func (h *WatchlistHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	watchlist, err := h.watchlists.GetWatchlist(r.Context(), UserID(r))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, watchlist)
}

// AddHandler handles POST /api/me/watchlist. Returns as soon as the symbol
// is saved; the cache entry fills in from a background refresh.
func (h *WatchlistHandler) AddHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req watchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	userID := UserID(r)

	watchlist, err := h.watchlists.AddSymbol(r.Context(), userID, req.Symbol)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The refresh outlives this request on purpose.
	symbol := req.Symbol
	common.SafeGo(h.logger, "watchlistAddRefresh", func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.refreshTimeout)
		defer cancel()

		if _, err := h.orchestrator.RefreshSymbol(ctx, userID, symbol); err != nil {
			h.logger.Warn().
				Str("user_id", userID).
				Str("symbol", symbol).
				Err(err).
				Msg("Background refresh after watchlist add failed")
		}
	})

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":    "started",
		"symbol":    req.Symbol,
		"watchlist": watchlist,
	})
}

// RemoveHandler handles DELETE /api/me/watchlist/{symbol}.
func (h *WatchlistHandler) RemoveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/api/me/watchlist/")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	watchlist, err := h.watchlists.RemoveSymbol(r.Context(), UserID(r), symbol)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, watchlist)
}
