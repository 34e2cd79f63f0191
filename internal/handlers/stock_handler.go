package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/interfaces"
)

// StockHandler serves the refresh and cache query endpoints.
type StockHandler struct {
	orchestrator interfaces.OrchestratorService
	cache        interfaces.StockCacheStorage
	watchlists   interfaces.WatchlistService
	refreshes    interfaces.RefreshStatusStorage
	logger       arbor.ILogger
}

// NewStockHandler creates a stock handler.
func NewStockHandler(
	orchestrator interfaces.OrchestratorService,
	cache interfaces.StockCacheStorage,
	watchlists interfaces.WatchlistService,
	refreshes interfaces.RefreshStatusStorage,
	logger arbor.ILogger,
) *StockHandler {
	return &StockHandler{
		orchestrator: orchestrator,
		cache:        cache,
		watchlists:   watchlists,
		refreshes:    refreshes,
		logger:       logger,
	}
}

type refreshRequest struct {
	Symbol string `json:"symbol"`
}

// RefreshHandler handles POST /api/stocks/refresh. Runs the full
// aggregation synchronously and returns the persisted entry.
func (h *StockHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	entry, err := h.orchestrator.RefreshSymbol(r.Context(), UserID(r), req.Symbol)
	if err != nil {
		h.logger.Error().Str("symbol", req.Symbol).Err(err).Msg("Refresh failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"entry":  entry,
	})
}

// CacheHandler handles GET /api/me/cache. Returns the watchlist plus every
// cached entry for the caller.
func (h *StockHandler) CacheHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	userID := UserID(r)

	watchlist, err := h.watchlists.GetWatchlist(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries, err := h.cache.GetEntries(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"wishlist": watchlist.Symbols,
		"entries":  entries,
	})
}

// RefreshAllHandler handles POST /api/me/refresh-all. Synchronous by
// default; ?async=true starts a tracked background run instead and returns
// its id immediately.
func (h *StockHandler) RefreshAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	userID := UserID(r)

	if r.URL.Query().Get("async") == "true" {
		runID, err := h.orchestrator.StartWatchlistRefresh(userID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteStarted(w, map[string]string{"refresh_id": runID})
		return
	}

	results, refreshErrs, err := h.orchestrator.RefreshWatchlist(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	refreshed := make([]string, 0, len(results))
	for symbol := range results {
		refreshed = append(refreshed, symbol)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"refreshed": refreshed,
		"entries":   results,
		"errors":    refreshErrs,
	})
}

// RefreshStatusHandler handles GET /api/me/refreshes/{id} for polling a
// background run.
func (h *StockHandler) RefreshStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/me/refreshes/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "refresh id is required")
		return
	}

	status, err := h.refreshes.GetStatus(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if status == nil {
		WriteError(w, http.StatusNotFound, "refresh not found")
		return
	}
	if status.UserID != UserID(r) {
		WriteError(w, http.StatusNotFound, "refresh not found")
		return
	}

	WriteJSON(w, http.StatusOK, status)
}
