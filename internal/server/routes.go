package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Stock refresh
	mux.HandleFunc("/api/stocks/refresh", s.requireAuth(s.app.StockHandler.RefreshHandler))

	// Per-user cache and refresh
	mux.HandleFunc("/api/me/cache", s.requireAuth(s.app.StockHandler.CacheHandler))
	mux.HandleFunc("/api/me/refresh-all", s.requireAuth(s.app.StockHandler.RefreshAllHandler))
	mux.HandleFunc("/api/me/refreshes/", s.requireAuth(s.app.StockHandler.RefreshStatusHandler))

	// Watchlist
	mux.HandleFunc("/api/me/watchlist", s.handleWatchlist)
	mux.HandleFunc("/api/me/watchlist/", s.requireAuth(s.app.WatchlistHandler.RemoveHandler))

	// Health and version (unauthenticated)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	return mux
}

// handleWatchlist routes GET (list) and POST (add) on the collection path.
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.requireAuth(s.app.WatchlistHandler.ListHandler)(w, r)
	case http.MethodPost:
		s.requireAuth(s.app.WatchlistHandler.AddHandler)(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
