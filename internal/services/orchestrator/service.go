// Package orchestrator coordinates the per-symbol aggregation: it fans out
// to the independent data sources, records per-source failures without
// aborting the refresh, merges whatever succeeded into one cache entry and
// persists it in a single write.
package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// Service implements interfaces.OrchestratorService. Concurrent refreshes
// of the same symbol are allowed; the entry write is atomic and
// last-write-wins.
type Service struct {
	filings    interfaces.FilingsService
	chart      interfaces.ChartService
	marketData interfaces.MarketDataService
	ratios     interfaces.RatioService
	signal     interfaces.SignalService

	cache      interfaces.StockCacheStorage
	watchlists interfaces.WatchlistStorage
	refreshes  interfaces.RefreshStatusStorage

	config *common.RefreshConfig
	logger arbor.ILogger
}

// NewService creates the aggregation orchestrator.
func NewService(
	filings interfaces.FilingsService,
	chart interfaces.ChartService,
	marketData interfaces.MarketDataService,
	ratios interfaces.RatioService,
	signal interfaces.SignalService,
	storage interfaces.StorageManager,
	config *common.RefreshConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		filings:    filings,
		chart:      chart,
		marketData: marketData,
		ratios:     ratios,
		signal:     signal,
		cache:      storage.StockCache(),
		watchlists: storage.Watchlists(),
		refreshes:  storage.RefreshStatuses(),
		config:     config,
		logger:     logger,
	}
}

// RefreshSymbol implements interfaces.OrchestratorService. The refresh
// never fails as a whole because of a source: each source failure lands in
// its error field and the merged entry still persists. The returned error
// is non-nil only when the entry could not be persisted.
func (s *Service) RefreshSymbol(ctx context.Context, userID, rawSymbol string) (*models.StockCacheEntry, error) {
	canonical := common.NormalizeSymbol(rawSymbol)

	entry := &models.StockCacheEntry{
		Symbol:        canonical.MarketDataID,
		RawSymbol:     canonical.Raw,
		BaseSymbol:    canonical.Base,
		TVSymbol:      canonical.ChartID,
		BSEIdentifier: canonical.FilingID,
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("symbol", entry.Symbol).
		Msg("Refreshing stock entry")

	start := time.Now()

	var wg sync.WaitGroup

	// Filings, chart and ratios are independent. Signal synthesis reads
	// the computed ratios, so it runs on the ratios goroutine after they
	// settle. Each goroutine writes only its own entry fields, so the
	// entry needs no locking until the final persist.
	wg.Add(3)

	common.SafeGo(s.logger, "refreshFilings", func() {
		defer wg.Done()
		s.refreshFilings(ctx, canonical, entry)
	})

	common.SafeGo(s.logger, "refreshChart", func() {
		defer wg.Done()
		s.refreshChart(ctx, canonical, entry)
	})

	common.SafeGo(s.logger, "refreshRatiosAndSignal", func() {
		defer wg.Done()
		s.refreshRatios(ctx, canonical, entry)
		s.refreshSignal(ctx, entry)
	})

	wg.Wait()

	entry.UpdatedAt = time.Now()
	if err := s.cache.PutEntry(ctx, userID, entry); err != nil {
		return nil, fmt.Errorf("failed to persist cache entry: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("symbol", entry.Symbol).
		Dur("elapsed", time.Since(start)).
		Bool("has_filings", entry.BSESummaries != nil).
		Bool("has_pattern", entry.ChartPattern != nil).
		Bool("has_ratios", len(entry.Ratios) > 0).
		Bool("has_signal", entry.Signal != nil).
		Msg("Stock entry refreshed")

	return entry, nil
}

func (s *Service) refreshFilings(ctx context.Context, canonical common.CanonicalSymbol, entry *models.StockCacheEntry) {
	summaries, err := s.filings.Summarize(ctx, canonical)
	if err != nil {
		entry.BSEError = err.Error()
		return
	}
	entry.BSESummaries = summaries
	if summaries.Error != "" {
		entry.BSEError = summaries.Error
	}
}

func (s *Service) refreshChart(ctx context.Context, canonical common.CanonicalSymbol, entry *models.StockCacheEntry) {
	image, err := s.chart.Capture(ctx, canonical.ChartID)
	if err != nil {
		entry.ChartError = err.Error()
		return
	}
	entry.ChartImageBase64 = base64.StdEncoding.EncodeToString(image)

	pattern, err := s.chart.DetectPattern(ctx, canonical.ChartID, image)
	if err != nil {
		entry.ChartError = err.Error()
		return
	}
	entry.ChartPattern = pattern
}

func (s *Service) refreshRatios(ctx context.Context, canonical common.CanonicalSymbol, entry *models.StockCacheEntry) {
	statements, err := s.marketData.GetFinancialStatements(ctx, canonical.MarketDataID)
	if err != nil {
		entry.RatiosError = err.Error()
		return
	}

	ratios, err := s.ratios.Compute(statements)
	if err != nil {
		entry.RatiosError = err.Error()
		return
	}
	entry.Ratios = ratios
}

// refreshSignal runs after ratios settle. Without ratios the signal is
// skipped and its error field says why.
func (s *Service) refreshSignal(ctx context.Context, entry *models.StockCacheEntry) {
	if len(entry.Ratios) == 0 {
		entry.SignalError = "signal skipped: no ratios available"
		return
	}

	result, err := s.signal.Synthesize(ctx, entry)
	if err != nil {
		entry.SignalError = err.Error()
		return
	}
	entry.Signal = result
}

// RefreshWatchlist implements interfaces.OrchestratorService. Symbols
// refresh concurrently up to the configured limit; the call returns when
// every symbol has settled. A symbol whose refresh failed lands in the
// returned errors map instead of the results.
func (s *Service) RefreshWatchlist(ctx context.Context, userID string) (map[string]*models.StockCacheEntry, map[string]string, error) {
	watchlist, err := s.watchlists.GetWatchlist(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	results := make(map[string]*models.StockCacheEntry, len(watchlist.Symbols))
	refreshErrs := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	concurrency := s.config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	for _, symbol := range watchlist.Symbols {
		symbol := symbol
		wg.Add(1)
		common.SafeGo(s.logger, "refreshWatchlistSymbol", func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entry, err := s.RefreshSymbol(ctx, userID, symbol)
			if err != nil {
				s.logger.Warn().
					Str("user_id", userID).
					Str("symbol", symbol).
					Err(err).
					Msg("Watchlist symbol refresh failed")
				mu.Lock()
				refreshErrs[symbol] = err.Error()
				mu.Unlock()
				return
			}

			mu.Lock()
			results[entry.Symbol] = entry
			mu.Unlock()
		})
	}

	wg.Wait()
	return results, refreshErrs, nil
}

// StartWatchlistRefresh implements interfaces.OrchestratorService. The
// refresh runs detached from the triggering request and keeps running even
// if that request's context ends; progress is tracked in refresh status
// storage under the returned run id.
func (s *Service) StartWatchlistRefresh(userID string) (string, error) {
	runID := common.NewRefreshID()

	timeout := common.Duration(s.config.Timeout, 5*time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	watchlist, err := s.watchlists.GetWatchlist(ctx, userID)
	if err != nil {
		cancel()
		return "", err
	}

	status := &models.RefreshStatus{
		ID:        runID,
		UserID:    userID,
		Status:    models.RefreshStatusRunning,
		Total:     len(watchlist.Symbols),
		StartedAt: time.Now(),
	}
	if err := s.refreshes.SaveStatus(ctx, status); err != nil {
		cancel()
		return "", err
	}

	common.SafeGo(s.logger, "backgroundWatchlistRefresh", func() {
		defer cancel()

		results, refreshErrs, err := s.RefreshWatchlist(ctx, userID)

		now := time.Now()
		status.CompletedAt = &now
		status.Completed = len(results)
		if err != nil {
			status.Status = models.RefreshStatusFailed
			status.Error = err.Error()
		} else {
			status.Status = models.RefreshStatusCompleted
			if len(refreshErrs) > 0 {
				status.Error = fmt.Sprintf("%d of %d symbols failed", len(refreshErrs), status.Total)
			}
		}

		if saveErr := s.refreshes.SaveStatus(context.Background(), status); saveErr != nil {
			s.logger.Warn().
				Str("refresh_id", runID).
				Err(saveErr).
				Msg("Failed to record refresh completion")
		}
	})

	return runID, nil
}
