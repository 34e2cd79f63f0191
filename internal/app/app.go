// Package app wires configuration, storage, services and handlers into one
// application instance.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/bse"
	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/handlers"
	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/marketdata"
	"github.com/ternarybob/marketlens/internal/services/auth"
	"github.com/ternarybob/marketlens/internal/services/chart"
	"github.com/ternarybob/marketlens/internal/services/filings"
	"github.com/ternarybob/marketlens/internal/services/llm"
	"github.com/ternarybob/marketlens/internal/services/orchestrator"
	"github.com/ternarybob/marketlens/internal/services/pdf"
	"github.com/ternarybob/marketlens/internal/services/ratios"
	"github.com/ternarybob/marketlens/internal/services/signal"
	"github.com/ternarybob/marketlens/internal/services/watchlist"
	"github.com/ternarybob/marketlens/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Domain services
	LLMFactory     interfaces.LLMProviderFactory
	FilingsService interfaces.FilingsService
	ChartService   interfaces.ChartService
	MarketData     interfaces.MarketDataService
	RatioService   interfaces.RatioService
	SignalService  interfaces.SignalService
	Watchlist      interfaces.WatchlistService
	AuthService    interfaces.AuthService
	Orchestrator   interfaces.OrchestratorService

	// HTTP handlers
	StockHandler     *handlers.StockHandler
	WatchlistHandler *handlers.WatchlistHandler
	StatusHandler    *handlers.StatusHandler

	scheduler *cron.Cron
}

// New creates and wires the application.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	common.SetDefaultExchange(config.Markets.DefaultExchange)
	common.SetDefaultMarketSuffix(config.Markets.MarketDataSuffix)

	// Storage
	manager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = manager

	if seeder, ok := manager.(*badger.Manager); ok {
		if err := seeder.SeedTokens(ctx, config.Auth.Tokens); err != nil {
			return nil, fmt.Errorf("failed to seed auth tokens: %w", err)
		}
	}

	// LLM provider factory and per-concern services
	a.LLMFactory = llm.NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, logger)

	textLLM, err := a.LLMFactory.GetService()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	// Exchange filings pipeline
	bseClient := bse.NewClient(
		bse.WithLogger(logger),
		bse.WithUserAgent(config.Filings.UserAgent),
		bse.WithMirrors(config.Filings.AttachmentBase, config.Filings.HistoricalBase),
		bse.WithMaxPages(config.Filings.MaxPages),
		bse.WithRateLimit(common.Duration(config.Filings.RateLimit, 500*time.Millisecond)),
		bse.WithHTTPClient(&http.Client{Timeout: common.Duration(config.Filings.RequestTimeout, 30*time.Second)}),
	)
	extractor := pdf.NewExtractor(logger)
	a.FilingsService = filings.NewService(bseClient, extractor, textLLM, &config.Filings, logger)

	// Chart pipeline
	a.ChartService = chart.NewService(&config.Chart, textLLM, logger)

	// Fundamentals and ratios
	a.MarketData = marketdata.NewClient(
		marketdata.WithLogger(logger),
		marketdata.WithUserAgent(config.MarketData.UserAgent),
		marketdata.WithRateLimit(common.Duration(config.MarketData.RateLimit, time.Second)),
		marketdata.WithHTTPClient(&http.Client{Timeout: common.Duration(config.MarketData.RequestTimeout, 30*time.Second)}),
	)
	a.RatioService = ratios.NewEngine(logger)

	// Signal synthesis
	a.SignalService = signal.NewService(textLLM, logger)

	// User-facing services
	a.Watchlist = watchlist.NewService(manager.Watchlists(), manager.StockCache(), logger)
	a.AuthService = auth.NewService(manager.Auth(), logger)

	// Orchestrator ties the sources together
	a.Orchestrator = orchestrator.NewService(
		a.FilingsService,
		a.ChartService,
		a.MarketData,
		a.RatioService,
		a.SignalService,
		manager,
		&config.Refresh,
		logger,
	)

	// Handlers
	refreshTimeout := common.Duration(config.Refresh.Timeout, 5*time.Minute)
	a.StockHandler = handlers.NewStockHandler(a.Orchestrator, manager.StockCache(), a.Watchlist, manager.RefreshStatuses(), logger)
	a.WatchlistHandler = handlers.NewWatchlistHandler(a.Watchlist, a.Orchestrator, refreshTimeout, logger)
	a.StatusHandler = handlers.NewStatusHandler()

	if err := a.startScheduler(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("environment", config.Environment).
		Str("llm_provider", textLLM.GetProviderName()).
		Msg("Application initialized")

	return a, nil
}

// startScheduler starts the periodic watchlist refresh when a schedule is
// configured. Every seeded user's watchlist refreshes on the schedule.
func (a *App) startScheduler() error {
	schedule := a.Config.Refresh.Schedule
	if schedule == "" {
		return nil
	}

	userIDs := make(map[string]struct{})
	for _, userID := range a.Config.Auth.Tokens {
		userIDs[userID] = struct{}{}
	}

	a.scheduler = cron.New()
	_, err := a.scheduler.AddFunc(schedule, func() {
		for userID := range userIDs {
			runID, err := a.Orchestrator.StartWatchlistRefresh(userID)
			if err != nil {
				a.Logger.Warn().
					Str("user_id", userID).
					Err(err).
					Msg("Scheduled refresh failed to start")
				continue
			}
			a.Logger.Info().
				Str("user_id", userID).
				Str("refresh_id", runID).
				Msg("Scheduled watchlist refresh started")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	a.scheduler.Start()
	a.Logger.Info().Str("schedule", schedule).Msg("Refresh scheduler started")
	return nil
}

// Close releases application resources.
func (a *App) Close() error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	a.Logger.Info().Msg("Application closed")
	return nil
}
