package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// --- source fakes ---

type fakeFilings struct {
	set *models.FilingSummarySet
	err error
}

func (f *fakeFilings) Summarize(ctx context.Context, symbol common.CanonicalSymbol) (*models.FilingSummarySet, error) {
	return f.set, f.err
}

type fakeChart struct {
	image      []byte
	captureErr error
	pattern    *models.ChartPattern
	detectErr  error
}

func (f *fakeChart) Capture(ctx context.Context, chartID string) ([]byte, error) {
	return f.image, f.captureErr
}

func (f *fakeChart) DetectPattern(ctx context.Context, symbol string, image []byte) (*models.ChartPattern, error) {
	return f.pattern, f.detectErr
}

type fakeMarketData struct {
	statements *models.FinancialStatements
	err        error
}

func (f *fakeMarketData) GetFinancialStatements(ctx context.Context, marketDataID string) (*models.FinancialStatements, error) {
	return f.statements, f.err
}

type fakeRatios struct {
	ratios map[string]float64
	err    error
}

func (f *fakeRatios) Compute(statements *models.FinancialStatements) (map[string]float64, error) {
	return f.ratios, f.err
}

type fakeSignal struct {
	mu         sync.Mutex
	result     *models.SignalResult
	err        error
	sawRatios  bool
	invocation int
}

func (f *fakeSignal) Synthesize(ctx context.Context, entry *models.StockCacheEntry) (*models.SignalResult, error) {
	f.mu.Lock()
	f.invocation++
	f.sawRatios = len(entry.Ratios) > 0
	f.mu.Unlock()
	return f.result, f.err
}

// --- in-memory storage ---

type memoryStorage struct {
	mu        sync.Mutex
	entries   map[string]*models.StockCacheEntry
	putCalls  int
	failPuts  map[string]error
	watchlist *models.Watchlist
	statuses  map[string]*models.RefreshStatus
}

func newMemoryStorage(symbols ...string) *memoryStorage {
	return &memoryStorage{
		entries:   make(map[string]*models.StockCacheEntry),
		watchlist: &models.Watchlist{UserID: "u1", Symbols: symbols},
		statuses:  make(map[string]*models.RefreshStatus),
	}
}

func (m *memoryStorage) StockCache() interfaces.StockCacheStorage         { return m }
func (m *memoryStorage) Watchlists() interfaces.WatchlistStorage          { return m }
func (m *memoryStorage) Auth() interfaces.AuthStorage                     { return nil }
func (m *memoryStorage) RefreshStatuses() interfaces.RefreshStatusStorage { return m }
func (m *memoryStorage) Close() error                                     { return nil }

func (m *memoryStorage) PutEntry(ctx context.Context, userID string, entry *models.StockCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if err := m.failPuts[entry.Symbol]; err != nil {
		return err
	}
	m.entries[entry.Symbol] = entry
	return nil
}

func (m *memoryStorage) GetEntry(ctx context.Context, userID, symbol string) (*models.StockCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[symbol], nil
}

func (m *memoryStorage) GetEntries(ctx context.Context, userID string) (map[string]*models.StockCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*models.StockCacheEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStorage) DeleteEntry(ctx context.Context, userID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, symbol)
	return nil
}

func (m *memoryStorage) GetWatchlist(ctx context.Context, userID string) (*models.Watchlist, error) {
	return m.watchlist, nil
}

func (m *memoryStorage) SaveWatchlist(ctx context.Context, watchlist *models.Watchlist) error {
	m.watchlist = watchlist
	return nil
}

func (m *memoryStorage) SaveStatus(ctx context.Context, status *models.RefreshStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *status
	m.statuses[status.ID] = &copied
	return nil
}

func (m *memoryStorage) GetStatus(ctx context.Context, id string) (*models.RefreshStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id], nil
}

// --- helpers ---

func healthySources() (*fakeFilings, *fakeChart, *fakeMarketData, *fakeRatios, *fakeSignal) {
	filings := &fakeFilings{set: &models.FilingSummarySet{
		Stock:     "RELIANCE",
		ScripCode: "500325",
		News:      []models.FilingSummary{{Index: 1, Heading: "Results", Summary: "Title: Results"}},
	}}
	chart := &fakeChart{
		image:   []byte("png-bytes"),
		pattern: &models.ChartPattern{PatternFound: true, PatternName: "Double Bottom", Confidence: "moderate"},
	}
	marketData := &fakeMarketData{statements: &models.FinancialStatements{Symbol: "RELIANCE.NS"}}
	ratios := &fakeRatios{ratios: map[string]float64{"ROE": 12.5}}
	signal := &fakeSignal{result: &models.SignalResult{
		Ticker: "RELIANCE.NS", Bias: "neutral", Confidence: 55, Reasons: []string{"stable ROE"},
	}}
	return filings, chart, marketData, ratios, signal
}

func newService(storage *memoryStorage, filings interfaces.FilingsService, chart interfaces.ChartService, marketData interfaces.MarketDataService, ratios interfaces.RatioService, signal interfaces.SignalService) *Service {
	return NewService(filings, chart, marketData, ratios, signal, storage,
		&common.RefreshConfig{Concurrency: 2, Timeout: "30s"}, arbor.NewLogger())
}

func mustDecodeBase64(t *testing.T, encoded string) string {
	t.Helper()
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	return string(decoded)
}

// --- tests ---

func TestRefreshSymbolAllSourcesSucceed(t *testing.T) {
	storage := newMemoryStorage()
	filings, chart, marketData, ratios, signal := healthySources()
	svc := newService(storage, filings, chart, marketData, ratios, signal)

	entry, err := svc.RefreshSymbol(context.Background(), "u1", "RELIANCE")
	require.NoError(t, err)

	assert.Equal(t, "RELIANCE.NS", entry.Symbol)
	assert.Equal(t, "RELIANCE", entry.RawSymbol)
	assert.Equal(t, "NSE:RELIANCE", entry.TVSymbol)
	assert.NotNil(t, entry.BSESummaries)
	assert.NotNil(t, entry.ChartPattern)
	assert.NotEmpty(t, entry.ChartImageBase64)
	assert.Equal(t, 12.5, entry.Ratios["ROE"])
	assert.NotNil(t, entry.Signal)
	assert.Empty(t, entry.BSEError)
	assert.Empty(t, entry.ChartError)
	assert.Empty(t, entry.RatiosError)
	assert.Empty(t, entry.SignalError)
	assert.False(t, entry.UpdatedAt.IsZero())

	// The merged entry is written exactly once.
	assert.Equal(t, 1, storage.putCalls)

	// The signal saw the computed ratios.
	assert.True(t, signal.sawRatios)
}

func TestRefreshSymbolAllSourcesFailStillPersists(t *testing.T) {
	storage := newMemoryStorage()
	svc := newService(storage,
		&fakeFilings{err: errors.New("filings down")},
		&fakeChart{captureErr: errors.New("render failed")},
		&fakeMarketData{err: errors.New("market data down")},
		&fakeRatios{},
		&fakeSignal{},
	)

	entry, err := svc.RefreshSymbol(context.Background(), "u1", "RELIANCE")
	require.NoError(t, err)

	assert.Equal(t, "filings down", entry.BSEError)
	assert.Equal(t, "render failed", entry.ChartError)
	assert.Equal(t, "market data down", entry.RatiosError)
	assert.Contains(t, entry.SignalError, "no ratios")
	assert.Nil(t, entry.Signal)

	persisted, _ := storage.GetEntry(context.Background(), "u1", "RELIANCE.NS")
	require.NotNil(t, persisted)
	assert.Equal(t, 1, storage.putCalls)
}

func TestRefreshSymbolFilingsListingErrorSurfaces(t *testing.T) {
	storage := newMemoryStorage()
	filings := &fakeFilings{set: &models.FilingSummarySet{Stock: "RELIANCE", Error: "No announcements found"}}
	_, chart, marketData, ratios, signal := healthySources()
	svc := newService(storage, filings, chart, marketData, ratios, signal)

	entry, err := svc.RefreshSymbol(context.Background(), "u1", "RELIANCE")
	require.NoError(t, err)

	require.NotNil(t, entry.BSESummaries)
	assert.Equal(t, "No announcements found", entry.BSEError)
}

func TestRefreshSymbolSignalSkippedWhenRatiosFail(t *testing.T) {
	storage := newMemoryStorage()
	filings, chart, _, _, signal := healthySources()
	svc := newService(storage, filings, chart,
		&fakeMarketData{err: errors.New("no fundamentals")},
		&fakeRatios{}, signal)

	entry, err := svc.RefreshSymbol(context.Background(), "u1", "RELIANCE")
	require.NoError(t, err)

	assert.Equal(t, 0, signal.invocation)
	assert.Contains(t, entry.SignalError, "no ratios")
	// The other sources still populated.
	assert.NotNil(t, entry.BSESummaries)
	assert.NotNil(t, entry.ChartPattern)
}

func TestRefreshSymbolSignalFailureIsIsolated(t *testing.T) {
	storage := newMemoryStorage()
	filings, chart, marketData, ratios, _ := healthySources()
	signal := &fakeSignal{err: errors.New("schema validation failed")}
	svc := newService(storage, filings, chart, marketData, ratios, signal)

	entry, err := svc.RefreshSymbol(context.Background(), "u1", "RELIANCE")
	require.NoError(t, err)

	assert.Nil(t, entry.Signal)
	assert.Equal(t, "schema validation failed", entry.SignalError)
	assert.Equal(t, 12.5, entry.Ratios["ROE"])
}

func TestRefreshSymbolPatternDetectionFailureKeepsImage(t *testing.T) {
	storage := newMemoryStorage()
	filings, _, marketData, ratios, signal := healthySources()
	chart := &fakeChart{image: []byte("png-bytes"), detectErr: errors.New("vision analysis failed")}
	svc := newService(storage, filings, chart, marketData, ratios, signal)

	entry, err := svc.RefreshSymbol(context.Background(), "u1", "RELIANCE")
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ChartImageBase64)
	assert.Nil(t, entry.ChartPattern)
	assert.Contains(t, entry.ChartError, "vision analysis failed")
}

func TestRefreshWatchlistRefreshesAllSymbols(t *testing.T) {
	storage := newMemoryStorage("RELIANCE.NS", "TCS.NS", "INFY.NS")
	filings, chart, marketData, ratios, signal := healthySources()
	svc := newService(storage, filings, chart, marketData, ratios, signal)

	results, refreshErrs, err := svc.RefreshWatchlist(context.Background(), "u1")
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.Contains(t, results, "RELIANCE.NS")
	assert.Contains(t, results, "TCS.NS")
	assert.Contains(t, results, "INFY.NS")
	assert.Empty(t, refreshErrs)
}

func TestRefreshWatchlistReportsFailedSymbols(t *testing.T) {
	storage := newMemoryStorage("RELIANCE.NS", "TCS.NS")
	storage.failPuts = map[string]error{"TCS.NS": errors.New("disk full")}
	filings, chart, marketData, ratios, signal := healthySources()
	svc := newService(storage, filings, chart, marketData, ratios, signal)

	results, refreshErrs, err := svc.RefreshWatchlist(context.Background(), "u1")
	require.NoError(t, err)

	// The failed symbol is reported, not silently dropped.
	assert.Len(t, results, 1)
	assert.Contains(t, results, "RELIANCE.NS")
	require.Contains(t, refreshErrs, "TCS.NS")
	assert.Contains(t, refreshErrs["TCS.NS"], "disk full")
}

func TestRefreshSymbolConcurrentRefreshesDoNotInterleave(t *testing.T) {
	storage := newMemoryStorage()

	newDistinctService := func(tag string, confidence float64) *Service {
		filings := &fakeFilings{set: &models.FilingSummarySet{
			Stock:     "RELIANCE",
			ScripCode: tag,
			News:      []models.FilingSummary{{Index: 1, Heading: tag}},
		}}
		chart := &fakeChart{
			image:   []byte("png-" + tag),
			pattern: &models.ChartPattern{PatternFound: true, PatternName: tag, Confidence: "high"},
		}
		marketData := &fakeMarketData{statements: &models.FinancialStatements{Symbol: "RELIANCE.NS"}}
		ratios := &fakeRatios{ratios: map[string]float64{"ROE": confidence}}
		signal := &fakeSignal{result: &models.SignalResult{
			Ticker: "RELIANCE.NS", Bias: "neutral", Confidence: confidence, Reasons: []string{tag},
		}}
		return newService(storage, filings, chart, marketData, ratios, signal)
	}

	first := newDistinctService("run-one", 10)
	second := newDistinctService("run-two", 20)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := first.RefreshSymbol(context.Background(), "u1", "RELIANCE")
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := second.RefreshSymbol(context.Background(), "u1", "RELIANCE")
		assert.NoError(t, err)
	}()
	wg.Wait()

	// Last write wins at whole-refresh granularity: the persisted record is
	// one refresh's complete output, never a mix of the two.
	persisted, err := storage.GetEntry(context.Background(), "u1", "RELIANCE.NS")
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, 2, storage.putCalls)

	tag := persisted.ChartPattern.PatternName
	require.Contains(t, []string{"run-one", "run-two"}, tag)

	confidence := 10.0
	if tag == "run-two" {
		confidence = 20.0
	}
	assert.Equal(t, tag, persisted.BSESummaries.ScripCode)
	assert.Equal(t, tag, persisted.BSESummaries.News[0].Heading)
	assert.Equal(t, "png-"+tag, mustDecodeBase64(t, persisted.ChartImageBase64))
	assert.Equal(t, confidence, persisted.Ratios["ROE"])
	assert.Equal(t, confidence, persisted.Signal.Confidence)
	assert.Equal(t, []string{tag}, persisted.Signal.Reasons)
}

func TestStartWatchlistRefreshRunsInBackground(t *testing.T) {
	storage := newMemoryStorage("RELIANCE.NS", "TCS.NS")
	filings, chart, marketData, ratios, signal := healthySources()
	svc := newService(storage, filings, chart, marketData, ratios, signal)

	runID, err := svc.StartWatchlistRefresh("u1")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	// The run id is immediately trackable.
	status, err := storage.GetStatus(context.Background(), runID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 2, status.Total)

	assert.Eventually(t, func() bool {
		status, _ := storage.GetStatus(context.Background(), runID)
		return status != nil && status.Status == models.RefreshStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	status, _ = storage.GetStatus(context.Background(), runID)
	assert.Equal(t, 2, status.Completed)
	assert.NotNil(t, status.CompletedAt)

	entries, _ := storage.GetEntries(context.Background(), "u1")
	assert.Len(t, entries, 2)
}
