package badger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/marketlens/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "badger-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestCacheEntryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	storage := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	entry := &models.StockCacheEntry{
		Symbol:        "RELIANCE.NS",
		RawSymbol:     "reliance",
		BaseSymbol:    "RELIANCE",
		TVSymbol:      "NSE:RELIANCE",
		BSEIdentifier: "RELIANCE",
		Ratios:        map[string]float64{"ROE": 0.18},
		UpdatedAt:     time.Now().UTC(),
	}

	require.NoError(t, storage.PutEntry(ctx, "user-1", entry))

	got, err := storage.GetEntry(ctx, "user-1", "RELIANCE.NS")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Symbol, got.Symbol)
	assert.Equal(t, entry.Ratios, got.Ratios)
}

func TestCacheEntryReplacedAtomically(t *testing.T) {
	db := newTestDB(t)
	storage := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := &models.StockCacheEntry{
		Symbol:     "TCS.NS",
		BaseSymbol: "TCS",
		Ratios:     map[string]float64{"ROE": 0.4},
	}
	require.NoError(t, storage.PutEntry(ctx, "user-1", first))

	// Second refresh failed ratios; the whole entry is replaced, so the
	// stale ratio map must not survive.
	second := &models.StockCacheEntry{
		Symbol:      "TCS.NS",
		BaseSymbol:  "TCS",
		RatiosError: "fundamentals unavailable",
	}
	require.NoError(t, storage.PutEntry(ctx, "user-1", second))

	got, err := storage.GetEntry(ctx, "user-1", "TCS.NS")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Ratios)
	assert.Equal(t, "fundamentals unavailable", got.RatiosError)
}

func TestCacheEntryMissingReturnsNil(t *testing.T) {
	db := newTestDB(t)
	storage := NewCacheStorage(db, arbor.NewLogger())

	got, err := storage.GetEntry(context.Background(), "user-1", "UNKNOWN.NS")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheEntriesScopedByUser(t *testing.T) {
	db := newTestDB(t)
	storage := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.PutEntry(ctx, "user-1", &models.StockCacheEntry{Symbol: "RELIANCE.NS"}))
	require.NoError(t, storage.PutEntry(ctx, "user-1", &models.StockCacheEntry{Symbol: "TCS.NS"}))
	require.NoError(t, storage.PutEntry(ctx, "user-2", &models.StockCacheEntry{Symbol: "INFY.NS"}))

	entries, err := storage.GetEntries(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, "RELIANCE.NS")
	assert.Contains(t, entries, "TCS.NS")
}

func TestDeleteEntry(t *testing.T) {
	db := newTestDB(t)
	storage := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.PutEntry(ctx, "user-1", &models.StockCacheEntry{Symbol: "RELIANCE.NS"}))
	require.NoError(t, storage.DeleteEntry(ctx, "user-1", "RELIANCE.NS"))

	got, err := storage.GetEntry(ctx, "user-1", "RELIANCE.NS")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a missing entry is not an error
	require.NoError(t, storage.DeleteEntry(ctx, "user-1", "RELIANCE.NS"))
}

func TestWatchlistRoundTrip(t *testing.T) {
	db := newTestDB(t)
	storage := NewWatchlistStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// Missing watchlist comes back empty, not as an error
	empty, err := storage.GetWatchlist(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, empty.Symbols)

	wl := &models.Watchlist{UserID: "user-1", Symbols: []string{"RELIANCE.NS", "TCS.NS"}}
	require.NoError(t, storage.SaveWatchlist(ctx, wl))

	got, err := storage.GetWatchlist(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE.NS", "TCS.NS"}, got.Symbols)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestAuthTokenRoundTrip(t *testing.T) {
	db := newTestDB(t)
	storage := NewAuthStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.SaveToken(ctx, &models.APIToken{Token: "tok-abc", UserID: "user-1"}))

	got, err := storage.GetToken(ctx, "tok-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)

	unknown, err := storage.GetToken(ctx, "tok-missing")
	require.NoError(t, err)
	assert.Nil(t, unknown)

	require.NoError(t, storage.DeleteToken(ctx, "tok-abc"))
	gone, err := storage.GetToken(ctx, "tok-abc")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
