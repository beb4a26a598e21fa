package market_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/market"
	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/testutils"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/catalog"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

func newResolver(t *testing.T, store *testutils.MockMarketStore) *market.Resolver {
	t.Helper()
	seed, err := catalog.Load()
	if err != nil {
		t.Fatalf("Failed to load seed catalog: %v", err)
	}
	return market.NewResolver(store, seed)
}

func TestOverview_PrefersLiveRows(t *testing.T) {
	store := testutils.NewMockStore()
	store.Snapshots = []models.Snapshot{
		{Symbol: "AAA", Price: 10, MarketCap: 9_800_000, Sparkline: []float64{9, 10}},
		{Symbol: "BBB", Price: 20, MarketCap: 4_500_000, Sparkline: []float64{21, 20}},
	}
	r := newResolver(t, store)

	rows, err := r.Overview(context.Background(), 8)
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Live rows should win over seed, got %d rows", len(rows))
	}
	if rows[0].Symbol != "AAA" || rows[1].Symbol != "BBB" {
		t.Errorf("Rows should keep market cap order, got %s, %s", rows[0].Symbol, rows[1].Symbol)
	}
}

func TestOverview_SeedFallbackOnlyWhenEmpty(t *testing.T) {
	r := newResolver(t, testutils.NewMockStore())

	rows, err := r.Overview(context.Background(), 3)
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 seed rows, got %d", len(rows))
	}
	if rows[0].Symbol != "BTC" {
		t.Errorf("Seed overview should lead with BTC, got %s", rows[0].Symbol)
	}
}

func TestOverview_ErrorPropagates(t *testing.T) {
	store := testutils.NewMockStore()
	store.Err = errors.New("redis down")
	r := newResolver(t, store)

	if _, err := r.Overview(context.Background(), 8); err == nil {
		t.Fatal("A store failure must propagate, not fall back to seed data")
	}
}

func TestTopMovers_SortsIndependently(t *testing.T) {
	store := testutils.NewMockStore()
	store.Snapshots = []models.Snapshot{
		{Symbol: "AAA", Price: 10, PercentChange24h: 2.0, Sparkline: []float64{9, 10}},
		{Symbol: "BBB", Price: 20, PercentChange24h: -5.0, Sparkline: []float64{21, 20}},
		{Symbol: "CCC", Price: 30, PercentChange24h: 7.5, Sparkline: []float64{29, 30}},
		{Symbol: "DDD", Price: 40, PercentChange24h: -1.0, Sparkline: []float64{41, 40}},
	}
	r := newResolver(t, store)

	movers, err := r.TopMovers(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopMovers failed: %v", err)
	}

	if movers.Gainers[0].Symbol != "CCC" || movers.Gainers[1].Symbol != "AAA" {
		t.Errorf("Gainers should be sorted by change descending, got %s, %s",
			movers.Gainers[0].Symbol, movers.Gainers[1].Symbol)
	}
	if movers.Losers[0].Symbol != "BBB" || movers.Losers[1].Symbol != "DDD" {
		t.Errorf("Losers should be sorted by change ascending, got %s, %s",
			movers.Losers[0].Symbol, movers.Losers[1].Symbol)
	}
}

func TestAssetDetail_CaseInsensitiveAndNotFound(t *testing.T) {
	r := newResolver(t, testutils.NewMockStore())

	snap, err := r.AssetDetail(context.Background(), "  btc ")
	if err != nil {
		t.Fatalf("AssetDetail failed: %v", err)
	}
	if snap.Symbol != "BTC" {
		t.Errorf("Symbol should be normalized, got %s", snap.Symbol)
	}

	if _, err := r.AssetDetail(context.Background(), "NOTACOIN"); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestWatchlistSnapshots_DedupAndOrder(t *testing.T) {
	store := testutils.NewMockStore()
	store.Snapshots = []models.Snapshot{
		{Symbol: "BTC", Price: 50000, Sparkline: []float64{49000, 50000}},
		{Symbol: "ETH", Price: 3000, Sparkline: []float64{2900, 3000}},
	}
	r := newResolver(t, store)

	rows, err := r.WatchlistSnapshots(context.Background(), []string{"eth", "BTC", "ETH", "unknown"})
	if err != nil {
		t.Fatalf("WatchlistSnapshots failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 deduplicated rows, got %d", len(rows))
	}
	if rows[0].Symbol != "ETH" || rows[1].Symbol != "BTC" {
		t.Errorf("Rows should follow request order, got %s, %s", rows[0].Symbol, rows[1].Symbol)
	}
}

func TestWatchlistSnapshots_SeedFallback(t *testing.T) {
	r := newResolver(t, testutils.NewMockStore())

	rows, err := r.WatchlistSnapshots(context.Background(), []string{"SOL", "FAKE"})
	if err != nil {
		t.Fatalf("WatchlistSnapshots failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Symbol != "SOL" {
		t.Errorf("Expected seed row for SOL only, got %v", rows)
	}
}

func TestSanitize_PresentationInvariants(t *testing.T) {
	store := testutils.NewMockStore()
	store.Snapshots = []models.Snapshot{
		{Symbol: "XYZ", Price: 42.5, Sparkline: []float64{42.5}},
	}
	r := newResolver(t, store)

	snap, err := r.AssetDetail(context.Background(), "XYZ")
	if err != nil {
		t.Fatalf("AssetDetail failed: %v", err)
	}
	if len(snap.Sparkline) != 2 || snap.Sparkline[0] != 42.5 || snap.Sparkline[1] != 42.5 {
		t.Errorf("Single-point sparkline should be duplicated, got %v", snap.Sparkline)
	}
	if snap.High24h != 42.5 || snap.Low24h != 42.5 {
		t.Errorf("Zero high/low should default to price, got %v/%v", snap.High24h, snap.Low24h)
	}
}

func TestIsSupported_LiveOrSeed(t *testing.T) {
	store := testutils.NewMockStore()
	store.Snapshots = []models.Snapshot{{Symbol: "ZZZ", Price: 1}}
	r := newResolver(t, store)

	for sym, want := range map[string]bool{"ZZZ": true, "BTC": true, "FAKE": false} {
		got, err := r.IsSupported(context.Background(), sym)
		if err != nil {
			t.Fatalf("IsSupported(%s) failed: %v", sym, err)
		}
		if got != want {
			t.Errorf("IsSupported(%s) = %v, want %v", sym, got, want)
		}
	}
}
