// Package market answers read queries by preferring live snapshots from
// the store and falling back to the seed catalog only when the store
// has no rows for the request. Store failures always propagate; an
// error is never treated as "no data".
package market

import (
	"context"
	"errors"
	"sort"

	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/catalog"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

// ErrNotFound is returned for detail lookups of unknown symbols.
var ErrNotFound = errors.New("symbol not supported")

// SnapshotReader is the read-only slice of the store the resolver needs.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, symbol string) (models.Snapshot, bool, error)
	ListSnapshots(ctx context.Context, limit int) ([]models.Snapshot, error)
	GetSnapshots(ctx context.Context, symbols []string) ([]models.Snapshot, error)
	HasSymbol(ctx context.Context, symbol string) (bool, error)
}

// TopMovers pairs the independently sorted gainer and loser lists.
type TopMovers struct {
	Gainers []models.Snapshot
	Losers  []models.Snapshot
}

type Resolver struct {
	store SnapshotReader
	seed  *catalog.Catalog
}

func NewResolver(store SnapshotReader, seed *catalog.Catalog) *Resolver {
	return &Resolver{store: store, seed: seed}
}

// Overview returns up to limit snapshots ordered by market cap descending.
func (r *Resolver) Overview(ctx context.Context, limit int) ([]models.Snapshot, error) {
	rows, err := r.store.ListSnapshots(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows = r.seed.Overview(limit)
	}
	return sanitizeAll(rows), nil
}

// TopMovers ranks by 24h percent change: gainers descending, losers
// ascending, each sorted on its own rather than mirrored.
func (r *Resolver) TopMovers(ctx context.Context, limit int) (TopMovers, error) {
	if limit < 1 {
		limit = 1
	}

	rows, err := r.store.ListSnapshots(ctx, 0)
	if err != nil {
		return TopMovers{}, err
	}
	if len(rows) == 0 {
		rows = r.seed.All()
	}

	gainers := sanitizeAll(rows)
	sort.SliceStable(gainers, func(i, j int) bool {
		return gainers[i].PercentChange24h > gainers[j].PercentChange24h
	})

	losers := sanitizeAll(rows)
	sort.SliceStable(losers, func(i, j int) bool {
		return losers[i].PercentChange24h < losers[j].PercentChange24h
	})

	if len(gainers) > limit {
		gainers = gainers[:limit]
	}
	if len(losers) > limit {
		losers = losers[:limit]
	}
	return TopMovers{Gainers: gainers, Losers: losers}, nil
}

// AssetDetail returns the full snapshot for one symbol, or ErrNotFound.
func (r *Resolver) AssetDetail(ctx context.Context, symbol string) (models.Snapshot, error) {
	sym := models.NormalizeSymbol(symbol)

	snap, found, err := r.store.GetSnapshot(ctx, sym)
	if err != nil {
		return models.Snapshot{}, err
	}
	if !found {
		seeded, ok := r.seed.Get(sym)
		if !ok {
			return models.Snapshot{}, ErrNotFound
		}
		snap = seeded
	}
	return sanitize(snap), nil
}

// WatchlistSnapshots returns snapshots matching the requested order,
// deduplicated by normalized symbol and omitting unresolved entries.
func (r *Resolver) WatchlistSnapshots(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	requested := normalizeUnique(symbols)
	if len(requested) == 0 {
		return nil, nil
	}

	rows, err := r.store.GetSnapshots(ctx, requested)
	if err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		bySymbol := make(map[string]models.Snapshot, len(rows))
		for _, snap := range rows {
			bySymbol[snap.Symbol] = snap
		}
		out := make([]models.Snapshot, 0, len(requested))
		for _, sym := range requested {
			if snap, ok := bySymbol[sym]; ok {
				out = append(out, sanitize(snap))
			}
		}
		return out, nil
	}

	var out []models.Snapshot
	for _, sym := range requested {
		if snap, ok := r.seed.Get(sym); ok {
			out = append(out, sanitize(snap))
		}
	}
	return out, nil
}

// IsSupported reports whether the symbol resolves to live or seed data.
func (r *Resolver) IsSupported(ctx context.Context, symbol string) (bool, error) {
	ok, err := r.store.HasSymbol(ctx, symbol)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return r.seed.Has(symbol), nil
}

// Symbols lists every known symbol ordered by market cap descending.
func (r *Resolver) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.store.ListSnapshots(ctx, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return r.seed.Symbols(), nil
	}
	out := make([]string, len(rows))
	for i, snap := range rows {
		out[i] = snap.Symbol
	}
	return out, nil
}

func normalizeUnique(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	var out []string
	for _, sym := range symbols {
		norm := models.NormalizeSymbol(sym)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}

// sanitize enforces the presentation invariants on a snapshot copy:
// at least two sparkline points and high/low defaulting to the price.
func sanitize(s models.Snapshot) models.Snapshot {
	switch len(s.Sparkline) {
	case 0:
		s.Sparkline = []float64{s.Price, s.Price}
	case 1:
		s.Sparkline = []float64{s.Sparkline[0], s.Sparkline[0]}
	default:
		spark := make([]float64, len(s.Sparkline))
		copy(spark, s.Sparkline)
		s.Sparkline = spark
	}
	if s.High24h == 0 {
		s.High24h = s.Price
	}
	if s.Low24h == 0 {
		s.Low24h = s.Price
	}
	return s
}

func sanitizeAll(rows []models.Snapshot) []models.Snapshot {
	out := make([]models.Snapshot, len(rows))
	for i, snap := range rows {
		out[i] = sanitize(snap)
	}
	return out
}
