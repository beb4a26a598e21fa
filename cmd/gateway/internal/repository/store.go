package repository

import (
	"context"

	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

// MarketStore is the read side of the snapshot store plus the live
// feed used by the websocket hub. Point and range reads are lock-free;
// the processor is the only writer.
type MarketStore interface {
	// GetSnapshot returns the live snapshot for a symbol. The bool is
	// false when the symbol has no live data; errors are reserved for
	// store failures and must not be treated as "not found".
	GetSnapshot(ctx context.Context, symbol string) (models.Snapshot, bool, error)

	// ListSnapshots returns snapshots ordered by market cap descending.
	// A limit of zero or less returns every snapshot.
	ListSnapshots(ctx context.Context, limit int) ([]models.Snapshot, error)

	// GetSnapshots returns snapshots for the requested symbols in
	// request order, silently omitting unknown symbols.
	GetSnapshots(ctx context.Context, symbols []string) ([]models.Snapshot, error)

	HasSymbol(ctx context.Context, symbol string) (bool, error)

	SubscribeToFeed(ctx context.Context, symbol string) error
	UnsubscribeFromFeed(ctx context.Context, symbol string) error
	RunPubSub(ctx context.Context, onMessage func(symbol string, payload string))
	Close() error
}

// RateLimiter guards the streaming endpoint against per-client abuse.
type RateLimiter interface {
	Allow(ip string) bool
}
