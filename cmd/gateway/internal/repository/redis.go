package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

// Compile-time check to ensure RedisStore implements MarketStore
var _ MarketStore = (*RedisStore)(nil)

// RedisStore reads the snapshots written by the processor.
type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	mu     sync.Mutex // serializes pubsub subscription changes
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		pubsub: client.Subscribe(context.Background()),
	}
}

func (r *RedisStore) GetSnapshot(ctx context.Context, symbol string) (models.Snapshot, bool, error) {
	val, err := r.client.Get(ctx, models.SnapshotKey(models.NormalizeSymbol(symbol))).Result()
	if errors.Is(err, redis.Nil) {
		return models.Snapshot{}, false, nil
	}
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("get snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return models.Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", symbol, err)
	}
	return snap, true, nil
}

func (r *RedisStore) ListSnapshots(ctx context.Context, limit int) ([]models.Snapshot, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	symbols, err := r.client.ZRevRange(ctx, models.SnapshotIndex, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshot index: %w", err)
	}
	if len(symbols) == 0 {
		return nil, nil
	}
	return r.mget(ctx, symbols)
}

func (r *RedisStore) GetSnapshots(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	normalized := make([]string, len(symbols))
	for i, sym := range symbols {
		normalized[i] = models.NormalizeSymbol(sym)
	}
	return r.mget(ctx, normalized)
}

func (r *RedisStore) mget(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = models.SnapshotKey(sym)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget snapshots: %w", err)
	}

	snapshots := make([]models.Snapshot, 0, len(results))
	for i, val := range results {
		payload, ok := val.(string)
		if !ok || payload == "" {
			continue
		}
		var snap models.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", symbols[i], err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

func (r *RedisStore) HasSymbol(ctx context.Context, symbol string) (bool, error) {
	n, err := r.client.Exists(ctx, models.SnapshotKey(models.NormalizeSymbol(symbol))).Result()
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return n > 0, nil
}

// SubscribeToFeed starts listening for live updates on this symbol's channel
func (r *RedisStore) SubscribeToFeed(ctx context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Subscribe(ctx, models.QuoteChannel(symbol))
}

// UnsubscribeFromFeed stops listening for this symbol
func (r *RedisStore) UnsubscribeFromFeed(ctx context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Unsubscribe(ctx, models.QuoteChannel(symbol))
}

// RunPubSub is a blocking loop that forwards published snapshots to the callback
func (r *RedisStore) RunPubSub(ctx context.Context, onMessage func(symbol string, payload string)) {
	ch := r.pubsub.Channel()

	for msg := range ch {
		symbol, ok := models.SymbolFromChannel(msg.Channel)
		if !ok {
			continue
		}
		onMessage(symbol, msg.Payload)
	}
}

func (r *RedisStore) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
