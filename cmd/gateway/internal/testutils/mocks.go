package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/protocol"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // Stores decoded JSON messages
	RawBytes []string              // Stores raw bytes
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

// MockMarketStore simulates the Redis read store. Snapshots holds the
// "live" rows in market cap order; Err, when set, is returned from
// every read to exercise failure propagation.
type MockMarketStore struct {
	Snapshots          []models.Snapshot
	Err                error
	SubscribedChannels map[string]int // symbol -> count
	Mu                 sync.Mutex
}

func NewMockStore() *MockMarketStore {
	return &MockMarketStore{SubscribedChannels: make(map[string]int)}
}

func (m *MockMarketStore) GetSnapshot(ctx context.Context, symbol string) (models.Snapshot, bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return models.Snapshot{}, false, m.Err
	}
	for _, snap := range m.Snapshots {
		if snap.Symbol == models.NormalizeSymbol(symbol) {
			return snap, true, nil
		}
	}
	return models.Snapshot{}, false, nil
}

func (m *MockMarketStore) ListSnapshots(ctx context.Context, limit int) ([]models.Snapshot, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	rows := make([]models.Snapshot, len(m.Snapshots))
	copy(rows, m.Snapshots)
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *MockMarketStore) GetSnapshots(ctx context.Context, symbols []string) ([]models.Snapshot, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Snapshot
	for _, sym := range symbols {
		for _, snap := range m.Snapshots {
			if snap.Symbol == models.NormalizeSymbol(sym) {
				out = append(out, snap)
				break
			}
		}
	}
	return out, nil
}

func (m *MockMarketStore) HasSymbol(ctx context.Context, symbol string) (bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	for _, snap := range m.Snapshots {
		if snap.Symbol == models.NormalizeSymbol(symbol) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockMarketStore) SubscribeToFeed(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[symbol]++
	return nil
}

func (m *MockMarketStore) UnsubscribeFromFeed(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[symbol]--
	if m.SubscribedChannels[symbol] <= 0 {
		delete(m.SubscribedChannels, symbol)
	}
	return nil
}

func (m *MockMarketStore) RunPubSub(ctx context.Context, onMessage func(symbol string, payload string)) {
	// No-op for unit tests
}

func (m *MockMarketStore) Close() error { return nil }

// MockClock fires timers immediately so paced loops run at test speed
type MockClock struct {
	Fires int
	Mu    sync.Mutex
}

func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.Mu.Lock()
	c.Fires++
	c.Mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}
