package models

import (
	"strings"
	"time"
)

// Tick is the ingress wire format for a single price observation.
// Ticks are transient: they are aggregated into candles and never stored.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp string  `json:"timestamp"` // ISO-8601
	Source    string  `json:"source"`
}

// EventTime parses the tick's ISO-8601 timestamp.
func (t Tick) EventTime() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, t.Timestamp)
}

// Candle is one OHLCV aggregate for a (symbol, interval, bucket) key.
type Candle struct {
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	BucketStart time.Time `json:"bucket_start"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
}

// Snapshot is the rolling derived view of a symbol's market state,
// rebuilt from each closed candle by the merger.
type Snapshot struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Price            float64   `json:"price"`
	PercentChange24h float64   `json:"percent_change_24h"`
	PercentChange7d  float64   `json:"percent_change_7d"`
	Volume24h        float64   `json:"volume_24h"`
	MarketCap        float64   `json:"market_cap"`
	Sparkline        []float64 `json:"sparkline"`
	High24h          float64   `json:"high_24h"`
	Low24h           float64   `json:"low_24h"`
	Description      string    `json:"description"`
	UpdatedAt        time.Time `json:"updated_at"`

	// LastBucketStart is the unix time of the last candle folded in.
	// Replayed candles with an older or equal bucket are skipped,
	// which makes the merge idempotent under redelivery.
	LastBucketStart int64 `json:"last_bucket_start"`
}

// QuoteUpdate is one symbol's entry in a live stream event.
type QuoteUpdate struct {
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	PercentChange24h float64 `json:"percent_change_24h"`
}

// StreamEvent is a single frame of the live quote stream.
type StreamEvent struct {
	Type   string        `json:"type"`
	Quotes []QuoteUpdate `json:"quotes"`
}

// NormalizeSymbol uppercases and trims a requested symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
