// Package aggregator groups ticks into tumbling event-time buckets and
// emits one OHLCV candle per (symbol, bucket) once the watermark passes
// the bucket's end.
package aggregator

import (
	"sort"
	"time"

	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

type Config struct {
	Interval      time.Duration
	IntervalLabel string
	Lateness      time.Duration
}

type bucketKey struct {
	symbol string
	start  int64 // unix seconds
}

type accumulator struct {
	open, high, low, close, volume float64
	openTime, closeTime            time.Time
}

// Aggregator owns only transient in-flight accumulators; closed buckets
// are handed off and forgotten. Not safe for concurrent use: the caller
// shards symbols so that each instance sees a single writer.
type Aggregator struct {
	cfg      Config
	inflight map[bucketKey]*accumulator
	maxEvent time.Time
	hasEvent bool
}

func New(cfg Config) *Aggregator {
	return &Aggregator{
		cfg:      cfg,
		inflight: make(map[bucketKey]*accumulator),
	}
}

// Watermark is the maximum observed event time minus the lateness
// allowance. The second return is false until the first tick arrives.
func (a *Aggregator) Watermark() (time.Time, bool) {
	if !a.hasEvent {
		return time.Time{}, false
	}
	return a.maxEvent.Add(-a.cfg.Lateness), true
}

// Ingest folds one tick into its bucket accumulator and advances the
// watermark. Ticks behind the watermark are dropped; the return value
// reports whether the tick was accepted. Dropping strictly below the
// watermark guarantees an accepted tick's bucket has not closed yet,
// since buckets only close once the watermark passes their end.
func (a *Aggregator) Ingest(symbol string, price, volume float64, eventTime time.Time) bool {
	if wm, ok := a.Watermark(); ok && eventTime.Before(wm) {
		return false
	}

	if !a.hasEvent || eventTime.After(a.maxEvent) {
		a.maxEvent = eventTime
		a.hasEvent = true
	}

	start := eventTime.Truncate(a.cfg.Interval)
	key := bucketKey{symbol: symbol, start: start.Unix()}

	acc, ok := a.inflight[key]
	if !ok {
		a.inflight[key] = &accumulator{
			open: price, high: price, low: price, close: price,
			volume:   volume,
			openTime: eventTime, closeTime: eventTime,
		}
		return true
	}

	// Open follows the earliest event time, first arrival winning ties;
	// close follows the latest event time, last arrival winning ties.
	if eventTime.Before(acc.openTime) {
		acc.open = price
		acc.openTime = eventTime
	}
	if !eventTime.Before(acc.closeTime) {
		acc.close = price
		acc.closeTime = eventTime
	}
	if price > acc.high {
		acc.high = price
	}
	if price < acc.low {
		acc.low = price
	}
	acc.volume += volume

	return true
}

// CloseBuckets drains every bucket whose end boundary the watermark has
// passed, returning the finished candles ordered by symbol then bucket.
func (a *Aggregator) CloseBuckets() []models.Candle {
	wm, ok := a.Watermark()
	if !ok {
		return nil
	}

	var closed []models.Candle
	for key, acc := range a.inflight {
		start := time.Unix(key.start, 0).UTC()
		if start.Add(a.cfg.Interval).After(wm) {
			continue
		}
		closed = append(closed, models.Candle{
			Symbol:      key.symbol,
			Interval:    a.cfg.IntervalLabel,
			BucketStart: start,
			Open:        acc.open,
			High:        acc.high,
			Low:         acc.low,
			Close:       acc.close,
			Volume:      acc.volume,
		})
		delete(a.inflight, key)
	}

	sort.Slice(closed, func(i, j int) bool {
		if closed[i].Symbol != closed[j].Symbol {
			return closed[i].Symbol < closed[j].Symbol
		}
		return closed[i].BucketStart.Before(closed[j].BucketStart)
	})

	return closed
}

// InFlight reports the number of open accumulators.
func (a *Aggregator) InFlight() int {
	return len(a.inflight)
}
