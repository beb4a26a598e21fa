package aggregator_test

import (
	"testing"
	"time"

	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/processor/internal/aggregator"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newAgg() *aggregator.Aggregator {
	return aggregator.New(aggregator.Config{
		Interval:      time.Minute,
		IntervalLabel: "1m",
		Lateness:      2 * time.Minute,
	})
}

func TestAggregator_OHLCV(t *testing.T) {
	agg := newAgg()

	agg.Ingest("BTC", 100, 1, base.Add(10*time.Second))
	agg.Ingest("BTC", 105, 2, base.Add(20*time.Second))
	agg.Ingest("BTC", 95, 1, base.Add(30*time.Second))
	agg.Ingest("BTC", 102, 1, base.Add(40*time.Second))

	// Advance the watermark past the bucket end: 12:01 + 2m lateness
	agg.Ingest("BTC", 110, 1, base.Add(3*time.Minute+time.Second))

	closed := agg.CloseBuckets()
	if len(closed) != 1 {
		t.Fatalf("Expected 1 closed bucket, got %d", len(closed))
	}

	c := closed[0]
	if c.Symbol != "BTC" || c.Interval != "1m" {
		t.Errorf("Unexpected identity: %+v", c)
	}
	if !c.BucketStart.Equal(base) {
		t.Errorf("Expected bucket start %v, got %v", base, c.BucketStart)
	}
	if c.Open != 100 || c.High != 105 || c.Low != 95 || c.Close != 102 {
		t.Errorf("Bad OHLC: open=%v high=%v low=%v close=%v", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 5 {
		t.Errorf("Expected volume 5, got %v", c.Volume)
	}
	if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close {
		t.Error("OHLC invariant violated")
	}
}

func TestAggregator_OutOfOrderWithinAllowance(t *testing.T) {
	agg := newAgg()

	agg.Ingest("ETH", 50, 1, base.Add(30*time.Second))
	// Earlier event arriving later must become the open
	if !agg.Ingest("ETH", 48, 1, base.Add(5*time.Second)) {
		t.Fatal("In-allowance tick was dropped")
	}

	agg.Ingest("ETH", 60, 1, base.Add(4*time.Minute))
	closed := agg.CloseBuckets()
	if len(closed) != 1 {
		t.Fatalf("Expected 1 closed bucket, got %d", len(closed))
	}
	if closed[0].Open != 48 {
		t.Errorf("Expected open 48 from earlier event time, got %v", closed[0].Open)
	}
	if closed[0].Close != 50 {
		t.Errorf("Expected close 50 from latest event time, got %v", closed[0].Close)
	}
}

func TestAggregator_LateTickDropped(t *testing.T) {
	agg := newAgg()

	agg.Ingest("BTC", 100, 1, base.Add(10*time.Minute))

	// More than the lateness allowance behind the watermark
	if agg.Ingest("BTC", 1, 1, base) {
		t.Error("Late tick should have been dropped")
	}

	agg.Ingest("BTC", 101, 1, base.Add(13*time.Minute))
	for _, c := range agg.CloseBuckets() {
		if c.Low == 1 || c.Open == 1 {
			t.Errorf("Late tick leaked into candle: %+v", c)
		}
	}
	if agg.InFlight() == 0 {
		t.Error("Expected the fresh bucket to remain in flight")
	}
}

func TestAggregator_BucketStaysOpenUntilWatermark(t *testing.T) {
	agg := newAgg()

	agg.Ingest("SOL", 10, 1, base)
	agg.Ingest("SOL", 11, 1, base.Add(2*time.Minute+30*time.Second))

	// Watermark is only at 12:00:30, bucket [12:00,12:01) must stay open
	if closed := agg.CloseBuckets(); len(closed) != 0 {
		t.Fatalf("Bucket closed early: %+v", closed)
	}

	agg.Ingest("SOL", 12, 1, base.Add(3*time.Minute+time.Second))
	closed := agg.CloseBuckets()
	if len(closed) != 1 {
		t.Fatalf("Expected first bucket to close, got %d", len(closed))
	}
	if agg.InFlight() != 2 {
		t.Errorf("Expected 2 buckets still in flight, got %d", agg.InFlight())
	}
}

func TestAggregator_ReplayRecomputesSameCandle(t *testing.T) {
	run := func() []float64 {
		agg := newAgg()
		agg.Ingest("BTC", 100, 1, base.Add(5*time.Second))
		agg.Ingest("BTC", 104, 2, base.Add(25*time.Second))
		agg.Ingest("BTC", 99, 1, base.Add(45*time.Second))
		agg.Ingest("BTC", 120, 1, base.Add(5*time.Minute))
		closed := agg.CloseBuckets()
		if len(closed) != 1 {
			t.Fatalf("Expected 1 candle, got %d", len(closed))
		}
		c := closed[0]
		return []float64{c.Open, c.High, c.Low, c.Close, c.Volume}
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Replay diverged at field %d: %v vs %v", i, first[i], second[i])
		}
	}
}
