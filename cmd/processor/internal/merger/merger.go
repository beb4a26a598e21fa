// Package merger folds closed candles into per-symbol snapshots.
package merger

import (
	"fmt"
	"math"
	"time"

	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

const (
	maxSparkline = 12
	volumeDecay  = 0.75
	// Placeholder market cap heuristic, not a real supply lookup.
	marketCapMultiplier = 1_000_000
)

// Merge folds a candle into the previous snapshot for its symbol and
// returns the refreshed snapshot. prev may be nil for a first candle.
//
// Candles whose bucket is not newer than the last merged one are
// skipped and prev is returned unchanged, so redelivered batches
// reproduce the stored snapshot bit-for-bit.
func Merge(c models.Candle, prev *models.Snapshot, now time.Time) models.Snapshot {
	if prev != nil && c.BucketStart.Unix() <= prev.LastBucketStart {
		return *prev
	}

	var spark []float64
	if prev != nil {
		spark = append(spark, prev.Sparkline...)
	}
	spark = append(spark, c.Close)
	if len(spark) > maxSparkline {
		spark = spark[len(spark)-maxSparkline:]
	}
	if len(spark) == 1 {
		spark = append(spark, spark[0])
	}

	baseline := spark[0]
	change := 0.0
	if baseline != 0 {
		change = round(((spark[len(spark)-1]-baseline)/baseline)*100, 4)
	}

	volume := c.Volume
	if prev != nil && prev.Volume24h != 0 {
		volume = round(prev.Volume24h*volumeDecay+c.Volume, 4)
	}

	high, low := spark[0], spark[0]
	for _, p := range spark[1:] {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}

	name := fmt.Sprintf("%s Spot", c.Symbol)
	description := fmt.Sprintf("Streaming market data for %s", c.Symbol)
	if prev != nil && prev.Name != "" {
		name = prev.Name
	}
	if prev != nil && prev.Description != "" {
		description = prev.Description
	}

	return models.Snapshot{
		Symbol:           c.Symbol,
		Name:             name,
		Price:            c.Close,
		PercentChange24h: change,
		// No independent 7d window is tracked; mirrors the 24h figure.
		PercentChange7d: change,
		Volume24h:       volume,
		MarketCap:       round(c.Close*marketCapMultiplier, 2),
		Sparkline:       spark,
		High24h:         high,
		Low24h:          low,
		Description:     description,
		UpdatedAt:       now,
		LastBucketStart: c.BucketStart.Unix(),
	}
}

func round(x float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(x*pow) / pow
}
