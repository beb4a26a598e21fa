package models

import (
	"fmt"
	"time"
)

// Redis key layout shared by the processor (writer) and gateway (reader).
const (
	snapshotKeyPrefix  = "snapshot:"
	candleKeyPrefix    = "candle:"
	quoteChannelPrefix = "quotes."

	// SnapshotIndex is a sorted set of symbols scored by market cap,
	// used for ordered overview listings.
	SnapshotIndex = "snapshots:by_mcap"
)

func SnapshotKey(symbol string) string {
	return snapshotKeyPrefix + symbol
}

func CandleKey(symbol, interval string, bucketStart time.Time) string {
	return fmt.Sprintf("%s%s:%s:%d", candleKeyPrefix, symbol, interval, bucketStart.Unix())
}

func QuoteChannel(symbol string) string {
	return quoteChannelPrefix + symbol
}

// SymbolFromChannel extracts the symbol from a quote pub/sub channel name.
func SymbolFromChannel(channel string) (string, bool) {
	if len(channel) <= len(quoteChannelPrefix) || channel[:len(quoteChannelPrefix)] != quoteChannelPrefix {
		return "", false
	}
	return channel[len(quoteChannelPrefix):], true
}
