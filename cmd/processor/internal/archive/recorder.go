package archive

import "github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"

// Recorder persists closed candles for offline analysis. The Redis
// store remains the source of truth for reads; the archive is a
// durable append-side copy.
type Recorder interface {
	RecordCandles(candles []models.Candle) error
	Close() error
}
