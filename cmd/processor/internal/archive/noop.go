package archive

import "github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"

// NoopRecorder is used when the candle archive is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordCandles(_ []models.Candle) error { return nil }
func (n *NoopRecorder) Close() error                          { return nil }
