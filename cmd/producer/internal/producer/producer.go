package producer

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

// Per-symbol drift scale in percent per tick. Unlisted symbols fall
// back to defaultVolatility.
var volatility = map[string]float64{
	"BTC":  0.6,
	"ETH":  0.9,
	"SOL":  1.2,
	"AVAX": 1.4,
}

const (
	defaultVolatility = 1.0
	meanVolume        = 2.5
	volumeStdDev      = 1.2
	floorPrice        = 0.01
)

// TickProducer walks each symbol's price with gaussian drift and emits
// one tick per symbol per period, keyed by symbol so a symbol's ticks
// stay on one partition.
type TickProducer struct {
	logger  *zap.Logger
	writer  KafkaWriter
	symbols []string
	prices  map[string]float64
	source  string
	period  time.Duration
	rand    Rand
	clock   Clock
}

func NewTickProducer(
	logger *zap.Logger,
	writer KafkaWriter,
	symbols []string,
	basePrices map[string]float64,
	source string,
	period time.Duration,
	rnd Rand,
	clock Clock,
) *TickProducer {
	prices := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if base, ok := basePrices[sym]; ok && base > 0 {
			prices[sym] = base
		} else {
			prices[sym] = 100.0
		}
	}
	return &TickProducer{
		logger:  logger,
		writer:  writer,
		symbols: symbols,
		prices:  prices,
		source:  source,
		period:  period,
		rand:    rnd,
		clock:   clock,
	}
}

func (tp *TickProducer) Run(ctx context.Context) {
	tp.logger.Info("Producer Started", zap.Strings("symbols", tp.symbols))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(tp.symbols) == 0 {
				tp.clock.Sleep(time.Second)
				continue
			}

			msgs := make([]kafka.Message, 0, len(tp.symbols))
			now := tp.clock.Now().UTC()
			for _, sym := range tp.symbols {
				tick := tp.nextTick(sym, now)

				payload, err := json.Marshal(tick)
				if err != nil {
					tp.logger.Error("JSON Marshal Error", zap.Error(err))
					continue
				}
				msgs = append(msgs, kafka.Message{
					Key:   []byte(sym),
					Value: payload,
				})
			}

			if err := tp.writer.WriteMessages(ctx, msgs...); err != nil {
				tp.logger.Error("Kafka Write Error", zap.Error(err))
			}

			tp.clock.Sleep(tp.period)
		}
	}
}

func (tp *TickProducer) nextTick(symbol string, now time.Time) models.Tick {
	vol, ok := volatility[symbol]
	if !ok {
		vol = defaultVolatility
	}

	drift := tp.rand.NormFloat64() * vol
	price := round2(tp.prices[symbol] * (1 + drift/100))
	if price < floorPrice {
		price = floorPrice
	}
	tp.prices[symbol] = price

	volume := round4(math.Abs(tp.rand.NormFloat64()*volumeStdDev + meanVolume))

	return models.Tick{
		Symbol:    symbol,
		Price:     price,
		Volume:    volume,
		Timestamp: now.Format(time.RFC3339Nano),
		Source:    tp.source,
	}
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
func round4(x float64) float64 { return math.Round(x*10000) / 10000 }
