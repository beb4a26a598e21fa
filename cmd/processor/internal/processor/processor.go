package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/processor/internal/aggregator"
	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/processor/internal/archive"
	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/processor/internal/merger"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/config"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

type Processor struct {
	cfg        *config.Config
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	recorder   archive.Recorder
	numWorkers int
	batchSize  int
	now        func() time.Time
}

func NewProcessor(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader, recorder archive.Recorder) *Processor {
	batchSize := cfg.Processor.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Processor{
		cfg:        cfg,
		logger:     logger,
		rdb:        rdb,
		reader:     reader,
		recorder:   recorder,
		numWorkers: cfg.Processor.NumWorkers,
		batchSize:  batchSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, 100)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	go func() {
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			// Deterministic sharding keeps every symbol on one worker,
			// which serializes all state mutation for that symbol.
			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")

	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	// Background context prevents cancellation mid-write during drain
	ctx := context.Background()

	agg := aggregator.New(aggregator.Config{
		Interval:      p.cfg.Aggregator.Interval,
		IntervalLabel: p.cfg.Aggregator.IntervalLabel,
		Lateness:      p.cfg.Aggregator.Lateness,
	})
	// Snapshots for this worker's symbols; safe to cache because of
	// the single-writer-per-symbol sharding.
	snapshots := make(map[string]models.Snapshot)

	// Candles whose write failed; carried over and retried with the
	// next cycle so a Redis hiccup never loses a closed bucket.
	var pending []models.Candle

	for payload := range msgs {
		batch := [][]byte{payload}
	drain:
		for len(batch) < p.batchSize {
			select {
			case next, ok := <-msgs:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		pending = p.processBatch(ctx, id, agg, snapshots, pending, batch)
	}

	// One last attempt for candles still unwritten at shutdown
	if len(pending) > 0 {
		p.processBatch(ctx, id, agg, snapshots, pending, nil)
	}
}

// processBatch folds the batch's ticks into the aggregator and writes
// any closed candles, pending ones included. It returns the candles
// that remain unwritten so the caller retries them next cycle; merges
// are recomputed on retry against the then-current snapshots.
func (p *Processor) processBatch(ctx context.Context, workerID int, agg *aggregator.Aggregator, snapshots map[string]models.Snapshot, pending []models.Candle, batch [][]byte) []models.Candle {
	for _, payload := range batch {
		var tick models.Tick
		if err := json.Unmarshal(payload, &tick); err != nil {
			p.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}

		symbol := models.NormalizeSymbol(tick.Symbol)
		if symbol == "" || tick.Price <= 0 || tick.Volume < 0 {
			p.logger.Debug("Skipping malformed tick", zap.String("symbol", tick.Symbol))
			continue
		}

		eventTime, err := tick.EventTime()
		if err != nil {
			p.logger.Error("Bad tick timestamp", zap.String("timestamp", tick.Timestamp), zap.Error(err))
			continue
		}

		if !agg.Ingest(symbol, tick.Price, tick.Volume, eventTime) {
			p.logger.Debug("Dropping late tick", zap.String("symbol", symbol), zap.Time("event_time", eventTime))
		}
	}

	closed := append(pending, agg.CloseBuckets()...)
	if len(closed) == 0 {
		return nil
	}

	merged := make([]models.Snapshot, 0, len(closed))
	for _, c := range closed {
		prev, err := p.previousSnapshot(ctx, snapshots, c.Symbol)
		if err != nil {
			p.logger.Error("Snapshot lookup failed, retrying candles next cycle", zap.String("symbol", c.Symbol), zap.Error(err))
			return closed
		}
		merged = append(merged, merger.Merge(c, prev, p.now()))
	}

	// Candles and their derived snapshots land in one MULTI/EXEC so
	// a partial failure never leaves them disagreeing.
	pipe := p.rdb.TxPipeline()
	for _, c := range closed {
		payload, err := json.Marshal(c)
		if err != nil {
			p.logger.Error("Candle Marshal Error", zap.Error(err))
			return closed
		}
		pipe.Set(ctx, models.CandleKey(c.Symbol, c.Interval, c.BucketStart), payload, 0)
	}
	for _, s := range merged {
		payload, err := json.Marshal(s)
		if err != nil {
			p.logger.Error("Snapshot Marshal Error", zap.Error(err))
			return closed
		}
		pipe.Set(ctx, models.SnapshotKey(s.Symbol), payload, 0)
		pipe.ZAdd(ctx, models.SnapshotIndex, redis.Z{Score: s.MarketCap, Member: s.Symbol})
		pipe.Publish(ctx, models.QuoteChannel(s.Symbol), payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("Redis Pipeline Error, retrying candles next cycle", zap.Error(err), zap.Int("candles", len(closed)))
		return closed
	}

	for _, s := range merged {
		snapshots[s.Symbol] = s
	}

	if err := p.recorder.RecordCandles(closed); err != nil {
		p.logger.Error("Candle archive write failed", zap.Error(err))
	}

	p.logger.Debug("Processed batch",
		zap.Int("worker_id", workerID),
		zap.Int("candles", len(closed)),
		zap.Int("in_flight", agg.InFlight()))

	return nil
}

func (p *Processor) previousSnapshot(ctx context.Context, cache map[string]models.Snapshot, symbol string) (*models.Snapshot, error) {
	if snap, ok := cache[symbol]; ok {
		return &snap, nil
	}

	val, err := p.rdb.Get(ctx, models.SnapshotKey(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		p.logger.Warn("Discarding unreadable stored snapshot", zap.String("symbol", symbol), zap.Error(err))
		return nil, nil
	}
	cache[symbol] = snap
	return &snap, nil
}

// getWorkerID hashes the normalized key so differently cased keys for
// one symbol cannot land on different workers.
func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write([]byte(models.NormalizeSymbol(string(key))))
	return int(h.Sum32()) % numWorkers
}
