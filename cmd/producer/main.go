package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/producer/internal/producer"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/catalog"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/config"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Ensure the topic exists before the first write
	creator := producer.NewTopicCreator(logger, &producer.RealKafkaDialer{Dialer: kafka.DefaultDialer}, producer.RealClock{})
	creator.Create(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
		// Optimization: Send batches to reduce network IO
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}

	// Seed each symbol's walk from the catalog baseline
	basePrices := make(map[string]float64, len(cfg.Producer.Symbols))
	if seed, err := catalog.Load(); err != nil {
		logger.Warn("Seed catalog unavailable, using default base prices", zap.Error(err))
	} else {
		for _, sym := range cfg.Producer.Symbols {
			if snap, ok := seed.Get(models.NormalizeSymbol(sym)); ok {
				basePrices[snap.Symbol] = snap.Price
			}
		}
	}

	tp := producer.NewTickProducer(
		logger,
		writer,
		cfg.Producer.Symbols,
		basePrices,
		cfg.Producer.Source,
		cfg.Producer.Period,
		producer.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))},
		producer.RealClock{},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tp.Run(ctx)
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()
	<-done

	// Flush Kafka Buffer (CRITICAL)
	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
