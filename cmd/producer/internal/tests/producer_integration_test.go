package tests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/producer/internal/producer"
	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/producer/internal/testutils"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

func TestProducer_ComponentWiring(t *testing.T) {
	logger := zap.NewNop()
	mockWriter := &testutils.MockKafkaWriter{}

	// MockClock makes Sleep instant so the loop runs as fast as CPU allows
	mockClock := &testutils.MockClock{CurrentTime: time.Now()}
	mockRand := &testutils.MockRand{Values: []float64{0.4, -0.2, 0.1}}

	symbols := []string{"BTC", "ETH"}
	basePrices := map[string]float64{"BTC": 64000.0, "ETH": 3300.0}

	tp := producer.NewTickProducer(logger, mockWriter, symbols, basePrices, "simulated", 100*time.Millisecond, mockRand, mockClock)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond) // Let it generate a few
		cancel()
	}()

	tp.Run(ctx)

	mockWriter.Mu.Lock()
	defer mockWriter.Mu.Unlock()

	if len(mockWriter.Messages) < 2 {
		t.Fatalf("Expected ticks for both symbols, got %d messages", len(mockWriter.Messages))
	}

	// Every cycle emits one tick per symbol, keyed for partition affinity
	seen := map[string]bool{}
	for _, msg := range mockWriter.Messages[:2] {
		var tick models.Tick
		if err := json.Unmarshal(msg.Value, &tick); err != nil {
			t.Fatalf("Produced invalid JSON: %v", err)
		}
		if string(msg.Key) != tick.Symbol {
			t.Errorf("Key %s should match tick symbol %s", string(msg.Key), tick.Symbol)
		}
		if tick.Price <= 0 {
			t.Errorf("Tick price must stay positive, got %f", tick.Price)
		}
		if tick.Volume < 0 {
			t.Errorf("Tick volume must be non-negative, got %f", tick.Volume)
		}
		seen[tick.Symbol] = true
	}

	if !seen["BTC"] || !seen["ETH"] {
		t.Errorf("First cycle should cover both symbols, saw %v", seen)
	}
}
