package market

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

// ErrNoStreamableSymbols is returned when no requested symbol resolves
// to either live or seed data; no session is started.
var ErrNoStreamableSymbols = errors.New("no streamable symbols")

const (
	maxIterations = 20
	minDelay      = 10 * time.Millisecond
	maxDelay      = time.Second
	maxDrift      = 0.35 // percent per iteration
)

// Clock abstracts pacing for deterministic tests
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// RealClock delegates to the runtime timer.
type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Streamer produces short-lived simulated quote update sessions. Each
// session owns its own baseline state and PRNG; sessions never share
// mutable state.
type Streamer struct {
	resolver *Resolver
	clock    Clock
}

func NewStreamer(resolver *Resolver, clock Clock) *Streamer {
	return &Streamer{resolver: resolver, clock: clock}
}

// Stream resolves a baseline for the requested symbols and returns a
// channel of paced update events. The channel is closed after the
// iteration cap or when ctx is cancelled, whichever comes first. The
// PRNG is seeded from the symbol set, so identical symbol sets produce
// identical sequences.
func (s *Streamer) Stream(ctx context.Context, symbols []string, iterations int, delay time.Duration) (<-chan models.StreamEvent, error) {
	// Baselines resolve per symbol: live snapshot preferred, seed row
	// otherwise, unknown symbols excluded from the session.
	requested := normalizeUnique(symbols)
	session := make([]string, 0, len(requested))
	prices := make(map[string]float64, len(requested))
	changes := make(map[string]float64, len(requested))
	for _, sym := range requested {
		snap, err := s.resolver.AssetDetail(ctx, sym)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		session = append(session, sym)
		prices[sym] = snap.Price
		changes[sym] = snap.PercentChange24h
	}
	if len(session) == 0 {
		return nil, ErrNoStreamableSymbols
	}
	// Fixed iteration order keeps the PRNG draws identical for a given
	// symbol set regardless of request order
	sort.Strings(session)

	if iterations < 1 {
		iterations = 1
	}
	if iterations > maxIterations {
		iterations = maxIterations
	}
	if delay < minDelay {
		delay = minDelay
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	rng := rand.New(rand.NewSource(seedFor(session)))

	ch := make(chan models.StreamEvent)
	go func() {
		defer close(ch)
		for i := 0; i < iterations; i++ {
			updates := make([]models.QuoteUpdate, 0, len(session))
			for _, sym := range session {
				drift := -maxDrift + rng.Float64()*2*maxDrift
				price := round2(prices[sym] * (1 + drift/100))
				change := round2(changes[sym] + drift)
				prices[sym] = price
				changes[sym] = change
				updates = append(updates, models.QuoteUpdate{
					Symbol:           sym,
					Price:            price,
					PercentChange24h: change,
				})
			}

			select {
			case ch <- models.StreamEvent{Type: "watchlist_snapshot", Quotes: updates}:
			case <-ctx.Done():
				return
			}

			select {
			case <-s.clock.After(delay):
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// seedFor sums the character codes of the sorted symbol set, keeping
// sessions reproducible for a given set regardless of request order.
func seedFor(symbols []string) int64 {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)

	var seed int64
	for _, sym := range sorted {
		for _, ch := range sym {
			seed += int64(ch)
		}
	}
	return seed
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
