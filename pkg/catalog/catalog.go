// Package catalog provides the static seed data served before the streaming
// pipeline has produced any live snapshots. The catalog is loaded once at
// startup and never mutated; all accessors return copies.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/models"
)

//go:embed seed.yaml
var seedYAML []byte

type seedAsset struct {
	Symbol           string    `yaml:"symbol"`
	Name             string    `yaml:"name"`
	Price            float64   `yaml:"price"`
	PercentChange24h float64   `yaml:"percent_change_24h"`
	PercentChange7d  float64   `yaml:"percent_change_7d"`
	Volume24h        float64   `yaml:"volume_24h"`
	MarketCap        float64   `yaml:"market_cap"`
	Sparkline        []float64 `yaml:"sparkline"`
	High24h          float64   `yaml:"high_24h"`
	Low24h           float64   `yaml:"low_24h"`
	Description      string    `yaml:"description"`
}

type seedFile struct {
	Assets []seedAsset `yaml:"assets"`
}

// Catalog is an immutable, in-memory set of reference assets.
type Catalog struct {
	bySymbol map[string]models.Snapshot
	ordered  []string // symbols sorted by market cap descending
}

// Load parses the embedded seed data.
func Load() (*Catalog, error) {
	var file seedFile
	if err := yaml.Unmarshal(seedYAML, &file); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}
	if len(file.Assets) == 0 {
		return nil, fmt.Errorf("seed catalog is empty")
	}

	c := &Catalog{bySymbol: make(map[string]models.Snapshot, len(file.Assets))}
	for _, a := range file.Assets {
		sym := models.NormalizeSymbol(a.Symbol)
		if len(a.Sparkline) < 2 {
			return nil, fmt.Errorf("seed asset %s: sparkline needs at least 2 points", sym)
		}
		c.bySymbol[sym] = models.Snapshot{
			Symbol:           sym,
			Name:             a.Name,
			Price:            a.Price,
			PercentChange24h: a.PercentChange24h,
			PercentChange7d:  a.PercentChange7d,
			Volume24h:        a.Volume24h,
			MarketCap:        a.MarketCap,
			Sparkline:        a.Sparkline,
			High24h:          a.High24h,
			Low24h:           a.Low24h,
			Description:      a.Description,
		}
		c.ordered = append(c.ordered, sym)
	}

	sort.Slice(c.ordered, func(i, j int) bool {
		return c.bySymbol[c.ordered[i]].MarketCap > c.bySymbol[c.ordered[j]].MarketCap
	})

	return c, nil
}

// Has reports whether the catalog includes the symbol (case-insensitive).
func (c *Catalog) Has(symbol string) bool {
	_, ok := c.bySymbol[models.NormalizeSymbol(symbol)]
	return ok
}

// Get returns a copy of the seed entry for the symbol.
func (c *Catalog) Get(symbol string) (models.Snapshot, bool) {
	snap, ok := c.bySymbol[models.NormalizeSymbol(symbol)]
	if !ok {
		return models.Snapshot{}, false
	}
	return copySnapshot(snap), true
}

// Symbols returns all seed symbols ordered by market cap descending.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Overview returns up to limit entries ordered by market cap descending.
// A limit of zero or less returns every entry.
func (c *Catalog) Overview(limit int) []models.Snapshot {
	symbols := c.ordered
	if limit > 0 && limit < len(symbols) {
		symbols = symbols[:limit]
	}
	out := make([]models.Snapshot, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, copySnapshot(c.bySymbol[sym]))
	}
	return out
}

// All returns every entry in market cap order.
func (c *Catalog) All() []models.Snapshot {
	return c.Overview(0)
}

func copySnapshot(s models.Snapshot) models.Snapshot {
	spark := make([]float64, len(s.Sparkline))
	copy(spark, s.Sparkline)
	s.Sparkline = spark
	return s
}
