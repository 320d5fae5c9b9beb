// Package catalog holds the static universe of tracked instruments.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/newthinker/radar/internal/core"
	"gopkg.in/yaml.v3"
)

//go:embed instruments.yaml
var defaultData []byte

// Unknown tickers resolve to this placeholder.
const (
	unknownName   = "Desconhecido"
	unknownSector = "Outro"
)

// Catalog is an immutable set of instruments, kept in file order.
type Catalog struct {
	instruments []core.Instrument
	byTicker    map[string]int
}

type document struct {
	Instruments []core.Instrument `yaml:"instruments"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("parse catalog: %w", err))
	}
	return New(doc.Instruments)
}

// New builds a catalog from instruments. Tickers must be unique.
func New(instruments []core.Instrument) (*Catalog, error) {
	c := &Catalog{
		instruments: make([]core.Instrument, 0, len(instruments)),
		byTicker:    make(map[string]int, len(instruments)),
	}
	for _, inst := range instruments {
		if inst.Ticker == "" {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("instrument with empty ticker"))
		}
		if !validCategory(inst.Category) {
			return nil, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("%s: unknown category %q", inst.Ticker, inst.Category))
		}
		if _, dup := c.byTicker[inst.Ticker]; dup {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate ticker %s", inst.Ticker))
		}
		c.byTicker[inst.Ticker] = len(c.instruments)
		c.instruments = append(c.instruments, inst)
	}
	return c, nil
}

func validCategory(cat core.Category) bool {
	switch cat {
	case core.CategoryDomesticEquity, core.CategoryForeignEquity,
		core.CategoryCommodity, core.CategoryCrypto, core.CategoryCurrency:
		return true
	}
	return false
}

// All returns a copy of every instrument.
func (c *Catalog) All() []core.Instrument {
	out := make([]core.Instrument, len(c.instruments))
	copy(out, c.instruments)
	return out
}

// Len returns the number of instruments.
func (c *Catalog) Len() int {
	return len(c.instruments)
}

// Lookup finds an instrument by ticker.
func (c *Catalog) Lookup(ticker string) (core.Instrument, bool) {
	i, ok := c.byTicker[ticker]
	if !ok {
		return core.Instrument{}, false
	}
	return c.instruments[i], true
}

// Info is Lookup with a placeholder for tickers outside the catalog.
func (c *Catalog) Info(ticker string) core.Instrument {
	if inst, ok := c.Lookup(ticker); ok {
		return inst
	}
	return core.Instrument{
		Ticker:   ticker,
		Name:     unknownName,
		Sector:   unknownSector,
		Category: core.CategoryDomesticEquity,
	}
}

// ByCategory returns instruments of one category in catalog order.
func (c *Catalog) ByCategory(cat core.Category) []core.Instrument {
	var out []core.Instrument
	for _, inst := range c.instruments {
		if inst.Category == cat {
			out = append(out, inst)
		}
	}
	return out
}
