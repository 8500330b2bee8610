package instruments

import (
	"sort"
	"strings"

	"ExecGuard/internal/domain/models"
	"ExecGuard/pkg/config"
)

// Catalog indexes configured instruments and guardrail prices.
type Catalog struct {
	byID       map[string]models.Instrument
	guardrails map[string]float64
}

// New builds a catalog from the category -> id -> instrument mapping.
func New(instruments map[string]map[string]config.InstrumentConfig, guardrails map[string]float64) *Catalog {
	c := &Catalog{
		byID:       make(map[string]models.Instrument),
		guardrails: make(map[string]float64, len(guardrails)),
	}
	for category, insts := range instruments {
		for id, ic := range insts {
			c.byID[id] = models.Instrument{
				ID:         id,
				Category:   category,
				Symbol:     ic.Symbol,
				Exchange:   ic.Exchange,
				Currency:   ic.Currency,
				SecType:    ic.SecType,
				Multiplier: ic.Multiplier,
				ConID:      ic.ConID,
			}
		}
	}
	for key, price := range guardrails {
		c.guardrails[strings.ToUpper(key)] = price
	}
	return c
}

// NewFromConfig builds a catalog from the full configuration.
func NewFromConfig(cfg *config.Config) *Catalog {
	return New(cfg.Instruments, cfg.Guardrails)
}

// Instrument returns the configured instrument for id.
func (c *Catalog) Instrument(id string) (models.Instrument, bool) {
	inst, ok := c.byID[id]
	return inst, ok
}

// GuardrailPrice looks up a static fallback by instrument id, then by symbol.
func (c *Catalog) GuardrailPrice(id, symbol string) (float64, bool) {
	if id != "" {
		if p, ok := c.guardrails[strings.ToUpper(id)]; ok && p > 0 {
			return p, true
		}
	}
	if symbol != "" {
		if p, ok := c.guardrails[strings.ToUpper(symbol)]; ok && p > 0 {
			return p, true
		}
	}
	return 0, false
}

// IDs returns every configured instrument id in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
