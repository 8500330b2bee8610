package config

// Tables that struct tags cannot express. Applied before YAML so that YAML
// entries merge into (and override) these maps.

func defaultTierSpreads() map[string]SpreadRange {
	return map[string]SpreadRange{
		"realtime":  {Min: 2, Max: 10},
		"delayed":   {Min: 5, Max: 25},
		"portfolio": {Min: 10, Max: 40},
		"cached":    {Min: 20, Max: 75},
		"guardrail": {Min: 50, Max: 150},
	}
}

func defaultStrategyFactors() map[string]float64 {
	return map[string]float64{
		"aggressive": 0.5,
		"passive":    1.5,
		"guardrail":  2.0,
		"midpoint":   1.0,
	}
}

func defaultTicks() []TickRule {
	return []TickRule{
		{MinPrice: 10, Tick: 0.01},
		{MinPrice: 1, Tick: 0.005},
		{MinPrice: 0, Tick: 0.0001},
	}
}

func defaultDV01Table() map[string]float64 {
	return map[string]float64{
		"FGBL": 85,
		"FBTP": 90,
		"FOAT": 80,
		"FGBM": 45,
		"FGBS": 20,
		"ZN":   65,
		"ZB":   135,
		"ZF":   45,
		"ZT":   20,
	}
}

func defaultSleeveCaps() map[string]float64 {
	return map[string]float64{
		"core_index_rv": 50,
		"sector_rv":     30,
		"single_name":   20,
		"credit_carry":  25,
		"crisis_alpha":  15,
		"event_driven":  20,
	}
}

func defaultCorrelationGroups() map[string][]string {
	return map[string][]string{
		"equity_beta":    {"core_index_rv", "sector_rv", "single_name"},
		"rates_duration": {"credit_carry", "crisis_alpha"},
	}
}

func (c *Config) applyTableDefaults() {
	if c.Pricing.TierOrder == nil {
		c.Pricing.TierOrder = []string{"realtime", "delayed", "portfolio", "cached", "guardrail"}
	}
	if c.Orders.TierSpreads == nil {
		c.Orders.TierSpreads = defaultTierSpreads()
	}
	if c.Orders.StrategyFactors == nil {
		c.Orders.StrategyFactors = defaultStrategyFactors()
	}
	if c.Orders.Ticks == nil {
		c.Orders.Ticks = defaultTicks()
	}
	if c.Orders.InstrumentOverrides == nil {
		c.Orders.InstrumentOverrides = map[string]InstrumentSpread{}
	}
	if c.Risk.DV01.Table == nil {
		c.Risk.DV01.Table = defaultDV01Table()
	}
	if c.Risk.Caps.Sleeves == nil {
		c.Risk.Caps.Sleeves = defaultSleeveCaps()
	}
	if c.Risk.Correlation.Groups == nil {
		c.Risk.Correlation.Groups = defaultCorrelationGroups()
	}
	if c.Instruments == nil {
		c.Instruments = map[string]map[string]InstrumentConfig{}
	}
	if c.Guardrails == nil {
		c.Guardrails = map[string]float64{}
	}
}
