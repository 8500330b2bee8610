package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, 24*time.Hour, c.Cache.TTL)
	assert.Equal(t, 10, c.Cache.PersistEvery)
	assert.Equal(t, []string{"realtime", "delayed", "portfolio", "cached", "guardrail"}, c.Pricing.TierOrder)
	assert.Equal(t, SpreadRange{Min: 50, Max: 150}, c.Orders.TierSpreads["guardrail"])
	assert.Equal(t, 85.0, c.Risk.DV01.Table["FGBL"])
	assert.Equal(t, 50.0, c.Risk.Caps.Sleeves["core_index_rv"])
	assert.Equal(t, 3.0, c.Risk.Loss.MaxDailyLossPct)
	assert.True(t, c.Risk.KillSwitch.RequireManualReview)
}

func TestParseMergesTables(t *testing.T) {
	c, err := Parse([]byte(`
orders:
  strategy_factors:
    passive: 2.0
risk:
  dv01:
    table:
      RX: 70
instruments:
  rates:
    zn: { symbol: ZN }
`))
	require.NoError(t, err)

	assert.Equal(t, 2.0, c.Orders.StrategyFactors["passive"])
	assert.Equal(t, 0.5, c.Orders.StrategyFactors["aggressive"])
	assert.Equal(t, 70.0, c.Risk.DV01.Table["RX"])
	assert.Equal(t, 65.0, c.Risk.DV01.Table["ZN"])

	zn := c.Instruments["rates"]["zn"]
	assert.Equal(t, "FUT", zn.SecType)
	assert.Equal(t, "USD", zn.Currency)
	assert.Equal(t, 1.0, zn.Multiplier)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown tier":       "pricing:\n  tier_order: [realtime, oracle]\n",
		"bad cache backend":  "cache:\n  backend: s3\n",
		"kafka no brokers":   "kafka:\n  enabled: true\n",
		"negative guardrail": "guardrails:\n  ZN: -1\n",
		"malformed yaml":     "server: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"EXECGUARD_LOG_LEVEL":     "debug",
		"EXECGUARD_GATEWAY_URL":   "http://gw:5000/v1",
		"EXECGUARD_KAFKA_BROKERS": "k1:9092,k2:9092",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Gateway.Enabled)
	assert.Equal(t, "http://gw:5000/v1", c.Gateway.BaseURL)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	require.NoError(t, c.Validate())
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "EUR", c.Instruments["rates"]["fgbl"].Currency)
	assert.Equal(t, 131.5, c.Guardrails["FGBL"])
	assert.Equal(t, 30.0, c.Orders.InstrumentOverrides["spx_call"].MinSpreadBps)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
