package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"ExecGuard/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log     logger.Config `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Pricing     PricingConfig                          `yaml:"pricing"`
	Cache       CacheConfig                            `yaml:"cache"`
	Orders      OrdersConfig                           `yaml:"orders"`
	Risk        RiskConfig                             `yaml:"risk"`
	Instruments map[string]map[string]InstrumentConfig `yaml:"instruments" validate:"dive,dive"`
	Guardrails  map[string]float64                     `yaml:"guardrails" validate:"dive,gt=0"`
	Gateway     GatewayConfig                          `yaml:"gateway"`
	Kafka       KafkaConfig                            `yaml:"kafka"`
	ClickHouse  ClickHouseConfig                       `yaml:"clickhouse"`
}

// InstrumentConfig is one entry of the category -> instrument id mapping.
type InstrumentConfig struct {
	Symbol     string  `yaml:"symbol" validate:"required"`
	Exchange   string  `yaml:"exchange"`
	Currency   string  `yaml:"currency" default:"USD"`
	SecType    string  `yaml:"sec_type" default:"FUT"`
	Multiplier float64 `yaml:"multiplier" default:"1" validate:"gt=0"`
	ConID      int64   `yaml:"con_id"`
}

type PricingConfig struct {
	RealtimeWait     time.Duration `yaml:"realtime_wait" default:"1s"`
	DelayedWait      time.Duration `yaml:"delayed_wait" default:"1500ms"`
	StaleAfter       time.Duration `yaml:"stale_after" default:"300s"`
	BatchParallelism int           `yaml:"batch_parallelism" default:"4" validate:"gte=1,lte=64"`
	TierOrder        []string      `yaml:"tier_order" validate:"min=1,dive,oneof=realtime delayed portfolio cached guardrail"`
}

type CacheConfig struct {
	TTL          time.Duration `yaml:"ttl" default:"24h"`
	PersistEvery int           `yaml:"persist_every" default:"10" validate:"gte=1"`
	Backend      string        `yaml:"backend" default:"file" validate:"oneof=file redis memory none"`
	FilePath     string        `yaml:"file_path" default:"data/price_cache.json"`
	RedisKey     string        `yaml:"redis_key" default:"price_cache"`
	Redis        struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"execguard"`

		PoolSize     int           `yaml:"pool_size" default:"10" validate:"gte=1"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
}

// SpreadRange bounds the limit spread (bps) for a pricing tier.
type SpreadRange struct {
	Min float64 `yaml:"min" validate:"gte=0"`
	Max float64 `yaml:"max" validate:"gtefield=Min"`
}

// InstrumentSpread tunes spreads for one instrument.
type InstrumentSpread struct {
	Factor       float64 `yaml:"factor" validate:"gte=0"`
	MinSpreadBps float64 `yaml:"min_spread_bps" validate:"gte=0"`
}

// TickRule applies Tick to prices at or above MinPrice.
type TickRule struct {
	MinPrice float64 `yaml:"min_price" validate:"gte=0"`
	Tick     float64 `yaml:"tick" validate:"gt=0"`
}

type OrdersConfig struct {
	MaxSpreadBps        float64                     `yaml:"max_spread_bps" default:"200" validate:"gt=0"`
	OptionTick          float64                     `yaml:"option_tick" default:"0.05" validate:"gt=0"`
	TierSpreads         map[string]SpreadRange      `yaml:"tier_spreads" validate:"dive"`
	StrategyFactors     map[string]float64          `yaml:"strategy_factors" validate:"dive,gt=0"`
	InstrumentOverrides map[string]InstrumentSpread `yaml:"instrument_overrides" validate:"dive"`
	Ticks               []TickRule                  `yaml:"ticks" validate:"min=1,dive"`
}

type RiskConfig struct {
	DV01 struct {
		TolerancePct float64            `yaml:"tolerance_pct" default:"5" validate:"gt=0"`
		Table        map[string]float64 `yaml:"table" validate:"dive,gt=0"`
	} `yaml:"dv01"`
	Caps struct {
		Sleeves              map[string]float64 `yaml:"sleeves" validate:"dive,gt=0"`
		MaxGrossPct          float64            `yaml:"max_gross_pct" default:"300" validate:"gt=0"`
		MaxNetPct            float64            `yaml:"max_net_pct" default:"100" validate:"gt=0"`
		MaxSinglePositionPct float64            `yaml:"max_single_position_pct" default:"10" validate:"gt=0"`
		MaxSinglePositionUSD float64            `yaml:"max_single_position_usd" default:"500000" validate:"gt=0"`
	} `yaml:"caps"`
	Loss struct {
		MaxDailyLossPct     float64 `yaml:"max_daily_loss_pct" default:"3" validate:"gt=0"`
		MaxWeeklyLossPct    float64 `yaml:"max_weekly_loss_pct" default:"7" validate:"gt=0"`
		HistoryWindow       int     `yaml:"history_window" default:"30" validate:"gte=5"`
		WeeklyWindow        int     `yaml:"weekly_window" default:"5" validate:"gte=1"`
		MinSizingMultiplier float64 `yaml:"min_sizing_multiplier" default:"0.3" validate:"gt=0,lte=1"`
	} `yaml:"loss"`
	KillSwitch struct {
		ConsecutiveLossLimit       int           `yaml:"consecutive_loss_limit" default:"3" validate:"gte=1"`
		ReconciliationFailureLimit int           `yaml:"reconciliation_failure_limit" default:"2" validate:"gte=1"`
		DrawdownTriggerPct         float64       `yaml:"drawdown_trigger_pct" default:"15" validate:"gt=0"`
		Cooldown                   time.Duration `yaml:"cooldown" default:"24h"`
		RequireManualReview        bool          `yaml:"require_manual_review" default:"true"`
		Engines                    []string      `yaml:"engines"`
	} `yaml:"kill_switch"`
	Correlation struct {
		MaxGroupAllocationPct float64             `yaml:"max_group_allocation_pct" default:"50" validate:"gt=0"`
		Groups                map[string][]string `yaml:"groups"`
	} `yaml:"correlation"`
}

type GatewayConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"base_url" default:"http://localhost:5000/v1"`
	WebSocketURL   string        `yaml:"websocket_url" default:"ws://localhost:5000/v1/ws/quotes"`
	Timeout        time.Duration `yaml:"timeout" default:"5s"`
	HealthInterval time.Duration `yaml:"health_interval" default:"10s"`
	QuoteBurst     float64       `yaml:"quote_burst" default:"50" validate:"gt=0"`
	QuotesPerSec   float64       `yaml:"quotes_per_sec" default:"40" validate:"gt=0"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
	Topics       struct {
		Orders    string `yaml:"orders" default:"execguard.orders"`
		Decisions string `yaml:"decisions" default:"execguard.decisions"`
		Alerts    string `yaml:"alerts" default:"execguard.alerts"`
		PnL       string `yaml:"pnl" default:"execguard.pnl"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"10ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"execguard"`
		Workers    int           `yaml:"workers" default:"1" validate:"gte=1"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"execguard"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	c.applyTableDefaults()
	return &c
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// yaml may have introduced instruments without defaults applied
	for cat, insts := range c.Instruments {
		for id, inst := range insts {
			if err := defaults.Set(&inst); err != nil {
				return nil, fmt.Errorf("instrument defaults %s/%s: %w", cat, id, err)
			}
			insts[id] = inst
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from EXECGUARD_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("EXECGUARD_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("EXECGUARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("EXECGUARD_GATEWAY_URL"); v != "" {
		c.Gateway.BaseURL = v
		c.Gateway.Enabled = true
	}
	if v := getenv("EXECGUARD_GATEWAY_WS_URL"); v != "" {
		c.Gateway.WebSocketURL = v
	}
	if v := getenv("EXECGUARD_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("EXECGUARD_REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}
	if v := getenv("EXECGUARD_REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := getenv("EXECGUARD_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Gateway.Enabled && c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required when gateway is enabled")
	}
	if c.Cache.Backend == "file" && c.Cache.FilePath == "" {
		return fmt.Errorf("cache.file_path is required for the file backend")
	}
	for _, tier := range c.Pricing.TierOrder {
		if _, ok := c.Orders.TierSpreads[tier]; !ok {
			return fmt.Errorf("orders.tier_spreads missing tier %q", tier)
		}
	}
	for _, s := range []string{"aggressive", "passive", "guardrail", "midpoint"} {
		if _, ok := c.Orders.StrategyFactors[s]; !ok {
			return fmt.Errorf("orders.strategy_factors missing %q", s)
		}
	}
	return nil
}
