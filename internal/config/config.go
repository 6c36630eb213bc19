// Package config defines all configuration for the trading core. Config is
// loaded from a YAML file (default: configs/config.yaml) with overrides
// from TRADING_CORE_* environment variables, the same layout
// 0xtitan6-polymarket-mm's internal/config/config.go uses for its
// market-making bot.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Orders  OrdersConfig  `mapstructure:"orders"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Session SessionConfig `mapstructure:"session"`
	Oracle  OracleConfig  `mapstructure:"oracle"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the transport adapter (internal/transport).
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OrdersConfig bounds order size, per spec.md §6.
type OrdersConfig struct {
	MinOrderSize string `mapstructure:"min_order_size"`
	MaxOrderSize string `mapstructure:"max_order_size"`
}

// Decimals parses the string-form size bounds, deferring to
// shopspring/decimal rather than float64 so the bounds can't drift from
// the arithmetic precision the rest of the core uses.
func (o OrdersConfig) Decimals() (min, max decimal.Decimal, err error) {
	min, err = decimal.NewFromString(o.MinOrderSize)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("orders.min_order_size: %w", err)
	}
	max, err = decimal.NewFromString(o.MaxOrderSize)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("orders.max_order_size: %w", err)
	}
	return min, max, nil
}

// RiskConfig tunes the core's one shipped risk ruleset
// (internal/risk.PositionLimitEvaluator).
type RiskConfig struct {
	MaxPositionSize       string  `mapstructure:"max_position_size"`
	ConcentrationFraction float64 `mapstructure:"concentration_fraction"`
}

// Decimal parses MaxPositionSize.
func (r RiskConfig) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.MaxPositionSize)
	if err != nil {
		return decimal.Zero, fmt.Errorf("risk.max_position_size: %w", err)
	}
	return d, nil
}

// SessionConfig is the trading-hours calendar (internal/session).
type SessionConfig struct {
	Start    string `mapstructure:"start"` // "15:04:05"
	End      string `mapstructure:"end"`
	Timezone string `mapstructure:"timezone"` // IANA name, e.g. "America/New_York"
}

// OracleConfig selects and configures the Market Price Oracle.
type OracleConfig struct {
	Mode    string `mapstructure:"mode"` // "static" or "live"
	FeedURL string `mapstructure:"feed_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADING_CORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":9443")
	v.SetDefault("server.metrics_addr", ":9464")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("orders.min_order_size", "1")
	v.SetDefault("orders.max_order_size", "100000")
	v.SetDefault("risk.max_position_size", "50000")
	v.SetDefault("risk.concentration_fraction", 0.6)
	v.SetDefault("session.start", "00:00:00")
	v.SetDefault("session.end", "24:00:00")
	v.SetDefault("session.timezone", "UTC")
	v.SetDefault("oracle.mode", "static")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	min, max, err := c.Orders.Decimals()
	if err != nil {
		return err
	}
	if !min.IsPositive() {
		return fmt.Errorf("orders.min_order_size must be > 0")
	}
	if max.LessThanOrEqual(min) {
		return fmt.Errorf("orders.max_order_size must exceed orders.min_order_size")
	}
	if _, err := c.Risk.Decimal(); err != nil {
		return err
	}
	if c.Risk.ConcentrationFraction <= 0 || c.Risk.ConcentrationFraction > 1 {
		return fmt.Errorf("risk.concentration_fraction must be in (0, 1]")
	}
	switch c.Oracle.Mode {
	case "static", "live":
	default:
		return fmt.Errorf("oracle.mode must be one of: static, live")
	}
	if c.Oracle.Mode == "live" && c.Oracle.FeedURL == "" {
		return fmt.Errorf("oracle.feed_url is required when oracle.mode is live")
	}
	return nil
}

// ParseSessionHours turns the string-form session config into a
// time.Duration pair plus a resolved *time.Location.
func ParseSessionHours(cfg SessionConfig) (start, end time.Duration, loc *time.Location, err error) {
	loc, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("session.timezone: %w", err)
	}
	start, err = parseClock(cfg.Start)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("session.start: %w", err)
	}
	end, err = parseClock(cfg.End)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("session.end: %w", err)
	}
	return start, end, loc, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04:05", s)
	if err == nil {
		return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
	}
	if s == "24:00:00" {
		return 24 * time.Hour, nil
	}
	return 0, err
}
